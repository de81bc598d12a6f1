package storage

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quotation/backend/internal/infrastructure/config"
	"github.com/quotation/backend/internal/infrastructure/printing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// ============================================================================
// Unit Tests (no external dependencies)
// ============================================================================

func testConfig() *config.StorageConfig {
	return &config.StorageConfig{
		Bucket:            "quotations",
		AccessKey:         "test-key",
		SecretKey:         "test-secret",
		Region:            "us-east-1",
		Endpoint:          "localhost:9000",
		UsePathStyle:      true,
		Prefix:            "/exports/",
		PresignExpiration: 10 * time.Minute,
	}
}

func TestNewS3ArtifactStorage_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ArtifactStorage(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	tests := []struct {
		name   string
		mutate func(*config.StorageConfig)
		want   string
	}{
		{"missing bucket", func(c *config.StorageConfig) { c.Bucket = "" }, "bucket is required"},
		{"missing access key", func(c *config.StorageConfig) { c.AccessKey = "" }, "access key is required"},
		{"missing secret key", func(c *config.StorageConfig) { c.SecretKey = "" }, "secret key is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			_, err := NewS3ArtifactStorage(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("valid config creates storage", func(t *testing.T) {
		storage, err := NewS3ArtifactStorage(testConfig(), WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		assert.Equal(t, "quotations", storage.GetBucket())
		assert.Equal(t, "exports/", storage.prefix)
		assert.Equal(t, 10*time.Minute, storage.presignExpiration)
		assert.Equal(t, "/api/v1/exports", storage.baseURL)
	})

	t.Run("defaults", func(t *testing.T) {
		cfg := testConfig()
		cfg.PresignExpiration = 0
		cfg.Prefix = ""
		storage, err := NewS3ArtifactStorage(cfg)
		require.NoError(t, err)
		assert.Equal(t, 15*time.Minute, storage.presignExpiration)
		assert.Equal(t, "", storage.prefix)
	})
}

func TestS3ArtifactStorageOptions(t *testing.T) {
	storage, err := NewS3ArtifactStorage(testConfig(), WithPresignExpiration(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, storage.presignExpiration)
}

func TestS3ArtifactStorage_Keys(t *testing.T) {
	storage, err := NewS3ArtifactStorage(testConfig())
	require.NoError(t, err)

	path := printing.ArtifactPath(uuid.MustParse("11111111-1111-1111-1111-111111111111"), "quotation-acme-2024-01-15.pdf")
	assert.Equal(t, "exports/11111111-1111-1111-1111-111111111111/quotation-acme-2024-01-15.pdf", storage.key(path))
	assert.Equal(t, "/api/v1/exports/"+path, storage.GetURL(path))
}

func TestS3ArtifactStorage_GenerateDownloadURL(t *testing.T) {
	storage, err := NewS3ArtifactStorage(testConfig())
	require.NoError(t, err)

	url, expiresAt, err := storage.GenerateDownloadURL(context.Background(), "abc/quotation.pdf", 0)
	require.NoError(t, err)
	assert.Contains(t, url, "http://localhost:9000/quotations/exports/abc/quotation.pdf")
	assert.Contains(t, url, "X-Amz-Signature")
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, 5*time.Second)

	_, _, err = storage.GenerateDownloadURL(context.Background(), "../secret", 0)
	assert.ErrorIs(t, err, printing.ErrArtifactNotFound)
}

func TestS3ArtifactStorage_ValidationOnly(t *testing.T) {
	storage, err := NewS3ArtifactStorage(testConfig())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = storage.Store(ctx, &printing.StoreRequest{SessionID: uuid.Nil, FileName: "a.pdf", Data: []byte("x")})
	assert.Error(t, err)

	_, err = storage.Get(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, printing.ErrArtifactNotFound)

	assert.Error(t, storage.Delete(ctx, ""))
}

// ============================================================================
// Integration Tests (require RustFS/MinIO running)
// ============================================================================

// skipIntegration skips the test unless QUOTE_S3_INTEGRATION=1.
// These tests require an S3-compatible server on localhost:9000.
func skipIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("QUOTE_S3_INTEGRATION") != "1" {
		t.Skip("Skipping integration test. Set QUOTE_S3_INTEGRATION=1 and run MinIO to enable.")
	}
}

func newIntegrationStorage(t *testing.T) *S3ArtifactStorage {
	t.Helper()
	skipIntegration(t)

	cfg := &config.StorageConfig{
		Bucket:            "quotation-integration",
		AccessKey:         "minioadmin",
		SecretKey:         "minioadmin",
		Endpoint:          "http://localhost:9000",
		Region:            "us-east-1",
		UsePathStyle:      true,
		PresignExpiration: 15 * time.Minute,
	}
	storage, err := NewS3ArtifactStorage(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBucket(context.Background()))
	return storage
}

func TestIntegration_StoreGetDelete(t *testing.T) {
	storage := newIntegrationStorage(t)
	ctx := context.Background()

	result, err := storage.Store(ctx, &printing.StoreRequest{
		SessionID:   uuid.New(),
		FileName:    "quotation-acme-2024-01-15.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4 integration"),
	})
	require.NoError(t, err)

	rc, err := storage.Get(ctx, result.Path)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))

	require.NoError(t, storage.Delete(ctx, result.Path))
	_, err = storage.Get(ctx, result.Path)
	assert.ErrorIs(t, err, printing.ErrArtifactNotFound)
}

func TestIntegration_CleanupOlderThan(t *testing.T) {
	storage := newIntegrationStorage(t)
	ctx := context.Background()

	_, err := storage.Store(ctx, &printing.StoreRequest{SessionID: uuid.New(), FileName: "a.pdf", Data: []byte("x")})
	require.NoError(t, err)

	// Nothing is older than an hour yet
	deleted, err := storage.CleanupOlderThan(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	deleted, err = storage.CleanupOlderThan(ctx, -time.Minute)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, 1)
}
