package printing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ArtifactStorage stores exported documents until they are downloaded.
// Artifacts are temporary files, not a persistence layer for quotations.
type ArtifactStorage interface {
	// Store saves an artifact and returns its path and URL
	Store(ctx context.Context, req *StoreRequest) (*StoreResult, error)
	// Get retrieves an artifact by its path
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete removes an artifact
	Delete(ctx context.Context, path string) error
	// CleanupOlderThan removes artifacts older than age
	CleanupOlderThan(ctx context.Context, age time.Duration) (int, error)
	// GetURL returns the download URL for a stored artifact
	GetURL(path string) string
}

// StoreRequest contains the parameters for storing an artifact
type StoreRequest struct {
	// SessionID scopes the artifact to one document session
	SessionID uuid.UUID
	// FileName is the deterministic document file name
	FileName    string
	ContentType string
	Data        []byte
}

// StoreResult contains the result of storing an artifact
type StoreResult struct {
	// Path is the storage path (relative to base)
	Path string
	// URL is the download URL
	URL  string
	Size int64
}

// ArtifactPath returns the relative storage path of an artifact
func ArtifactPath(sessionID uuid.UUID, fileName string) string {
	return sessionID.String() + "/" + fileName
}

// ErrArtifactNotFound is wrapped by Get when no artifact exists at a path
var ErrArtifactNotFound = errors.New("artifact not found")

// ValidateStoreRequest checks a store request before any I/O
func ValidateStoreRequest(ctx context.Context, req *StoreRequest) error {
	if err := ctx.Err(); err != nil {
		return NewRenderError(ErrCodeStorageFailed, "operation cancelled", err)
	}
	if req == nil {
		return NewRenderError(ErrCodeStorageFailed, "store request is nil", nil)
	}
	if req.SessionID == uuid.Nil {
		return NewRenderError(ErrCodeStorageFailed, "session ID is required", nil)
	}
	if req.FileName == "" || containsDotDot(req.FileName) || strings.ContainsAny(req.FileName, `/\`) {
		return NewRenderError(ErrCodeStorageFailed, "invalid file name", nil)
	}
	if len(req.Data) == 0 {
		return NewRenderError(ErrCodeStorageFailed, "artifact data is empty", nil)
	}
	return nil
}

// FileSystemStorageConfig contains configuration for file system storage
type FileSystemStorageConfig struct {
	// BasePath is the root directory for artifacts
	BasePath string
	// BaseURL is the URL prefix for downloading artifacts
	BaseURL string
	Logger  *zap.Logger
}

// FileSystemStorage stores artifacts on the local file system
type FileSystemStorage struct {
	config FileSystemStorageConfig
	logger *zap.Logger
}

// NewFileSystemStorage creates a new file system based artifact storage
func NewFileSystemStorage(config FileSystemStorageConfig) (*FileSystemStorage, error) {
	if config.BasePath == "" {
		config.BasePath = filepath.Join(os.TempDir(), "quotation-exports")
	}
	if config.BaseURL == "" {
		config.BaseURL = "/api/v1/exports"
	}
	if err := os.MkdirAll(config.BasePath, 0o755); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed,
			fmt.Sprintf("failed to create storage directory: %s", config.BasePath), err)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSystemStorage{config: config, logger: logger}, nil
}

// Store writes the artifact to {base}/{session_id}/{file_name}, replacing an
// earlier export of the same document.
func (s *FileSystemStorage) Store(ctx context.Context, req *StoreRequest) (*StoreResult, error) {
	if err := ValidateStoreRequest(ctx, req); err != nil {
		return nil, err
	}

	relativePath := ArtifactPath(req.SessionID, req.FileName)
	fullPath := filepath.Join(s.config.BasePath, filepath.FromSlash(relativePath))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to create directory", err)
	}

	// Write to a temp file first so a reader never sees a partial artifact
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".export-*")
	if err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to create temp file", err)
	}
	if _, err := tmp.Write(req.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to write artifact", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to write artifact", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to move artifact into place", err)
	}

	url := s.GetURL(relativePath)
	s.logger.Info("artifact stored",
		zap.String("path", fullPath),
		zap.Int("size", len(req.Data)),
		zap.String("url", url))

	return &StoreResult{
		Path: relativePath,
		URL:  url,
		Size: int64(len(req.Data)),
	}, nil
}

// Get retrieves an artifact by its relative path
func (s *FileSystemStorage) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "operation cancelled", err)
	}
	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w: %w", ErrArtifactNotFound, err)
		}
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to open artifact", err)
	}
	return file, nil
}

// Delete removes an artifact
func (s *FileSystemStorage) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return NewRenderError(ErrCodeStorageFailed, "operation cancelled", err)
	}
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil // Already deleted, not an error
		}
		return NewRenderError(ErrCodeStorageFailed, "failed to delete artifact", err)
	}
	s.logger.Info("artifact deleted", zap.String("path", path))
	return nil
}

// CleanupOlderThan removes artifacts older than the specified duration
func (s *FileSystemStorage) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)
	deleted := 0

	err := filepath.Walk(s.config.BasePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				deleted++
				s.logger.Debug("deleted old artifact", zap.String("path", path))
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return deleted, NewRenderError(ErrCodeStorageFailed, "cleanup walk failed", err)
	}

	s.logger.Info("artifact cleanup completed",
		zap.Int("deleted", deleted),
		zap.Duration("age", age))
	return deleted, nil
}

// GetURL returns the download URL for a stored artifact
func (s *FileSystemStorage) GetURL(path string) string {
	cleanPath := filepath.ToSlash(filepath.Clean(path))
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(s.config.BaseURL, "/"), cleanPath)
}

// resolve maps a relative artifact path to a file under BasePath, rejecting
// anything that would escape it.
func (s *FileSystemStorage) resolve(path string) (string, error) {
	cleanPath := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(cleanPath) || containsDotDot(path) {
		s.logger.Warn("blocked potentially malicious path", zap.String("path", path))
		return "", NewRenderError(ErrCodeStorageFailed, "invalid path", ErrArtifactNotFound)
	}

	absBase, err := filepath.Abs(s.config.BasePath)
	if err != nil {
		return "", NewRenderError(ErrCodeStorageFailed, "failed to resolve base path", err)
	}
	absPath, err := filepath.Abs(filepath.Join(s.config.BasePath, cleanPath))
	if err != nil {
		return "", NewRenderError(ErrCodeStorageFailed, "failed to resolve file path", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		s.logger.Warn("path escape attempt blocked",
			zap.String("path", path),
			zap.String("absPath", absPath))
		return "", NewRenderError(ErrCodeStorageFailed, "invalid path", ErrArtifactNotFound)
	}
	return absPath, nil
}

// CleanArtifactPath rejects absolute paths and ".." components and returns
// the slash-separated relative path
func CleanArtifactPath(path string) (string, error) {
	path = strings.TrimPrefix(filepath.ToSlash(path), "/")
	if path == "" || containsDotDot(path) || strings.HasPrefix(path, "/") {
		return "", NewRenderError(ErrCodeStorageFailed, "invalid path", ErrArtifactNotFound)
	}
	return path, nil
}

// containsDotDot checks if a path contains ".." components
func containsDotDot(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\' || r == filepath.Separator
	})
	return slices.Contains(parts, "..")
}

// Ensure FileSystemStorage implements ArtifactStorage
var _ ArtifactStorage = (*FileSystemStorage)(nil)
