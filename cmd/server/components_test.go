package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	app "github.com/quotation/backend/internal/application/quotation"
	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/quotation/backend/internal/domain/shared"
	"github.com/quotation/backend/internal/infrastructure/config"
	"github.com/quotation/backend/internal/infrastructure/printing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Renderer.Engine = "none"
	cfg.Storage.BasePath = t.TempDir()
	return cfg
}

func TestBuildPDFRenderer(t *testing.T) {
	cfg := testConfig(t)
	log := zaptest.NewLogger(t)

	pdf, err := buildPDFRenderer(cfg, log)
	require.NoError(t, err)
	assert.Nil(t, pdf, "none serves previews only")

	cfg.Renderer.Engine = "chromedp"
	pdf, err = buildPDFRenderer(cfg, log)
	require.NoError(t, err)
	assert.IsType(t, &printing.ChromedpRenderer{}, pdf)
	require.NoError(t, pdf.Close())
}

func TestBuildStorage_FileSystem(t *testing.T) {
	cfg := testConfig(t)
	s, err := buildStorage(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &printing.FileSystemStorage{}, s)
}

func TestBuildEventBus_Journal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Preview.JournalPath = filepath.Join(t.TempDir(), "nested", "events.jsonl")

	bus, journal, err := buildEventBus(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, journal)
	assert.Equal(t, 2, bus.HandlerCount())

	ctx := context.Background()
	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Publish(ctx, quotation.NewQuotationResetEvent(uuid.New(), 0)))
	require.NoError(t, bus.Stop(ctx))
	require.NoError(t, journal.Close())

	data, err := os.ReadFile(cfg.Preview.JournalPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "QuotationReset")
}

func TestBuildComponents_PreviewOnly(t *testing.T) {
	cfg := testConfig(t)
	log := zaptest.NewLogger(t)

	c, err := buildComponents(context.Background(), cfg, log)
	require.NoError(t, err)
	defer c.close(log)
	defer func() { _ = c.manager.Shutdown(context.Background()) }()

	assert.NotNil(t, c.metrics)
	assert.Nil(t, c.pdf)

	s, err := c.manager.Create(context.Background(), app.DocumentRequest{Template: "web-development"})
	require.NoError(t, err)

	update, err := s.Preview(context.Background())
	require.NoError(t, err)
	require.NoError(t, update.Err)
	assert.Positive(t, update.Result.Preview.PageCount)

	_, err = s.Export(context.Background())
	assert.ErrorIs(t, err, shared.ErrExportFailed)
}
