package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	app "github.com/quotation/backend/internal/application/quotation"
	"github.com/quotation/backend/internal/infrastructure/config"
	"github.com/quotation/backend/internal/infrastructure/document"
	"github.com/quotation/backend/internal/infrastructure/event"
	"github.com/quotation/backend/internal/infrastructure/printing"
	"github.com/quotation/backend/internal/infrastructure/storage"
	"github.com/quotation/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// components is everything main wires together, with the resources that
// need releasing on shutdown
type components struct {
	storage  printing.ArtifactStorage
	pdf      printing.PDFRenderer
	bus      *event.InMemoryEventBus
	journal  io.Closer
	manager  *app.SessionManager
	metrics  *telemetry.Metrics
	renderer *printing.QuotationRenderer
}

func buildStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (printing.ArtifactStorage, error) {
	switch cfg.Storage.Backend {
	case "s3":
		s3, err := storage.NewS3ArtifactStorage(&cfg.Storage,
			storage.WithLogger(log),
			storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
		)
		if err != nil {
			return nil, fmt.Errorf("create s3 storage: %w", err)
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket %s: %w", cfg.Storage.Bucket, err)
		}
		return s3, nil
	default:
		fs, err := printing.NewFileSystemStorage(printing.FileSystemStorageConfig{
			BasePath: cfg.Storage.BasePath,
			BaseURL:  cfg.Storage.BaseURL,
			Logger:   log,
		})
		if err != nil {
			return nil, fmt.Errorf("create file storage: %w", err)
		}
		return fs, nil
	}
}

// buildPDFRenderer returns nil for the "none" engine; the service then
// serves previews only
func buildPDFRenderer(cfg *config.Config, log *zap.Logger) (printing.PDFRenderer, error) {
	switch cfg.Renderer.Engine {
	case "chromedp":
		return printing.NewChromedpRenderer(printing.ChromedpConfig{
			DefaultTimeout: cfg.Renderer.Timeout,
			RemoteURL:      cfg.Renderer.ChromeRemoteURL,
			NoSandbox:      cfg.Renderer.NoSandbox,
			Logger:         log,
		}), nil
	case "wkhtmltopdf":
		r, err := printing.NewWkhtmltopdfRenderer(printing.WkhtmltopdfConfig{
			BinaryPath:     cfg.Renderer.WkhtmltopdfPath,
			DefaultTimeout: cfg.Renderer.Timeout,
			Logger:         log,
		})
		if err != nil {
			return nil, fmt.Errorf("create wkhtmltopdf renderer: %w", err)
		}
		return r, nil
	default:
		return nil, nil
	}
}

func buildTemplateEngine(cfg *config.Config) (*printing.TemplateEngine, error) {
	var opts []printing.TemplateEngineOption
	if cfg.Renderer.TemplateDir != "" {
		opts = append(opts, printing.WithTemplateFS(os.DirFS(cfg.Renderer.TemplateDir)))
	}
	return printing.NewTemplateEngine(opts...)
}

// buildEventBus subscribes the logging handler and, when configured, the
// journal. The returned closer is nil without a journal.
func buildEventBus(cfg *config.Config, log *zap.Logger) (*event.InMemoryEventBus, io.Closer, error) {
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewLoggingHandler(log))

	if cfg.Preview.JournalPath == "" {
		return bus, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Preview.JournalPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create journal directory: %w", err)
	}
	f, err := os.OpenFile(cfg.Preview.JournalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	bus.Subscribe(event.NewJournalHandler(f, event.NewQuotationCodec()))
	return bus, f, nil
}

func buildComponents(ctx context.Context, cfg *config.Config, log *zap.Logger) (*components, error) {
	c := &components{}
	if cfg.Telemetry.MetricsEnabled {
		c.metrics = telemetry.NewMetrics()
	}

	var err error
	if c.storage, err = buildStorage(ctx, cfg, log); err != nil {
		return nil, err
	}
	if c.pdf, err = buildPDFRenderer(cfg, log); err != nil {
		return nil, err
	}

	engine, err := buildTemplateEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("load page templates: %w", err)
	}
	settings, err := cfg.Layout.PrintSettings()
	if err != nil {
		return nil, err
	}
	c.renderer = printing.NewQuotationRenderer(engine, c.pdf, c.storage, printing.QuotationRendererConfig{
		Settings:      settings,
		RenderTimeout: cfg.Renderer.Timeout,
		Logger:        log,
	})

	templates, err := document.NewTemplateStore(document.TemplateStoreConfig{ExternalDir: cfg.Renderer.StarterDir})
	if err != nil {
		return nil, fmt.Errorf("load starter templates: %w", err)
	}

	if c.bus, c.journal, err = buildEventBus(cfg, log); err != nil {
		return nil, err
	}

	var metrics app.Metrics
	if c.metrics != nil {
		metrics = c.metrics
	}
	pipeline, err := app.NewPipeline(cfg.Layout.Capacity(), c.renderer, metrics, log)
	if err != nil {
		return nil, err
	}
	c.manager = app.NewSessionManager(pipeline, c.bus, templates, metrics, app.ManagerConfig{
		Session: app.SessionConfig{
			MinRefreshInterval: cfg.Preview.MinRefreshInterval,
			QueueSize:          cfg.Preview.QueueSize,
		},
		IdleTTL:       cfg.Preview.SessionIdleTTL,
		SweepInterval: cfg.Preview.SweepInterval,
		MaxSessions:   cfg.Preview.MaxSessions,
	}, log)
	return c, nil
}

// close releases the renderer and the journal. The manager and bus are
// stopped by main's shutdown sequence first.
func (c *components) close(log *zap.Logger) {
	if c.pdf != nil {
		if err := c.pdf.Close(); err != nil {
			log.Error("Error closing PDF renderer", zap.Error(err))
		}
	}
	if c.journal != nil {
		if err := c.journal.Close(); err != nil {
			log.Error("Error closing event journal", zap.Error(err))
		}
	}
}
