package main

import (
	"fmt"
	"os"

	app "github.com/quotation/backend/internal/application/quotation"
	"github.com/quotation/backend/internal/infrastructure/config"
	"github.com/quotation/backend/internal/infrastructure/logger"
	"github.com/quotation/backend/internal/infrastructure/printing"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootOptions are the persistent flags shared by every subcommand
type rootOptions struct {
	configPath  string
	logLevel    string
	rowsPerPage int
	textWidth   int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "quotectl",
		Short: "Quotation rendering and preview tool",
		Long: `quotectl works on quotation documents stored as YAML or JSON files.
It paginates them with the same layout rules as the server, prints the
page layout, renders PDF or HTML, and rewrites a live preview as the
file is edited.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default: built-in settings plus QUOTE_ environment)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flags.IntVar(&opts.rowsPerPage, "rows", 0, "override layout.rows_per_page")
	flags.IntVar(&opts.textWidth, "width", -1, "override layout.text_width (0 disables wrapping)")

	cmd.AddCommand(
		newRenderCmd(opts),
		newLayoutCmd(opts),
		newWatchCmd(opts),
		newTemplatesCmd(opts),
		newJournalCmd(opts),
	)
	return cmd
}

// load returns the configuration with flag overrides applied
func (o *rootOptions) load() (*config.Config, error) {
	var cfg *config.Config
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(o.configPath); err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}
	if o.rowsPerPage > 0 {
		cfg.Layout.RowsPerPage = o.rowsPerPage
	}
	if o.textWidth >= 0 {
		cfg.Layout.TextWidth = o.textWidth
	}
	if err := cfg.Layout.Capacity().Validate(); err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	return cfg, nil
}

func (o *rootOptions) logger() *zap.Logger {
	return logger.NewWriter(os.Stderr, o.logLevel)
}

// newPipeline builds the rendering pipeline. pdf and storage may be nil
// when only previews are needed.
func newPipeline(cfg *config.Config, pdf printing.PDFRenderer, storage printing.ArtifactStorage, log *zap.Logger) (*app.Pipeline, error) {
	var opts []printing.TemplateEngineOption
	if cfg.Renderer.TemplateDir != "" {
		opts = append(opts, printing.WithTemplateFS(os.DirFS(cfg.Renderer.TemplateDir)))
	}
	engine, err := printing.NewTemplateEngine(opts...)
	if err != nil {
		return nil, fmt.Errorf("load page templates: %w", err)
	}
	settings, err := cfg.Layout.PrintSettings()
	if err != nil {
		return nil, err
	}
	renderer := printing.NewQuotationRenderer(engine, pdf, storage, printing.QuotationRendererConfig{
		Settings:      settings,
		RenderTimeout: cfg.Renderer.Timeout,
		Logger:        log,
	})
	return app.NewPipeline(cfg.Layout.Capacity(), renderer, nil, log)
}
