package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/quotation/backend/internal/infrastructure/config"
	"github.com/quotation/backend/internal/infrastructure/document"
	"github.com/quotation/backend/internal/infrastructure/printing"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRenderCmd(root *rootOptions) *cobra.Command {
	var (
		out  string
		html bool
	)
	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render a quotation document to PDF or HTML",
		Long: `Render paginates the document and writes it as a PDF using the
configured renderer engine. With --html the on-screen preview is written
instead and no PDF engine is needed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			log := root.logger()
			defer func() { _ = log.Sync() }()

			if html {
				return renderHTML(cmd, cfg, args[0], out, log)
			}
			return renderPDF(cmd, cfg, args[0], out, log)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: derived from the header, in the current directory)")
	cmd.Flags().BoolVar(&html, "html", false, "write the HTML preview instead of a PDF")
	return cmd
}

func renderHTML(cmd *cobra.Command, cfg *config.Config, path, out string, log *zap.Logger) error {
	q, err := document.Load(path)
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(cfg, nil, nil, log)
	if err != nil {
		return err
	}
	result, err := pipeline.Preview(cmd.Context(), q)
	if err != nil {
		return err
	}
	if out == "" {
		out = trimExt(printing.FileName(q.Header())) + ".html"
	}
	if err := os.WriteFile(out, []byte(result.Preview.HTML), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d page(s)\n", out, result.Preview.PageCount)
	return nil
}

func renderPDF(cmd *cobra.Command, cfg *config.Config, path, out string, log *zap.Logger) error {
	q, err := document.Load(path)
	if err != nil {
		return err
	}

	pdf, err := newPDFRenderer(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = pdf.Close() }()

	// The artifact goes through the same storage the server uses, in a
	// scratch directory, then is copied to the requested file
	scratch, err := os.MkdirTemp("", "quotectl-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	storage, err := printing.NewFileSystemStorage(printing.FileSystemStorageConfig{BasePath: scratch, Logger: log})
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(cfg, pdf, storage, log)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	artifact, err := pipeline.Export(ctx, uuid.New(), q)
	if err != nil {
		return err
	}
	if out == "" {
		out = artifact.FileName
	}
	if err := copyArtifact(ctx, storage, artifact.Path, out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d page(s), %d bytes\n", out, artifact.PageCount, artifact.Size)
	return nil
}

func newPDFRenderer(cfg *config.Config, log *zap.Logger) (printing.PDFRenderer, error) {
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
			return nil, err
		}
		return r, nil
	default:
		return nil, errors.New("no PDF engine configured; set renderer.engine or use --html")
	}
}

func copyArtifact(ctx context.Context, storage printing.ArtifactStorage, path, out string) error {
	src, err := storage.Get(ctx, path)
	if err != nil {
		return err
	}
	defer src.Close()

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	dst, err := os.Create(out)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("write %s: %w", out, err)
	}
	return dst.Close()
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
