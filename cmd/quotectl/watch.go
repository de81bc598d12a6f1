package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	app "github.com/quotation/backend/internal/application/quotation"
	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/quotation/backend/internal/infrastructure/document"
	"github.com/quotation/backend/internal/infrastructure/printing"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Rewrite an HTML preview every time the document is saved",
		Long: `Watch loads the document into an editing session and rewrites the
HTML preview whenever the file changes. Saves that arrive faster than
preview.min_refresh_interval are coalesced into one refresh. A save that
does not parse leaves the last good preview in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			log := root.logger()
			defer func() { _ = log.Sync() }()

			path := args[0]
			q, err := document.Load(path)
			if err != nil {
				return err
			}
			if out == "" {
				out = trimExt(printing.FileName(q.Header())) + ".html"
			}

			pipeline, err := newPipeline(cfg, nil, nil, log)
			if err != nil {
				return err
			}
			session := app.NewSession(uuid.New(), q, pipeline, nil, nil, app.SessionConfig{
				MinRefreshInterval: cfg.Preview.MinRefreshInterval,
				QueueSize:          cfg.Preview.QueueSize,
			}, log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			defer func() { _ = session.Close(context.Background()) }()

			fmt.Fprintf(cmd.OutOrStdout(), "watching %s, preview at %s\n", path, out)
			return watch(ctx, session, path, out, cmd.OutOrStdout(), log)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "preview file (default: derived from the header)")
	return cmd
}

// watch runs until ctx ends. Every accepted save becomes a Replace command;
// every preview refresh is written to out.
func watch(ctx context.Context, session *app.Session, path, out string, status io.Writer, log *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often save by renaming a temp file over the original, which
	// drops a watch on the file itself; watching the directory survives that
	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	sink, err := session.Subscribe()
	if err != nil {
		return err
	}
	defer sink.Close()

	// A document that does not paginate still starts the watch; the error
	// is reported like any later one
	initial, err := session.Preview(ctx)
	if initial == nil {
		return err
	}
	writePreview(initial, out, status, log)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-session.Done():
			return nil

		case update, ok := <-sink.C():
			if !ok {
				return nil
			}
			writePreview(update, out, status, log)

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			reload(ctx, session, target, log)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))
		}
	}
}

func reload(ctx context.Context, session *app.Session, path string, log *zap.Logger) {
	q, err := document.Load(path)
	if err != nil {
		log.Warn("document not reloaded", zap.String("path", path), zap.Error(err))
		return
	}
	if _, err := session.Apply(ctx, quotation.Replace{Quotation: q}); err != nil {
		log.Warn("document rejected", zap.String("path", path), zap.Error(err))
	}
}

func writePreview(update *app.PreviewUpdate, out string, status io.Writer, log *zap.Logger) {
	if update == nil {
		return
	}
	if update.Err != nil {
		fmt.Fprintf(status, "revision %d: %v\n", update.Revision, update.Err)
		return
	}
	if update.Result == nil || update.Result.Preview == nil {
		return
	}
	if err := os.WriteFile(out, []byte(update.Result.Preview.HTML), 0o644); err != nil {
		log.Error("preview not written", zap.String("path", out), zap.Error(err))
		return
	}
	fmt.Fprintf(status, "revision %d: %d page(s)\n", update.Revision, update.Result.Preview.PageCount)
}
