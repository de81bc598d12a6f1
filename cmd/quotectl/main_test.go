package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	app "github.com/quotation/backend/internal/application/quotation"
	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/quotation/backend/internal/infrastructure/config"
	"github.com/quotation/backend/internal/infrastructure/document"
	"github.com/quotation/backend/internal/infrastructure/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sampleDocument = `header:
  client: Acme
  issuer: Studio
  date: "2024-03-15"
  currency: USD
  tax_rate: "0.1"
categories:
  - name: Design
    visible: true
    tasks:
      - name: Wireframes
        unit: day
        quantity: 2
        unit_rate: 500
      - name: Visual design
        unit: day
        quantity: 3
        unit_rate: 600
  - name: Development
    visible: true
    tasks:
      - name: Frontend
        quantity: 10
        unit_rate: 700
`

// executeCommand runs quotectl with args and returns captured output
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func writeDocument(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "quote.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLayoutCommand(t *testing.T) {
	path := writeDocument(t, t.TempDir(), sampleDocument)

	// The first page keeps 4 of its 10 rows after the header block
	out, err := executeCommand(t, "layout", "--rows", "10", "--width", "0", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Page 1 of 2")
	assert.Contains(t, out, "Page 2 of 2")
	assert.Contains(t, out, "Wireframes")
	assert.Contains(t, out, "Grand total: 10780.00 USD")
}

func TestLayoutCommand_Overflow(t *testing.T) {
	path := writeDocument(t, t.TempDir(), sampleDocument)

	_, err := executeCommand(t, "layout", "--rows", "1", path)
	assert.Error(t, err)
}

func TestRenderCommand_HTML(t *testing.T) {
	dir := t.TempDir()
	path := writeDocument(t, dir, sampleDocument)
	out := filepath.Join(dir, "preview.html")

	stdout, err := executeCommand(t, "render", "--html", "-o", out, path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 page(s)")

	html, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Visual design")
}

func TestRenderCommand_PDFNeedsEngine(t *testing.T) {
	dir := t.TempDir()
	path := writeDocument(t, dir, sampleDocument)
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("renderer:\n  engine: none\n"), 0o644))

	_, err := executeCommand(t, "render", "-c", cfgPath, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--html")
}

func TestTemplatesCommand(t *testing.T) {
	out, err := executeCommand(t, "templates")
	require.NoError(t, err)
	assert.Contains(t, out, "web-development")

	out, err = executeCommand(t, "templates", "--export", "web-development")
	require.NoError(t, err)
	assert.Contains(t, out, "categories:")

	_, err = executeCommand(t, "templates", "--export", "missing")
	assert.Error(t, err)
}

func TestJournalCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	f, err := os.Create(path)
	require.NoError(t, err)

	sessionID := uuid.New()
	other := uuid.New()
	h := event.NewJournalHandler(f, event.NewQuotationCodec())
	ctx := context.Background()
	require.NoError(t, h.Handle(ctx, quotation.NewQuotationResetEvent(sessionID, 1)))
	require.NoError(t, h.Handle(ctx, quotation.NewQuotationResetEvent(other, 0)))
	require.NoError(t, f.Close())

	out, err := executeCommand(t, "journal", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2 event(s)")

	out, err = executeCommand(t, "journal", "--session", sessionID.String(), path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 event(s)")
	assert.Contains(t, out, sessionID.String())
	assert.NotContains(t, out, other.String())
}

func TestWatch_RewritesPreviewOnSave(t *testing.T) {
	dir := t.TempDir()
	path := writeDocument(t, dir, sampleDocument)
	out := filepath.Join(dir, "preview.html")

	cfg := config.Default()
	log := zaptest.NewLogger(t)
	pipeline, err := newPipeline(cfg, nil, nil, log)
	require.NoError(t, err)

	q, err := document.Load(path)
	require.NoError(t, err)
	session := app.NewSession(uuid.New(), q, pipeline, nil, nil, app.SessionConfig{}, log)
	defer func() { _ = session.Close(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	status := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- watch(ctx, session, path, out, status, log) }()

	require.Eventually(t, func() bool { return fileContains(out, "Wireframes") }, 5*time.Second, 20*time.Millisecond)

	edited := strings.Replace(sampleDocument, "Wireframes", "Sitemap", 1)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))
	require.Eventually(t, func() bool { return fileContains(out, "Sitemap") }, 5*time.Second, 20*time.Millisecond)

	// A broken save keeps the last good preview
	require.NoError(t, os.WriteFile(path, []byte("categories: [oops"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.True(t, fileContains(out, "Sitemap"))

	cancel()
	require.NoError(t, <-done)
}

func fileContains(path, s string) bool {
	data, err := os.ReadFile(path)
	return err == nil && strings.Contains(string(data), s)
}

// syncBuffer is a bytes.Buffer safe for the watch goroutine and the test
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}
