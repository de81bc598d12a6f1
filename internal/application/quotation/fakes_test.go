package quotation_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	app "github.com/quotation/backend/internal/application/quotation"
	"github.com/quotation/backend/internal/domain/estimation"
	"github.com/quotation/backend/internal/domain/layout"
	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/quotation/backend/internal/domain/shared"
	"github.com/quotation/backend/internal/infrastructure/printing"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) RenderPreview(ctx context.Context, pages []layout.Page, header quotation.Header) (*printing.Preview, error) {
	args := m.Called(ctx, pages, header)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*printing.Preview), args.Error(1)
}

func (m *MockRenderer) Export(ctx context.Context, sessionID uuid.UUID, pages []layout.Page, header quotation.Header) (*printing.Artifact, error) {
	args := m.Called(ctx, sessionID, pages, header)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*printing.Artifact), args.Error(1)
}

// recordingRenderer renders nothing but remembers what it was asked to draw.
// Exports block on gate when it is set.
type recordingRenderer struct {
	mu       sync.Mutex
	previews [][]layout.Page
	exports  [][]layout.Page
	gate     chan struct{}
	started  chan struct{}
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{started: make(chan struct{}, 16)}
}

func (r *recordingRenderer) RenderPreview(_ context.Context, pages []layout.Page, _ quotation.Header) (*printing.Preview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.previews = append(r.previews, pages)
	return &printing.Preview{HTML: "<html></html>", PageCount: len(pages), Pages: pages, GeneratedAt: time.Now()}, nil
}

func (r *recordingRenderer) Export(ctx context.Context, _ uuid.UUID, pages []layout.Page, header quotation.Header) (*printing.Artifact, error) {
	r.started <- struct{}{}
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, shared.NewExportFailedError("export cancelled", ctx.Err())
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports = append(r.exports, pages)
	return &printing.Artifact{
		FileName:  printing.FileName(header),
		Size:      1024,
		PageCount: len(pages),
		CreatedAt: time.Now(),
	}, nil
}

func (r *recordingRenderer) previewCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.previews)
}

func (r *recordingRenderer) lastExport() []layout.Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.exports) == 0 {
		return nil
	}
	return r.exports[len(r.exports)-1]
}

// recordingPublisher collects published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// countingMetrics records the calls the session makes
type countingMetrics struct {
	mu        sync.Mutex
	applied   map[string]int
	rejected  map[string]int
	coalesced int
	previews  int
	exports   map[string]int
	open      int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{applied: map[string]int{}, rejected: map[string]int{}, exports: map[string]int{}}
}

func (m *countingMetrics) CommandApplied(c string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied[c]++
}

func (m *countingMetrics) CommandRejected(c string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[c]++
}

func (m *countingMetrics) ObserveStage(string, time.Duration) {}

func (m *countingMetrics) PreviewRendered(int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.previews++
}

func (m *countingMetrics) EditsCoalesced(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coalesced += n
}

func (m *countingMetrics) ExportFinished(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exports[outcome]++
}

func (m *countingMetrics) SessionOpened() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open++
}

func (m *countingMetrics) SessionClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open--
}

type metricsSnapshot struct {
	applied, rejected, exports map[string]int
	coalesced, previews, open  int
}

func (m *countingMetrics) snapshot() metricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return metricsSnapshot{
		applied:   copyMap(m.applied),
		rejected:  copyMap(m.rejected),
		exports:   copyMap(m.exports),
		coalesced: m.coalesced,
		previews:  m.previews,
		open:      m.open,
	}
}

func copyMap(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var testCapacity = layout.PageCapacity{RowsPerPage: 20, FirstPageHeaderRows: 0, TextWidth: 0}

func newTestPipeline(r app.Renderer, metrics app.Metrics) *app.Pipeline {
	p, err := app.NewPipeline(testCapacity, r, metrics, nil)
	if err != nil {
		panic(err)
	}
	return p
}

func estimateOf(q quotation.Quotation) *estimation.Result {
	return estimation.Estimate(q)
}
