// Package quotation runs the estimate → layout → render pipeline and hosts
// the editing sessions that keep a live preview of a quotation.
package quotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quotation/backend/internal/domain/estimation"
	"github.com/quotation/backend/internal/domain/layout"
	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/quotation/backend/internal/domain/shared"
	"github.com/quotation/backend/internal/infrastructure/printing"
	"github.com/quotation/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Pipeline stage names, used for spans and metrics
const (
	StageEstimate = "estimate"
	StageLayout   = "layout"
	StagePreview  = "preview"
	StageExport   = "export"
)

// Paginated is a quotation with its totals and pages
type Paginated struct {
	Estimate *estimation.Result
	Pages    []layout.Page
}

// PreviewResult is the output of a preview pass
type PreviewResult struct {
	Paginated
	Preview *printing.Preview
}

// Pipeline turns a quotation into pages and hands them to a renderer.
// It holds no state between calls; every pass starts from the quotation.
type Pipeline struct {
	capacity layout.PageCapacity
	renderer Renderer
	metrics  Metrics
	logger   *zap.Logger
}

// NewPipeline creates a pipeline. metrics and logger may be nil.
func NewPipeline(capacity layout.PageCapacity, renderer Renderer, metrics Metrics, logger *zap.Logger) (*Pipeline, error) {
	if err := capacity.Validate(); err != nil {
		return nil, fmt.Errorf("page capacity: %w", err)
	}
	if renderer == nil {
		return nil, errors.New("pipeline requires a renderer")
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		capacity: capacity,
		renderer: renderer,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Capacity returns the page capacity used for layout
func (p *Pipeline) Capacity() layout.PageCapacity {
	return p.capacity
}

// Paginate estimates q and lays it out on pages
func (p *Pipeline) Paginate(ctx context.Context, q quotation.Quotation) (*Paginated, error) {
	var res *estimation.Result
	err := p.stage(ctx, StageEstimate, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		res = estimation.Estimate(q)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var pages []layout.Page
	err = p.stage(ctx, StageLayout, func(ctx context.Context) error {
		var err error
		pages, err = layout.Layout(res, p.capacity)
		if err == nil {
			telemetry.SetAttributes(trace.SpanFromContext(ctx), telemetry.SpanAttrPages, len(pages))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Paginated{Estimate: res, Pages: pages}, nil
}

// Preview runs the whole pipeline and renders an on-screen preview
func (p *Pipeline) Preview(ctx context.Context, q quotation.Quotation) (*PreviewResult, error) {
	paginated, err := p.Paginate(ctx, q)
	if err != nil {
		return nil, err
	}

	var preview *printing.Preview
	err = p.stage(ctx, StagePreview, func(ctx context.Context) error {
		var err error
		preview, err = p.renderer.RenderPreview(ctx, paginated.Pages, paginated.Estimate.Header)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("render preview: %w", err)
	}
	p.metrics.PreviewRendered(len(paginated.Pages))
	return &PreviewResult{Paginated: *paginated, Preview: preview}, nil
}

// Export runs the whole pipeline on q and produces the printable artifact.
// Every failure, including a layout overflow, is reported as ExportFailed
// with the original error as its cause.
func (p *Pipeline) Export(ctx context.Context, sessionID uuid.UUID, q quotation.Quotation) (*printing.Artifact, error) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.export",
		telemetry.WithAttribute(telemetry.SpanAttrSessionID, sessionID),
		telemetry.WithAttribute(telemetry.SpanAttrTasks, q.TaskCount()),
	)
	defer span.End()

	paginated, err := p.Paginate(ctx, q)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, shared.NewExportFailedError("paginate document", err)
	}

	var artifact *printing.Artifact
	err = p.stage(ctx, StageExport, func(ctx context.Context) error {
		var err error
		artifact, err = p.renderer.Export(ctx, sessionID, paginated.Pages, paginated.Estimate.Header)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		if !errors.Is(err, shared.ErrExportFailed) {
			err = shared.NewExportFailedError("render export", err)
		}
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrFileName, artifact.FileName)
	return artifact, nil
}

// stage runs fn inside a span and records its duration
func (p *Pipeline) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, "pipeline."+name,
		telemetry.WithAttribute(telemetry.SpanAttrStage, name))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	p.metrics.ObserveStage(name, time.Since(start))
	if err != nil {
		telemetry.RecordError(span, err)
		p.logger.Debug("pipeline stage failed", zap.String("stage", name), zap.Error(err))
	}
	return err
}
