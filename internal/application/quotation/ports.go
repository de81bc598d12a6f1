package quotation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quotation/backend/internal/domain/layout"
	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/quotation/backend/internal/infrastructure/document"
	"github.com/quotation/backend/internal/infrastructure/printing"
)

// Renderer draws paginated quotations. It is the only I/O in the pipeline.
type Renderer interface {
	RenderPreview(ctx context.Context, pages []layout.Page, header quotation.Header) (*printing.Preview, error)
	// Export produces the printable artifact; sessionID namespaces its storage path
	Export(ctx context.Context, sessionID uuid.UUID, pages []layout.Page, header quotation.Header) (*printing.Artifact, error)
}

// Metrics receives pipeline and session measurements.
// *telemetry.Metrics implements it, including as a nil pointer.
type Metrics interface {
	CommandApplied(command string)
	CommandRejected(command string)
	ObserveStage(stage string, d time.Duration)
	PreviewRendered(pages int)
	EditsCoalesced(n int)
	ExportFinished(outcome string)
	SessionOpened()
	SessionClosed()
}

// TemplateCatalog lists and instantiates starter templates
type TemplateCatalog interface {
	GetAll() []document.StarterTemplate
	Instantiate(key string) (quotation.Quotation, error)
}

type nopMetrics struct{}

func (nopMetrics) CommandApplied(string)              {}
func (nopMetrics) CommandRejected(string)             {}
func (nopMetrics) ObserveStage(string, time.Duration) {}
func (nopMetrics) PreviewRendered(int)                {}
func (nopMetrics) EditsCoalesced(int)                 {}
func (nopMetrics) ExportFinished(string)              {}
func (nopMetrics) SessionOpened()                     {}
func (nopMetrics) SessionClosed()                     {}
