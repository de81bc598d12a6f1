package quotation

import (
	"github.com/google/uuid"
	"github.com/quotation/backend/internal/domain/shared"
)

// AggregateTypeQuotation is the aggregate type of quotation events
const AggregateTypeQuotation = "Quotation"

// Event type constants
const (
	EventTypeQuotationChanged      = "QuotationChanged"
	EventTypeQuotationReset        = "QuotationReset"
	EventTypeQuotationExported     = "QuotationExported"
	EventTypeQuotationExportFailed = "QuotationExportFailed"
)

// QuotationChangedEvent is published after a command has been accepted
type QuotationChangedEvent struct {
	shared.BaseDomainEvent
	Command       string `json:"command"`
	CategoryCount int    `json:"category_count"`
	TaskCount     int    `json:"task_count"`
}

// NewQuotationChangedEvent creates a new QuotationChangedEvent
func NewQuotationChangedEvent(sessionID uuid.UUID, command string, q Quotation) *QuotationChangedEvent {
	return &QuotationChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuotationChanged, AggregateTypeQuotation, sessionID),
		Command:         command,
		CategoryCount:   q.CategoryCount(),
		TaskCount:       q.TaskCount(),
	}
}

// QuotationResetEvent is published when a session starts a new document
type QuotationResetEvent struct {
	shared.BaseDomainEvent
	AbandonedExports int `json:"abandoned_exports"`
}

// NewQuotationResetEvent creates a new QuotationResetEvent
func NewQuotationResetEvent(sessionID uuid.UUID, abandoned int) *QuotationResetEvent {
	return &QuotationResetEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeQuotationReset, AggregateTypeQuotation, sessionID),
		AbandonedExports: abandoned,
	}
}

// QuotationExportedEvent is published when an export artifact was produced
type QuotationExportedEvent struct {
	shared.BaseDomainEvent
	FileName  string `json:"file_name"`
	PageCount int    `json:"page_count"`
	Size      int64  `json:"size"`
}

// NewQuotationExportedEvent creates a new QuotationExportedEvent
func NewQuotationExportedEvent(sessionID uuid.UUID, fileName string, pages int, size int64) *QuotationExportedEvent {
	return &QuotationExportedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuotationExported, AggregateTypeQuotation, sessionID),
		FileName:        fileName,
		PageCount:       pages,
		Size:            size,
	}
}

// QuotationExportFailedEvent is published when an export failed or was abandoned
type QuotationExportFailedEvent struct {
	shared.BaseDomainEvent
	Reason string `json:"reason"`
}

// NewQuotationExportFailedEvent creates a new QuotationExportFailedEvent
func NewQuotationExportFailedEvent(sessionID uuid.UUID, reason string) *QuotationExportFailedEvent {
	return &QuotationExportFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuotationExportFailed, AggregateTypeQuotation, sessionID),
		Reason:          reason,
	}
}
