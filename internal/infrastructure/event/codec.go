package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/quotation/backend/internal/domain/shared"
)

// Envelope is the stored form of an event
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Codec converts events to envelopes and back. Only registered types can be
// decoded.
type Codec struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewCodec creates an empty codec
func NewCodec() *Codec {
	return &Codec{types: make(map[string]reflect.Type)}
}

// NewQuotationCodec creates a codec that knows every quotation event
func NewQuotationCodec() *Codec {
	c := NewCodec()
	c.Register(quotation.EventTypeQuotationChanged, &quotation.QuotationChangedEvent{})
	c.Register(quotation.EventTypeQuotationReset, &quotation.QuotationResetEvent{})
	c.Register(quotation.EventTypeQuotationExported, &quotation.QuotationExportedEvent{})
	c.Register(quotation.EventTypeQuotationExportFailed, &quotation.QuotationExportFailedEvent{})
	return c
}

// Register maps an event type name to the Go type of prototype
func (c *Codec) Register(eventType string, prototype shared.DomainEvent) {
	t := reflect.TypeOf(prototype)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	c.mu.Lock()
	c.types[eventType] = t
	c.mu.Unlock()
}

// Types returns the registered event types, sorted
func (c *Codec) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.types))
	for t := range c.types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Encode wraps an event in an envelope
func (c *Codec) Encode(event shared.DomainEvent) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", event.EventType(), err)
	}
	return Envelope{Type: event.EventType(), OccurredAt: event.OccurredAt(), Payload: payload}, nil
}

// Decode restores the event in an envelope
func (c *Codec) Decode(env Envelope) (shared.DomainEvent, error) {
	c.mu.RLock()
	t, ok := c.types[env.Type]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", env.Type)
	}

	ptr := reflect.New(t).Interface()
	if err := json.Unmarshal(env.Payload, ptr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", env.Type, err)
	}
	event, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("%s does not implement DomainEvent", t)
	}
	return event, nil
}
