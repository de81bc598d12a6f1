package event

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/quotation/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// JournalHandler appends every event it receives to w, one JSON envelope per
// line. Pair it with a rotating writer for long running servers.
type JournalHandler struct {
	codec *Codec
	mu    sync.Mutex
	enc   *json.Encoder
}

// NewJournalHandler creates a journal writing to w
func NewJournalHandler(w io.Writer, codec *Codec) *JournalHandler {
	return &JournalHandler{codec: codec, enc: json.NewEncoder(w)}
}

// Handle writes the event
func (h *JournalHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	env, err := h.codec.Encode(event)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enc.Encode(env)
}

// EventTypes returns the codec's types, so unknown events are not journaled
func (h *JournalHandler) EventTypes() []string {
	return h.codec.Types()
}

// ReadJournal decodes a journal written by JournalHandler. Reading stops at
// the first malformed line.
func ReadJournal(r io.Reader, codec *Codec) ([]shared.DomainEvent, error) {
	var events []shared.DomainEvent
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			return events, fmt.Errorf("journal line %d: %w", line, err)
		}
		event, err := codec.Decode(env)
		if err != nil {
			return events, fmt.Errorf("journal line %d: %w", line, err)
		}
		events = append(events, event)
	}
	return events, scanner.Err()
}

// LoggingHandler logs every event at info level
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a logging handler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger.Named("events")}
}

// Handle logs the event
func (h *LoggingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.logger.Info(event.EventType(),
		zap.String("event_id", event.EventID().String()),
		zap.String("session_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	)
	return nil
}

// EventTypes returns nil so the handler sees every event
func (h *LoggingHandler) EventTypes() []string { return nil }
