package event

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestQuotationCodec(t *testing.T) {
	codec := NewQuotationCodec()
	assert.Equal(t, []string{
		quotation.EventTypeQuotationChanged,
		quotation.EventTypeQuotationExportFailed,
		quotation.EventTypeQuotationExported,
		quotation.EventTypeQuotationReset,
	}, codec.Types())

	sessionID := uuid.New()
	original := quotation.NewQuotationExportedEvent(sessionID, "quotation-acme-2024-03-09.pdf", 3, 2048)

	env, err := codec.Encode(original)
	require.NoError(t, err)
	assert.Equal(t, quotation.EventTypeQuotationExported, env.Type)

	decoded, err := codec.Decode(env)
	require.NoError(t, err)
	exported, ok := decoded.(*quotation.QuotationExportedEvent)
	require.True(t, ok)
	assert.Equal(t, original.EventID(), exported.EventID())
	assert.Equal(t, sessionID, exported.AggregateID())
	assert.Equal(t, "quotation-acme-2024-03-09.pdf", exported.FileName)
	assert.Equal(t, 3, exported.PageCount)
	assert.Equal(t, int64(2048), exported.Size)
}

func TestCodec_DecodeErrors(t *testing.T) {
	codec := NewQuotationCodec()

	_, err := codec.Decode(Envelope{Type: "Unknown", Payload: []byte(`{}`)})
	assert.ErrorContains(t, err, "unknown event type")

	_, err = codec.Decode(Envelope{Type: quotation.EventTypeQuotationReset, Payload: []byte(`nope`)})
	assert.ErrorContains(t, err, "failed to unmarshal")
}

func TestJournalHandler_WritesAndReplays(t *testing.T) {
	var buf bytes.Buffer
	codec := NewQuotationCodec()
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(NewJournalHandler(&buf, codec))

	sessionID := uuid.New()
	require.NoError(t, bus.Publish(context.Background(),
		quotation.NewQuotationResetEvent(sessionID, 0),
		quotation.NewQuotationExportFailedEvent(sessionID, "cancelled"),
	))

	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))

	events, err := ReadJournal(&buf, codec)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, quotation.EventTypeQuotationReset, events[0].EventType())
	failed := events[1].(*quotation.QuotationExportFailedEvent)
	assert.Equal(t, "cancelled", failed.Reason)
	assert.Equal(t, sessionID, failed.AggregateID())
}

func TestReadJournal_StopsAtMalformedLine(t *testing.T) {
	var buf bytes.Buffer
	codec := NewQuotationCodec()
	require.NoError(t, NewJournalHandler(&buf, codec).Handle(context.Background(), quotation.NewQuotationResetEvent(uuid.New(), 2)))
	buf.WriteString("\n{broken\n")

	events, err := ReadJournal(&buf, codec)
	assert.ErrorContains(t, err, "journal line 3")
	assert.Len(t, events, 1)
}

func TestLoggingHandler(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(NewLoggingHandler(zap.New(core)))

	sessionID := uuid.New()
	require.NoError(t, bus.Publish(context.Background(), quotation.NewQuotationResetEvent(sessionID, 0)))

	entries := logs.FilterMessage(quotation.EventTypeQuotationReset).All()
	require.Len(t, entries, 1)
	assert.Equal(t, sessionID.String(), entries[0].ContextMap()["session_id"])
}
