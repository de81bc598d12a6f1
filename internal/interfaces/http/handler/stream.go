package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	app "github.com/quotation/backend/internal/application/quotation"
	"github.com/quotation/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// DefaultHeartbeat keeps idle preview streams open through proxies
const DefaultHeartbeat = 30 * time.Second

// sseMessage is one server-sent event
type sseMessage struct {
	Event string
	ID    string
	Data  string
}

// PreviewStreamHandler pushes preview refreshes to the browser
type PreviewStreamHandler struct {
	BaseHandler
	quotations *QuotationHandler
	heartbeat  time.Duration
}

// NewPreviewStreamHandler creates a stream handler; heartbeat <= 0 uses
// DefaultHeartbeat
func NewPreviewStreamHandler(quotations *QuotationHandler, heartbeat time.Duration) *PreviewStreamHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &PreviewStreamHandler{quotations: quotations, heartbeat: heartbeat}
}

// Stream godoc
// @ID           streamPreview
// @Summary      Stream preview refreshes
// @Description  Server-sent events. Every refresh is a "preview" event whose id is the document revision. Refreshes are coalesced, so revisions may be skipped; the last event always reflects the last accepted edit.
// @Tags         preview
// @Produce      text/event-stream
// @Param        id path string true "Session ID"
// @Success      200 {string} string
// @Failure      404 {object} dto.Response
// @Router       /sessions/{id}/stream [get]
func (h *PreviewStreamHandler) Stream(c *gin.Context) {
	s, ok := h.quotations.session(c)
	if !ok {
		return
	}
	sink, err := s.Subscribe()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer sink.Close()

	log := logger.FromContext(c.Request.Context())

	// The stream outlives the server's write timeout
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	h.send(c, sseMessage{
		Event: "connected",
		Data:  fmt.Sprintf(`{"session_id":%q,"timestamp":%d}`, s.ID(), time.Now().Unix()),
	})
	log.Info("preview stream opened")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	reqCtx := c.Request.Context()
	for {
		select {
		case <-reqCtx.Done():
			log.Info("preview stream closed by client")
			return
		case <-s.Done():
			h.send(c, sseMessage{Event: "closed", Data: `{}`})
			return
		case <-ticker.C:
			h.send(c, sseMessage{Event: "heartbeat", Data: strconv.FormatInt(time.Now().Unix(), 10)})
		case update, ok := <-sink.C():
			if !ok {
				h.send(c, sseMessage{Event: "closed", Data: `{}`})
				return
			}
			data, err := json.Marshal(app.ToPreviewResponse(update))
			if err != nil {
				log.Error("failed to encode preview", zap.Error(err))
				continue
			}
			h.send(c, sseMessage{
				Event: "preview",
				ID:    strconv.FormatUint(update.Revision, 10),
				Data:  string(data),
			})
		}
	}
}

func (h *PreviewStreamHandler) send(c *gin.Context, msg sseMessage) {
	writeEvent(c.Writer, msg)
	c.Writer.Flush()
}

// writeEvent writes an SSE event; data must not contain newlines
func writeEvent(w io.Writer, msg sseMessage) {
	if msg.Event != "" {
		fmt.Fprintf(w, "event: %s\n", msg.Event)
	}
	if msg.ID != "" {
		fmt.Fprintf(w, "id: %s\n", msg.ID)
	}
	fmt.Fprintf(w, "data: %s\n\n", msg.Data)
}
