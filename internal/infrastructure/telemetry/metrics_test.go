package telemetry_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/quotation/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recorders(t *testing.T) {
	m := telemetry.NewMetrics()

	m.CommandApplied("add_task")
	m.CommandApplied("add_task")
	m.CommandRejected("remove_task")
	m.ObserveStage("paginate", 3*time.Millisecond)
	m.PreviewRendered(2)
	m.EditsCoalesced(5)
	m.EditsCoalesced(0)
	m.ExportFinished(telemetry.OutcomeSuccess)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	expected := `
# HELP quotation_commands_total Edit commands by name and outcome.
# TYPE quotation_commands_total counter
quotation_commands_total{command="add_task",outcome="applied"} 2
quotation_commands_total{command="remove_task",outcome="rejected"} 1
# HELP quotation_active_sessions Open preview sessions.
# TYPE quotation_active_sessions gauge
quotation_active_sessions 1
# HELP quotation_preview_edits_coalesced_total Edits folded into a later preview refresh.
# TYPE quotation_preview_edits_coalesced_total counter
quotation_preview_edits_coalesced_total 5
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"quotation_commands_total", "quotation_active_sessions", "quotation_preview_edits_coalesced_total"))

	count, err := testutil.GatherAndCount(m.Registry(), "quotation_pipeline_stage_duration_seconds", "quotation_exports_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.Metrics
	assert.NotPanics(t, func() {
		m.CommandApplied("x")
		m.CommandRejected("x")
		m.ObserveStage("render", time.Second)
		m.PreviewRendered(1)
		m.EditsCoalesced(1)
		m.ExportFinished(telemetry.OutcomeFailed)
		m.SessionOpened()
		m.SessionClosed()
	})
}

func TestMetrics_GinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := telemetry.NewMetrics()

	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/api/v1/quotations/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/quotations/"+id, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `quotation_http_requests_total{method="GET",route="/api/v1/quotations/:id",status="404"} 2`)
	assert.Contains(t, body, "go_goroutines")
}
