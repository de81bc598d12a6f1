package router

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	app "github.com/quotation/backend/internal/application/quotation"
	"github.com/quotation/backend/internal/domain/layout"
	"github.com/quotation/backend/internal/infrastructure/document"
	"github.com/quotation/backend/internal/infrastructure/printing"
	"github.com/quotation/backend/internal/infrastructure/telemetry"
	"github.com/quotation/backend/internal/interfaces/http/dto"
	"github.com/quotation/backend/internal/interfaces/http/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// stubPDF returns a fixed document instead of driving a browser
type stubPDF struct{}

func (stubPDF) Render(_ context.Context, req *printing.RenderRequest) (*printing.RenderResult, error) {
	return &printing.RenderResult{PDFData: []byte("%PDF-1.4 " + req.Title), PageCount: 1}, nil
}

func (stubPDF) Close() error { return nil }

type testServer struct {
	engine  http.Handler
	manager *app.SessionManager
	metrics *telemetry.Metrics
}

func newTestServer(t *testing.T, capacity layout.PageCapacity, opts Options) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)

	engine, err := printing.NewTemplateEngine()
	require.NoError(t, err)
	storage, err := printing.NewFileSystemStorage(printing.FileSystemStorageConfig{
		BasePath: t.TempDir(),
		BaseURL:  "/api/v1/exports",
		Logger:   log,
	})
	require.NoError(t, err)
	renderer := printing.NewQuotationRenderer(engine, stubPDF{}, storage, printing.QuotationRendererConfig{Logger: log})

	metrics := telemetry.NewMetrics()
	pipeline, err := app.NewPipeline(capacity, renderer, metrics, log)
	require.NoError(t, err)
	templates, err := document.NewTemplateStore(document.TemplateStoreConfig{})
	require.NoError(t, err)

	config := app.DefaultManagerConfig()
	config.Session.MinRefreshInterval = 10 * time.Millisecond
	manager := app.NewSessionManager(pipeline, nil, templates, metrics, config, log)
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	if opts.ServiceName == "" {
		opts.ServiceName = "quotation-test"
	}
	opts.CORS = middleware.DefaultCORSConfig()
	opts.Security = middleware.DefaultSecurityConfig()
	handler, err := New(opts, Dependencies{Manager: manager, Storage: storage, Metrics: metrics, Logger: log})
	require.NoError(t, err)
	return &testServer{engine: handler, manager: manager, metrics: metrics}
}

type envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *dto.ErrorInfo `json:"error"`
}

type quotationBody struct {
	SessionID  uuid.UUID       `json:"session_id"`
	Revision   uint64          `json:"revision"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Categories []struct {
		ID       uuid.UUID       `json:"id"`
		Name     string          `json:"name"`
		Subtotal decimal.Decimal `json:"subtotal"`
		Tasks    []struct {
			ID   uuid.UUID `json:"id"`
			Name string    `json:"name"`
		} `json:"tasks"`
	} `json:"categories"`
}

type previewBody struct {
	Revision  uint64 `json:"revision"`
	PageCount int    `json:"page_count"`
	HTML      string `json:"html"`
}

type artifactBody struct {
	FileName  string `json:"file_name"`
	URL       string `json:"url"`
	PageCount int    `json:"page_count"`
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func (s *testServer) create(t *testing.T, body string) quotationBody {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/sessions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[quotationBody](t, w).Data
}

func (s *testServer) commands(t *testing.T, id uuid.UUID, cmds ...string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/commands", id),
		`{"commands":[`+strings.Join(cmds, ",")+`]}`)
}

func TestServer_EditPreviewExportDownload(t *testing.T) {
	s := newTestServer(t, layout.PageCapacity{RowsPerPage: 20}, Options{})

	doc := s.create(t, `{"header":{"client":"Acme","tax_rate":"0.1"}}`)
	assert.Equal(t, uint64(0), doc.Revision)

	w := s.commands(t, doc.SessionID, `{"type":"add_category","name":"Development"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	catID := decode[quotationBody](t, w).Data.Categories[0].ID

	w = s.commands(t, doc.SessionID,
		fmt.Sprintf(`{"type":"add_task","category_id":%q,"task":{"name":"Build","quantity":"2","unit_rate":"100000"}}`, catID),
		fmt.Sprintf(`{"type":"add_task","category_id":%q,"task":{"name":"Review","quantity":"1","unit_rate":"50000"}}`, catID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[quotationBody](t, w).Data
	assert.Equal(t, uint64(3), got.Revision)
	assert.True(t, decimal.NewFromInt(250000).Equal(got.Categories[0].Subtotal))
	assert.True(t, decimal.NewFromInt(275000).Equal(got.GrandTotal))

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s/preview", doc.SessionID), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	preview := decode[previewBody](t, w).Data
	assert.Equal(t, uint64(3), preview.Revision)
	assert.Equal(t, 1, preview.PageCount)
	assert.Contains(t, preview.HTML, "Review")

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s/preview.html", doc.SessionID), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/export", doc.SessionID), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	artifact := decode[artifactBody](t, w).Data
	assert.Equal(t, "quotation-acme-undated.pdf", artifact.FileName)
	require.True(t, strings.HasPrefix(artifact.URL, "/api/v1/exports/"), artifact.URL)

	w = s.do(t, http.MethodGet, artifact.URL, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "quotation-acme-undated.pdf")
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))

	w = s.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "commands_total")
}

func TestServer_RejectedBatchLeavesDocumentUnchanged(t *testing.T) {
	s := newTestServer(t, layout.PageCapacity{RowsPerPage: 20}, Options{})
	doc := s.create(t, "")

	w := s.commands(t, doc.SessionID,
		`{"type":"add_category","name":"A"}`,
		fmt.Sprintf(`{"type":"remove_task","task_id":%q}`, uuid.New()))
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decode[any](t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.ErrCodeNotFound, env.Error.Code)
	assert.NotEmpty(t, env.Error.RequestID)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s", doc.SessionID), "")
	require.Equal(t, http.StatusOK, w.Code)
	state := decode[quotationBody](t, w).Data
	assert.Equal(t, uint64(0), state.Revision)
	assert.Empty(t, state.Categories)
}

func TestServer_ValidationErrors(t *testing.T) {
	s := newTestServer(t, layout.PageCapacity{RowsPerPage: 20}, Options{})
	doc := s.create(t, "")

	tests := []struct {
		name string
		body string
		code string
	}{
		{"unknown command type", `{"commands":[{"type":"explode"}]}`, dto.ErrCodeValidation},
		{"empty batch", `{"commands":[]}`, dto.ErrCodeValidation},
		{"malformed quantity", `{"commands":[{"type":"add_task","category_id":"` + uuid.NewString() + `","task":{"name":"x","quantity":"two","unit_rate":"1"}}]}`, dto.ErrCodeValidation},
		{"malformed json", `{"commands":`, dto.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/commands", doc.SessionID), tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			env := decode[any](t, w)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}

	w := s.do(t, http.MethodGet, "/api/v1/sessions/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/sessions/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_LayoutOverflow(t *testing.T) {
	s := newTestServer(t, layout.PageCapacity{RowsPerPage: 3, TextWidth: 4}, Options{})
	doc := s.create(t, "")

	w := s.commands(t, doc.SessionID, `{"type":"add_category","name":"A"}`)
	require.Equal(t, http.StatusOK, w.Code)
	catID := decode[quotationBody](t, w).Data.Categories[0].ID

	long := strings.Repeat("word ", 20)
	w = s.commands(t, doc.SessionID,
		fmt.Sprintf(`{"type":"add_task","category_id":%q,"task":{"name":%q,"quantity":"1","unit_rate":"1"}}`, catID, long))
	require.Equal(t, http.StatusOK, w.Code, "an edit is accepted even when it cannot be laid out")

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s/preview", doc.SessionID), "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeLayoutOverflow, decode[any](t, w).Error.Code)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/export", doc.SessionID), "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, dto.ErrCodeExportFailed, decode[any](t, w).Error.Code)
}

func TestServer_TemplatesResetAndDelete(t *testing.T) {
	s := newTestServer(t, layout.PageCapacity{RowsPerPage: 20}, Options{})

	w := s.do(t, http.MethodGet, "/api/v1/templates", "")
	require.Equal(t, http.StatusOK, w.Code)
	templates := decode[[]app.TemplateResponse](t, w).Data
	require.NotEmpty(t, templates)

	doc := s.create(t, fmt.Sprintf(`{"template":%q}`, templates[0].Key))
	assert.NotEmpty(t, doc.Categories)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/reset", doc.SessionID), `{"header":{"client":"Initech"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decode[quotationBody](t, w).Data.Categories)

	w = s.do(t, http.MethodPost, "/api/v1/sessions", `{"template":"does-not-exist"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/sessions/%s", doc.SessionID), "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/sessions/%s", doc.SessionID), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var health envelope[struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Data.Status)
	assert.Equal(t, 0, health.Data.Sessions)
}

func TestServer_DownloadRejectsTraversal(t *testing.T) {
	s := newTestServer(t, layout.PageCapacity{RowsPerPage: 20}, Options{})

	for _, p := range []string{"/api/v1/exports/../../etc/passwd", "/api/v1/exports/" + uuid.NewString() + "/missing.pdf"} {
		w := s.do(t, http.MethodGet, p, "")
		assert.Equal(t, http.StatusNotFound, w.Code, p)
	}
}

func TestServer_ExportRateLimit(t *testing.T) {
	s := newTestServer(t, layout.PageCapacity{RowsPerPage: 20}, Options{ExportsPerMinute: 1})
	doc := s.create(t, `{"header":{"client":"Acme"}}`)
	path := fmt.Sprintf("/api/v1/sessions/%s/export", doc.SessionID)

	assert.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, path, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(t, http.MethodPost, path, "").Code)
}

func TestServer_StreamDeliversLatestPreview(t *testing.T) {
	s := newTestServer(t, layout.PageCapacity{RowsPerPage: 20}, Options{StreamHeartbeat: time.Hour})
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	doc := s.create(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/v1/sessions/%s/stream", srv.URL, doc.SessionID), nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan [2]string, 16)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
		var event, id string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "id: "):
				id = strings.TrimPrefix(line, "id: ")
			case line == "":
				events <- [2]string{event, id}
				event, id = "", ""
			}
		}
	}()

	for i := 0; i < 5; i++ {
		w := s.commands(t, doc.SessionID, fmt.Sprintf(`{"type":"add_category","name":"C%d"}`, i))
		require.Equal(t, http.StatusOK, w.Code)
	}

	sawConnected := false
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream ended before the last revision arrived")
			if ev[0] == "connected" {
				sawConnected = true
			}
			if ev[0] == "preview" && ev[1] == "5" {
				assert.True(t, sawConnected)
				return
			}
		case <-ctx.Done():
			t.Fatal("timed out waiting for revision 5")
		}
	}
}
