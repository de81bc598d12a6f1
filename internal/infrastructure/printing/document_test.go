package printing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quotation/backend/internal/domain/estimation"
	"github.com/quotation/backend/internal/domain/layout"
	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/quotation/backend/internal/domain/quotation/quotationtest"
	"github.com/quotation/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPDFRenderer struct {
	mock.Mock
}

func (m *mockPDFRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RenderResult), args.Error(1)
}

func (m *mockPDFRenderer) Close() error {
	return nil
}

func paginate(t *testing.T, q quotation.Quotation, rows int) []layout.Page {
	t.Helper()
	pages, err := layout.Layout(estimation.Estimate(q), layout.PageCapacity{RowsPerPage: rows})
	require.NoError(t, err)
	return pages
}

func newTestRenderer(t *testing.T, pdf PDFRenderer) (*QuotationRenderer, string) {
	t.Helper()
	engine, err := NewTemplateEngine()
	require.NoError(t, err)
	storage, dir := newTestStorage(t)
	return NewQuotationRenderer(engine, pdf, storage, QuotationRendererConfig{}), dir
}

func TestQuotationRenderer_RenderPreview(t *testing.T) {
	r, _ := newTestRenderer(t, nil)
	q := quotationtest.SingleCategory(6)
	pages := paginate(t, q, 5)
	require.Len(t, pages, 2)

	preview, err := r.RenderPreview(context.Background(), pages, q.Header())
	require.NoError(t, err)

	assert.Equal(t, 2, preview.PageCount)
	assert.Equal(t, 2, strings.Count(preview.HTML, `<section class="page"`))
	assert.Contains(t, preview.HTML, "Page 1/2")
	assert.Contains(t, preview.HTML, "Page 2/2")
	assert.Contains(t, preview.HTML, "Development (continued)")
	assert.Contains(t, preview.HTML, "$6,000.00")
	assert.Contains(t, preview.HTML, "15mm 12mm 15mm 12mm")
}

func TestQuotationRenderer_RenderHTMLRejectsNoPages(t *testing.T) {
	r, _ := newTestRenderer(t, nil)
	_, err := r.RenderHTML(context.Background(), nil, quotation.Header{})
	assert.Error(t, err)
}

func TestQuotationRenderer_Export(t *testing.T) {
	q := quotationtest.SingleCategory(3)
	header := q.Header()
	header.Date = time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	pages := paginate(t, q, 5)
	sessionID := uuid.New()

	t.Run("stores the PDF under a deterministic name", func(t *testing.T) {
		pdf := new(mockPDFRenderer)
		pdf.On("Render", mock.Anything, mock.MatchedBy(func(req *RenderRequest) bool {
			return strings.Contains(req.HTML, "Page 2/2") && req.Title == "Quotation for Acme"
		})).Return(&RenderResult{PDFData: []byte("%PDF-1.4"), PageCount: 2}, nil).Once()

		r, dir := newTestRenderer(t, pdf)
		artifact, err := r.Export(context.Background(), sessionID, pages, header)
		require.NoError(t, err)

		assert.Equal(t, "quotation-acme-2024-03-09.pdf", artifact.FileName)
		assert.Equal(t, 2, artifact.PageCount)
		assert.Equal(t, int64(8), artifact.Size)
		assert.True(t, strings.HasSuffix(artifact.URL, artifact.Path))
		content, err := os.ReadFile(filepath.Join(dir, artifact.Path))
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4", string(content))
		pdf.AssertExpectations(t)
	})

	t.Run("engine failure is ExportFailed", func(t *testing.T) {
		pdf := new(mockPDFRenderer)
		pdf.On("Render", mock.Anything, mock.Anything).
			Return(nil, NewRenderError(ErrCodeRenderTimeout, "timed out", nil))

		r, _ := newTestRenderer(t, pdf)
		_, err := r.Export(context.Background(), sessionID, pages, header)
		assert.ErrorIs(t, err, shared.ErrExportFailed)

		var renderErr *RenderError
		require.True(t, errors.As(err, &renderErr))
		assert.Equal(t, ErrCodeRenderTimeout, renderErr.Code)
	})

	t.Run("storage failure is ExportFailed", func(t *testing.T) {
		pdf := new(mockPDFRenderer)
		pdf.On("Render", mock.Anything, mock.Anything).Return(&RenderResult{PDFData: []byte("%PDF")}, nil)

		r, _ := newTestRenderer(t, pdf)
		_, err := r.Export(context.Background(), uuid.Nil, pages, header)
		assert.ErrorIs(t, err, shared.ErrExportFailed)
	})

	t.Run("not configured", func(t *testing.T) {
		r, _ := newTestRenderer(t, nil)
		_, err := r.Export(context.Background(), sessionID, pages, header)
		assert.ErrorIs(t, err, shared.ErrExportFailed)
	})

	t.Run("cancelled before drawing", func(t *testing.T) {
		pdf := new(mockPDFRenderer)
		r, _ := newTestRenderer(t, pdf)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := r.Export(ctx, sessionID, pages, header)
		assert.ErrorIs(t, err, shared.ErrExportFailed)
		assert.ErrorIs(t, err, context.Canceled)
		pdf.AssertNotCalled(t, "Render", mock.Anything, mock.Anything)
	})
}

func TestFileName(t *testing.T) {
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		client string
		date   time.Time
		want   string
	}{
		{"ACME Corp.", date, "quotation-acme-corp-2024-01-15.pdf"},
		{"  Café  Müller & Söhne ", date, "quotation-cafe-muller-sohne-2024-01-15.pdf"},
		{"東京デザイン", date, "quotation-東京デザイン-2024-01-15.pdf"},
		{"../../etc", date, "quotation-etc-2024-01-15.pdf"},
		{"", date, "quotation-client-2024-01-15.pdf"},
		{"ACME", time.Time{}, "quotation-acme-undated.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := FileName(quotation.Header{Client: tt.client, Date: tt.date})
			assert.Equal(t, tt.want, got)
			// Same inputs, same name
			assert.Equal(t, got, FileName(quotation.Header{Client: tt.client, Date: tt.date}))
		})
	}
}
