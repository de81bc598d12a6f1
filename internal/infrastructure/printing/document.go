package printing

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/quotation/backend/internal/domain/layout"
	"github.com/quotation/backend/internal/domain/printing"
	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/quotation/backend/internal/domain/shared"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const pdfContentType = "application/pdf"

// Preview is a rendered on-screen preview of the paginated document
type Preview struct {
	HTML        string        `json:"html"`
	PageCount   int           `json:"page_count"`
	Pages       []layout.Page `json:"pages"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Artifact describes an exported document
type Artifact struct {
	FileName  string    `json:"file_name"`
	Path      string    `json:"path"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	PageCount int       `json:"page_count"`
	CreatedAt time.Time `json:"created_at"`
}

// QuotationRendererConfig contains configuration for the quotation renderer
type QuotationRendererConfig struct {
	Settings      printing.Settings
	RenderTimeout time.Duration
	Logger        *zap.Logger
}

// QuotationRenderer draws paginated quotations. Previews are HTML; exports
// are printed to PDF and placed in artifact storage.
type QuotationRenderer struct {
	engine   *TemplateEngine
	pdf      PDFRenderer
	storage  ArtifactStorage
	settings printing.Settings
	timeout  time.Duration
	logger   *zap.Logger
}

// NewQuotationRenderer creates a renderer. pdf and storage may be nil for a
// preview-only renderer; Export then fails with ExportFailed.
func NewQuotationRenderer(engine *TemplateEngine, pdf PDFRenderer, storage ArtifactStorage, config QuotationRendererConfig) *QuotationRenderer {
	if config.Settings == (printing.Settings{}) {
		config.Settings = printing.DefaultSettings()
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuotationRenderer{
		engine:   engine,
		pdf:      pdf,
		storage:  storage,
		settings: config.Settings,
		timeout:  config.RenderTimeout,
		logger:   logger,
	}
}

// Settings returns the print settings used for exports
func (r *QuotationRenderer) Settings() printing.Settings {
	return r.settings
}

// RenderHTML draws every page with the same row templates and wraps them in
// one document. The page total is fixed before the first page is drawn.
func (r *QuotationRenderer) RenderHTML(ctx context.Context, pages []layout.Page, header quotation.Header) (string, error) {
	return r.renderHTML(ctx, pages, header, r.cssMargins())
}

func (r *QuotationRenderer) renderHTML(ctx context.Context, pages []layout.Page, header quotation.Header, margins string) (string, error) {
	if len(pages) == 0 {
		return "", NewRenderError(ErrCodeInvalidHTML, "document has no pages", nil)
	}

	total := len(pages)
	views := make([]PageView, total)
	for i, p := range pages {
		views[i] = PageView{
			Number: p.Number,
			Total:  total,
			Header: header,
			Rows:   p.Rows,
			First:  i == 0,
			Last:   i == total-1,
		}
	}

	drawn := make([]template.HTML, 0, total)
	for _, v := range views {
		html, err := r.engine.RenderPage(ctx, v)
		if err != nil {
			return "", err
		}
		drawn = append(drawn, html)
	}

	width, height := r.settings.PageDimensions()
	return r.engine.RenderDocument(ctx, DocumentView{
		Title:  documentTitle(header),
		Header: header,
		Settings: pageGeometry{
			WidthMM:  width,
			HeightMM: height,
			Margins:  margins,
		},
		Pages: drawn,
	})
}

// RenderPreview renders the on-screen preview
func (r *QuotationRenderer) RenderPreview(ctx context.Context, pages []layout.Page, header quotation.Header) (*Preview, error) {
	html, err := r.RenderHTML(ctx, pages, header)
	if err != nil {
		return nil, err
	}
	return &Preview{
		HTML:        html,
		PageCount:   len(pages),
		Pages:       pages,
		GeneratedAt: time.Now(),
	}, nil
}

// Export prints the pages to PDF and stores the artifact under the session.
// Every failure is reported as ExportFailed.
func (r *QuotationRenderer) Export(ctx context.Context, sessionID uuid.UUID, pages []layout.Page, header quotation.Header) (*Artifact, error) {
	if r.pdf == nil || r.storage == nil {
		return nil, shared.NewExportFailedError("export is not configured", nil)
	}

	// The PDF engine applies the margins itself
	html, err := r.renderHTML(ctx, pages, header, "0")
	if err != nil {
		return nil, shared.NewExportFailedError("failed to draw pages", err)
	}

	result, err := r.pdf.Render(ctx, &RenderRequest{
		HTML:     html,
		Settings: r.settings,
		Title:    documentTitle(header),
		Timeout:  r.timeout,
	})
	if err != nil {
		return nil, shared.NewExportFailedError("failed to generate PDF", err)
	}

	fileName := FileName(header)
	stored, err := r.storage.Store(ctx, &StoreRequest{
		SessionID:   sessionID,
		FileName:    fileName,
		ContentType: pdfContentType,
		Data:        result.PDFData,
	})
	if err != nil {
		return nil, shared.NewExportFailedError("failed to store PDF", err)
	}

	r.logger.Info("quotation exported",
		zap.String("session_id", sessionID.String()),
		zap.String("file", fileName),
		zap.Int("pages", len(pages)),
		zap.Int64("bytes", stored.Size))

	return &Artifact{
		FileName:  fileName,
		Path:      stored.Path,
		URL:       stored.URL,
		Size:      stored.Size,
		PageCount: len(pages),
		CreatedAt: time.Now(),
	}, nil
}

func (r *QuotationRenderer) cssMargins() string {
	m := r.settings.Margins
	return fmt.Sprintf("%dmm %dmm %dmm %dmm", m.Top, m.Right, m.Bottom, m.Left)
}

func documentTitle(h quotation.Header) string {
	if h.Title != "" {
		return h.Title
	}
	if h.Client != "" {
		return "Quotation for " + h.Client
	}
	return "Quotation"
}

// FileName returns the artifact file name for a header. It depends only on
// the client name and the date: quotation-<client>-<yyyy-mm-dd>.pdf
func FileName(h quotation.Header) string {
	client := slugify(h.Client)
	if client == "" {
		client = "client"
	}
	date := h.DateString()
	if date == "" {
		date = "undated"
	}
	return fmt.Sprintf("quotation-%s-%s.pdf", client, date)
}

// slugify folds diacritics and keeps lowercase letters and digits separated
// by single hyphens.
func slugify(s string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if hyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			hyphen = false
			continue
		}
		hyphen = true
	}
	return b.String()
}
