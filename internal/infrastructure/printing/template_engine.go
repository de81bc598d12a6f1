package printing

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/quotation/backend/internal/domain/layout"
	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/quotation/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	templateGlob     = "templates/*.html"
	pageTemplate     = "page"
	documentTemplate = "document"
)

// PageView is the data bound to the page template. Total is known before
// any page is drawn so every page can print "current/total".
type PageView struct {
	Number int
	Total  int
	Header quotation.Header
	Rows   []layout.Row
	// First and Last mark the pages carrying the document header and the
	// grand total
	First bool
	Last  bool
}

// Label returns the page number as "current/total"
func (p PageView) Label() string {
	return fmt.Sprintf("%d/%d", p.Number, p.Total)
}

// DocumentView is the data bound to the document shell
type DocumentView struct {
	Title    string
	Header   quotation.Header
	Settings pageGeometry
	Pages    []template.HTML
}

type pageGeometry struct {
	WidthMM  int
	HeightMM int
	Margins  string
}

// TemplateEngine renders quotation pages with html/template. All pages are
// drawn with the same row templates.
type TemplateEngine struct {
	funcMap template.FuncMap
	source  fs.FS
	tmpl    *template.Template
}

// TemplateEngineOption configures the template engine
type TemplateEngineOption func(*TemplateEngine)

// WithTemplateFS replaces the embedded templates. The file system must hold
// templates/*.html defining "page" and "document".
func WithTemplateFS(fsys fs.FS) TemplateEngineOption {
	return func(e *TemplateEngine) {
		e.source = fsys
	}
}

// NewTemplateEngine creates a template engine and parses its templates.
//
// Templates loaded from renderer.template_dir see the same functions as the
// embedded ones. Besides those the embedded page uses, overrides may call
// formatDecimal (fixed precision), truncate (display columns, optional
// suffix), title, upper, join and trim.
func NewTemplateEngine(opts ...TemplateEngineOption) (*TemplateEngine, error) {
	e := &TemplateEngine{source: templateFS}

	e.funcMap = template.FuncMap{
		// Money formatting
		"formatMoney":  formatMoney,
		"formatAmount": formatAmount,

		// Date formatting
		"formatDate": formatDate,

		// Number formatting
		"formatDecimal":  formatDecimal,
		"formatQuantity": formatQuantity,
		"formatPercent":  formatPercent,

		// String utilities
		"truncate": truncate,
		"upper":    strings.ToUpper,
		"title":    titleCase,
		"join":     strings.Join,
		"trim":     strings.TrimSpace,

		// Row kinds
		"isHeader":       func(r layout.Row) bool { return r.Kind == layout.RowCategoryHeader },
		"isContinuation": func(r layout.Row) bool { return r.Kind == layout.RowContinuation },
		"isTask":         func(r layout.Row) bool { return r.Kind == layout.RowTask },
		"isSubtotal":     func(r layout.Row) bool { return r.Kind == layout.RowSubtotal },
		"isGrandTotal":   func(r layout.Row) bool { return r.Kind == layout.RowGrandTotal },

		// Misc
		"default": defaultFunc,
		"safeCSS": safeCSS,
		"dict":    dict,
	}

	for _, opt := range opts {
		opt(e)
	}

	tmpl, err := template.New("quotation").Funcs(e.funcMap).ParseFS(e.source, templateGlob)
	if err != nil {
		return nil, NewRenderError(ErrCodeInvalidHTML, "failed to parse templates", err)
	}
	for _, name := range []string{pageTemplate, documentTemplate} {
		if tmpl.Lookup(name) == nil {
			return nil, NewRenderError(ErrCodeInvalidHTML, "template "+name+" is not defined", nil)
		}
	}
	e.tmpl = tmpl
	return e, nil
}

// RenderPage renders a single page
func (e *TemplateEngine) RenderPage(ctx context.Context, page PageView) (template.HTML, error) {
	if err := ctx.Err(); err != nil {
		return "", NewRenderError(ErrCodeRenderCancelled, "rendering cancelled", err)
	}
	var buf bytes.Buffer
	if err := e.tmpl.ExecuteTemplate(&buf, pageTemplate, page); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "failed to execute page template", err)
	}
	// Pages are produced by our own templates; the output is already escaped
	return template.HTML(buf.String()), nil
}

// RenderDocument wraps rendered pages into a complete HTML document
func (e *TemplateEngine) RenderDocument(ctx context.Context, doc DocumentView) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", NewRenderError(ErrCodeRenderCancelled, "rendering cancelled", err)
	}
	var buf bytes.Buffer
	if err := e.tmpl.ExecuteTemplate(&buf, documentTemplate, doc); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "failed to execute document template", err)
	}
	return buf.String(), nil
}

// =============================================================================
// Template Functions - Money Formatting
// =============================================================================

var currencySymbols = map[valueobject.Currency]string{
	valueobject.USD: "$",
	valueobject.EUR: "€",
	valueobject.GBP: "£",
	valueobject.JPY: "¥",
	valueobject.KRW: "₩",
	valueobject.CNY: "CN¥",
}

// formatMoney formats an amount with the currency symbol, rounded half-up to
// the currency's minor unit.
// Example: 1234.5 USD -> "$1,234.50", 5000 KRW -> "₩5,000"
func formatMoney(v any, cur any) string {
	c := toCurrency(cur)
	amount := formatAmount(v, c)
	symbol, ok := currencySymbols[c]
	if !ok {
		symbol = string(c) + " "
	}
	if strings.HasPrefix(amount, "-") {
		return "-" + symbol + amount[1:]
	}
	return symbol + amount
}

// formatAmount formats an amount with thousands separators and the
// currency's minor-unit precision, without a symbol.
func formatAmount(v any, cur any) string {
	c := toCurrency(cur)
	m := valueobject.MoneyOf(toDecimal(v), c).RoundToMinorUnit()
	return groupDigits(m.Amount(), c.MinorUnits())
}

// groupDigits prints d with exactly places decimals and English digit grouping
func groupDigits(d decimal.Decimal, places int32) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	intPart, fracPart, _ := strings.Cut(d.StringFixed(places), ".")
	p := message.NewPrinter(language.English)
	grouped := intPart
	if n, err := strconv.ParseInt(intPart, 10, 64); err == nil {
		grouped = p.Sprintf("%d", n)
	}
	if fracPart == "" {
		return sign + grouped
	}
	return sign + grouped + "." + fracPart
}

// =============================================================================
// Template Functions - Date Formatting
// =============================================================================

// formatDate formats a time value as a calendar date
// Example: 2024-01-15T10:00:00Z -> "2024-01-15"
func formatDate(v any) string {
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format(quotation.DateLayout)
}

// =============================================================================
// Template Functions - Number Formatting
// =============================================================================

// formatDecimal formats a decimal with specified precision
func formatDecimal(v any, precision int) string {
	return toDecimal(v).StringFixed(int32(precision))
}

// formatQuantity prints a quantity without trailing zeros, grouped
// Example: 1500 -> "1,500", 2.50 -> "2.5"
func formatQuantity(v any) string {
	d := toDecimal(v)
	places := max(-d.Exponent(), 0)
	s := groupDigits(d, places)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

// formatPercent formats a fraction as a percentage
// Example: 0.1 -> "10%", 0.075 -> "7.5%"
func formatPercent(v any) string {
	return toDecimal(v).Mul(decimal.NewFromInt(100)).String() + "%"
}

// =============================================================================
// Template Functions - String Utilities
// =============================================================================

// truncate shortens s to max display columns with a suffix
func truncate(s string, max int, suffix ...string) string {
	suf := "..."
	if len(suffix) > 0 {
		suf = suffix[0]
	}
	return runewidth.Truncate(s, max, suf)
}

// titleCase converts string to title case using proper Unicode handling
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func defaultFunc(val, def any) any {
	if empty(val) {
		return def
	}
	return val
}

func empty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []string:
		return len(val) == 0
	case int:
		return val == 0
	case decimal.Decimal:
		return val.IsZero()
	default:
		return false
	}
}

func safeCSS(s string) template.CSS {
	return template.CSS(s)
}

// dict creates a map from key-value pairs
func dict(pairs ...any) map[string]any {
	result := make(map[string]any)
	for i := 0; i < len(pairs)-1; i += 2 {
		if key, ok := pairs[i].(string); ok {
			result[key] = pairs[i+1]
		}
	}
	return result
}

// =============================================================================
// Helper Functions
// =============================================================================

// toDecimal converts various types to decimal.Decimal
func toDecimal(v any) decimal.Decimal {
	switch val := v.(type) {
	case decimal.Decimal:
		return val
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero
		}
		return *val
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case float64:
		return decimal.NewFromFloat(val)
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func toCurrency(v any) valueobject.Currency {
	switch val := v.(type) {
	case valueobject.Currency:
		return val
	case string:
		if c, err := valueobject.ParseCurrency(val); err == nil {
			return c
		}
	}
	return valueobject.DefaultCurrency
}

// toTime converts various types to time.Time
func toTime(v any) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case *time.Time:
		if val == nil {
			return time.Time{}
		}
		return *val
	case string:
		for _, f := range []string{time.RFC3339, quotation.DateLayout} {
			if t, err := time.Parse(f, val); err == nil {
				return t
			}
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}
