package printing

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/quotation/backend/internal/domain/layout"
	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/quotation/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		amount   any
		currency any
		want     string
	}{
		{decimal.RequireFromString("1234.5"), valueobject.USD, "$1,234.50"},
		{decimal.RequireFromString("0.005"), valueobject.USD, "$0.01"},
		{decimal.RequireFromString("-2500"), valueobject.EUR, "-€2,500.00"},
		{decimal.RequireFromString("5000.4"), valueobject.KRW, "₩5,000"},
		{decimal.RequireFromString("1234567.891"), "JPY", "¥1,234,568"},
		{"12", "CHF", "CHF 12.00"},
		{10, "", "$10.00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatMoney(tt.amount, tt.currency))
		})
	}
}

func TestFormatNumbers(t *testing.T) {
	assert.Equal(t, "1,500", formatQuantity(decimal.NewFromInt(1500)))
	assert.Equal(t, "2.5", formatQuantity(decimal.RequireFromString("2.50")))
	assert.Equal(t, "0", formatQuantity(decimal.Zero))
	assert.Equal(t, "10%", formatPercent(decimal.RequireFromString("0.1")))
	assert.Equal(t, "7.5%", formatPercent(decimal.RequireFromString("0.075")))
	assert.Equal(t, "3.14", formatDecimal("3.14159", 2))
	assert.Equal(t, "1,234,567.00", groupDigits(decimal.NewFromInt(1234567), 2))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2024-01-15", formatDate(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-01-15", formatDate("2024-01-15"))
	assert.Equal(t, "", formatDate(time.Time{}))
}

func TestStringFuncs(t *testing.T) {
	assert.Equal(t, "Interior Design", titleCase("interior design"))
	assert.Equal(t, "abc...", truncate("abcdefghij", 6))
	assert.Equal(t, "設計…", truncate("設計作業です", 5, "…"))
	assert.Equal(t, "fallback", defaultFunc("", "fallback"))
	assert.Equal(t, "value", defaultFunc("value", "fallback"))
}

func TestTemplateEngine_RenderPage(t *testing.T) {
	engine, err := NewTemplateEngine()
	require.NoError(t, err)

	header := quotation.Header{Client: "ACME <Corp>", Issuer: "Studio", Currency: valueobject.USD}
	page := PageView{
		Number: 2,
		Total:  3,
		Header: header,
		First:  false,
		Rows: []layout.Row{
			{Kind: layout.RowContinuation, Height: 1, Number: "1", CategoryName: "Design"},
			{Kind: layout.RowTask, Height: 2, Number: "1.4", Task: &layout.TaskLine{
				Name:      "Wireframes",
				Unit:      "day",
				Quantity:  decimal.NewFromInt(2),
				UnitRate:  decimal.NewFromInt(500),
				LineTotal: decimal.NewFromInt(1000),
				NameLines: []string{"Wireframes"},
				NoteLines: []string{"two rounds"},
			}},
			{Kind: layout.RowSubtotal, Height: 1, Number: "1", CategoryName: "Design", Subtotal: decimal.NewFromInt(1000)},
		},
	}

	html, err := engine.RenderPage(context.Background(), page)
	require.NoError(t, err)

	out := string(html)
	assert.Contains(t, out, "Page 2/3")
	assert.Contains(t, out, "Design (continued)")
	assert.Contains(t, out, "$1,000.00")
	assert.Contains(t, out, "two rounds")
	assert.NotContains(t, out, "To: ", "document header only on the first page")
}

func TestTemplateEngine_EscapesContent(t *testing.T) {
	engine, err := NewTemplateEngine()
	require.NoError(t, err)

	html, err := engine.RenderPage(context.Background(), PageView{
		Number: 1,
		Total:  1,
		First:  true,
		Header: quotation.Header{Client: "<script>alert(1)</script>", Currency: valueobject.USD},
	})
	require.NoError(t, err)
	assert.NotContains(t, string(html), "<script>")
}

func TestTemplateEngine_CustomTemplates(t *testing.T) {
	t.Run("missing document template", func(t *testing.T) {
		fsys := fstest.MapFS{
			"templates/custom.html": {Data: []byte(`{{define "page"}}{{.Label}}{{end}}`)},
		}
		_, err := NewTemplateEngine(WithTemplateFS(fsys))
		assert.Error(t, err)
	})

	t.Run("override", func(t *testing.T) {
		fsys := fstest.MapFS{
			"templates/custom.html": {Data: []byte(`{{define "page"}}[{{.Label}}]{{end}}{{define "document"}}{{range .Pages}}{{.}}{{end}}{{end}}`)},
		}
		engine, err := NewTemplateEngine(WithTemplateFS(fsys))
		require.NoError(t, err)

		html, err := engine.RenderPage(context.Background(), PageView{Number: 1, Total: 2})
		require.NoError(t, err)
		assert.Equal(t, "[1/2]", string(html))
	})
}

func TestTemplateEngine_OverrideHelpers(t *testing.T) {
	fsys := fstest.MapFS{
		"templates/custom.html": {Data: []byte(
			`{{define "page"}}{{title .Header.Client}}|{{truncate .Header.Notes 6}}|{{formatDecimal .Header.TaxRate 3}}|{{formatMoney 42 "EUR"}}{{end}}` +
				`{{define "document"}}{{range .Pages}}{{.}}{{end}}{{end}}`)},
	}
	engine, err := NewTemplateEngine(WithTemplateFS(fsys))
	require.NoError(t, err)

	html, err := engine.RenderPage(context.Background(), PageView{Number: 1, Total: 1, Header: quotation.Header{
		Client:  "acme studio",
		Notes:   "payment within 30 days",
		TaxRate: decimal.RequireFromString("0.1"),
	}})
	require.NoError(t, err)
	assert.Equal(t, "Acme Studio|pay...|0.100|€42.00", string(html))
}
