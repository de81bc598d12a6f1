package document

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quotation/backend/internal/domain/estimation"
	"github.com/quotation/backend/internal/domain/shared"
	"github.com/quotation/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
header:
  title: Office fit-out
  client: ACME Corp
  issuer: Studio
  date: 2024-01-15
  currency: usd
  tax_rate: "0.1"
categories:
  - name: Design
    tasks:
      - name: Concept
        unit: person-day
        quantity: 5
        unit_rate: "1,000"
      - name: Drawings
        unit: person-day
        quantity: 2.5
        unit_rate: 800
        note: includes revisions
  - name: Extras
    visible: true
    tasks: []
`

func TestParseYAML(t *testing.T) {
	q, err := Parse([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	h := q.Header()
	assert.Equal(t, "ACME Corp", h.Client)
	assert.Equal(t, valueobject.USD, h.Currency)
	assert.Equal(t, "2024-01-15", h.DateString())
	assert.True(t, decimal.RequireFromString("0.1").Equal(h.TaxRate))

	cats := q.Categories()
	require.Len(t, cats, 2)
	require.Len(t, cats[0].Tasks, 2)
	assert.True(t, decimal.NewFromInt(1000).Equal(cats[0].Tasks[0].UnitRate))
	assert.True(t, decimal.RequireFromString("2.5").Equal(cats[0].Tasks[1].Quantity))
	assert.Equal(t, "includes revisions", cats[0].Tasks[1].Note)
	assert.True(t, cats[1].Visible)

	res := estimation.Estimate(q)
	assert.True(t, decimal.NewFromInt(7700).Equal(res.GrandTotal))
}

func TestParseJSON(t *testing.T) {
	data := `{"header":{"client":"ACME","issuer":"Studio","currency":"JPY"},
	"categories":[{"name":"Work","tasks":[{"name":"Build","quantity":3,"unit_rate":"12000"}]}]}`

	q, err := Parse([]byte(data), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JPY, q.Header().Currency)
	assert.Equal(t, 1, q.TaskCount())
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"negative quantity", "categories:\n  - name: A\n    tasks:\n      - name: T\n        quantity: -1\n        unit_rate: 1\n", FormatYAML},
		{"malformed rate", "categories:\n  - name: A\n    tasks:\n      - name: T\n        quantity: 1\n        unit_rate: abc\n", FormatYAML},
		{"bad date", "header:\n  date: 15/01/2024\n", FormatYAML},
		{"unknown currency", "header:\n  currency: XXXX\n", FormatYAML},
		{"unknown field", "header:\n  clinet: typo\n", FormatYAML},
		{"malformed json", `{"header":`, FormatJSON},
		{"unsupported format", "", Format("toml")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format)
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	q, err := Parse([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	for _, format := range []Format{FormatYAML, FormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, FromQuotation(q), format))

			again, err := Parse(buf.Bytes(), format)
			require.NoError(t, err)
			assert.Equal(t, FromQuotation(q), FromQuotation(again))
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	q, err := Parse([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "quote.json")
	require.NoError(t, Save(path, q))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, q.TaskCount(), loaded.TaskCount())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFromPath("a/b.JSON"))
	assert.Equal(t, FormatYAML, FormatFromPath("a/b.yml"))
	assert.Equal(t, FormatYAML, FormatFromPath("noext"))
}

func TestBuildReportsTaskPosition(t *testing.T) {
	doc := &Document{Categories: []Category{{Name: "A", Tasks: []Task{
		{Name: "ok", Quantity: "1", UnitRate: "1"},
		{Name: "bad", Quantity: "1", UnitRate: "-5"},
	}}}}
	_, err := doc.Build()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "task 1.2"))
}
