// Package document reads and writes quotations as YAML or JSON files and
// provides the embedded starter templates.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/quotation/backend/internal/domain/shared"
	"github.com/quotation/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Format is a document encoding
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from a file extension, defaulting to YAML
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Number is a decimal written either as a number or as a string. Strings may
// use thousands separators ("1,500").
type Number string

// UnmarshalJSON accepts both 12.5 and "12.5"
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	}
	*n = Number(data)
	return nil
}

// Document is the file representation of a quotation
type Document struct {
	Header     Header     `json:"header" yaml:"header"`
	Categories []Category `json:"categories" yaml:"categories"`
}

// Header is the file representation of the quotation header
type Header struct {
	Title     string `json:"title,omitempty" yaml:"title,omitempty"`
	Reference string `json:"reference,omitempty" yaml:"reference,omitempty"`
	Client    string `json:"client" yaml:"client"`
	Issuer    string `json:"issuer" yaml:"issuer"`
	// Date is formatted as 2006-01-02
	Date     string `json:"date,omitempty" yaml:"date,omitempty"`
	Currency string `json:"currency,omitempty" yaml:"currency,omitempty"`
	TaxRate  Number `json:"tax_rate,omitempty" yaml:"tax_rate,omitempty"`
	Notes    string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Category is the file representation of a category
type Category struct {
	Name    string `json:"name" yaml:"name"`
	Visible bool   `json:"visible,omitempty" yaml:"visible,omitempty"`
	Tasks   []Task `json:"tasks" yaml:"tasks"`
}

// Task is the file representation of a task
type Task struct {
	Name     string `json:"name" yaml:"name"`
	Unit     string `json:"unit,omitempty" yaml:"unit,omitempty"`
	Quantity Number `json:"quantity" yaml:"quantity"`
	UnitRate Number `json:"unit_rate" yaml:"unit_rate"`
	Note     string `json:"note,omitempty" yaml:"note,omitempty"`
}

// Decode reads a document
func Decode(r io.Reader, format Format) (*Document, error) {
	var doc Document
	var err error
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		err = dec.Decode(&doc)
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		err = dec.Decode(&doc)
		if err == io.EOF {
			err = nil
		}
	default:
		return nil, shared.NewValidationError("format", fmt.Sprintf("unsupported document format %q", format))
	}
	if err != nil {
		return nil, shared.NewValidationError("document", "malformed "+string(format)).WithCause(err)
	}
	return &doc, nil
}

// Encode writes a document
func Encode(w io.Writer, doc *Document, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return shared.NewValidationError("format", fmt.Sprintf("unsupported document format %q", format))
	}
}

// Parse decodes data and builds the quotation
func Parse(data []byte, format Format) (quotation.Quotation, error) {
	doc, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return quotation.Quotation{}, err
	}
	return doc.Build()
}

// Load reads and builds the quotation stored at path
func Load(path string) (quotation.Quotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return quotation.Quotation{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data, FormatFromPath(path))
}

// Save writes q to path in the format given by its extension
func Save(path string, q quotation.Quotation) error {
	var buf bytes.Buffer
	if err := Encode(&buf, FromQuotation(q), FormatFromPath(path)); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Build creates the quotation through the task model operations, so a
// document is subject to the same validation as interactive edits.
func (d *Document) Build() (quotation.Quotation, error) {
	header, err := d.Header.toDomain()
	if err != nil {
		return quotation.Quotation{}, err
	}
	q, err := quotation.New(header)
	if err != nil {
		return quotation.Quotation{}, err
	}

	for i, c := range d.Categories {
		var cat quotation.Category
		q, cat, err = q.AddCategory(c.Name, c.Visible)
		if err != nil {
			return quotation.Quotation{}, fmt.Errorf("category %d: %w", i+1, err)
		}
		for j, t := range c.Tasks {
			in, err := t.toInput()
			if err != nil {
				return quotation.Quotation{}, fmt.Errorf("task %d.%d: %w", i+1, j+1, err)
			}
			if q, _, err = q.AddTask(cat.ID, in); err != nil {
				return quotation.Quotation{}, fmt.Errorf("task %d.%d: %w", i+1, j+1, err)
			}
		}
	}
	return q, nil
}

func (h Header) toDomain() (quotation.Header, error) {
	out := quotation.Header{
		Title:     h.Title,
		Reference: h.Reference,
		Client:    h.Client,
		Issuer:    h.Issuer,
		Currency:  valueobject.Currency(h.Currency),
		Notes:     h.Notes,
	}
	if strings.TrimSpace(h.Date) != "" {
		date, err := time.Parse(quotation.DateLayout, strings.TrimSpace(h.Date))
		if err != nil {
			return quotation.Header{}, shared.NewValidationError("date", "expected YYYY-MM-DD").WithCause(err)
		}
		out.Date = date
	}
	if h.TaxRate != "" {
		rate, err := quotation.ParseDecimal("tax_rate", string(h.TaxRate))
		if err != nil {
			return quotation.Header{}, err
		}
		out.TaxRate = rate
	}
	return out, nil
}

func (t Task) toInput() (quotation.TaskInput, error) {
	qty, err := quotation.ParseDecimal("quantity", string(t.Quantity))
	if err != nil {
		return quotation.TaskInput{}, err
	}
	rate, err := quotation.ParseDecimal("unit_rate", string(t.UnitRate))
	if err != nil {
		return quotation.TaskInput{}, err
	}
	return quotation.TaskInput{
		Name:     t.Name,
		Unit:     t.Unit,
		Quantity: qty,
		UnitRate: rate,
		Note:     t.Note,
	}, nil
}

// FromQuotation converts a quotation to its file representation
func FromQuotation(q quotation.Quotation) *Document {
	h := q.Header()
	doc := &Document{
		Header: Header{
			Title:     h.Title,
			Reference: h.Reference,
			Client:    h.Client,
			Issuer:    h.Issuer,
			Date:      h.DateString(),
			Currency:  string(h.Currency),
			TaxRate:   numberOf(h.TaxRate),
			Notes:     h.Notes,
		},
	}
	for _, c := range q.Categories() {
		cat := Category{Name: c.Name, Visible: c.Visible, Tasks: make([]Task, 0, len(c.Tasks))}
		for _, t := range c.Tasks {
			cat.Tasks = append(cat.Tasks, Task{
				Name:     t.Name,
				Unit:     t.Unit,
				Quantity: numberOf(t.Quantity),
				UnitRate: numberOf(t.UnitRate),
				Note:     t.Note,
			})
		}
		doc.Categories = append(doc.Categories, cat)
	}
	return doc
}

func numberOf(d decimal.Decimal) Number {
	if d.IsZero() {
		return "0"
	}
	return Number(d.String())
}
