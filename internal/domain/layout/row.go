package layout

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/quotation/backend/internal/domain/estimation"
	"github.com/quotation/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// RowKind identifies what a row displays
type RowKind string

const (
	RowCategoryHeader RowKind = "CATEGORY_HEADER"
	// RowContinuation repeats a category header on the page where the
	// category continues, flagged as continued.
	RowContinuation RowKind = "CONTINUATION"
	RowTask         RowKind = "TASK"
	RowSubtotal     RowKind = "SUBTOTAL"
	RowGrandTotal   RowKind = "GRAND_TOTAL"
)

// String returns the string representation
func (k RowKind) String() string {
	return string(k)
}

// TaskLine is the task content of a TASK row
type TaskLine struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitRate  decimal.Decimal `json:"unit_rate"`
	LineTotal decimal.Decimal `json:"line_total"`
	Note      string          `json:"note,omitempty"`
	// NameLines and NoteLines hold the wrapped text when wrapping is enabled
	NameLines []string `json:"name_lines"`
	NoteLines []string `json:"note_lines,omitempty"`
}

// Summary is the content of the GRAND_TOTAL row
type Summary struct {
	Currency   valueobject.Currency     `json:"currency"`
	Subtotal   decimal.Decimal          `json:"subtotal"`
	NetTotal   decimal.Decimal          `json:"net_total"`
	TaxRate    decimal.Decimal          `json:"tax_rate"`
	TaxAmount  decimal.Decimal          `json:"tax_amount"`
	GrandTotal decimal.Decimal          `json:"grand_total"`
	Effort     []estimation.EffortTotal `json:"effort"`
}

// Row is one entry of a page. Only the fields relevant to Kind are set.
type Row struct {
	Kind   RowKind `json:"kind"`
	Height int     `json:"height"`

	CategoryID   uuid.UUID `json:"category_id,omitempty"`
	CategoryName string    `json:"category_name,omitempty"`
	// Number is "2" for the second category and "2.3" for its third task
	Number string `json:"number,omitempty"`

	Task     *TaskLine       `json:"task,omitempty"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Summary  *Summary        `json:"summary,omitempty"`
}

// Continued reports whether the row repeats a header from an earlier page
func (r Row) Continued() bool {
	return r.Kind == RowContinuation
}

// Page is a capacity-bounded slice of the document's rows
type Page struct {
	// Number is 1-based
	Number   int   `json:"number"`
	Capacity int   `json:"capacity"`
	Used     int   `json:"used"`
	Rows     []Row `json:"rows"`
}

// Remaining returns the number of free rows
func (p Page) Remaining() int {
	return p.Capacity - p.Used
}

// HasGrandTotal reports whether the page carries the grand-total row
func (p Page) HasGrandTotal() bool {
	for _, r := range p.Rows {
		if r.Kind == RowGrandTotal {
			return true
		}
	}
	return false
}

func categoryHeader(c estimation.CategoryTotal, number int) Row {
	return Row{
		Kind:         RowCategoryHeader,
		Height:       1,
		CategoryID:   c.ID,
		CategoryName: c.Name,
		Number:       fmt.Sprintf("%d", number),
	}
}

func continuation(header Row) Row {
	header.Kind = RowContinuation
	return header
}

func subtotalRow(c estimation.CategoryTotal, number int) Row {
	return Row{
		Kind:         RowSubtotal,
		Height:       1,
		CategoryID:   c.ID,
		CategoryName: c.Name,
		Number:       fmt.Sprintf("%d", number),
		Subtotal:     c.Subtotal,
	}
}

func taskRow(c estimation.CategoryTotal, t estimation.TaskTotal, number, index, width int) Row {
	line := &TaskLine{
		ID:        t.ID,
		Name:      t.Name,
		Unit:      t.Unit,
		Quantity:  t.Quantity,
		UnitRate:  t.UnitRate,
		LineTotal: t.LineTotal,
		Note:      t.Note,
		NameLines: wrap(t.Name, width),
		NoteLines: wrap(t.Note, width),
	}
	height := 1
	if width > 0 {
		height = max(1, len(line.NameLines)) + len(line.NoteLines)
	}
	return Row{
		Kind:         RowTask,
		Height:       height,
		CategoryID:   c.ID,
		CategoryName: c.Name,
		Number:       fmt.Sprintf("%d.%d", number, index+1),
		Task:         line,
	}
}

func grandTotalRow(res *estimation.Result) Row {
	return Row{
		Kind:   RowGrandTotal,
		Height: 1,
		Summary: &Summary{
			Currency:   res.Currency(),
			Subtotal:   res.Subtotal,
			NetTotal:   res.NetTotal,
			TaxRate:    res.Header.TaxRate,
			TaxAmount:  res.TaxAmount,
			GrandTotal: res.GrandTotal,
			Effort:     res.Effort,
		},
	}
}
