// Package estimation derives cost and effort figures from a quotation.
// It is a pure computation: no figure is cached on the quotation, and all
// rounding happens in one place, on the grand total.
package estimation

import (
	"github.com/google/uuid"
	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/quotation/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Estimable is anything that can be estimated. Both a quotation and an
// estimation result qualify, which makes re-estimation a no-op.
type Estimable interface {
	Snapshot() quotation.Quotation
}

// EffortTotal is the summed quantity for one unit of effort
type EffortTotal struct {
	Unit     string          `json:"unit"`
	Quantity decimal.Decimal `json:"quantity"`
}

// TaskTotal is a task with its line total
type TaskTotal struct {
	quotation.Task
	LineTotal decimal.Decimal `json:"line_total"`
}

// CategoryTotal is a category with its task totals and subtotal
type CategoryTotal struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Visible  bool            `json:"visible"`
	Tasks    []TaskTotal     `json:"tasks"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Effort   []EffortTotal   `json:"effort"`
}

// IsEmpty reports whether the category has no tasks
func (c CategoryTotal) IsEmpty() bool {
	return len(c.Tasks) == 0
}

// Result is a quotation together with every derived figure
type Result struct {
	source quotation.Quotation

	Header     quotation.Header `json:"header"`
	Categories []CategoryTotal  `json:"categories"`
	// Subtotal is the untaxed sum at full precision
	Subtotal decimal.Decimal `json:"subtotal"`
	// NetTotal and TaxAmount are display figures that always add up to GrandTotal
	NetTotal   decimal.Decimal `json:"net_total"`
	TaxAmount  decimal.Decimal `json:"tax_amount"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Effort     []EffortTotal   `json:"effort"`
}

// Snapshot returns the quotation the result was computed from
func (r *Result) Snapshot() quotation.Quotation {
	return r.source
}

// Currency returns the currency of every amount in the result
func (r *Result) Currency() valueobject.Currency {
	return r.Header.Currency
}

// Estimate computes line totals, category subtotals, effort per unit and
// the tax-inclusive grand total. Sums are kept at full precision; only the
// grand total is rounded, once, half-up to the currency's minor unit.
func Estimate(src Estimable) *Result {
	q := src.Snapshot()
	header := q.Header()
	categories := q.Categories()

	res := &Result{
		source:     q,
		Header:     header,
		Categories: make([]CategoryTotal, 0, len(categories)),
		Subtotal:   decimal.Zero,
	}
	overall := newEffortAccumulator()

	for _, c := range categories {
		ct := CategoryTotal{
			ID:       c.ID,
			Name:     c.Name,
			Visible:  c.Visible,
			Tasks:    make([]TaskTotal, 0, len(c.Tasks)),
			Subtotal: decimal.Zero,
		}
		effort := newEffortAccumulator()
		for _, t := range c.Tasks {
			line := t.LineTotal()
			ct.Tasks = append(ct.Tasks, TaskTotal{Task: t, LineTotal: line})
			ct.Subtotal = ct.Subtotal.Add(line)
			effort.add(t.Unit, t.Quantity)
			overall.add(t.Unit, t.Quantity)
		}
		ct.Effort = effort.totals()
		res.Subtotal = res.Subtotal.Add(ct.Subtotal)
		res.Categories = append(res.Categories, ct)
	}
	res.Effort = overall.totals()

	subtotal := valueobject.MoneyOf(res.Subtotal, header.Currency)
	res.GrandTotal = subtotal.Multiply(decimal.NewFromInt(1).Add(header.TaxRate)).RoundToMinorUnit().Amount()
	res.NetTotal = subtotal.RoundToMinorUnit().Amount()
	res.TaxAmount = res.GrandTotal.Sub(res.NetTotal)
	return res
}

// Money returns amount in the result's currency
func (r *Result) Money(amount decimal.Decimal) valueobject.Money {
	return valueobject.MoneyOf(amount, r.Currency())
}

// effortAccumulator sums quantities per unit in first-appearance order
type effortAccumulator struct {
	order []string
	sums  map[string]decimal.Decimal
}

func newEffortAccumulator() *effortAccumulator {
	return &effortAccumulator{sums: make(map[string]decimal.Decimal)}
}

func (a *effortAccumulator) add(unit string, qty decimal.Decimal) {
	if unit == "" {
		return
	}
	cur, ok := a.sums[unit]
	if !ok {
		a.order = append(a.order, unit)
		cur = decimal.Zero
	}
	a.sums[unit] = cur.Add(qty)
}

func (a *effortAccumulator) totals() []EffortTotal {
	out := make([]EffortTotal, 0, len(a.order))
	for _, u := range a.order {
		out = append(out, EffortTotal{Unit: u, Quantity: a.sums[u]})
	}
	return out
}
