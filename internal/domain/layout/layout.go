// Package layout splits an estimated quotation into fixed-capacity pages.
//
// Packing is greedy, single pass and order preserving: rows are emitted in
// document order and a page is closed as soon as the next row would not fit.
// Three keep-together rules apply on top of that:
//   - a category header always shares its page with the category's first row;
//   - a subtotal never starts a page alone, the category's last task moves
//     with it;
//   - the grand-total row is emitted once, at the very end, and opens a new
//     page when the last one is full.
//
// When a category continues on a new page, that page opens with a
// continuation row repeating the category header.
package layout

import (
	"fmt"

	"github.com/quotation/backend/internal/domain/estimation"
	"github.com/quotation/backend/internal/domain/shared"
)

// Layout builds the page sequence for an estimated quotation.
// Every call regenerates all pages from scratch.
func Layout(res *estimation.Result, capacity PageCapacity) ([]Page, error) {
	if err := capacity.Validate(); err != nil {
		return nil, err
	}
	p := &paginator{capacity: capacity}
	p.open()

	number := 0
	for _, c := range res.Categories {
		if c.IsEmpty() && !c.Visible {
			continue
		}
		number++
		if err := p.category(c, number); err != nil {
			return nil, err
		}
	}

	total := grandTotalRow(res)
	if !p.fits(total.Height) {
		p.open()
	}
	p.emit(total)
	return p.pages, nil
}

type paginator struct {
	capacity PageCapacity
	pages    []Page
}

func (p *paginator) current() *Page {
	return &p.pages[len(p.pages)-1]
}

func (p *paginator) open() {
	n := len(p.pages) + 1
	p.pages = append(p.pages, Page{Number: n, Capacity: p.capacity.rowsOn(n), Rows: []Row{}})
}

func (p *paginator) fits(height int) bool {
	cur := p.current()
	return cur.Used+height <= cur.Capacity
}

func (p *paginator) emit(rows ...Row) {
	cur := p.current()
	for _, r := range rows {
		cur.Rows = append(cur.Rows, r)
		cur.Used += r.Height
	}
}

// place emits rows as one block, opening a new page first if the block does
// not fit on the current one. The block opens with lead when it lands on a
// new page; lead is the category header for the first block of a category
// and its continuation row afterwards.
func (p *paginator) place(lead Row, continued bool, block []Row, what string) error {
	height := sumHeight(block)
	if continued {
		if p.fits(height) {
			p.emit(block...)
			return nil
		}
	} else {
		height += lead.Height
		if p.fits(height) {
			p.emit(append([]Row{lead}, block...)...)
			return nil
		}
	}

	if continued {
		lead = continuation(lead)
		height += lead.Height
	}
	if height > p.capacity.RowsPerPage {
		return shared.NewLayoutOverflowError(fmt.Sprintf(
			"%s needs %d rows but a page holds %d", what, height, p.capacity.RowsPerPage))
	}
	p.open()
	p.emit(append([]Row{lead}, block...)...)
	return nil
}

func (p *paginator) category(c estimation.CategoryTotal, number int) error {
	header := categoryHeader(c, number)
	subtotal := subtotalRow(c, number)

	if c.IsEmpty() {
		return p.place(header, false, []Row{subtotal}, fmt.Sprintf("category %q", c.Name))
	}

	last := len(c.Tasks) - 1
	for i, t := range c.Tasks {
		row := taskRow(c, t, number, i, p.capacity.TextWidth)
		block := []Row{row}
		if i == last {
			block = append(block, subtotal)
		}
		if err := p.place(header, i > 0, block, fmt.Sprintf("task %q", t.Name)); err != nil {
			return err
		}
	}
	return nil
}

func sumHeight(rows []Row) int {
	h := 0
	for _, r := range rows {
		h += r.Height
	}
	return h
}
