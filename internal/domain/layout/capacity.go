package layout

import (
	"github.com/quotation/backend/internal/domain/shared"
)

// MinRowsPerPage is the smallest page that can still hold a continuation
// header, a task and its subtotal.
const MinRowsPerPage = 3

// PageCapacity describes the physical geometry of a page in rows
type PageCapacity struct {
	// RowsPerPage is the maximum number of rows on a page
	RowsPerPage int `json:"rows_per_page"`
	// FirstPageHeaderRows are reserved on page 1 for the document header block
	FirstPageHeaderRows int `json:"first_page_header_rows"`
	// TextWidth is the width, in display columns, of the task description
	// column. Longer names and notes wrap onto extra rows. Zero disables
	// wrapping and every task occupies a single row.
	TextWidth int `json:"text_width"`
}

// Validate checks the capacity is usable
func (c PageCapacity) Validate() error {
	if c.RowsPerPage < MinRowsPerPage {
		return shared.NewValidationError("rows_per_page", "must be at least 3")
	}
	if c.FirstPageHeaderRows < 0 {
		return shared.NewValidationError("first_page_header_rows", "must not be negative")
	}
	if c.FirstPageHeaderRows >= c.RowsPerPage {
		return shared.NewValidationError("first_page_header_rows", "must leave at least one row on the first page")
	}
	if c.TextWidth < 0 {
		return shared.NewValidationError("text_width", "must not be negative")
	}
	return nil
}

// rowsOn returns the usable rows of the 1-based page number
func (c PageCapacity) rowsOn(page int) int {
	if page == 1 {
		return c.RowsPerPage - c.FirstPageHeaderRows
	}
	return c.RowsPerPage
}
