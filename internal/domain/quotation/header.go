package quotation

import (
	"strings"
	"time"

	"github.com/quotation/backend/internal/domain/shared"
	"github.com/quotation/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used in documents and file names
const DateLayout = "2006-01-02"

// Header is the quotation's metadata block
type Header struct {
	Title     string               `json:"title,omitempty"`
	Reference string               `json:"reference,omitempty"`
	Client    string               `json:"client"`
	Issuer    string               `json:"issuer"`
	Date      time.Time            `json:"date"`
	Currency  valueobject.Currency `json:"currency"`
	// TaxRate is a fraction: 0.1 means 10%
	TaxRate decimal.Decimal `json:"tax_rate"`
	Notes   string          `json:"notes,omitempty"`
}

// Normalize trims text fields, truncates the date to a calendar day,
// canonicalizes the currency and rejects a negative or unbounded tax rate.
func (h Header) Normalize() (Header, error) {
	h.Title = strings.TrimSpace(h.Title)
	h.Reference = strings.TrimSpace(h.Reference)
	h.Client = strings.TrimSpace(h.Client)
	h.Issuer = strings.TrimSpace(h.Issuer)
	h.Notes = strings.TrimSpace(h.Notes)

	if h.Currency == "" {
		h.Currency = valueobject.DefaultCurrency
	}
	cur, err := valueobject.ParseCurrency(string(h.Currency))
	if err != nil {
		return Header{}, shared.NewValidationError("currency", err.Error())
	}
	h.Currency = cur

	if h.TaxRate.IsNegative() {
		return Header{}, shared.NewValidationError("tax_rate", "must not be negative")
	}
	if err := CheckMagnitude("tax_rate", h.TaxRate); err != nil {
		return Header{}, err
	}
	if !h.Date.IsZero() {
		y, m, d := h.Date.Date()
		h.Date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return h, nil
}

// DateString returns the date in DateLayout, or "" when unset
func (h Header) DateString() string {
	if h.Date.IsZero() {
		return ""
	}
	return h.Date.Format(DateLayout)
}
