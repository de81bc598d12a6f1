package valueobject

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	USD Currency = "USD" // US Dollar
	EUR Currency = "EUR" // Euro
	GBP Currency = "GBP" // British Pound
	JPY Currency = "JPY" // Japanese Yen
	KRW Currency = "KRW" // South Korean Won
	CNY Currency = "CNY" // Chinese Yuan
)

// DefaultCurrency is used when a quotation header does not name one
const DefaultCurrency = USD

var half = decimal.NewFromFloat(0.5)

// ParseCurrency validates an ISO 4217 code and returns it in canonical form
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", errors.New("currency cannot be empty")
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("unknown currency %q: %w", code, err)
	}
	return Currency(unit.String()), nil
}

// MinorUnits returns the number of decimal places of the currency's minor
// unit (2 for USD, 0 for JPY). Unknown codes fall back to 2.
func (c Currency) MinorUnits() int32 {
	unit, err := currency.ParseISO(string(c))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// String returns the ISO code
func (c Currency) String() string {
	return string(c)
}

// RoundHalfUp rounds d to places decimals, ties toward positive infinity
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Shift(places).Add(half).Floor().Shift(-places)
}

// Money is an amount in a currency. It is immutable: every operation
// returns a new value.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// MoneyOf returns amount in currency; an empty currency means DefaultCurrency
func MoneyOf(amount decimal.Decimal, currency Currency) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{amount: amount, currency: currency}
}

// Amount returns the amount at full precision
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// Multiply returns a new Money multiplied by factor, without rounding
func (m Money) Multiply(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor), currency: m.currency}
}

// RoundToMinorUnit rounds half-up to the currency's minor unit
func (m Money) RoundToMinorUnit() Money {
	return Money{amount: RoundHalfUp(m.amount, m.currency.MinorUnits()), currency: m.currency}
}

// String returns the amount followed by the currency code
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.StringFixed(), m.currency)
}

// StringFixed formats the amount with exactly the minor-unit decimals
func (m Money) StringFixed() string {
	return m.RoundToMinorUnit().amount.StringFixed(m.currency.MinorUnits())
}
