package quotation

import (
	"strings"

	"github.com/google/uuid"
	"github.com/quotation/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Task is a single estimated work item
type Task struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Unit     string          `json:"unit"`
	Quantity decimal.Decimal `json:"quantity"`
	UnitRate decimal.Decimal `json:"unit_rate"`
	Note     string          `json:"note,omitempty"`
}

// LineTotal returns quantity × unit rate at full precision.
// It is derived on every call and never stored.
func (t Task) LineTotal() decimal.Decimal {
	return t.Quantity.Mul(t.UnitRate)
}

// TaskInput holds the fields of a task to be created
type TaskInput struct {
	Name     string
	Unit     string
	Quantity decimal.Decimal
	UnitRate decimal.Decimal
	Note     string
}

// TaskPatch holds the fields of a task to be changed; nil fields are kept
type TaskPatch struct {
	Name     *string
	Unit     *string
	Quantity *decimal.Decimal
	UnitRate *decimal.Decimal
	Note     *string
}

// IsEmpty reports whether the patch changes nothing
func (p TaskPatch) IsEmpty() bool {
	return p.Name == nil && p.Unit == nil && p.Quantity == nil && p.UnitRate == nil && p.Note == nil
}

func newTask(in TaskInput) (Task, error) {
	t := Task{
		ID:       uuid.New(),
		Name:     strings.TrimSpace(in.Name),
		Unit:     strings.TrimSpace(in.Unit),
		Quantity: in.Quantity,
		UnitRate: in.UnitRate,
		Note:     strings.TrimSpace(in.Note),
	}
	if err := t.validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

func (t Task) apply(p TaskPatch) (Task, error) {
	if p.Name != nil {
		t.Name = strings.TrimSpace(*p.Name)
	}
	if p.Unit != nil {
		t.Unit = strings.TrimSpace(*p.Unit)
	}
	if p.Quantity != nil {
		t.Quantity = *p.Quantity
	}
	if p.UnitRate != nil {
		t.UnitRate = *p.UnitRate
	}
	if p.Note != nil {
		t.Note = strings.TrimSpace(*p.Note)
	}
	if err := t.validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

func (t Task) validate() error {
	if t.Name == "" {
		return shared.NewValidationError("name", "task name cannot be empty")
	}
	if t.Quantity.IsNegative() {
		return shared.NewValidationError("quantity", "must not be negative")
	}
	if t.UnitRate.IsNegative() {
		return shared.NewValidationError("unit_rate", "must not be negative")
	}
	if err := CheckMagnitude("quantity", t.Quantity); err != nil {
		return err
	}
	return CheckMagnitude("unit_rate", t.UnitRate)
}

// Bounds on user-entered numbers. Amounts beyond these cannot be laid out
// and make exact rounding arbitrarily expensive.
const (
	MaxIntegerDigits  = 18
	MaxFractionDigits = 18
	maxNumberLength   = 64
)

// CheckMagnitude rejects values with more than MaxIntegerDigits integer
// digits or more than MaxFractionDigits fraction digits.
func CheckMagnitude(field string, d decimal.Decimal) error {
	if d.IsZero() {
		return nil
	}
	exp := int64(d.Exponent())
	if -exp > MaxFractionDigits {
		return shared.NewValidationError(field, "has too many decimal places")
	}
	if int64(d.NumDigits())+exp > MaxIntegerDigits {
		return shared.NewValidationError(field, "is too large")
	}
	return nil
}

// ParseDecimal parses a user-entered number, trimming whitespace and
// thousands separators. Malformed input, exponent notation and values
// outside CheckMagnitude are validation errors on field.
func ParseDecimal(field, raw string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return decimal.Zero, shared.NewValidationError(field, "value is required")
	}
	if len(s) > maxNumberLength || strings.ContainsAny(s, "eE") {
		return decimal.Zero, shared.NewValidationError(field, "is not a plain decimal number")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, shared.NewValidationError(field, "is not a number").WithCause(err)
	}
	if err := CheckMagnitude(field, d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}
