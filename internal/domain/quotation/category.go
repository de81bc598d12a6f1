package quotation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category is a named group of tasks contributing one subtotal
type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	// Visible keeps an empty category in the printed layout
	Visible bool   `json:"visible"`
	Tasks   []Task `json:"tasks"`
}

// Subtotal returns the sum of the tasks' line totals at full precision
func (c Category) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range c.Tasks {
		sum = sum.Add(t.LineTotal())
	}
	return sum
}

// IsEmpty reports whether the category holds no tasks
func (c Category) IsEmpty() bool {
	return len(c.Tasks) == 0
}

func (c Category) taskIndex(id uuid.UUID) int {
	for i := range c.Tasks {
		if c.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (c Category) clone() Category {
	out := c
	out.Tasks = make([]Task, len(c.Tasks))
	copy(out.Tasks, c.Tasks)
	return out
}
