package quotation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/quotation/backend/internal/domain/shared"
)

// Quotation is the full document: header metadata plus ordered categories.
// The zero value is not usable; create one with New.
type Quotation struct {
	id         uuid.UUID
	header     Header
	categories []Category
}

// New creates an empty quotation
func New(header Header) (Quotation, error) {
	h, err := header.Normalize()
	if err != nil {
		return Quotation{}, err
	}
	return Quotation{id: uuid.New(), header: h}, nil
}

// ID returns the document identifier
func (q Quotation) ID() uuid.UUID {
	return q.id
}

// Header returns the header metadata
func (q Quotation) Header() Header {
	return q.header
}

// Categories returns a deep copy of the categories in display order
func (q Quotation) Categories() []Category {
	out := make([]Category, len(q.categories))
	for i := range q.categories {
		out[i] = q.categories[i].clone()
	}
	return out
}

// Snapshot returns the quotation itself
func (q Quotation) Snapshot() Quotation {
	return q
}

// CategoryCount returns the number of categories
func (q Quotation) CategoryCount() int {
	return len(q.categories)
}

// TaskCount returns the number of tasks across all categories
func (q Quotation) TaskCount() int {
	n := 0
	for i := range q.categories {
		n += len(q.categories[i].Tasks)
	}
	return n
}

// FindCategory returns the category with the given ID
func (q Quotation) FindCategory(id uuid.UUID) (Category, error) {
	i := q.categoryIndex(id)
	if i < 0 {
		return Category{}, shared.NewNotFoundError("category", id)
	}
	return q.categories[i].clone(), nil
}

// FindTask returns the task with the given ID and the ID of its category
func (q Quotation) FindTask(id uuid.UUID) (Task, uuid.UUID, error) {
	ci, ti := q.taskIndex(id)
	if ci < 0 {
		return Task{}, uuid.Nil, shared.NewNotFoundError("task", id)
	}
	return q.categories[ci].Tasks[ti], q.categories[ci].ID, nil
}

// WithHeader returns a copy with the header replaced
func (q Quotation) WithHeader(header Header) (Quotation, error) {
	h, err := header.Normalize()
	if err != nil {
		return q, err
	}
	out := q.clone()
	out.header = h
	return out, nil
}

// AddCategory appends a new category
func (q Quotation) AddCategory(name string, visible bool) (Quotation, Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return q, Category{}, shared.NewValidationError("name", "category name cannot be empty")
	}
	c := Category{ID: uuid.New(), Name: name, Visible: visible, Tasks: []Task{}}
	out := q.clone()
	out.categories = append(out.categories, c)
	return out, c, nil
}

// RenameCategory changes a category's name
func (q Quotation) RenameCategory(id uuid.UUID, name string) (Quotation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return q, shared.NewValidationError("name", "category name cannot be empty")
	}
	i := q.categoryIndex(id)
	if i < 0 {
		return q, shared.NewNotFoundError("category", id)
	}
	out := q.clone()
	out.categories[i].Name = name
	return out, nil
}

// SetCategoryVisible flags whether an empty category is still laid out
func (q Quotation) SetCategoryVisible(id uuid.UUID, visible bool) (Quotation, error) {
	i := q.categoryIndex(id)
	if i < 0 {
		return q, shared.NewNotFoundError("category", id)
	}
	out := q.clone()
	out.categories[i].Visible = visible
	return out, nil
}

// RemoveCategory deletes a category and all its tasks
func (q Quotation) RemoveCategory(id uuid.UUID) (Quotation, error) {
	i := q.categoryIndex(id)
	if i < 0 {
		return q, shared.NewNotFoundError("category", id)
	}
	out := q.clone()
	out.categories = append(out.categories[:i], out.categories[i+1:]...)
	return out, nil
}

// MoveCategory moves a category to position index; the others keep their
// relative order.
func (q Quotation) MoveCategory(id uuid.UUID, index int) (Quotation, error) {
	i := q.categoryIndex(id)
	if i < 0 {
		return q, shared.NewNotFoundError("category", id)
	}
	if index < 0 || index >= len(q.categories) {
		return q, indexError(index, len(q.categories)-1)
	}
	out := q.clone()
	out.categories = move(out.categories, i, index)
	return out, nil
}

// AddTask appends a new task to a category
func (q Quotation) AddTask(categoryID uuid.UUID, in TaskInput) (Quotation, Task, error) {
	i := q.categoryIndex(categoryID)
	if i < 0 {
		return q, Task{}, shared.NewNotFoundError("category", categoryID)
	}
	t, err := newTask(in)
	if err != nil {
		return q, Task{}, err
	}
	out := q.clone()
	out.categories[i].Tasks = append(out.categories[i].Tasks, t)
	return out, t, nil
}

// UpdateTask applies patch to a task
func (q Quotation) UpdateTask(taskID uuid.UUID, patch TaskPatch) (Quotation, error) {
	ci, ti := q.taskIndex(taskID)
	if ci < 0 {
		return q, shared.NewNotFoundError("task", taskID)
	}
	t, err := q.categories[ci].Tasks[ti].apply(patch)
	if err != nil {
		return q, err
	}
	out := q.clone()
	out.categories[ci].Tasks[ti] = t
	return out, nil
}

// RemoveTask deletes a task
func (q Quotation) RemoveTask(taskID uuid.UUID) (Quotation, error) {
	ci, ti := q.taskIndex(taskID)
	if ci < 0 {
		return q, shared.NewNotFoundError("task", taskID)
	}
	out := q.clone()
	tasks := out.categories[ci].Tasks
	out.categories[ci].Tasks = append(tasks[:ti], tasks[ti+1:]...)
	return out, nil
}

// MoveTask moves a task to position index of the target category, which may
// be its own. All other tasks keep their relative order.
func (q Quotation) MoveTask(taskID, targetCategoryID uuid.UUID, index int) (Quotation, error) {
	ci, ti := q.taskIndex(taskID)
	if ci < 0 {
		return q, shared.NewNotFoundError("task", taskID)
	}
	target := q.categoryIndex(targetCategoryID)
	if target < 0 {
		return q, shared.NewNotFoundError("category", targetCategoryID)
	}

	out := q.clone()
	if target == ci {
		n := len(out.categories[ci].Tasks)
		if index < 0 || index >= n {
			return q, indexError(index, n-1)
		}
		out.categories[ci].Tasks = move(out.categories[ci].Tasks, ti, index)
		return out, nil
	}

	n := len(out.categories[target].Tasks)
	if index < 0 || index > n {
		return q, indexError(index, n)
	}
	t := out.categories[ci].Tasks[ti]
	src := out.categories[ci].Tasks
	out.categories[ci].Tasks = append(src[:ti], src[ti+1:]...)
	dst := out.categories[target].Tasks
	dst = append(dst, Task{})
	copy(dst[index+1:], dst[index:])
	dst[index] = t
	out.categories[target].Tasks = dst
	return out, nil
}

func (q Quotation) clone() Quotation {
	out := Quotation{id: q.id, header: q.header}
	out.categories = q.Categories()
	return out
}

func (q Quotation) categoryIndex(id uuid.UUID) int {
	for i := range q.categories {
		if q.categories[i].ID == id {
			return i
		}
	}
	return -1
}

func (q Quotation) taskIndex(id uuid.UUID) (int, int) {
	for ci := range q.categories {
		if ti := q.categories[ci].taskIndex(id); ti >= 0 {
			return ci, ti
		}
	}
	return -1, -1
}

// move relocates s[from] to position to, shifting the elements in between
func move[T any](s []T, from, to int) []T {
	if from == to {
		return s
	}
	v := s[from]
	if from < to {
		copy(s[from:to], s[from+1:to+1])
	} else {
		copy(s[to+1:from+1], s[to:from])
	}
	s[to] = v
	return s
}

func indexError(index, max int) error {
	if max < 0 {
		max = 0
	}
	return shared.NewValidationError("index", fmt.Sprintf("%d is out of range [0, %d]", index, max))
}
