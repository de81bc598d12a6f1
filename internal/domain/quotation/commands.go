package quotation

import (
	"github.com/google/uuid"
)

// Command name constants
const (
	CommandSetHeader          = "set_header"
	CommandAddCategory        = "add_category"
	CommandRenameCategory     = "rename_category"
	CommandSetCategoryVisible = "set_category_visible"
	CommandRemoveCategory     = "remove_category"
	CommandMoveCategory       = "move_category"
	CommandAddTask            = "add_task"
	CommandUpdateTask         = "update_task"
	CommandRemoveTask         = "remove_task"
	CommandMoveTask           = "move_task"
	CommandReplace            = "replace"
)

// Command is a structured edit applied to a quotation.
// Apply returns the new quotation, or an error and no change.
type Command interface {
	Name() string
	Apply(q Quotation) (Quotation, error)
}

// SetHeader replaces the header metadata
type SetHeader struct {
	Header Header
}

func (SetHeader) Name() string { return CommandSetHeader }

func (c SetHeader) Apply(q Quotation) (Quotation, error) {
	return q.WithHeader(c.Header)
}

// AddCategory appends a category
type AddCategory struct {
	CategoryName string
	Visible      bool
}

func (AddCategory) Name() string { return CommandAddCategory }

func (c AddCategory) Apply(q Quotation) (Quotation, error) {
	out, _, err := q.AddCategory(c.CategoryName, c.Visible)
	return out, err
}

// RenameCategory renames a category
type RenameCategory struct {
	CategoryID   uuid.UUID
	CategoryName string
}

func (RenameCategory) Name() string { return CommandRenameCategory }

func (c RenameCategory) Apply(q Quotation) (Quotation, error) {
	return q.RenameCategory(c.CategoryID, c.CategoryName)
}

// SetCategoryVisible toggles layout of an empty category
type SetCategoryVisible struct {
	CategoryID uuid.UUID
	Visible    bool
}

func (SetCategoryVisible) Name() string { return CommandSetCategoryVisible }

func (c SetCategoryVisible) Apply(q Quotation) (Quotation, error) {
	return q.SetCategoryVisible(c.CategoryID, c.Visible)
}

// RemoveCategory deletes a category
type RemoveCategory struct {
	CategoryID uuid.UUID
}

func (RemoveCategory) Name() string { return CommandRemoveCategory }

func (c RemoveCategory) Apply(q Quotation) (Quotation, error) {
	return q.RemoveCategory(c.CategoryID)
}

// MoveCategory reorders a category
type MoveCategory struct {
	CategoryID uuid.UUID
	Index      int
}

func (MoveCategory) Name() string { return CommandMoveCategory }

func (c MoveCategory) Apply(q Quotation) (Quotation, error) {
	return q.MoveCategory(c.CategoryID, c.Index)
}

// AddTask appends a task to a category
type AddTask struct {
	CategoryID uuid.UUID
	Task       TaskInput
}

func (AddTask) Name() string { return CommandAddTask }

func (c AddTask) Apply(q Quotation) (Quotation, error) {
	out, _, err := q.AddTask(c.CategoryID, c.Task)
	return out, err
}

// UpdateTask patches a task, e.g. a new quantity or rate
type UpdateTask struct {
	TaskID uuid.UUID
	Patch  TaskPatch
}

func (UpdateTask) Name() string { return CommandUpdateTask }

func (c UpdateTask) Apply(q Quotation) (Quotation, error) {
	return q.UpdateTask(c.TaskID, c.Patch)
}

// RemoveTask deletes a task
type RemoveTask struct {
	TaskID uuid.UUID
}

func (RemoveTask) Name() string { return CommandRemoveTask }

func (c RemoveTask) Apply(q Quotation) (Quotation, error) {
	return q.RemoveTask(c.TaskID)
}

// MoveTask reorders a task, possibly into another category
type MoveTask struct {
	TaskID           uuid.UUID
	TargetCategoryID uuid.UUID
	Index            int
}

func (MoveTask) Name() string { return CommandMoveTask }

func (c MoveTask) Apply(q Quotation) (Quotation, error) {
	return q.MoveTask(c.TaskID, c.TargetCategoryID, c.Index)
}

// Replace swaps in a whole document, keeping the current document ID.
// Used when a quotation is reloaded from its source file.
type Replace struct {
	Quotation Quotation
}

func (Replace) Name() string { return CommandReplace }

func (c Replace) Apply(q Quotation) (Quotation, error) {
	out := c.Quotation.clone()
	out.id = q.id
	return out, nil
}
