package quotation

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/quotation/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommands_ApplyInOrder(t *testing.T) {
	q := newTestQuotation(t)

	q, err := AddCategory{CategoryName: "Backend"}.Apply(q)
	require.NoError(t, err)
	catID := q.Categories()[0].ID

	cmds := []Command{
		AddTask{CategoryID: catID, Task: TaskInput{Name: "API", Unit: "day", Quantity: dec("2"), UnitRate: dec("100000")}},
		AddTask{CategoryID: catID, Task: TaskInput{Name: "DB", Unit: "day", Quantity: dec("1"), UnitRate: dec("50000")}},
		RenameCategory{CategoryID: catID, CategoryName: "Server"},
	}
	for _, c := range cmds {
		q, err = c.Apply(q)
		require.NoError(t, err, c.Name())
	}

	cat := q.Categories()[0]
	assert.Equal(t, "Server", cat.Name)
	assert.True(t, cat.Subtotal().Equal(dec("250000")))

	q, err = MoveTask{TaskID: cat.Tasks[1].ID, TargetCategoryID: catID, Index: 0}.Apply(q)
	require.NoError(t, err)
	assert.Equal(t, []string{"DB", "API"}, taskNames(q.Categories()[0]))
}

func TestCommands_RejectedLeavesModel(t *testing.T) {
	q, cat := withTasks(t, "T1")
	qty := dec("-5")

	cmds := []Command{
		UpdateTask{TaskID: cat.Tasks[0].ID, Patch: TaskPatch{Quantity: &qty}},
		RemoveTask{TaskID: uuid.New()},
		RemoveCategory{CategoryID: uuid.New()},
		SetCategoryVisible{CategoryID: uuid.New()},
		MoveCategory{CategoryID: cat.ID, Index: 5},
	}
	for _, c := range cmds {
		t.Run(c.Name(), func(t *testing.T) {
			out, err := c.Apply(q)
			require.Error(t, err)
			var de *shared.DomainError
			require.True(t, errors.As(err, &de))
			assert.Contains(t, []string{shared.CodeValidation, shared.CodeNotFound}, de.Code)
			assert.Equal(t, q, out)
		})
	}
}

func TestReplace_KeepsDocumentID(t *testing.T) {
	current := newTestQuotation(t)
	loaded, _ := withTasks(t, "A", "B")

	out, err := Replace{Quotation: loaded}.Apply(current)
	require.NoError(t, err)
	assert.Equal(t, current.ID(), out.ID())
	assert.Equal(t, 2, out.TaskCount())
}

func TestSetHeader(t *testing.T) {
	q := newTestQuotation(t)
	h := q.Header()
	h.Client = "Globex"
	h.TaxRate = dec("0.08")

	out, err := SetHeader{Header: h}.Apply(q)
	require.NoError(t, err)
	assert.Equal(t, "Globex", out.Header().Client)
	assert.Equal(t, "Acme Corp", q.Header().Client)

	h.TaxRate = dec("-1")
	_, err = SetHeader{Header: h}.Apply(q)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}
