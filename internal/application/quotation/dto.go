package quotation

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/quotation/backend/internal/domain/estimation"
	"github.com/quotation/backend/internal/domain/layout"
	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/quotation/backend/internal/domain/shared"
	"github.com/quotation/backend/internal/domain/shared/valueobject"
	"github.com/quotation/backend/internal/infrastructure/document"
	"github.com/quotation/backend/internal/infrastructure/printing"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Requests
// =============================================================================

// HeaderRequest is the header block of a quotation. Amounts are strings so
// that user input keeps its exact decimal value.
type HeaderRequest struct {
	Title     string `json:"title" binding:"max=200"`
	Reference string `json:"reference" binding:"max=100"`
	Client    string `json:"client" binding:"max=200"`
	Issuer    string `json:"issuer" binding:"max=200"`
	Date      string `json:"date" binding:"omitempty,datetime=2006-01-02"`
	Currency  string `json:"currency" binding:"omitempty,len=3,alpha"`
	TaxRate   string `json:"tax_rate" binding:"max=32"`
	Notes     string `json:"notes" binding:"max=2000"`
}

// ToHeader converts the request to a domain header
func (r HeaderRequest) ToHeader() (quotation.Header, error) {
	h := quotation.Header{
		Title:     r.Title,
		Reference: r.Reference,
		Client:    r.Client,
		Issuer:    r.Issuer,
		Currency:  valueobject.Currency(r.Currency),
		Notes:     r.Notes,
	}
	if r.Date != "" {
		d, err := time.Parse(quotation.DateLayout, r.Date)
		if err != nil {
			return quotation.Header{}, shared.NewValidationError("date", "must be YYYY-MM-DD").WithCause(err)
		}
		h.Date = d
	}
	if r.TaxRate != "" {
		rate, err := quotation.ParseDecimal("tax_rate", r.TaxRate)
		if err != nil {
			return quotation.Header{}, err
		}
		h.TaxRate = rate
	}
	return h.Normalize()
}

// DocumentRequest describes a new document: a starter template, a header,
// or both (the header then replaces the template's).
type DocumentRequest struct {
	Template string         `json:"template" binding:"max=100"`
	Header   *HeaderRequest `json:"header"`
}

// TaskRequest carries task fields. On update, absent fields are kept.
type TaskRequest struct {
	Name     *string `json:"name" binding:"omitempty,max=500"`
	Unit     *string `json:"unit" binding:"omitempty,max=50"`
	Quantity *string `json:"quantity" binding:"omitempty,max=32"`
	UnitRate *string `json:"unit_rate" binding:"omitempty,max=32"`
	Note     *string `json:"note" binding:"omitempty,max=2000"`
}

func (r TaskRequest) toInput() (quotation.TaskInput, error) {
	in := quotation.TaskInput{
		Name: deref(r.Name),
		Unit: deref(r.Unit),
		Note: deref(r.Note),
	}
	var err error
	if in.Quantity, err = quotation.ParseDecimal("quantity", deref(r.Quantity)); err != nil {
		return in, err
	}
	if in.UnitRate, err = quotation.ParseDecimal("unit_rate", deref(r.UnitRate)); err != nil {
		return in, err
	}
	return in, nil
}

func (r TaskRequest) toPatch() (quotation.TaskPatch, error) {
	p := quotation.TaskPatch{Name: r.Name, Unit: r.Unit, Note: r.Note}
	if r.Quantity != nil {
		d, err := quotation.ParseDecimal("quantity", *r.Quantity)
		if err != nil {
			return p, err
		}
		p.Quantity = &d
	}
	if r.UnitRate != nil {
		d, err := quotation.ParseDecimal("unit_rate", *r.UnitRate)
		if err != nil {
			return p, err
		}
		p.UnitRate = &d
	}
	if p.IsEmpty() {
		return p, shared.NewValidationError("task", "no field to update")
	}
	return p, nil
}

// CommandRequest is one edit in wire form. Type selects which of the other
// fields are read.
type CommandRequest struct {
	Type             string         `json:"type" binding:"required,oneof=set_header add_category rename_category set_category_visible remove_category move_category add_task update_task remove_task move_task"`
	CategoryID       string         `json:"category_id" binding:"omitempty,uuid"`
	TaskID           string         `json:"task_id" binding:"omitempty,uuid"`
	TargetCategoryID string         `json:"target_category_id" binding:"omitempty,uuid"`
	Name             string         `json:"name" binding:"max=200"`
	Visible          *bool          `json:"visible"`
	Index            *int           `json:"index" binding:"omitempty,min=0"`
	Header           *HeaderRequest `json:"header"`
	Task             *TaskRequest   `json:"task"`
}

// ApplyCommandsRequest applies commands in order as one edit
type ApplyCommandsRequest struct {
	Commands []CommandRequest `json:"commands" binding:"required,min=1,max=100,dive"`
}

// ToCommands converts every command, failing on the first malformed one
func (r ApplyCommandsRequest) ToCommands() ([]quotation.Command, error) {
	cmds := make([]quotation.Command, 0, len(r.Commands))
	for _, c := range r.Commands {
		cmd, err := c.ToCommand()
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// ToCommand translates the request into a domain command. Missing or
// malformed fields are validation errors.
func (r CommandRequest) ToCommand() (quotation.Command, error) {
	switch r.Type {
	case quotation.CommandSetHeader:
		if r.Header == nil {
			return nil, shared.NewValidationError("header", "is required")
		}
		h, err := r.Header.ToHeader()
		if err != nil {
			return nil, err
		}
		return quotation.SetHeader{Header: h}, nil

	case quotation.CommandAddCategory:
		return quotation.AddCategory{CategoryName: r.Name, Visible: r.Visible != nil && *r.Visible}, nil

	case quotation.CommandRenameCategory:
		id, err := parseID("category_id", r.CategoryID)
		if err != nil {
			return nil, err
		}
		return quotation.RenameCategory{CategoryID: id, CategoryName: r.Name}, nil

	case quotation.CommandSetCategoryVisible:
		id, err := parseID("category_id", r.CategoryID)
		if err != nil {
			return nil, err
		}
		if r.Visible == nil {
			return nil, shared.NewValidationError("visible", "is required")
		}
		return quotation.SetCategoryVisible{CategoryID: id, Visible: *r.Visible}, nil

	case quotation.CommandRemoveCategory:
		id, err := parseID("category_id", r.CategoryID)
		if err != nil {
			return nil, err
		}
		return quotation.RemoveCategory{CategoryID: id}, nil

	case quotation.CommandMoveCategory:
		id, err := parseID("category_id", r.CategoryID)
		if err != nil {
			return nil, err
		}
		index, err := requireIndex(r.Index)
		if err != nil {
			return nil, err
		}
		return quotation.MoveCategory{CategoryID: id, Index: index}, nil

	case quotation.CommandAddTask:
		id, err := parseID("category_id", r.CategoryID)
		if err != nil {
			return nil, err
		}
		if r.Task == nil {
			return nil, shared.NewValidationError("task", "is required")
		}
		in, err := r.Task.toInput()
		if err != nil {
			return nil, err
		}
		return quotation.AddTask{CategoryID: id, Task: in}, nil

	case quotation.CommandUpdateTask:
		id, err := parseID("task_id", r.TaskID)
		if err != nil {
			return nil, err
		}
		if r.Task == nil {
			return nil, shared.NewValidationError("task", "is required")
		}
		patch, err := r.Task.toPatch()
		if err != nil {
			return nil, err
		}
		return quotation.UpdateTask{TaskID: id, Patch: patch}, nil

	case quotation.CommandRemoveTask:
		id, err := parseID("task_id", r.TaskID)
		if err != nil {
			return nil, err
		}
		return quotation.RemoveTask{TaskID: id}, nil

	case quotation.CommandMoveTask:
		id, err := parseID("task_id", r.TaskID)
		if err != nil {
			return nil, err
		}
		target, err := parseID("target_category_id", r.TargetCategoryID)
		if err != nil {
			return nil, err
		}
		index, err := requireIndex(r.Index)
		if err != nil {
			return nil, err
		}
		return quotation.MoveTask{TaskID: id, TargetCategoryID: target, Index: index}, nil
	}
	return nil, shared.NewValidationError("type", "unknown command "+r.Type)
}

func parseID(field, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, shared.NewValidationError(field, "is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.NewValidationError(field, "is not a valid id").WithCause(err)
	}
	return id, nil
}

func requireIndex(index *int) (int, error) {
	if index == nil {
		return 0, shared.NewValidationError("index", "is required")
	}
	return *index, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// =============================================================================
// Responses
// =============================================================================

// TaskResponse is a task with its derived line total
type TaskResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitRate  decimal.Decimal `json:"unit_rate"`
	LineTotal decimal.Decimal `json:"line_total"`
	Note      string          `json:"note,omitempty"`
}

// CategoryResponse is a category with its subtotal
type CategoryResponse struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Visible  bool            `json:"visible"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tasks    []TaskResponse  `json:"tasks"`
}

// QuotationResponse is the session's document with every derived figure
type QuotationResponse struct {
	SessionID  uuid.UUID                `json:"session_id"`
	DocumentID uuid.UUID                `json:"document_id"`
	Revision   uint64                   `json:"revision"`
	Header     quotation.Header         `json:"header"`
	Categories []CategoryResponse       `json:"categories"`
	Subtotal   decimal.Decimal          `json:"subtotal"`
	NetTotal   decimal.Decimal          `json:"net_total"`
	TaxAmount  decimal.Decimal          `json:"tax_amount"`
	GrandTotal decimal.Decimal          `json:"grand_total"`
	Effort     []estimation.EffortTotal `json:"effort"`
}

// ToQuotationResponse converts a session state
func ToQuotationResponse(s *State) QuotationResponse {
	res := s.Estimate
	categories := make([]CategoryResponse, 0, len(res.Categories))
	for _, c := range res.Categories {
		tasks := make([]TaskResponse, 0, len(c.Tasks))
		for _, t := range c.Tasks {
			tasks = append(tasks, TaskResponse{
				ID:        t.Task.ID,
				Name:      t.Task.Name,
				Unit:      t.Task.Unit,
				Quantity:  t.Task.Quantity,
				UnitRate:  t.Task.UnitRate,
				LineTotal: t.LineTotal,
				Note:      t.Task.Note,
			})
		}
		categories = append(categories, CategoryResponse{
			ID:       c.ID,
			Name:     c.Name,
			Visible:  c.Visible,
			Subtotal: c.Subtotal,
			Tasks:    tasks,
		})
	}
	return QuotationResponse{
		SessionID:  s.SessionID,
		DocumentID: s.Quotation.ID(),
		Revision:   s.Revision,
		Header:     res.Header,
		Categories: categories,
		Subtotal:   res.Subtotal,
		NetTotal:   res.NetTotal,
		TaxAmount:  res.TaxAmount,
		GrandTotal: res.GrandTotal,
		Effort:     res.Effort,
	}
}

// PreviewResponse is a rendered preview
type PreviewResponse struct {
	SessionID  uuid.UUID     `json:"session_id"`
	Revision   uint64        `json:"revision"`
	PageCount  int           `json:"page_count"`
	Pages      []layout.Page `json:"pages"`
	HTML       string        `json:"html"`
	RenderedAt time.Time     `json:"rendered_at"`
	// Error is set when the latest revision could not be laid out
	Error *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo is an error in a streamed payload
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToPreviewResponse converts a preview update
func ToPreviewResponse(u *PreviewUpdate) PreviewResponse {
	resp := PreviewResponse{
		SessionID:  u.SessionID,
		Revision:   u.Revision,
		RenderedAt: u.RenderedAt,
	}
	if u.Result != nil && u.Result.Preview != nil {
		resp.PageCount = u.Result.Preview.PageCount
		resp.Pages = u.Result.Pages
		resp.HTML = u.Result.Preview.HTML
	}
	if u.Err != nil {
		resp.Error = &ErrorInfo{Code: errorCode(u.Err), Message: u.Err.Error()}
	}
	return resp
}

// ArtifactResponse describes an exported document
type ArtifactResponse struct {
	FileName  string    `json:"file_name"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	PageCount int       `json:"page_count"`
	CreatedAt time.Time `json:"created_at"`
}

// ToArtifactResponse converts an export artifact
func ToArtifactResponse(a *printing.Artifact) ArtifactResponse {
	return ArtifactResponse{
		FileName:  a.FileName,
		URL:       a.URL,
		Size:      a.Size,
		PageCount: a.PageCount,
		CreatedAt: a.CreatedAt,
	}
}

// TemplateResponse is a starter template summary
type TemplateResponse struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Categories  int    `json:"categories"`
	Tasks       int    `json:"tasks"`
}

// ToTemplateResponses converts starter templates
func ToTemplateResponses(templates []document.StarterTemplate) []TemplateResponse {
	out := make([]TemplateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, TemplateResponse{
			ID:          t.ID,
			Key:         t.Key,
			Name:        t.Name,
			Description: t.Description,
			Categories:  t.Categories,
			Tasks:       t.Tasks,
		})
	}
	return out
}

func errorCode(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return "INTERNAL_ERROR"
}
