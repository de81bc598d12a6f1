package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	app "github.com/quotation/backend/internal/application/quotation"
)

// QuotationHandler exposes editing sessions over HTTP
type QuotationHandler struct {
	BaseHandler
	manager *app.SessionManager
}

// NewQuotationHandler creates a new QuotationHandler
func NewQuotationHandler(manager *app.SessionManager) *QuotationHandler {
	return &QuotationHandler{manager: manager}
}

// session resolves the :id path parameter to an open session
func (h *QuotationHandler) session(c *gin.Context) (*app.Session, bool) {
	id, ok := h.sessionID(c)
	if !ok {
		return nil, false
	}
	s, err := h.manager.Get(id)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	return s, true
}

// ListTemplates godoc
// @ID           listTemplates
// @Summary      List starter templates
// @Tags         templates
// @Produce      json
// @Success      200 {object} dto.Response{data=[]quotation.TemplateResponse}
// @Router       /templates [get]
func (h *QuotationHandler) ListTemplates(c *gin.Context) {
	h.Success(c, app.ToTemplateResponses(h.manager.Templates()))
}

// CreateSession godoc
// @ID           createSession
// @Summary      Open an editing session
// @Description  Starts from an empty document, a starter template, or a template with a replacement header
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        request body quotation.DocumentRequest false "Document"
// @Success      201 {object} dto.Response{data=quotation.QuotationResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Router       /sessions [post]
func (h *QuotationHandler) CreateSession(c *gin.Context) {
	var req app.DocumentRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	s, err := h.manager.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	state, err := s.State(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Location", c.FullPath()+"/"+s.ID().String())
	h.Created(c, app.ToQuotationResponse(state))
}

// GetSession godoc
// @ID           getSession
// @Summary      Get the document and its totals
// @Tags         sessions
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} dto.Response{data=quotation.QuotationResponse}
// @Failure      404 {object} dto.Response
// @Router       /sessions/{id} [get]
func (h *QuotationHandler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	state, err := s.State(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, app.ToQuotationResponse(state))
}

// DeleteSession godoc
// @ID           deleteSession
// @Summary      Discard an editing session
// @Tags         sessions
// @Param        id path string true "Session ID"
// @Success      204
// @Failure      404 {object} dto.Response
// @Router       /sessions/{id} [delete]
func (h *QuotationHandler) DeleteSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	if err := h.manager.Discard(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ApplyCommands godoc
// @ID           applyCommands
// @Summary      Apply edit commands
// @Description  Applies a batch of commands in order. The batch is all or nothing: when one command is rejected the document is unchanged.
// @Description  A 499 means the batch was not applied; once the session starts a batch the response carries its outcome.
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        id path string true "Session ID"
// @Param        request body quotation.ApplyCommandsRequest true "Commands"
// @Success      200 {object} dto.Response{data=quotation.QuotationResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /sessions/{id}/commands [post]
func (h *QuotationHandler) ApplyCommands(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req app.ApplyCommandsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	cmds, err := req.ToCommands()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	state, err := s.Apply(c.Request.Context(), cmds...)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, app.ToQuotationResponse(state))
}

// ResetSession godoc
// @ID           resetSession
// @Summary      Replace the document
// @Description  Replaces the whole document and abandons running exports
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        id path string true "Session ID"
// @Param        request body quotation.DocumentRequest false "Document"
// @Success      200 {object} dto.Response{data=quotation.QuotationResponse}
// @Router       /sessions/{id}/reset [post]
func (h *QuotationHandler) ResetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req app.DocumentRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	q, err := h.manager.NewDocument(req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	state, err := s.Reset(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, app.ToQuotationResponse(state))
}

// GetPreview godoc
// @ID           getPreview
// @Summary      Get the paginated preview
// @Description  Brings the preview up to date with every accepted edit and returns it
// @Tags         preview
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} dto.Response{data=quotation.PreviewResponse}
// @Failure      422 {object} dto.Response "A row does not fit on an empty page"
// @Router       /sessions/{id}/preview [get]
func (h *QuotationHandler) GetPreview(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	update, err := s.Preview(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, app.ToPreviewResponse(update))
}

// GetPreviewHTML godoc
// @ID           getPreviewHTML
// @Summary      Get the preview as an HTML page
// @Tags         preview
// @Produce      html
// @Param        id path string true "Session ID"
// @Success      200 {string} string
// @Router       /sessions/{id}/preview.html [get]
func (h *QuotationHandler) GetPreviewHTML(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	update, err := s.Preview(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(update.Result.Preview.HTML))
}
