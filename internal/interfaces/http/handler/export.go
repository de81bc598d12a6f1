package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	app "github.com/quotation/backend/internal/application/quotation"
	"github.com/quotation/backend/internal/infrastructure/logger"
	"github.com/quotation/backend/internal/infrastructure/printing"
	"go.uber.org/zap"
)

// ExportHandler exports documents and serves the stored artifacts
type ExportHandler struct {
	BaseHandler
	quotations *QuotationHandler
	storage    printing.ArtifactStorage
}

// NewExportHandler creates a new ExportHandler. storage may be nil when
// artifacts are downloaded straight from the object store.
func NewExportHandler(quotations *QuotationHandler, storage printing.ArtifactStorage) *ExportHandler {
	return &ExportHandler{quotations: quotations, storage: storage}
}

// Export godoc
// @ID           exportSession
// @Summary      Export the document as PDF
// @Description  Exports the document as of every edit accepted before this request. Later edits do not change the artifact. Closing the connection abandons the export.
// @Tags         export
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      201 {object} dto.Response{data=quotation.ArtifactResponse}
// @Failure      404 {object} dto.Response
// @Failure      502 {object} dto.Response "The document could not be printed or stored"
// @Router       /sessions/{id}/export [post]
func (h *ExportHandler) Export(c *gin.Context) {
	s, ok := h.quotations.session(c)
	if !ok {
		return
	}
	artifact, err := s.Export(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, app.ToArtifactResponse(artifact))
}

// Download godoc
// @ID           downloadExport
// @Summary      Download an exported document
// @Tags         export
// @Produce      application/pdf
// @Param        path path string true "Artifact path"
// @Success      200 {file} file
// @Failure      404 {object} dto.Response
// @Router       /exports/{path} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	if h.storage == nil {
		h.NotFound(c, "artifact not found")
		return
	}
	p, err := printing.CleanArtifactPath(c.Param("path"))
	if err != nil {
		h.NotFound(c, "artifact not found")
		return
	}

	rc, err := h.storage.Get(c.Request.Context(), p)
	if err != nil {
		if errors.Is(err, printing.ErrArtifactNotFound) {
			h.NotFound(c, "artifact not found")
			return
		}
		h.HandleError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(p)}))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logger.FromContext(c.Request.Context()).Warn("artifact download interrupted",
			zap.String("path", p), zap.Error(err))
	}
}
