package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hayat-interiors/appraisal-api/internal/service"
	appErrors "github.com/hayat-interiors/appraisal-api/pkg/errors"
	"github.com/hayat-interiors/appraisal-api/pkg/response"
)

// ImportHandler accepts the employee master workbook upload.
type ImportHandler struct {
	importer *service.ImportService
}

// NewImportHandler constructs the handler.
func NewImportHandler(importer *service.ImportService) *ImportHandler {
	return &ImportHandler{importer: importer}
}

// Workbook godoc
// @Summary Import the employee master workbook
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Excel workbook"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /import/employees [post]
func (h *ImportHandler) Workbook(c *gin.Context) {
	actor, ok := authorityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	result, err := h.importer.ImportWorkbook(c.Request.Context(), actor, src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
