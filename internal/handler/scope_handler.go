package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hayat-interiors/appraisal-api/internal/service"
	appErrors "github.com/hayat-interiors/appraisal-api/pkg/errors"
	"github.com/hayat-interiors/appraisal-api/pkg/response"
)

// ScopeHandler exposes the manager authority-scope administration endpoints.
type ScopeHandler struct {
	scopes *service.ScopeService
}

// NewScopeHandler constructs the handler.
func NewScopeHandler(scopes *service.ScopeService) *ScopeHandler {
	return &ScopeHandler{scopes: scopes}
}

// List godoc
// @Summary List all manager scopes
// @Tags Scopes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /scopes [get]
func (h *ScopeHandler) List(c *gin.Context) {
	scopes, err := h.scopes.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scopes, nil)
}

// GetForManager godoc
// @Summary Get the scope granted to one manager
// @Tags Scopes
// @Produce json
// @Param id path int true "Manager employee ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scopes/manager/{id} [get]
func (h *ScopeHandler) GetForManager(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	scope, err := h.scopes.GetForManager(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scope, nil)
}

// Upsert godoc
// @Summary Grant or update a manager scope
// @Tags Scopes
// @Accept json
// @Produce json
// @Param payload body service.UpsertScopeRequest true "Scope payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /scopes [put]
func (h *ScopeHandler) Upsert(c *gin.Context) {
	actor, ok := authorityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpsertScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scope payload"))
		return
	}
	scope, err := h.scopes.Upsert(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scope, nil)
}

// Bulk godoc
// @Summary Grant ReportingManager scopes for a list of emp codes
// @Tags Scopes
// @Accept json
// @Produce json
// @Param payload body service.BulkGrantRequest true "Emp codes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /scopes/bulk [post]
func (h *ScopeHandler) Bulk(c *gin.Context) {
	actor, ok := authorityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.BulkGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk grant payload"))
		return
	}
	result, err := h.scopes.BulkGrant(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Revoke a manager scope
// @Tags Scopes
// @Produce json
// @Param id path int true "Scope ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scopes/{id} [delete]
func (h *ScopeHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.scopes.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
