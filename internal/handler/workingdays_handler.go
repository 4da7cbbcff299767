package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-portal-api/internal/service"
	appErrors "github.com/noah-isme/attendance-portal-api/pkg/errors"
	"github.com/noah-isme/attendance-portal-api/pkg/response"
)

// WorkingDaysHandler exposes semester working-day configuration endpoints.
type WorkingDaysHandler struct {
	service *service.WorkingDaysService
}

// NewWorkingDaysHandler constructs the handler.
func NewWorkingDaysHandler(svc *service.WorkingDaysService) *WorkingDaysHandler {
	return &WorkingDaysHandler{service: svc}
}

// Set godoc
// @Summary Configure working days for a semester
// @Tags WorkingDays
// @Accept json
// @Produce json
// @Param payload body service.SetWorkingDaysRequest true "Configuration payload"
// @Success 201 {object} response.Envelope
// @Router /working-days [post]
func (h *WorkingDaysHandler) Set(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SetWorkingDaysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	cfg, err := h.service.Set(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cfg)
}

// Get godoc
// @Summary Working-day configuration for a semester
// @Tags WorkingDays
// @Produce json
// @Param semester path string true "Semester"
// @Success 200 {object} response.Envelope
// @Router /working-days/{semester} [get]
func (h *WorkingDaysHandler) Get(c *gin.Context) {
	cfg, err := h.service.Get(c.Request.Context(), c.Param("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// List godoc
// @Summary All configured semesters
// @Tags WorkingDays
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /working-days [get]
func (h *WorkingDaysHandler) List(c *gin.Context) {
	configs, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, configs, nil)
}

// UpdateSessions godoc
// @Summary Override the derived session total
// @Tags WorkingDays
// @Accept json
// @Produce json
// @Param semester path string true "Semester"
// @Param payload body service.UpdateSessionsRequest true "Session total"
// @Success 200 {object} response.Envelope
// @Router /working-days/{semester}/sessions [put]
func (h *WorkingDaysHandler) UpdateSessions(c *gin.Context) {
	var req service.UpdateSessionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	cfg, err := h.service.UpdateSessions(c.Request.Context(), c.Param("semester"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}
