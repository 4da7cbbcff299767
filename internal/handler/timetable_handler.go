package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-portal-api/internal/models"
	"github.com/noah-isme/attendance-portal-api/internal/service"
	appErrors "github.com/noah-isme/attendance-portal-api/pkg/errors"
	"github.com/noah-isme/attendance-portal-api/pkg/response"
)

// TimetableHandler exposes timetable management endpoints.
type TimetableHandler struct {
	service *service.TimetableService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Create godoc
// @Summary Create a timetable period
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body service.CreatePeriodRequest true "Period payload"
// @Success 201 {object} response.Envelope
// @Router /timetable [post]
func (h *TimetableHandler) Create(c *gin.Context) {
	var req service.CreatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	period, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// List godoc
// @Summary List timetable periods
// @Tags Timetable
// @Produce json
// @Param class query string false "Class filter"
// @Param semester query string false "Semester filter"
// @Param subject query string false "Subject filter"
// @Param day query string false "Day of week filter"
// @Success 200 {object} response.Envelope
// @Router /timetable [get]
func (h *TimetableHandler) List(c *gin.Context) {
	filter := models.TimetableFilter{
		Class:     c.Query("class"),
		Semester:  c.Query("semester"),
		Subject:   c.Query("subject"),
		TeacherID: c.Query("teacher_id"),
		DayOfWeek: c.Query("day"),
	}
	periods, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}

// Get godoc
// @Summary Get one timetable period
// @Tags Timetable
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	period, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Delete godoc
// @Summary Delete a timetable period
// @Tags Timetable
// @Produce json
// @Param id path string true "Period ID"
// @Success 204
// @Router /timetable/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MyPeriods godoc
// @Summary The authenticated teacher's periods
// @Tags Timetable
// @Produce json
// @Param semester query string false "Semester filter"
// @Success 200 {object} response.Envelope
// @Router /timetable/me [get]
func (h *TimetableHandler) MyPeriods(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.TimetableFilter{TeacherID: claims.UserID, Semester: c.Query("semester")}
	periods, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}

// ClassSubjects godoc
// @Summary Distinct class/subject pairs taught by the teacher
// @Tags Timetable
// @Produce json
// @Param semester query string true "Semester"
// @Success 200 {object} response.Envelope
// @Router /timetable/me/subjects [get]
func (h *TimetableHandler) ClassSubjects(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	pairs, err := h.service.ClassSubjects(c.Request.Context(), claims.UserID, c.Query("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pairs, nil)
}

// UpcomingClasses godoc
// @Summary The teacher's classes over the next seven days
// @Tags Timetable
// @Produce json
// @Param semester query string false "Semester filter"
// @Success 200 {object} response.Envelope
// @Router /timetable/me/upcoming [get]
func (h *TimetableHandler) UpcomingClasses(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	upcoming, err := h.service.UpcomingClasses(c.Request.Context(), claims.UserID, c.Query("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, upcoming, nil)
}
