package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tothemoon-studio/vocal-api/internal/models"
	"github.com/tothemoon-studio/vocal-api/internal/service"
	appErrors "github.com/tothemoon-studio/vocal-api/pkg/errors"
	"github.com/tothemoon-studio/vocal-api/pkg/response"
)

// LessonHandler wires HTTP endpoints to the lesson service.
type LessonHandler struct {
	service *service.LessonService
}

// NewLessonHandler creates a new handler.
func NewLessonHandler(svc *service.LessonService) *LessonHandler {
	return &LessonHandler{service: svc}
}

// Create godoc
// @Summary Schedule a lesson
// @Description Teacher schedules a lesson with one of their active students
// @Tags Lessons
// @Accept json
// @Produce json
// @Param payload body models.CreateLessonRequest true "Lesson payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons [post]
func (h *LessonHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lesson payload"))
		return
	}

	lesson, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, lesson)
}

// List godoc
// @Summary List lessons
// @Description Lessons scoped to the caller; admins see all. Supports status and timeframe filters.
// @Tags Lessons
// @Produce json
// @Param status query string false "Filter by status" Enums(scheduled, completed, cancelled)
// @Param timeframe query string false "Filter by timeframe" Enums(upcoming, past)
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons [get]
func (h *LessonHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	filter := models.LessonFilter{
		Timeframe: c.Query("timeframe"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.LessonStatus(raw)
		filter.Status = &status
	}

	lessons, pagination, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, lessons, pagination)
}

// Get godoc
// @Summary Get a lesson
// @Tags Lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id} [get]
func (h *LessonHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	lesson, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Update godoc
// @Summary Update a lesson
// @Description Partial update; admins may also reassign the teacher or student
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body models.UpdateLessonRequest true "Lesson changes"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id} [put]
func (h *LessonHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.UpdateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lesson payload"))
		return
	}

	lesson, err := h.service.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Cancel godoc
// @Summary Cancel a scheduled lesson
// @Tags Lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/cancel [post]
func (h *LessonHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	lesson, err := h.service.Cancel(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Restore godoc
// @Summary Restore a cancelled lesson
// @Tags Lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/restore [post]
func (h *LessonHandler) Restore(c *gin.Context) {
	claims := claimsFromContext(c)
	lesson, err := h.service.Restore(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Complete godoc
// @Summary Mark a lesson as completed
// @Tags Lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/complete [post]
func (h *LessonHandler) Complete(c *gin.Context) {
	claims := claimsFromContext(c)
	lesson, err := h.service.Complete(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// PendingFeedbackCount godoc
// @Summary Count lessons awaiting feedback
// @Tags Lessons
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/pending-feedback [get]
func (h *LessonHandler) PendingFeedbackCount(c *gin.Context) {
	claims := claimsFromContext(c)
	count, err := h.service.PendingFeedbackCount(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"count": count}, nil)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
