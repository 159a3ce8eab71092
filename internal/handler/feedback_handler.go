package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tothemoon-studio/vocal-api/internal/models"
	"github.com/tothemoon-studio/vocal-api/internal/service"
	appErrors "github.com/tothemoon-studio/vocal-api/pkg/errors"
	"github.com/tothemoon-studio/vocal-api/pkg/response"
)

// FeedbackHandler wires HTTP endpoints to the feedback service.
type FeedbackHandler struct {
	service *service.FeedbackService
}

// NewFeedbackHandler creates a new handler.
func NewFeedbackHandler(svc *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: svc}
}

// Create godoc
// @Summary Write lesson feedback
// @Description Teacher writes feedback for a completed or past lesson. One record per lesson.
// @Tags Feedback
// @Accept json
// @Produce json
// @Param payload body models.CreateFeedbackRequest true "Feedback payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /feedback [post]
func (h *FeedbackHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.CreateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feedback payload"))
		return
	}

	fb, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, fb)
}

// List godoc
// @Summary List feedback
// @Description Feedback scoped to the caller; admins see all
// @Tags Feedback
// @Produce json
// @Param lesson_id query string false "Filter by lesson"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /feedback [get]
func (h *FeedbackHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	filter := models.FeedbackFilter{
		LessonID: c.Query("lesson_id"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}

	items, pagination, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a feedback record
// @Tags Feedback
// @Produce json
// @Param id path string true "Feedback ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /feedback/{id} [get]
func (h *FeedbackHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	fb, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fb, nil)
}

// GetByLesson godoc
// @Summary Get the feedback of a lesson
// @Tags Feedback
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/feedback [get]
func (h *FeedbackHandler) GetByLesson(c *gin.Context) {
	claims := claimsFromContext(c)
	fb, err := h.service.GetByLesson(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fb, nil)
}

// Update godoc
// @Summary Edit feedback
// @Tags Feedback
// @Accept json
// @Produce json
// @Param id path string true "Feedback ID"
// @Param payload body models.UpdateFeedbackRequest true "Feedback changes"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /feedback/{id} [put]
func (h *FeedbackHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.UpdateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feedback payload"))
		return
	}

	fb, err := h.service.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fb, nil)
}

// React godoc
// @Summary React to feedback
// @Description Student leaves an emoji reaction with an optional message of up to 100 characters
// @Tags Feedback
// @Accept json
// @Produce json
// @Param id path string true "Feedback ID"
// @Param payload body models.ReactionRequest true "Reaction payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /feedback/{id}/reaction [post]
func (h *FeedbackHandler) React(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reaction payload"))
		return
	}

	fb, err := h.service.React(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fb, nil)
}

// MarkReactionViewed godoc
// @Summary Mark a reaction as viewed
// @Tags Feedback
// @Produce json
// @Param id path string true "Feedback ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /feedback/{id}/reaction/viewed [post]
func (h *FeedbackHandler) MarkReactionViewed(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.service.MarkReactionViewed(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UnviewedReactionCount godoc
// @Summary Count unviewed reactions
// @Tags Feedback
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /feedback/reactions/unviewed [get]
func (h *FeedbackHandler) UnviewedReactionCount(c *gin.Context) {
	claims := claimsFromContext(c)
	count, err := h.service.UnviewedReactionCount(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"count": count}, nil)
}
