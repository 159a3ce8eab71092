package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tothemoon-studio/vocal-api/internal/models"
	"github.com/tothemoon-studio/vocal-api/internal/service"
	appErrors "github.com/tothemoon-studio/vocal-api/pkg/errors"
	"github.com/tothemoon-studio/vocal-api/pkg/response"
)

// StickerHandler wires HTTP endpoints to the sticker service.
type StickerHandler struct {
	service *service.StickerService
}

// NewStickerHandler creates a new handler.
func NewStickerHandler(svc *service.StickerService) *StickerHandler {
	return &StickerHandler{service: svc}
}

// Levels godoc
// @Summary List reward tiers
// @Description The fixed sticker reward table, public and stable
// @Tags Stickers
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /stickers/levels [get]
func (h *StickerHandler) Levels(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Levels(), nil)
}

// Create godoc
// @Summary Issue a sticker
// @Description Teacher issues a sticker to one of their active students
// @Tags Stickers
// @Accept json
// @Produce json
// @Param payload body models.CreateStickerRequest true "Sticker payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /stickers [post]
func (h *StickerHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.CreateStickerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sticker payload"))
		return
	}

	sticker, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sticker)
}

// List godoc
// @Summary List stickers
// @Description Stickers scoped to the caller; admins see all
// @Tags Stickers
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param lesson_id query string false "Filter by lesson"
// @Param limit query int false "Max rows"
// @Param offset query int false "Row offset"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /stickers [get]
func (h *StickerHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	filter := models.StickerFilter{
		StudentID: c.Query("student_id"),
		LessonID:  c.Query("lesson_id"),
		Limit:     queryInt(c, "limit", 50),
		Offset:    queryInt(c, "offset", 0),
	}

	stickers, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stickers, nil)
}

// Update godoc
// @Summary Edit an issued sticker
// @Tags Stickers
// @Accept json
// @Produce json
// @Param id path string true "Sticker ID"
// @Param payload body models.UpdateStickerRequest true "Sticker changes"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /stickers/{id} [put]
func (h *StickerHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.UpdateStickerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sticker payload"))
		return
	}

	sticker, err := h.service.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sticker, nil)
}

// Delete godoc
// @Summary Delete an issued sticker
// @Tags Stickers
// @Produce json
// @Param id path string true "Sticker ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /stickers/{id} [delete]
func (h *StickerHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.service.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats godoc
// @Summary Sticker statistics for a student
// @Description Totals, per-tier breakdown including zero-count tiers, and the latest sticker
// @Tags Stickers
// @Produce json
// @Param studentId path string true "Student user ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /stickers/stats/{studentId} [get]
func (h *StickerHandler) Stats(c *gin.Context) {
	claims := claimsFromContext(c)
	stats, err := h.service.Stats(c.Request.Context(), claims, c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
