package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tothemoon-studio/vocal-api/internal/models"
	"github.com/tothemoon-studio/vocal-api/internal/service"
	appErrors "github.com/tothemoon-studio/vocal-api/pkg/errors"
	"github.com/tothemoon-studio/vocal-api/pkg/response"
)

// AnnouncementHandler wires HTTP endpoints to the announcement service.
type AnnouncementHandler struct {
	service *service.AnnouncementService
}

// NewAnnouncementHandler creates a new handler.
func NewAnnouncementHandler(svc *service.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{service: svc}
}

// Create godoc
// @Summary Post an announcement
// @Description Broadcasts to all active students of the calling teacher
// @Tags Announcements
// @Accept json
// @Produce json
// @Param payload body models.CreateAnnouncementRequest true "Announcement payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements [post]
func (h *AnnouncementHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid announcement payload"))
		return
	}

	announcement, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, announcement)
}

// List godoc
// @Summary List own announcements
// @Description Teacher view with read statistics
// @Tags Announcements
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements [get]
func (h *AnnouncementHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	items, err := h.service.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Announcement detail with read breakdown
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements/{id} [get]
func (h *AnnouncementHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	detail, err := h.service.Get(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Update godoc
// @Summary Edit an announcement
// @Tags Announcements
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body models.UpdateAnnouncementRequest true "Announcement changes"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements/{id} [put]
func (h *AnnouncementHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.UpdateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid announcement payload"))
		return
	}

	announcement, err := h.service.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcement, nil)
}

// Delete godoc
// @Summary Delete an announcement
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements/{id} [delete]
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.service.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListForStudent godoc
// @Summary List announcements for the calling student
// @Description Active announcements of the student's teacher, flagged with read state
// @Tags Announcements
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements/student [get]
func (h *AnnouncementHandler) ListForStudent(c *gin.Context) {
	claims := claimsFromContext(c)
	items, err := h.service.ListForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// UnreadCount godoc
// @Summary Count unread announcements
// @Tags Announcements
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements/student/unread-count [get]
func (h *AnnouncementHandler) UnreadCount(c *gin.Context) {
	claims := claimsFromContext(c)
	count, err := h.service.UnreadCount(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"count": count}, nil)
}

// MarkRead godoc
// @Summary Mark an announcement as read
// @Description Idempotent; repeated calls keep the first read timestamp
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /announcements/{id}/read [post]
func (h *AnnouncementHandler) MarkRead(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.service.MarkRead(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
