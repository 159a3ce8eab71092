package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tothemoon-studio/vocal-api/internal/models"
	"github.com/tothemoon-studio/vocal-api/internal/service"
	"github.com/tothemoon-studio/vocal-api/pkg/response"
)

// AdminHandler wires the admin reporting endpoints.
type AdminHandler struct {
	service        *service.AdminService
	exportsEnabled bool
}

// NewAdminHandler creates a new handler.
func NewAdminHandler(svc *service.AdminService, exportsEnabled bool) *AdminHandler {
	return &AdminHandler{service: svc, exportsEnabled: exportsEnabled}
}

// Stats godoc
// @Summary Dashboard statistics
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// TeacherLessonStats godoc
// @Summary Per-teacher lesson counts for the current month
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/teacher-stats [get]
func (h *AdminHandler) TeacherLessonStats(c *gin.Context) {
	stats, err := h.service.TeacherLessonStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// ListUsers godoc
// @Summary List user accounts
// @Tags Admin
// @Produce json
// @Param role query string false "Filter by role" Enums(teacher, student)
// @Param search query string false "Search name or phone"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	filter := models.UserFilter{
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	if raw := c.Query("role"); raw != "" {
		role := models.UserRole(raw)
		filter.Role = &role
	}

	users, pagination, err := h.service.ListUsers(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// ExportTeacherLessonStats godoc
// @Summary Export the monthly teacher report
// @Tags Admin
// @Produce octet-stream
// @Param format query string true "Export format" Enums(csv, pdf)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/teacher-stats/export [get]
func (h *AdminHandler) ExportTeacherLessonStats(c *gin.Context) {
	if !h.exportsEnabled {
		c.Status(http.StatusNotFound)
		return
	}

	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.service.ExportTeacherLessonStats(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("teacher-lesson-stats-%s.%s", time.Now().UTC().Format("2006-01"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
