package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tothemoon-studio/vocal-api/internal/models"
	appErrors "github.com/tothemoon-studio/vocal-api/pkg/errors"
	"github.com/tothemoon-studio/vocal-api/pkg/export"
)

type adminRepository interface {
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
	CountActiveStudents(ctx context.Context) (int, error)
	CountUnassignedStudents(ctx context.Context) (int, error)
	CountLessons(ctx context.Context) (int, error)
	CountUpcomingLessons(ctx context.Context) (int, error)
	TeacherLessonStats(ctx context.Context) ([]models.TeacherLessonStats, error)
}

type adminUserRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

const adminStatsCacheKey = "admin_stats"

// AdminService provides the cross-cutting reporting views reserved for
// administrators.
type AdminService struct {
	repo     adminRepository
	users    adminUserRepository
	cache    statsCache
	cacheTTL time.Duration
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewAdminService constructs an AdminService instance.
func NewAdminService(repo adminRepository, users adminUserRepository, cache statsCache, cacheTTL time.Duration, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		repo:     repo,
		users:    users,
		cache:    cache,
		cacheTTL: cacheTTL,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// Stats aggregates the dashboard counters. The result is cached briefly since
// every counter is a full-table aggregate.
func (s *AdminService) Stats(ctx context.Context) (*models.AdminStats, error) {
	if s.cache != nil {
		var cached models.AdminStats
		if err := s.cache.Get(ctx, adminStatsCacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("admin stats cache read failed", zap.Error(err))
		}
	}

	stats := &models.AdminStats{GeneratedAt: time.Now().UTC()}
	var err error
	if stats.TotalTeachers, err = s.repo.CountByRole(ctx, models.RoleTeacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teachers")
	}
	if stats.TotalStudents, err = s.repo.CountByRole(ctx, models.RoleStudent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	if stats.ActiveStudents, err = s.repo.CountActiveStudents(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active students")
	}
	if stats.UnassignedStudents, err = s.repo.CountUnassignedStudents(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unassigned students")
	}
	if stats.TotalLessons, err = s.repo.CountLessons(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count lessons")
	}
	if stats.UpcomingLessons, err = s.repo.CountUpcomingLessons(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count upcoming lessons")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, adminStatsCacheKey, stats, s.cacheTTL); err != nil {
			s.logger.Warn("admin stats cache write failed", zap.Error(err))
		}
	}

	return stats, nil
}

// TeacherLessonStats returns per-teacher lesson counts for the current month.
func (s *AdminService) TeacherLessonStats(ctx context.Context) ([]models.TeacherLessonStats, error) {
	stats, err := s.repo.TeacherLessonStats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher stats")
	}
	if stats == nil {
		stats = []models.TeacherLessonStats{}
	}
	return stats, nil
}

// ListUsers returns accounts filtered by role or search term.
func (s *AdminService) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// ExportTeacherLessonStats renders the monthly teacher report as CSV or PDF.
func (s *AdminService) ExportTeacherLessonStats(ctx context.Context, format string) ([]byte, string, error) {
	stats, err := s.TeacherLessonStats(ctx)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Teacher", "Completed", "Scheduled", "Total"},
		Rows:    make([]map[string]string, 0, len(stats)),
	}
	for _, row := range stats {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Teacher":   row.TeacherName,
			"Completed": strconv.Itoa(row.Completed),
			"Scheduled": strconv.Itoa(row.Scheduled),
			"Total":     strconv.Itoa(row.Total),
		})
	}

	switch format {
	case "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, "Monthly Teacher Lesson Report")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
