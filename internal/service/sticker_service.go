package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tothemoon-studio/vocal-api/internal/models"
	appErrors "github.com/tothemoon-studio/vocal-api/pkg/errors"
)

type stickerRepository interface {
	Create(ctx context.Context, sticker *models.Sticker) error
	FindByID(ctx context.Context, id string) (*models.Sticker, error)
	Update(ctx context.Context, sticker *models.Sticker) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.StickerFilter) ([]models.Sticker, error)
	CountsByLevel(ctx context.Context, studentID string) (map[models.StickerLevel]int, error)
	LatestByStudent(ctx context.Context, studentID string) (*models.Sticker, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// StickerService manages the gamification reward system: the fixed tier
// table, issuance and the per-student stats aggregation.
type StickerService struct {
	repo      stickerRepository
	students  assignmentChecker
	cache     statsCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStickerService constructs a StickerService instance.
func NewStickerService(repo stickerRepository, students assignmentChecker, cache statsCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *StickerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StickerService{repo: repo, students: students, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Levels returns the fixed reward table in display order.
func (s *StickerService) Levels() []models.StickerMeta {
	return models.StickerLevelList()
}

// Create issues a sticker from the calling teacher to one of their active
// students.
func (s *StickerService) Create(ctx context.Context, teacherID string, req models.CreateStickerRequest) (*models.StickerWithMeta, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sticker payload")
	}
	if !models.ValidStickerLevel(req.Level) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown sticker level %q", req.Level))
	}

	if _, err := s.students.FindActiveByUserAndTeacher(ctx, req.StudentID, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "student is not assigned to this teacher")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
	}

	sticker := &models.Sticker{
		TeacherID: teacherID,
		StudentID: req.StudentID,
		Level:     req.Level,
		Comment:   req.Comment,
		LessonID:  req.LessonID,
	}
	if err := s.repo.Create(ctx, sticker); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create sticker")
	}

	s.invalidateStats(ctx, sticker.StudentID)

	return withMeta(sticker), nil
}

// Update edits the level or comment of a sticker the calling teacher issued.
func (s *StickerService) Update(ctx context.Context, teacherID, id string, req models.UpdateStickerRequest) (*models.StickerWithMeta, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sticker payload")
	}

	sticker, err := s.findIssued(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}

	if req.Level != nil {
		if !models.ValidStickerLevel(*req.Level) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown sticker level %q", *req.Level))
		}
		sticker.Level = *req.Level
	}
	if req.Comment != nil {
		sticker.Comment = req.Comment
	}

	if err := s.repo.Update(ctx, sticker); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update sticker")
	}

	s.invalidateStats(ctx, sticker.StudentID)

	return withMeta(sticker), nil
}

// Delete removes a sticker the calling teacher issued.
func (s *StickerService) Delete(ctx context.Context, teacherID, id string) error {
	sticker, err := s.findIssued(ctx, teacherID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete sticker")
	}
	s.invalidateStats(ctx, sticker.StudentID)
	return nil
}

// List returns stickers scoped to the caller, decorated with tier metadata.
func (s *StickerService) List(ctx context.Context, actor *models.JWTClaims, filter models.StickerFilter) ([]models.StickerWithMeta, error) {
	if !actor.IsAdmin {
		switch actor.Role {
		case models.RoleTeacher:
			filter.TeacherID = actor.UserID
		case models.RoleStudent:
			filter.StudentID = actor.UserID
		}
	}

	stickers, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stickers")
	}

	result := make([]models.StickerWithMeta, 0, len(stickers))
	for i := range stickers {
		result = append(result, *withMeta(&stickers[i]))
	}
	return result, nil
}

// Stats aggregates a student's sticker history. Every reward tier appears in
// the breakdown, zero-count tiers included.
func (s *StickerService) Stats(ctx context.Context, actor *models.JWTClaims, studentID string) (*models.StickerStats, error) {
	if actor.Role == models.RoleStudent && actor.UserID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "stats belong to another student")
	}

	cacheKey := stickerStatsKey(studentID)
	if s.cache != nil {
		var cached models.StickerStats
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("sticker stats cache read failed", zap.Error(err))
		}
	}

	counts, err := s.repo.CountsByLevel(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate stickers")
	}

	stats := &models.StickerStats{
		TotalPoints: models.CalcTotalPoints(counts),
		LevelCounts: make([]models.StickerLevelCount, 0, len(models.StickerLevels)),
	}
	for _, meta := range models.StickerLevelList() {
		count := counts[meta.Level]
		stats.TotalCount += count
		stats.LevelCounts = append(stats.LevelCounts, models.StickerLevelCount{StickerMeta: meta, Count: count})
	}

	latest, err := s.repo.LatestByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest sticker")
	}
	if latest != nil {
		stats.LatestSticker = withMeta(latest)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, stats, s.cacheTTL); err != nil {
			s.logger.Warn("sticker stats cache write failed", zap.Error(err))
		}
	}

	return stats, nil
}

func (s *StickerService) findIssued(ctx context.Context, teacherID, id string) (*models.Sticker, error) {
	sticker, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "sticker not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sticker")
	}
	if sticker.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "sticker was issued by another teacher")
	}
	return sticker, nil
}

func (s *StickerService) invalidateStats(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, stickerStatsKey(studentID)); err != nil {
		s.logger.Warn("sticker stats cache invalidation failed", zap.Error(err))
	}
}

func stickerStatsKey(studentID string) string {
	return "sticker_stats:" + studentID
}

func withMeta(sticker *models.Sticker) *models.StickerWithMeta {
	return &models.StickerWithMeta{
		Sticker: *sticker,
		Meta:    models.StickerLevels[sticker.Level],
	}
}
