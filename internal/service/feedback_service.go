package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tothemoon-studio/vocal-api/internal/models"
	appErrors "github.com/tothemoon-studio/vocal-api/pkg/errors"
)

type feedbackRepository interface {
	Create(ctx context.Context, fb *models.Feedback) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Feedback, error)
	FindByLessonID(ctx context.Context, lessonID string) (*models.Feedback, error)
	Update(ctx context.Context, fb *models.Feedback) error
	SetReaction(ctx context.Context, id, reaction string, message *string, reactedAt time.Time) error
	MarkReactionViewed(ctx context.Context, id string, viewedAt time.Time) error
	UnviewedReactionCount(ctx context.Context, teacherID string) (int, error)
	List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, int, error)
}

type feedbackLessonRepository interface {
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
}

// FeedbackService provides lesson feedback use cases for both sides: the
// teacher writes and edits, the student reacts.
type FeedbackService struct {
	repo      feedbackRepository
	lessons   feedbackLessonRepository
	notifier  notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeedbackService constructs a FeedbackService instance.
func NewFeedbackService(repo feedbackRepository, lessons feedbackLessonRepository, notifier notifier, validate *validator.Validate, logger *zap.Logger) *FeedbackService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &FeedbackService{repo: repo, lessons: lessons, notifier: notifier, validator: validate, logger: logger}
}

// Create writes the teacher's feedback for a lesson. A lesson takes feedback
// once it is completed or its scheduled time has passed, and holds at most
// one record.
func (s *FeedbackService) Create(ctx context.Context, teacherID string, req models.CreateFeedbackRequest) (*models.Feedback, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}

	lesson, err := s.lessons.FindByID(ctx, req.LessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if lesson.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lesson belongs to another teacher")
	}
	if !feedbackEligible(lesson) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lesson is not eligible for feedback yet")
	}

	fb := &models.Feedback{
		LessonID:      lesson.ID,
		TeacherID:     lesson.TeacherID,
		StudentID:     lesson.StudentID,
		Rating:        req.Rating,
		Content:       req.Content,
		Strengths:     req.Strengths,
		Improvements:  req.Improvements,
		Homework:      req.Homework,
		ReferenceURLs: req.ReferenceURLs,
	}
	inserted, err := s.repo.Create(ctx, fb)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create feedback")
	}
	if !inserted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "feedback already exists for this lesson")
	}

	s.notify(ctx, fb.StudentID, models.NotificationFeedbackReceived, "새 피드백이 도착했습니다",
		"선생님이 레슨 피드백을 남겼습니다.", &fb.LessonID)

	return fb, nil
}

// Get returns a feedback record visible to the caller.
func (s *FeedbackService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Feedback, error) {
	fb, err := s.findFeedback(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, fb); err != nil {
		return nil, err
	}
	return fb, nil
}

// GetByLesson returns the lesson's single feedback record.
func (s *FeedbackService) GetByLesson(ctx context.Context, actor *models.JWTClaims, lessonID string) (*models.Feedback, error) {
	fb, err := s.repo.FindByLessonID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "feedback not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feedback")
	}
	if err := s.authorize(actor, fb); err != nil {
		return nil, err
	}
	return fb, nil
}

// Update applies the teacher's edits to their own feedback.
func (s *FeedbackService) Update(ctx context.Context, teacherID, id string, req models.UpdateFeedbackRequest) (*models.Feedback, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}

	fb, err := s.findFeedback(ctx, id)
	if err != nil {
		return nil, err
	}
	if fb.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "feedback belongs to another teacher")
	}

	if req.Rating != nil {
		fb.Rating = *req.Rating
	}
	if req.Content != nil {
		fb.Content = *req.Content
	}
	if req.Strengths != nil {
		fb.Strengths = req.Strengths
	}
	if req.Improvements != nil {
		fb.Improvements = req.Improvements
	}
	if req.Homework != nil {
		fb.Homework = req.Homework
	}
	if req.ReferenceURLs != nil {
		fb.ReferenceURLs = req.ReferenceURLs
	}

	if err := s.repo.Update(ctx, fb); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update feedback")
	}
	return fb, nil
}

// React records the student's reaction on their own feedback. A new reaction
// replaces the previous one and resets the teacher's viewed marker.
func (s *FeedbackService) React(ctx context.Context, studentID, id string, req models.ReactionRequest) (*models.Feedback, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reaction payload")
	}

	fb, err := s.findFeedback(ctx, id)
	if err != nil {
		return nil, err
	}
	if fb.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "feedback belongs to another student")
	}

	reactedAt := time.Now().UTC()
	if err := s.repo.SetReaction(ctx, id, req.Reaction, req.Message, reactedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save reaction")
	}

	fb.StudentReaction = &req.Reaction
	fb.StudentMessage = req.Message
	fb.StudentReactedAt = &reactedAt
	fb.TeacherViewedReactionAt = nil
	return fb, nil
}

// MarkReactionViewed stamps the teacher's viewed marker. Repeated calls keep
// the original timestamp.
func (s *FeedbackService) MarkReactionViewed(ctx context.Context, teacherID, id string) error {
	fb, err := s.findFeedback(ctx, id)
	if err != nil {
		return err
	}
	if fb.TeacherID != teacherID {
		return appErrors.Clone(appErrors.ErrForbidden, "feedback belongs to another teacher")
	}
	if fb.StudentReaction == nil {
		return appErrors.Clone(appErrors.ErrValidation, "feedback has no reaction to view")
	}

	if err := s.repo.MarkReactionViewed(ctx, id, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark reaction viewed")
	}
	return nil
}

// UnviewedReactionCount counts reactions the teacher has not seen yet.
func (s *FeedbackService) UnviewedReactionCount(ctx context.Context, teacherID string) (int, error) {
	count, err := s.repo.UnviewedReactionCount(ctx, teacherID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count reactions")
	}
	return count, nil
}

// List returns feedback scoped to the caller.
func (s *FeedbackService) List(ctx context.Context, actor *models.JWTClaims, filter models.FeedbackFilter) ([]models.Feedback, *models.Pagination, error) {
	if !actor.IsAdmin {
		switch actor.Role {
		case models.RoleTeacher:
			filter.TeacherID = actor.UserID
		case models.RoleStudent:
			filter.StudentID = actor.UserID
		}
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback")
	}
	if items == nil {
		items = []models.Feedback{}
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

func (s *FeedbackService) findFeedback(ctx context.Context, id string) (*models.Feedback, error) {
	fb, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "feedback not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feedback")
	}
	return fb, nil
}

func (s *FeedbackService) authorize(actor *models.JWTClaims, fb *models.Feedback) error {
	if actor.IsAdmin || fb.TeacherID == actor.UserID || fb.StudentID == actor.UserID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "feedback belongs to another user")
}

func (s *FeedbackService) notify(ctx context.Context, userID string, kind models.NotificationType, title, message string, lessonID *string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, kind, title, message, lessonID); err != nil {
		s.logger.Warn("failed to deliver notification",
			zap.String("type", string(kind)),
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

// feedbackEligible reports whether the lesson can take feedback: completed,
// or scheduled with its start time already past.
func feedbackEligible(lesson *models.Lesson) bool {
	if lesson.Status == models.LessonCompleted {
		return true
	}
	return lesson.Status == models.LessonScheduled && lesson.ScheduledAt.Before(time.Now())
}
