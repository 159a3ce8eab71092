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

type lessonRepository interface {
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	Update(ctx context.Context, lesson *models.Lesson) error
	UpdateStatus(ctx context.Context, id string, from, to models.LessonStatus) (bool, error)
	List(ctx context.Context, filter models.LessonFilter) ([]models.LessonDetail, int, error)
	PendingFeedbackCount(ctx context.Context, teacherID string) (int, error)
}

type assignmentChecker interface {
	FindActiveByUserAndTeacher(ctx context.Context, userID, teacherID string) (*models.StudentProfile, error)
}

type notifier interface {
	Notify(ctx context.Context, userID string, kind models.NotificationType, title, message string, relatedLessonID *string) error
}

// LessonService provides lesson scheduling and lifecycle use cases.
type LessonService struct {
	repo      lessonRepository
	students  assignmentChecker
	notifier  notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService constructs a LessonService instance.
func NewLessonService(repo lessonRepository, students assignmentChecker, notifier notifier, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LessonService{repo: repo, students: students, notifier: notifier, validator: validate, logger: logger}
}

// Create schedules a lesson between the calling teacher and one of their
// active students.
func (s *LessonService) Create(ctx context.Context, teacherID string, req models.CreateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	if err := s.requireAssignment(ctx, req.StudentID, teacherID); err != nil {
		return nil, err
	}

	lesson := &models.Lesson{
		TeacherID:   teacherID,
		StudentID:   req.StudentID,
		Title:       req.Title,
		ScheduledAt: req.ScheduledAt,
		Duration:    req.Duration,
		Status:      models.LessonScheduled,
		Location:    req.Location,
		Notes:       req.Notes,
	}
	if err := s.repo.Create(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}

	s.notify(ctx, lesson.StudentID, models.NotificationLessonCreated, "새 레슨이 등록되었습니다",
		fmt.Sprintf("%s에 레슨이 예약되었습니다.", lesson.ScheduledAt.Format("2006-01-02 15:04")), &lesson.ID)

	return lesson, nil
}

// Get returns a lesson visible to the caller: the teacher, the student, or an
// admin.
func (s *LessonService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Lesson, error) {
	lesson, err := s.findLesson(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && lesson.TeacherID != actor.UserID && lesson.StudentID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lesson belongs to another user")
	}
	return lesson, nil
}

// Update applies partial changes to a lesson owned by the calling teacher.
// Admins may edit any lesson and reassign its teacher or student. The student
// is notified when the schedule changes.
func (s *LessonService) Update(ctx context.Context, actor *models.JWTClaims, id string, req models.UpdateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	var lesson *models.Lesson
	var err error
	if actor.IsAdmin {
		lesson, err = s.findLesson(ctx, id)
	} else {
		lesson, err = s.findOwnedLesson(ctx, actor.UserID, id)
	}
	if err != nil {
		return nil, err
	}
	if lesson.Status == models.LessonCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "completed lessons cannot be edited")
	}

	if req.TeacherID != nil || req.StudentID != nil {
		if !actor.IsAdmin {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may reassign lesson participants")
		}
		if req.TeacherID != nil {
			lesson.TeacherID = *req.TeacherID
		}
		if req.StudentID != nil {
			lesson.StudentID = *req.StudentID
		}
	}

	if req.Title != nil {
		lesson.Title = req.Title
	}
	scheduleChanged := req.ScheduledAt != nil || req.Duration != nil || req.Location != nil
	if req.ScheduledAt != nil {
		lesson.ScheduledAt = *req.ScheduledAt
	}
	if req.Duration != nil {
		lesson.Duration = *req.Duration
	}
	if req.Location != nil {
		lesson.Location = req.Location
	}
	if req.Notes != nil {
		lesson.Notes = req.Notes
	}

	if err := s.repo.Update(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}

	if scheduleChanged {
		s.notify(ctx, lesson.StudentID, models.NotificationLessonUpdated, "레슨 일정이 변경되었습니다",
			fmt.Sprintf("%s 레슨 정보가 변경되었습니다.", lesson.ScheduledAt.Format("2006-01-02 15:04")), &lesson.ID)
	}

	return lesson, nil
}

// Cancel moves a scheduled lesson to cancelled and notifies the student.
func (s *LessonService) Cancel(ctx context.Context, teacherID, id string) (*models.Lesson, error) {
	lesson, err := s.transition(ctx, teacherID, id, models.LessonCancelled)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, lesson.StudentID, models.NotificationLessonCancelled, "레슨이 취소되었습니다",
		fmt.Sprintf("%s 레슨이 취소되었습니다.", lesson.ScheduledAt.Format("2006-01-02 15:04")), &lesson.ID)
	return lesson, nil
}

// Restore moves a cancelled lesson back to scheduled.
func (s *LessonService) Restore(ctx context.Context, teacherID, id string) (*models.Lesson, error) {
	lesson, err := s.transition(ctx, teacherID, id, models.LessonScheduled)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, lesson.StudentID, models.NotificationLessonUpdated, "레슨이 복구되었습니다",
		fmt.Sprintf("%s 레슨이 다시 예약되었습니다.", lesson.ScheduledAt.Format("2006-01-02 15:04")), &lesson.ID)
	return lesson, nil
}

// Complete marks a lesson as completed. Completing an already-completed
// lesson is a no-op; a lesson cannot be completed before its scheduled time.
func (s *LessonService) Complete(ctx context.Context, teacherID, id string) (*models.Lesson, error) {
	lesson, err := s.findOwnedLesson(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	if lesson.Status == models.LessonCompleted {
		return lesson, nil
	}
	if lesson.ScheduledAt.After(time.Now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lesson cannot be completed before its scheduled time")
	}
	return s.applyTransition(ctx, lesson, models.LessonCompleted)
}

// List returns lessons scoped to the caller. Teachers and students only see
// their own; admins see everything.
func (s *LessonService) List(ctx context.Context, actor *models.JWTClaims, filter models.LessonFilter) ([]models.LessonDetail, *models.Pagination, error) {
	if !actor.IsAdmin {
		switch actor.Role {
		case models.RoleTeacher:
			filter.TeacherID = actor.UserID
		case models.RoleStudent:
			filter.StudentID = actor.UserID
		}
	}

	lessons, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	if lessons == nil {
		lessons = []models.LessonDetail{}
	}
	return lessons, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// PendingFeedbackCount counts the teacher's lessons still awaiting a
// write-up.
func (s *LessonService) PendingFeedbackCount(ctx context.Context, teacherID string) (int, error) {
	count, err := s.repo.PendingFeedbackCount(ctx, teacherID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending feedback")
	}
	return count, nil
}

func (s *LessonService) transition(ctx context.Context, teacherID, id string, to models.LessonStatus) (*models.Lesson, error) {
	lesson, err := s.findOwnedLesson(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	return s.applyTransition(ctx, lesson, to)
}

func (s *LessonService) applyTransition(ctx context.Context, lesson *models.Lesson, to models.LessonStatus) (*models.Lesson, error) {
	if !lesson.Status.CanTransitionTo(to) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot move lesson from %s to %s", lesson.Status, to))
	}

	ok, err := s.repo.UpdateStatus(ctx, lesson.ID, lesson.Status, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson status")
	}
	if !ok {
		// A concurrent request changed the status between read and write.
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "lesson status changed concurrently")
	}

	lesson.Status = to
	return lesson, nil
}

func (s *LessonService) findLesson(ctx context.Context, id string) (*models.Lesson, error) {
	lesson, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

func (s *LessonService) findOwnedLesson(ctx context.Context, teacherID, id string) (*models.Lesson, error) {
	lesson, err := s.findLesson(ctx, id)
	if err != nil {
		return nil, err
	}
	if lesson.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lesson belongs to another teacher")
	}
	return lesson, nil
}

func (s *LessonService) requireAssignment(ctx context.Context, studentID, teacherID string) error {
	if _, err := s.students.FindActiveByUserAndTeacher(ctx, studentID, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "student is not assigned to this teacher")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
	}
	return nil
}

func (s *LessonService) notify(ctx context.Context, userID string, kind models.NotificationType, title, message string, lessonID *string) {
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
