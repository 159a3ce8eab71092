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

type studentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentProfile, error)
	FindActiveByUserID(ctx context.Context, userID string) (*models.StudentProfile, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.StudentDetail, error)
	ListUnassigned(ctx context.Context) ([]models.UnassignedStudent, error)
	Create(ctx context.Context, profile *models.StudentProfile) error
	Update(ctx context.Context, profile *models.StudentProfile) error
	Deactivate(ctx context.Context, id string) error
}

type studentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// StudentService manages the teacher's roster: assignment, re-assignment,
// pre-registration and soft delete.
type StudentService struct {
	repo      studentRepository
	users     studentUserRepository
	notifier  notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService instance.
func NewStudentService(repo studentRepository, users studentUserRepository, notifier notifier, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{repo: repo, users: users, notifier: notifier, validator: validate, logger: logger}
}

// Assign links a student user to the calling teacher. A student already
// assigned elsewhere is moved; the student gets a teacher_changed
// notification in that case. History with the previous teacher is retained.
func (s *StudentService) Assign(ctx context.Context, teacherID string, req models.AssignStudentRequest) (*models.StudentProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if user.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is not a student")
	}

	existing, err := s.repo.FindActiveByUserID(ctx, req.UserID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
	}

	if existing != nil {
		if existing.TeacherID == teacherID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already assigned to this teacher")
		}
		existing.TeacherID = teacherID
		applyProfileFields(existing, req.VoiceType, req.Level, req.StartDate, req.Goals)
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reassign student")
		}
		s.notify(ctx, req.UserID, models.NotificationTeacherChanged, "담당 선생님이 변경되었습니다",
			"새로운 선생님에게 배정되었습니다.", nil)
		s.audit(ctx, teacherID, existing.ID)
		return existing, nil
	}

	profile := &models.StudentProfile{
		UserID:    req.UserID,
		TeacherID: teacherID,
		VoiceType: req.VoiceType,
		Level:     req.Level,
		StartDate: req.StartDate,
		Goals:     req.Goals,
		IsActive:  true,
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign student")
	}
	s.audit(ctx, teacherID, profile.ID)
	return profile, nil
}

// Reassign moves an active profile to another teacher on behalf of an admin.
// The student gets a teacher_changed notification.
func (s *StudentService) Reassign(ctx context.Context, profileID string, req models.ReassignStudentRequest) (*models.StudentProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reassignment payload")
	}

	profile, err := s.repo.FindByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	if !profile.IsActive {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
	}

	teacher, err := s.users.FindByID(ctx, req.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is not a teacher")
	}
	if profile.TeacherID == req.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already assigned to this teacher")
	}

	profile.TeacherID = req.TeacherID
	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reassign student")
	}
	s.notify(ctx, profile.UserID, models.NotificationTeacherChanged, "담당 선생님이 변경되었습니다",
		"새로운 선생님에게 배정되었습니다.", nil)
	s.audit(ctx, req.TeacherID, profile.ID)
	return profile, nil
}

// PreRegister creates a placeholder student account plus an active profile
// for the calling teacher. The real user later claims the account by signing
// up with the same phone number.
func (s *StudentService) PreRegister(ctx context.Context, teacherID string, req models.PreRegisterRequest) (*models.StudentProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid pre-registration payload")
	}

	if taken, err := s.users.ExistsByPhone(ctx, req.Phone); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check phone")
	} else if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "phone already registered")
	}
	if req.Email != nil {
		if taken, err := s.users.ExistsByEmail(ctx, *req.Email); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
		} else if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
	}

	user := &models.User{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
		Role:  models.RoleStudent,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create placeholder student")
	}

	profile := &models.StudentProfile{
		UserID:    user.ID,
		TeacherID: teacherID,
		VoiceType: req.VoiceType,
		Level:     req.Level,
		StartDate: req.StartDate,
		Goals:     req.Goals,
		IsActive:  true,
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create profile")
	}
	s.audit(ctx, teacherID, profile.ID)
	return profile, nil
}

// Update applies partial edits to a profile owned by the calling teacher.
func (s *StudentService) Update(ctx context.Context, teacherID, profileID string, req models.UpdateStudentRequest) (*models.StudentProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	profile, err := s.findOwned(ctx, teacherID, profileID)
	if err != nil {
		return nil, err
	}

	applyProfileFields(profile, req.VoiceType, req.Level, req.StartDate, req.Goals)
	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	return profile, nil
}

// Delete soft-deletes a profile owned by the calling teacher. Lessons,
// feedback and stickers are retained.
func (s *StudentService) Delete(ctx context.Context, teacherID, profileID string) error {
	if _, err := s.findOwned(ctx, teacherID, profileID); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, profileID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate profile")
	}
	return nil
}

// Get returns a profile owned by the calling teacher.
func (s *StudentService) Get(ctx context.Context, teacherID, profileID string) (*models.StudentProfile, error) {
	return s.findOwned(ctx, teacherID, profileID)
}

// List returns the teacher's active students.
func (s *StudentService) List(ctx context.Context, teacherID string) ([]models.StudentDetail, error) {
	students, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	if students == nil {
		students = []models.StudentDetail{}
	}
	return students, nil
}

// ListUnassigned returns student users without an active teacher.
func (s *StudentService) ListUnassigned(ctx context.Context) ([]models.UnassignedStudent, error) {
	students, err := s.repo.ListUnassigned(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list unassigned students")
	}
	if students == nil {
		students = []models.UnassignedStudent{}
	}
	return students, nil
}

func (s *StudentService) findOwned(ctx context.Context, teacherID, profileID string) (*models.StudentProfile, error) {
	profile, err := s.repo.FindByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	if profile.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student belongs to another teacher")
	}
	if !profile.IsActive {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
	}
	return profile, nil
}

func (s *StudentService) notify(ctx context.Context, userID string, kind models.NotificationType, title, message string, lessonID *string) {
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

func (s *StudentService) audit(ctx context.Context, teacherID, profileID string) {
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &teacherID,
		Action:     models.AuditActionStudentAssign,
		Resource:   "student_profile",
		ResourceID: &profileID,
	}); err != nil {
		s.logger.Warn("failed to record assignment audit log", zap.Error(err))
	}
}

func applyProfileFields(profile *models.StudentProfile, voiceType, level *string, startDate *time.Time, goals *string) {
	if voiceType != nil {
		profile.VoiceType = voiceType
	}
	if level != nil {
		profile.Level = level
	}
	if startDate != nil {
		profile.StartDate = startDate
	}
	if goals != nil {
		profile.Goals = goals
	}
}
