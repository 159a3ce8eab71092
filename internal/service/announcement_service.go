package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tothemoon-studio/vocal-api/internal/models"
	appErrors "github.com/tothemoon-studio/vocal-api/pkg/errors"
)

type announcementRepository interface {
	Create(ctx context.Context, announcement *models.Announcement) error
	FindByID(ctx context.Context, id string) (*models.Announcement, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.AnnouncementSummary, error)
	Update(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id string) error
	ListReads(ctx context.Context, announcementID string) ([]models.AnnouncementRead, error)
	MarkRead(ctx context.Context, announcementID, studentID string) error
	ListForStudent(ctx context.Context, teacherID, studentID string) ([]models.StudentAnnouncement, error)
	CountActiveByTeacher(ctx context.Context, teacherID string) (int, error)
	CountReadsForStudent(ctx context.Context, teacherID, studentID string) (int, error)
}

type announcementRoster interface {
	FindActiveByUserID(ctx context.Context, userID string) (*models.StudentProfile, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.StudentDetail, error)
	ActiveStudentIDs(ctx context.Context, teacherID string) ([]string, error)
	CountActiveByTeacher(ctx context.Context, teacherID string) (int, error)
}

// AnnouncementService manages teacher broadcasts and per-student read
// tracking.
type AnnouncementService struct {
	repo      announcementRepository
	roster    announcementRoster
	notifier  notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnnouncementService constructs an AnnouncementService instance.
func NewAnnouncementService(repo announcementRepository, roster announcementRoster, notifier notifier, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AnnouncementService{repo: repo, roster: roster, notifier: notifier, validator: validate, logger: logger}
}

// Create posts an announcement and fans a notification out to every active
// student of the teacher. Delivery failures are logged, never rolled back.
func (s *AnnouncementService) Create(ctx context.Context, teacherID string, req models.CreateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	announcement := &models.Announcement{
		TeacherID: teacherID,
		Title:     req.Title,
		Content:   req.Content,
		IsActive:  true,
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}

	s.fanOut(ctx, teacherID, announcement)

	return announcement, nil
}

func (s *AnnouncementService) fanOut(ctx context.Context, teacherID string, announcement *models.Announcement) {
	if s.notifier == nil {
		return
	}
	studentIDs, err := s.roster.ActiveStudentIDs(ctx, teacherID)
	if err != nil {
		s.logger.Warn("announcement fan-out roster lookup failed",
			zap.String("announcement_id", announcement.ID), zap.Error(err))
		return
	}
	for _, studentID := range studentIDs {
		if err := s.notifier.Notify(ctx, studentID, models.NotificationAnnouncementPosted,
			"새 공지사항이 등록되었습니다", announcement.Title, nil); err != nil {
			s.logger.Warn("announcement notification failed",
				zap.String("announcement_id", announcement.ID),
				zap.String("student_id", studentID),
				zap.Error(err))
		}
	}
}

// List returns the teacher's announcements with read statistics.
func (s *AnnouncementService) List(ctx context.Context, teacherID string) ([]models.AnnouncementSummary, error) {
	items, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	total, err := s.roster.CountActiveByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	if items == nil {
		items = []models.AnnouncementSummary{}
	}
	for i := range items {
		items[i].TotalStudents = total
	}
	return items, nil
}

// Get returns the teacher detail view with the per-student read breakdown.
func (s *AnnouncementService) Get(ctx context.Context, teacherID, id string) (*models.AnnouncementDetail, error) {
	announcement, err := s.findOwned(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}

	students, err := s.roster.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	reads, err := s.repo.ListReads(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reads")
	}

	readAt := make(map[string]*models.AnnouncementRead, len(reads))
	for i := range reads {
		readAt[reads[i].StudentID] = &reads[i]
	}

	detail := &models.AnnouncementDetail{
		Announcement:  *announcement,
		Students:      make([]models.AnnouncementReadStatus, 0, len(students)),
		TotalStudents: len(students),
	}
	for _, student := range students {
		status := models.AnnouncementReadStatus{
			StudentID: student.UserID,
			Name:      student.Name,
			Email:     student.Email,
		}
		if read, ok := readAt[student.UserID]; ok {
			status.HasRead = true
			t := read.ReadAt
			status.ReadAt = &t
			detail.ReadCount++
		}
		detail.Students = append(detail.Students, status)
	}
	return detail, nil
}

// Update applies the teacher's edits to their own announcement.
func (s *AnnouncementService) Update(ctx context.Context, teacherID, id string, req models.UpdateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	announcement, err := s.findOwned(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		announcement.Title = *req.Title
	}
	if req.Content != nil {
		announcement.Content = *req.Content
	}
	if req.IsActive != nil {
		announcement.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	return announcement, nil
}

// Delete removes an announcement the calling teacher posted.
func (s *AnnouncementService) Delete(ctx context.Context, teacherID, id string) error {
	if _, err := s.findOwned(ctx, teacherID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	return nil
}

// ListForStudent returns the active announcements of the student's teacher,
// flagged with the caller's read state.
func (s *AnnouncementService) ListForStudent(ctx context.Context, studentID string) ([]models.StudentAnnouncement, error) {
	profile, err := s.studentProfile(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return []models.StudentAnnouncement{}, nil
	}

	items, err := s.repo.ListForStudent(ctx, profile.TeacherID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	if items == nil {
		items = []models.StudentAnnouncement{}
	}
	return items, nil
}

// UnreadCount counts the student's unread active announcements.
func (s *AnnouncementService) UnreadCount(ctx context.Context, studentID string) (int, error) {
	profile, err := s.studentProfile(ctx, studentID)
	if err != nil {
		return 0, err
	}
	if profile == nil {
		return 0, nil
	}

	active, err := s.repo.CountActiveByTeacher(ctx, profile.TeacherID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count announcements")
	}
	read, err := s.repo.CountReadsForStudent(ctx, profile.TeacherID, studentID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count reads")
	}

	unread := active - read
	if unread < 0 {
		unread = 0
	}
	return unread, nil
}

// MarkRead records that the student read the announcement. Repeated calls are
// idempotent.
func (s *AnnouncementService) MarkRead(ctx context.Context, studentID, id string) error {
	announcement, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	profile, err := s.studentProfile(ctx, studentID)
	if err != nil {
		return err
	}
	if profile == nil || profile.TeacherID != announcement.TeacherID || !announcement.IsActive {
		return appErrors.Clone(appErrors.ErrForbidden, "announcement is not visible to this student")
	}

	if err := s.repo.MarkRead(ctx, id, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark announcement read")
	}
	return nil
}

func (s *AnnouncementService) find(ctx context.Context, id string) (*models.Announcement, error) {
	announcement, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return announcement, nil
}

func (s *AnnouncementService) findOwned(ctx context.Context, teacherID, id string) (*models.Announcement, error) {
	announcement, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if announcement.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "announcement belongs to another teacher")
	}
	return announcement, nil
}

// studentProfile returns the caller's active profile, or nil when the student
// has no teacher yet.
func (s *AnnouncementService) studentProfile(ctx context.Context, studentID string) (*models.StudentProfile, error) {
	profile, err := s.roster.FindActiveByUserID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	return profile, nil
}
