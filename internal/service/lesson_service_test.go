package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tothemoon-studio/vocal-api/internal/models"
	appErrors "github.com/tothemoon-studio/vocal-api/pkg/errors"
)

type sentNotification struct {
	userID   string
	kind     models.NotificationType
	title    string
	message  string
	lessonID *string
}

type mockNotifier struct {
	sent []sentNotification
	err  error
}

func (m *mockNotifier) Notify(_ context.Context, userID string, kind models.NotificationType, title, message string, lessonID *string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentNotification{userID: userID, kind: kind, title: title, message: message, lessonID: lessonID})
	return nil
}

type mockAssignments struct {
	profiles map[string]*models.StudentProfile // keyed userID+"/"+teacherID
}

func (m *mockAssignments) FindActiveByUserAndTeacher(_ context.Context, userID, teacherID string) (*models.StudentProfile, error) {
	if p, ok := m.profiles[userID+"/"+teacherID]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func assigned(userID, teacherID string) *mockAssignments {
	return &mockAssignments{profiles: map[string]*models.StudentProfile{
		userID + "/" + teacherID: {ID: "profile-1", UserID: userID, TeacherID: teacherID, IsActive: true},
	}}
}

type mockLessonRepo struct {
	lessons        map[string]*models.Lesson
	listResult     []models.LessonDetail
	listTotal      int
	lastFilter     models.LessonFilter
	pending        int
	statusConflict bool
	createErr      error
	updateErr      error
}

func (m *mockLessonRepo) FindByID(_ context.Context, id string) (*models.Lesson, error) {
	if l, ok := m.lessons[id]; ok {
		copied := *l
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLessonRepo) Create(_ context.Context, lesson *models.Lesson) error {
	if m.createErr != nil {
		return m.createErr
	}
	lesson.ID = "lesson-created"
	if m.lessons == nil {
		m.lessons = map[string]*models.Lesson{}
	}
	m.lessons[lesson.ID] = lesson
	return nil
}

func (m *mockLessonRepo) Update(_ context.Context, lesson *models.Lesson) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.lessons[lesson.ID] = lesson
	return nil
}

func (m *mockLessonRepo) UpdateStatus(_ context.Context, id string, from, to models.LessonStatus) (bool, error) {
	if m.statusConflict {
		return false, nil
	}
	l, ok := m.lessons[id]
	if !ok || l.Status != from {
		return false, nil
	}
	l.Status = to
	return true, nil
}

func (m *mockLessonRepo) List(_ context.Context, filter models.LessonFilter) ([]models.LessonDetail, int, error) {
	m.lastFilter = filter
	return m.listResult, m.listTotal, nil
}

func (m *mockLessonRepo) PendingFeedbackCount(context.Context, string) (int, error) {
	return m.pending, nil
}

func scheduledLesson(id, teacherID, studentID string) *models.Lesson {
	return &models.Lesson{
		ID:          id,
		TeacherID:   teacherID,
		StudentID:   studentID,
		ScheduledAt: time.Date(2026, 9, 10, 15, 0, 0, 0, time.UTC),
		Duration:    60,
		Status:      models.LessonScheduled,
	}
}

func pastLesson(id, teacherID, studentID string) *models.Lesson {
	lesson := scheduledLesson(id, teacherID, studentID)
	lesson.ScheduledAt = time.Now().Add(-2 * time.Hour)
	return lesson
}

func teacherClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleTeacher}
}

func TestLessonServiceCreate(t *testing.T) {
	repo := &mockLessonRepo{}
	notifier := &mockNotifier{}
	svc := NewLessonService(repo, assigned("3b8f4a1e-9c2d-4f6a-8e1b-5d7c9a0f2e4b", "teacher-1"), notifier, nil, nil)

	lesson, err := svc.Create(context.Background(), "teacher-1", models.CreateLessonRequest{
		StudentID:   "3b8f4a1e-9c2d-4f6a-8e1b-5d7c9a0f2e4b",
		ScheduledAt: time.Date(2026, 9, 10, 15, 0, 0, 0, time.UTC),
		Duration:    60,
	})
	require.NoError(t, err)

	assert.Equal(t, models.LessonScheduled, lesson.Status)
	assert.Equal(t, "teacher-1", lesson.TeacherID)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, models.NotificationLessonCreated, notifier.sent[0].kind)
	assert.Equal(t, "3b8f4a1e-9c2d-4f6a-8e1b-5d7c9a0f2e4b", notifier.sent[0].userID)
	require.NotNil(t, notifier.sent[0].lessonID)
	assert.Equal(t, lesson.ID, *notifier.sent[0].lessonID)
}

func TestLessonServiceCreateUnassignedStudent(t *testing.T) {
	svc := NewLessonService(&mockLessonRepo{}, &mockAssignments{}, &mockNotifier{}, nil, nil)

	_, err := svc.Create(context.Background(), "teacher-1", models.CreateLessonRequest{
		StudentID:   "3b8f4a1e-9c2d-4f6a-8e1b-5d7c9a0f2e4b",
		ScheduledAt: time.Now(),
		Duration:    60,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestLessonServiceCreateNotifierFailureIsNonFatal(t *testing.T) {
	notifier := &mockNotifier{err: errors.New("insert failed")}
	svc := NewLessonService(&mockLessonRepo{}, assigned("3b8f4a1e-9c2d-4f6a-8e1b-5d7c9a0f2e4b", "teacher-1"), notifier, nil, nil)

	_, err := svc.Create(context.Background(), "teacher-1", models.CreateLessonRequest{
		StudentID:   "3b8f4a1e-9c2d-4f6a-8e1b-5d7c9a0f2e4b",
		ScheduledAt: time.Now(),
		Duration:    60,
	})
	require.NoError(t, err)
}

func TestLessonServiceUpdateCompletedLesson(t *testing.T) {
	lesson := scheduledLesson("lesson-1", "teacher-1", "student-1")
	lesson.Status = models.LessonCompleted
	repo := &mockLessonRepo{lessons: map[string]*models.Lesson{"lesson-1": lesson}}
	svc := NewLessonService(repo, nil, nil, nil, nil)

	_, err := svc.Update(context.Background(), teacherClaims("teacher-1"), "lesson-1", models.UpdateLessonRequest{Title: strPtr("new title")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestLessonServiceUpdateMergesFields(t *testing.T) {
	repo := &mockLessonRepo{lessons: map[string]*models.Lesson{
		"lesson-1": scheduledLesson("lesson-1", "teacher-1", "student-1"),
	}}
	notifier := &mockNotifier{}
	svc := NewLessonService(repo, nil, notifier, nil, nil)

	newTime := time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC)
	updated, err := svc.Update(context.Background(), teacherClaims("teacher-1"), "lesson-1", models.UpdateLessonRequest{
		Title:       strPtr("발성 훈련"),
		ScheduledAt: &newTime,
	})
	require.NoError(t, err)

	assert.Equal(t, "발성 훈련", *updated.Title)
	assert.Equal(t, newTime, updated.ScheduledAt)
	assert.Equal(t, 60, updated.Duration)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, models.NotificationLessonUpdated, notifier.sent[0].kind)
}

func TestLessonServiceUpdateNotesOnlySkipsNotification(t *testing.T) {
	repo := &mockLessonRepo{lessons: map[string]*models.Lesson{
		"lesson-1": scheduledLesson("lesson-1", "teacher-1", "student-1"),
	}}
	notifier := &mockNotifier{}
	svc := NewLessonService(repo, nil, notifier, nil, nil)

	_, err := svc.Update(context.Background(), teacherClaims("teacher-1"), "lesson-1", models.UpdateLessonRequest{
		Title: strPtr("호흡 연습"),
		Notes: strPtr("복식호흡 위주로 진행"),
	})
	require.NoError(t, err)
	assert.Empty(t, notifier.sent)
}

func TestLessonServiceAdminUpdateReassignsParticipants(t *testing.T) {
	const (
		newTeacherID = "6f1e2d3c-4b5a-4c6d-8e9f-0a1b2c3d4e5f"
		newStudentID = "2a3b4c5d-6e7f-4a8b-9c0d-1e2f3a4b5c6d"
	)
	repo := &mockLessonRepo{lessons: map[string]*models.Lesson{
		"lesson-1": scheduledLesson("lesson-1", "teacher-1", "student-1"),
	}}
	svc := NewLessonService(repo, nil, nil, nil, nil)
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleTeacher, IsAdmin: true}

	updated, err := svc.Update(context.Background(), admin, "lesson-1", models.UpdateLessonRequest{
		TeacherID: strPtr(newTeacherID),
		StudentID: strPtr(newStudentID),
	})
	require.NoError(t, err)

	assert.Equal(t, newTeacherID, updated.TeacherID)
	assert.Equal(t, newStudentID, updated.StudentID)
}

func TestLessonServiceUpdateReassignRequiresAdmin(t *testing.T) {
	repo := &mockLessonRepo{lessons: map[string]*models.Lesson{
		"lesson-1": scheduledLesson("lesson-1", "teacher-1", "student-1"),
	}}
	svc := NewLessonService(repo, nil, nil, nil, nil)

	_, err := svc.Update(context.Background(), teacherClaims("teacher-1"), "lesson-1", models.UpdateLessonRequest{
		TeacherID: strPtr("6f1e2d3c-4b5a-4c6d-8e9f-0a1b2c3d4e5f"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, "teacher-1", repo.lessons["lesson-1"].TeacherID)
}

func TestLessonServiceAdminUpdatesOtherTeachersLesson(t *testing.T) {
	repo := &mockLessonRepo{lessons: map[string]*models.Lesson{
		"lesson-1": scheduledLesson("lesson-1", "teacher-1", "student-1"),
	}}
	svc := NewLessonService(repo, nil, nil, nil, nil)
	admin := &models.JWTClaims{UserID: "admin-1", IsAdmin: true}

	updated, err := svc.Update(context.Background(), admin, "lesson-1", models.UpdateLessonRequest{
		Title: strPtr("관리자 수정"),
	})
	require.NoError(t, err)
	assert.Equal(t, "관리자 수정", *updated.Title)
}

func TestLessonServiceCancelAndRestore(t *testing.T) {
	repo := &mockLessonRepo{lessons: map[string]*models.Lesson{
		"lesson-1": scheduledLesson("lesson-1", "teacher-1", "student-1"),
	}}
	notifier := &mockNotifier{}
	svc := NewLessonService(repo, nil, notifier, nil, nil)

	cancelled, err := svc.Cancel(context.Background(), "teacher-1", "lesson-1")
	require.NoError(t, err)
	assert.Equal(t, models.LessonCancelled, cancelled.Status)

	restored, err := svc.Restore(context.Background(), "teacher-1", "lesson-1")
	require.NoError(t, err)
	assert.Equal(t, models.LessonScheduled, restored.Status)

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, models.NotificationLessonCancelled, notifier.sent[0].kind)
	assert.Equal(t, models.NotificationLessonUpdated, notifier.sent[1].kind)
}

func TestLessonServiceCompleteIsTerminal(t *testing.T) {
	repo := &mockLessonRepo{lessons: map[string]*models.Lesson{
		"lesson-1": pastLesson("lesson-1", "teacher-1", "student-1"),
	}}
	svc := NewLessonService(repo, nil, nil, nil, nil)

	lesson, err := svc.Complete(context.Background(), "teacher-1", "lesson-1")
	require.NoError(t, err)
	assert.Equal(t, models.LessonCompleted, lesson.Status)

	_, err = svc.Cancel(context.Background(), "teacher-1", "lesson-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestLessonServiceCompleteTwiceIsNoOp(t *testing.T) {
	repo := &mockLessonRepo{lessons: map[string]*models.Lesson{
		"lesson-1": pastLesson("lesson-1", "teacher-1", "student-1"),
	}}
	svc := NewLessonService(repo, nil, nil, nil, nil)

	_, err := svc.Complete(context.Background(), "teacher-1", "lesson-1")
	require.NoError(t, err)

	lesson, err := svc.Complete(context.Background(), "teacher-1", "lesson-1")
	require.NoError(t, err)
	assert.Equal(t, models.LessonCompleted, lesson.Status)
}

func TestLessonServiceCompleteBeforeScheduledTime(t *testing.T) {
	future := scheduledLesson("lesson-1", "teacher-1", "student-1")
	future.ScheduledAt = time.Now().Add(48 * time.Hour)
	repo := &mockLessonRepo{lessons: map[string]*models.Lesson{"lesson-1": future}}
	svc := NewLessonService(repo, nil, nil, nil, nil)

	_, err := svc.Complete(context.Background(), "teacher-1", "lesson-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.LessonScheduled, repo.lessons["lesson-1"].Status)
}

func TestLessonServiceTransitionConflict(t *testing.T) {
	repo := &mockLessonRepo{
		lessons:        map[string]*models.Lesson{"lesson-1": pastLesson("lesson-1", "teacher-1", "student-1")},
		statusConflict: true,
	}
	svc := NewLessonService(repo, nil, nil, nil, nil)

	_, err := svc.Complete(context.Background(), "teacher-1", "lesson-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestLessonServiceGetVisibility(t *testing.T) {
	repo := &mockLessonRepo{lessons: map[string]*models.Lesson{
		"lesson-1": scheduledLesson("lesson-1", "teacher-1", "student-1"),
	}}
	svc := NewLessonService(repo, nil, nil, nil, nil)

	_, err := svc.Get(context.Background(), &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}, "lesson-1")
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), &models.JWTClaims{UserID: "other", Role: models.RoleStudent}, "lesson-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(context.Background(), &models.JWTClaims{UserID: "other", Role: models.RoleTeacher, IsAdmin: true}, "lesson-1")
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), &models.JWTClaims{UserID: "teacher-1"}, "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLessonServiceCancelOtherTeachersLesson(t *testing.T) {
	repo := &mockLessonRepo{lessons: map[string]*models.Lesson{
		"lesson-1": scheduledLesson("lesson-1", "teacher-1", "student-1"),
	}}
	svc := NewLessonService(repo, nil, nil, nil, nil)

	_, err := svc.Cancel(context.Background(), "teacher-2", "lesson-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestLessonServiceListScoping(t *testing.T) {
	repo := &mockLessonRepo{}
	svc := NewLessonService(repo, nil, nil, nil, nil)

	_, _, err := svc.List(context.Background(), &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}, models.LessonFilter{})
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", repo.lastFilter.TeacherID)

	_, _, err = svc.List(context.Background(), &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}, models.LessonFilter{})
	require.NoError(t, err)
	assert.Equal(t, "student-1", repo.lastFilter.StudentID)
	assert.Empty(t, repo.lastFilter.TeacherID)

	_, _, err = svc.List(context.Background(), &models.JWTClaims{UserID: "admin-1", Role: models.RoleTeacher, IsAdmin: true}, models.LessonFilter{})
	require.NoError(t, err)
	assert.Empty(t, repo.lastFilter.TeacherID)
	assert.Empty(t, repo.lastFilter.StudentID)
}

func TestLessonServiceListPagination(t *testing.T) {
	repo := &mockLessonRepo{listTotal: 42}
	svc := NewLessonService(repo, nil, nil, nil, nil)

	lessons, pagination, err := svc.List(context.Background(),
		&models.JWTClaims{UserID: "admin-1", IsAdmin: true},
		models.LessonFilter{Page: 2, PageSize: 10})
	require.NoError(t, err)

	assert.NotNil(t, lessons)
	assert.Empty(t, lessons)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 10, pagination.PageSize)
	assert.Equal(t, 42, pagination.TotalCount)
}

func TestLessonServicePendingFeedbackCount(t *testing.T) {
	svc := NewLessonService(&mockLessonRepo{pending: 3}, nil, nil, nil, nil)

	count, err := svc.PendingFeedbackCount(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
