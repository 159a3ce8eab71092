package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tothemoon-studio/vocal-api/internal/models"
	appErrors "github.com/tothemoon-studio/vocal-api/pkg/errors"
)

type mockNotificationRepo struct {
	created    []*models.Notification
	createErr  error
	listResult []models.Notification
	listTotal  int
	lastFilter models.NotificationFilter
	unread     int
	readOK     bool
	allRead    []string
}

func (m *mockNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationRepo) List(_ context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	m.lastFilter = filter
	return m.listResult, m.listTotal, nil
}

func (m *mockNotificationRepo) UnreadCount(context.Context, string) (int, error) {
	return m.unread, nil
}

func (m *mockNotificationRepo) MarkRead(context.Context, string, string) (bool, error) {
	return m.readOK, nil
}

func (m *mockNotificationRepo) MarkAllRead(_ context.Context, userID string) error {
	m.allRead = append(m.allRead, userID)
	return nil
}

func TestNotificationServiceNotify(t *testing.T) {
	repo := &mockNotificationRepo{}
	svc := NewNotificationService(repo, nil, nil)

	lessonID := "lesson-1"
	err := svc.Notify(context.Background(), "student-1", models.NotificationLessonCreated,
		"새 레슨이 등록되었습니다", "2026-09-10 15:00에 레슨이 예약되었습니다.", &lessonID)
	require.NoError(t, err)

	require.Len(t, repo.created, 1)
	assert.Equal(t, models.NotificationLessonCreated, repo.created[0].Type)
	assert.Equal(t, "student-1", repo.created[0].UserID)
	require.NotNil(t, repo.created[0].RelatedLessonID)
	assert.Equal(t, "lesson-1", *repo.created[0].RelatedLessonID)
}

func TestNotificationServiceNotifyPropagatesError(t *testing.T) {
	repo := &mockNotificationRepo{createErr: errors.New("insert failed")}
	svc := NewNotificationService(repo, nil, nil)

	err := svc.Notify(context.Background(), "student-1", models.NotificationFeedbackReceived, "t", "m", nil)
	require.Error(t, err)
}

func TestNotificationServiceList(t *testing.T) {
	repo := &mockNotificationRepo{listTotal: 7}
	svc := NewNotificationService(repo, nil, nil)

	items, pagination, err := svc.List(context.Background(), models.NotificationFilter{
		UserID:     "student-1",
		UnreadOnly: true,
		Page:       1,
		PageSize:   20,
	})
	require.NoError(t, err)

	assert.NotNil(t, items)
	assert.True(t, repo.lastFilter.UnreadOnly)
	assert.Equal(t, 7, pagination.TotalCount)
}

func TestNotificationServiceMarkRead(t *testing.T) {
	svc := NewNotificationService(&mockNotificationRepo{readOK: true}, nil, nil)
	require.NoError(t, svc.MarkRead(context.Background(), "notif-1", "student-1"))

	// Someone else's notification reads as missing.
	svc = NewNotificationService(&mockNotificationRepo{readOK: false}, nil, nil)
	err := svc.MarkRead(context.Background(), "notif-1", "student-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestNotificationServiceMarkAllRead(t *testing.T) {
	repo := &mockNotificationRepo{}
	svc := NewNotificationService(repo, nil, nil)

	require.NoError(t, svc.MarkAllRead(context.Background(), "student-1"))
	assert.Equal(t, []string{"student-1"}, repo.allRead)
}

func TestNotificationServiceUnreadCount(t *testing.T) {
	svc := NewNotificationService(&mockNotificationRepo{unread: 4}, nil, nil)

	count, err := svc.UnreadCount(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
