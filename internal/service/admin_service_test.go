package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tothemoon-studio/vocal-api/internal/models"
	appErrors "github.com/tothemoon-studio/vocal-api/pkg/errors"
)

type mockAdminRepo struct {
	teachers   int
	students   int
	active     int
	unassigned int
	lessons    int
	upcoming   int
	stats      []models.TeacherLessonStats
	statsErr   error
	calls      int
}

func (m *mockAdminRepo) CountByRole(_ context.Context, role models.UserRole) (int, error) {
	m.calls++
	if role == models.RoleTeacher {
		return m.teachers, nil
	}
	return m.students, nil
}

func (m *mockAdminRepo) CountActiveStudents(context.Context) (int, error) {
	m.calls++
	return m.active, nil
}

func (m *mockAdminRepo) CountUnassignedStudents(context.Context) (int, error) {
	m.calls++
	return m.unassigned, nil
}

func (m *mockAdminRepo) CountLessons(context.Context) (int, error) {
	m.calls++
	return m.lessons, nil
}

func (m *mockAdminRepo) CountUpcomingLessons(context.Context) (int, error) {
	m.calls++
	return m.upcoming, nil
}

func (m *mockAdminRepo) TeacherLessonStats(context.Context) ([]models.TeacherLessonStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}

type mockAdminUsers struct {
	users      []models.User
	total      int
	lastFilter models.UserFilter
}

func (m *mockAdminUsers) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.lastFilter = filter
	return m.users, m.total, nil
}

func TestAdminServiceStats(t *testing.T) {
	repo := &mockAdminRepo{teachers: 4, students: 30, active: 25, unassigned: 5, lessons: 200, upcoming: 12}
	cache := newMockStatsCache()
	svc := NewAdminService(repo, &mockAdminUsers{}, cache, time.Minute, nil)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalTeachers)
	assert.Equal(t, 30, stats.TotalStudents)
	assert.Equal(t, 25, stats.ActiveStudents)
	assert.Equal(t, 5, stats.UnassignedStudents)
	assert.Equal(t, 200, stats.TotalLessons)
	assert.Equal(t, 12, stats.UpcomingLessons)
	assert.False(t, stats.GeneratedAt.IsZero())
	assert.Equal(t, 1, cache.sets)
}

func TestAdminServiceStatsCacheHit(t *testing.T) {
	cache := newMockStatsCache()
	raw, err := json.Marshal(models.AdminStats{TotalTeachers: 9})
	require.NoError(t, err)
	cache.store[adminStatsCacheKey] = raw

	repo := &mockAdminRepo{}
	svc := NewAdminService(repo, &mockAdminUsers{}, cache, time.Minute, nil)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, stats.TotalTeachers)
	assert.Zero(t, repo.calls)
}

func TestAdminServiceListUsers(t *testing.T) {
	role := models.RoleStudent
	users := &mockAdminUsers{total: 3, users: []models.User{{ID: "user-1", Role: models.RoleStudent}}}
	svc := NewAdminService(&mockAdminRepo{}, users, nil, 0, nil)

	items, pagination, err := svc.ListUsers(context.Background(), models.UserFilter{Role: &role, Page: 1, PageSize: 20})
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, 3, pagination.TotalCount)
	require.NotNil(t, users.lastFilter.Role)
	assert.Equal(t, models.RoleStudent, *users.lastFilter.Role)
}

func TestAdminServiceExportCSV(t *testing.T) {
	repo := &mockAdminRepo{stats: []models.TeacherLessonStats{
		{TeacherID: "teacher-1", TeacherName: "Kim Teacher", Completed: 8, Scheduled: 2, Total: 10},
	}}
	svc := NewAdminService(repo, &mockAdminUsers{}, nil, 0, nil)

	payload, contentType, err := svc.ExportTeacherLessonStats(context.Background(), "csv")
	require.NoError(t, err)

	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(payload), "Teacher,Completed,Scheduled,Total")
	assert.Contains(t, string(payload), "Kim Teacher,8,2,10")
}

func TestAdminServiceExportPDF(t *testing.T) {
	repo := &mockAdminRepo{stats: []models.TeacherLessonStats{
		{TeacherID: "teacher-1", TeacherName: "Kim Teacher", Completed: 8, Scheduled: 2, Total: 10},
	}}
	svc := NewAdminService(repo, &mockAdminUsers{}, nil, 0, nil)

	payload, contentType, err := svc.ExportTeacherLessonStats(context.Background(), "pdf")
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}

func TestAdminServiceExportUnknownFormat(t *testing.T) {
	svc := NewAdminService(&mockAdminRepo{}, &mockAdminUsers{}, nil, 0, nil)

	_, _, err := svc.ExportTeacherLessonStats(context.Background(), "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAdminServiceTeacherLessonStatsEmpty(t *testing.T) {
	svc := NewAdminService(&mockAdminRepo{}, &mockAdminUsers{}, nil, 0, nil)

	stats, err := svc.TeacherLessonStats(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, stats)
	assert.Empty(t, stats)

	svc = NewAdminService(&mockAdminRepo{statsErr: errors.New("db down")}, &mockAdminUsers{}, nil, 0, nil)
	_, err = svc.TeacherLessonStats(context.Background())
	require.Error(t, err)
}
