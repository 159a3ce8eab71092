package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tothemoon-studio/vocal-api/internal/models"
)

func TestAnnouncementRepositoryMarkReadIdempotent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	// First read inserts, second hits the conflict guard.
	mock.ExpectExec(`INSERT INTO announcement_reads .+ ON CONFLICT \(announcement_id, student_id\) DO NOTHING`).
		WithArgs(sqlmock.AnyArg(), "a-1", "student-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO announcement_reads .+ ON CONFLICT \(announcement_id, student_id\) DO NOTHING`).
		WithArgs(sqlmock.AnyArg(), "a-1", "student-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkRead(context.Background(), "a-1", "student-1"))
	require.NoError(t, repo.MarkRead(context.Background(), "a-1", "student-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryListByTeacher(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	rows := sqlmock.NewRows([]string{"id", "teacher_id", "title", "content", "is_active", "created_at", "updated_at", "read_count"}).
		AddRow("a-1", "teacher-1", "9월 발표회 안내", "일정 확인 바랍니다.", true, time.Now(), time.Now(), 3)
	mock.ExpectQuery(regexp.QuoteMeta(`(SELECT COUNT(DISTINCT ar.student_id) FROM announcement_reads ar WHERE ar.announcement_id = a.id) AS read_count`)).
		WithArgs("teacher-1").
		WillReturnRows(rows)

	items, err := repo.ListByTeacher(context.Background(), "teacher-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].ReadCount)
	assert.True(t, items[0].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryListForStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	readAt := time.Now()
	rows := sqlmock.NewRows([]string{"id", "title", "content", "teacher_id", "teacher_name", "created_at", "is_read", "read_at"}).
		AddRow("a-1", "9월 발표회 안내", "일정 확인 바랍니다.", "teacher-1", "Kim Teacher", time.Now(), true, readAt).
		AddRow("a-2", "보강 안내", "토요일 보강입니다.", "teacher-1", "Kim Teacher", time.Now(), false, nil)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE a.teacher_id = $1 AND a.is_active = TRUE`)).
		WithArgs("teacher-1", "student-1").
		WillReturnRows(rows)

	items, err := repo.ListForStudent(context.Background(), "teacher-1", "student-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].IsRead)
	assert.False(t, items[1].IsRead)
	assert.Nil(t, items[1].ReadAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryCountReadsForStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE ar.student_id = $2 AND a.teacher_id = $1 AND a.is_active = TRUE`)).
		WithArgs("teacher-1", "student-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountReadsForStudent(context.Background(), "teacher-1", "student-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectExec(`INSERT INTO announcements`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	announcement := &models.Announcement{TeacherID: "teacher-1", Title: "보강 안내", Content: "토요일 보강입니다.", IsActive: true}
	require.NoError(t, repo.Create(context.Background(), announcement))
	assert.NotEmpty(t, announcement.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
