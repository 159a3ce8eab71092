package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tothemoon-studio/vocal-api/internal/models"
)

func lessonRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "teacher_id", "student_id", "title", "scheduled_at", "duration", "status", "location", "notes", "created_at", "updated_at"})
}

func TestLessonRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	rows := lessonRows().AddRow("lesson-1", "teacher-1", "student-1", nil, time.Now(), 60, "scheduled", nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, teacher_id, student_id, title, scheduled_at, duration, status, location, notes, created_at, updated_at
FROM lessons WHERE id = $1 LIMIT 1`)).
		WithArgs("lesson-1").
		WillReturnRows(rows)

	lesson, err := repo.FindByID(context.Background(), "lesson-1")
	require.NoError(t, err)
	assert.Equal(t, models.LessonScheduled, lesson.Status)
	assert.Equal(t, 60, lesson.Duration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectExec(`INSERT INTO lessons`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	lesson := &models.Lesson{
		TeacherID:   "teacher-1",
		StudentID:   "student-1",
		ScheduledAt: time.Now().Add(48 * time.Hour),
		Duration:    60,
		Status:      models.LessonScheduled,
	}
	require.NoError(t, repo.Create(context.Background(), lesson))

	assert.NotEmpty(t, lesson.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE lessons SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`)).
		WithArgs("lesson-1", models.LessonScheduled, models.LessonCompleted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateStatus(context.Background(), "lesson-1", models.LessonScheduled, models.LessonCompleted)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryUpdateStatusGuardMiss(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	// The guarded WHERE matched nothing: a concurrent transition already
	// changed the row.
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE lessons SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`)).
		WithArgs("lesson-1", models.LessonScheduled, models.LessonCancelled, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateStatus(context.Background(), "lesson-1", models.LessonScheduled, models.LessonCancelled)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	listRows := sqlmock.NewRows([]string{"id", "teacher_id", "student_id", "title", "scheduled_at", "duration", "status", "location", "notes", "created_at", "updated_at", "teacher_name", "student_name"}).
		AddRow("lesson-1", "teacher-1", "student-1", nil, time.Now(), 60, "scheduled", nil, nil, time.Now(), time.Now(), "Kim Teacher", "Lee Student")
	mock.ExpectQuery(regexp.QuoteMeta(`l.teacher_id = $1 AND l.status = 'scheduled' AND l.scheduled_at > NOW() ORDER BY l.scheduled_at DESC LIMIT 20 OFFSET 0`)).
		WithArgs("teacher-1").
		WillReturnRows(listRows)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM lessons l`)).
		WithArgs("teacher-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	lessons, total, err := repo.List(context.Background(), models.LessonFilter{TeacherID: "teacher-1", Timeframe: "upcoming"})
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "Kim Teacher", lessons[0].TeacherName)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryPendingFeedbackCount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`NOT EXISTS (SELECT 1 FROM feedback f WHERE f.lesson_id = l.id)`)).
		WithArgs("teacher-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.PendingFeedbackCount(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM lessons WHERE id = .+ LIMIT 1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
