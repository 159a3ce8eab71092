package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tothemoon-studio/vocal-api/internal/models"
)

// LessonRepository provides persistence for lessons.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository creates the repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// FindByID returns a lesson by identifier.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	const query = `SELECT id, teacher_id, student_id, title, scheduled_at, duration, status, location, notes, created_at, updated_at
FROM lessons WHERE id = $1 LIMIT 1`
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lesson by id: %w", err)
	}
	return &lesson, nil
}

// Create inserts a new lesson.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now

	const query = `INSERT INTO lessons (id, teacher_id, student_id, title, scheduled_at, duration, status, location, notes, created_at, updated_at)
VALUES (:id, :teacher_id, :student_id, :title, :scheduled_at, :duration, :status, :location, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// Update persists mutable lesson fields.
func (r *LessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lessons SET teacher_id = :teacher_id, student_id = :student_id, title = :title,
scheduled_at = :scheduled_at, duration = :duration, status = :status, location = :location, notes = :notes, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return nil
}

// UpdateStatus performs a guarded status transition. The WHERE clause pins the
// expected current status so concurrent transitions cannot race.
func (r *LessonRepository) UpdateStatus(ctx context.Context, id string, from, to models.LessonStatus) (bool, error) {
	const query = `UPDATE lessons SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update lesson status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update lesson status rows: %w", err)
	}
	return n > 0, nil
}

// List returns lessons matching the filter with total count.
func (r *LessonRepository) List(ctx context.Context, filter models.LessonFilter) ([]models.LessonDetail, int, error) {
	baseQuery := `FROM lessons l JOIN users t ON t.id = l.teacher_id JOIN users s ON s.id = l.student_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("l.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("l.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("l.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	switch filter.Timeframe {
	case "upcoming":
		conditions = append(conditions, "l.status = 'scheduled' AND l.scheduled_at > NOW()")
	case "past":
		conditions = append(conditions, "(l.status <> 'scheduled' OR l.scheduled_at <= NOW())")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT l.id, l.teacher_id, l.student_id, l.title, l.scheduled_at, l.duration, l.status, l.location, l.notes, l.created_at, l.updated_at,
t.name AS teacher_name, s.name AS student_name
%s ORDER BY l.scheduled_at DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var lessons []models.LessonDetail
	if err := r.db.SelectContext(ctx, &lessons, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list lessons: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count lessons: %w", err)
	}

	return lessons, total, nil
}

// PendingFeedbackCount counts the teacher's feedback-eligible lessons without
// feedback. Eligible: completed, or scheduled with scheduled_at in the past.
func (r *LessonRepository) PendingFeedbackCount(ctx context.Context, teacherID string) (int, error) {
	const query = `SELECT COUNT(*) FROM lessons l
WHERE l.teacher_id = $1
AND (l.status = 'completed' OR (l.status = 'scheduled' AND l.scheduled_at <= NOW()))
AND NOT EXISTS (SELECT 1 FROM feedback f WHERE f.lesson_id = l.id)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, teacherID); err != nil {
		return 0, fmt.Errorf("count pending feedback lessons: %w", err)
	}
	return count, nil
}
