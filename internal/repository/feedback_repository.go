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

const feedbackColumns = `id, lesson_id, teacher_id, student_id, rating, content, strengths, improvements, homework, reference_urls,
student_reaction, student_message, student_reacted_at, teacher_viewed_reaction_at, created_at, updated_at`

// FeedbackRepository provides persistence for lesson feedback.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository creates the repository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Create inserts a feedback row. The ON CONFLICT guard makes the
// one-per-lesson invariant hold under concurrent create attempts; callers get
// false when a row already existed.
func (r *FeedbackRepository) Create(ctx context.Context, fb *models.Feedback) (bool, error) {
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = now
	}
	fb.UpdatedAt = now

	const query = `INSERT INTO feedback (id, lesson_id, teacher_id, student_id, rating, content, strengths, improvements, homework, reference_urls, created_at, updated_at)
VALUES (:id, :lesson_id, :teacher_id, :student_id, :rating, :content, :strengths, :improvements, :homework, :reference_urls, :created_at, :updated_at)
ON CONFLICT (lesson_id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, fb)
	if err != nil {
		return false, fmt.Errorf("create feedback: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create feedback rows: %w", err)
	}
	return n > 0, nil
}

// FindByID returns a feedback record by identifier.
func (r *FeedbackRepository) FindByID(ctx context.Context, id string) (*models.Feedback, error) {
	query := fmt.Sprintf(`SELECT %s FROM feedback WHERE id = $1 LIMIT 1`, feedbackColumns)
	var fb models.Feedback
	if err := r.db.GetContext(ctx, &fb, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find feedback by id: %w", err)
	}
	return &fb, nil
}

// FindByLessonID returns the lesson's single feedback record.
func (r *FeedbackRepository) FindByLessonID(ctx context.Context, lessonID string) (*models.Feedback, error) {
	query := fmt.Sprintf(`SELECT %s FROM feedback WHERE lesson_id = $1 LIMIT 1`, feedbackColumns)
	var fb models.Feedback
	if err := r.db.GetContext(ctx, &fb, query, lessonID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find feedback by lesson: %w", err)
	}
	return &fb, nil
}

// Update persists the teacher-editable fields.
func (r *FeedbackRepository) Update(ctx context.Context, fb *models.Feedback) error {
	fb.UpdatedAt = time.Now().UTC()
	const query = `UPDATE feedback SET rating = :rating, content = :content, strengths = :strengths,
improvements = :improvements, homework = :homework, reference_urls = :reference_urls, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, fb); err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}
	return nil
}

// SetReaction overwrites the student's reaction. Re-reacting keeps no history.
func (r *FeedbackRepository) SetReaction(ctx context.Context, id, reaction string, message *string, reactedAt time.Time) error {
	const query = `UPDATE feedback SET student_reaction = $2, student_message = $3, student_reacted_at = $4,
teacher_viewed_reaction_at = NULL, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, reaction, message, reactedAt); err != nil {
		return fmt.Errorf("set reaction: %w", err)
	}
	return nil
}

// MarkReactionViewed stamps teacher_viewed_reaction_at if unset; calling it
// again is a no-op.
func (r *FeedbackRepository) MarkReactionViewed(ctx context.Context, id string, viewedAt time.Time) error {
	const query = `UPDATE feedback SET teacher_viewed_reaction_at = $2 WHERE id = $1 AND teacher_viewed_reaction_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, viewedAt); err != nil {
		return fmt.Errorf("mark reaction viewed: %w", err)
	}
	return nil
}

// UnviewedReactionCount counts reactions the teacher has not seen yet.
func (r *FeedbackRepository) UnviewedReactionCount(ctx context.Context, teacherID string) (int, error) {
	const query = `SELECT COUNT(*) FROM feedback
WHERE teacher_id = $1 AND student_reaction IS NOT NULL AND teacher_viewed_reaction_at IS NULL`
	var count int
	if err := r.db.GetContext(ctx, &count, query, teacherID); err != nil {
		return 0, fmt.Errorf("count unviewed reactions: %w", err)
	}
	return count, nil
}

// List returns feedback records matching the filter with total count.
func (r *FeedbackRepository) List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, int, error) {
	baseQuery := `FROM feedback WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.LessonID != "" {
		conditions = append(conditions, fmt.Sprintf("lesson_id = $%d", len(args)+1))
		args = append(args, filter.LessonID)
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", feedbackColumns, baseQuery, pageSize, offset)

	var items []models.Feedback
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list feedback: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count feedback: %w", err)
	}

	return items, total, nil
}
