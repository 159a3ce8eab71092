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

const stickerColumns = "id, teacher_id, student_id, level, comment, lesson_id, created_at"

// StickerRepository provides persistence for issued stickers.
type StickerRepository struct {
	db *sqlx.DB
}

// NewStickerRepository creates the repository.
func NewStickerRepository(db *sqlx.DB) *StickerRepository {
	return &StickerRepository{db: db}
}

// Create inserts a new sticker.
func (r *StickerRepository) Create(ctx context.Context, sticker *models.Sticker) error {
	if sticker.ID == "" {
		sticker.ID = uuid.NewString()
	}
	if sticker.CreatedAt.IsZero() {
		sticker.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO stickers (id, teacher_id, student_id, level, comment, lesson_id, created_at)
VALUES (:id, :teacher_id, :student_id, :level, :comment, :lesson_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sticker); err != nil {
		return fmt.Errorf("create sticker: %w", err)
	}
	return nil
}

// FindByID returns a sticker by identifier.
func (r *StickerRepository) FindByID(ctx context.Context, id string) (*models.Sticker, error) {
	query := fmt.Sprintf(`SELECT %s FROM stickers WHERE id = $1 LIMIT 1`, stickerColumns)
	var sticker models.Sticker
	if err := r.db.GetContext(ctx, &sticker, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find sticker by id: %w", err)
	}
	return &sticker, nil
}

// Update persists level and comment changes.
func (r *StickerRepository) Update(ctx context.Context, sticker *models.Sticker) error {
	const query = `UPDATE stickers SET level = :level, comment = :comment WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, sticker); err != nil {
		return fmt.Errorf("update sticker: %w", err)
	}
	return nil
}

// Delete removes a sticker.
func (r *StickerRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM stickers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete sticker: %w", err)
	}
	return nil
}

// List returns stickers matching the filter, newest first.
func (r *StickerRepository) List(ctx context.Context, filter models.StickerFilter) ([]models.Sticker, error) {
	baseQuery := `FROM stickers WHERE 1=1`
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

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", stickerColumns, baseQuery, limit, offset)

	var stickers []models.Sticker
	if err := r.db.SelectContext(ctx, &stickers, listQuery, args...); err != nil {
		return nil, fmt.Errorf("list stickers: %w", err)
	}
	return stickers, nil
}

// CountsByLevel aggregates a student's stickers per reward tier.
func (r *StickerRepository) CountsByLevel(ctx context.Context, studentID string) (map[models.StickerLevel]int, error) {
	const query = `SELECT level, COUNT(*) AS count FROM stickers WHERE student_id = $1 GROUP BY level`
	rows := []struct {
		Level models.StickerLevel `db:"level"`
		Count int                 `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("count stickers by level: %w", err)
	}
	counts := make(map[models.StickerLevel]int, len(rows))
	for _, row := range rows {
		counts[row.Level] = row.Count
	}
	return counts, nil
}

// LatestByStudent returns the student's most recent sticker, or nil.
func (r *StickerRepository) LatestByStudent(ctx context.Context, studentID string) (*models.Sticker, error) {
	query := fmt.Sprintf(`SELECT %s FROM stickers WHERE student_id = $1 ORDER BY created_at DESC LIMIT 1`, stickerColumns)
	var sticker models.Sticker
	if err := r.db.GetContext(ctx, &sticker, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find latest sticker: %w", err)
	}
	return &sticker, nil
}
