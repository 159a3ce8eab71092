package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tothemoon-studio/vocal-api/internal/models"
)

const announcementColumns = "id, teacher_id, title, content, is_active, created_at, updated_at"

// AnnouncementRepository provides persistence for announcements and their
// per-student read tracking.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// Create inserts a new announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = now
	}
	announcement.UpdatedAt = now

	const query = `INSERT INTO announcements (id, teacher_id, title, content, is_active, created_at, updated_at)
VALUES (:id, :teacher_id, :title, :content, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// FindByID returns an announcement by identifier.
func (r *AnnouncementRepository) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	query := fmt.Sprintf(`SELECT %s FROM announcements WHERE id = $1 LIMIT 1`, announcementColumns)
	var announcement models.Announcement
	if err := r.db.GetContext(ctx, &announcement, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find announcement by id: %w", err)
	}
	return &announcement, nil
}

// ListByTeacher returns the teacher's announcements with distinct read
// counts, newest first.
func (r *AnnouncementRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.AnnouncementSummary, error) {
	const query = `SELECT a.id, a.teacher_id, a.title, a.content, a.is_active, a.created_at, a.updated_at,
(SELECT COUNT(DISTINCT ar.student_id) FROM announcement_reads ar WHERE ar.announcement_id = a.id) AS read_count
FROM announcements a
WHERE a.teacher_id = $1
ORDER BY a.created_at DESC`
	var items []models.AnnouncementSummary
	if err := r.db.SelectContext(ctx, &items, query, teacherID); err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	return items, nil
}

// Update persists mutable announcement fields.
func (r *AnnouncementRepository) Update(ctx context.Context, announcement *models.Announcement) error {
	announcement.UpdatedAt = time.Now().UTC()
	const query = `UPDATE announcements SET title = :title, content = :content, is_active = :is_active, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	return nil
}

// Delete removes an announcement and, via cascade, its read rows.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	return nil
}

// ListReads returns the read receipts for an announcement, newest first.
func (r *AnnouncementRepository) ListReads(ctx context.Context, announcementID string) ([]models.AnnouncementRead, error) {
	const query = `SELECT id, announcement_id, student_id, read_at FROM announcement_reads
WHERE announcement_id = $1 ORDER BY read_at DESC`
	var reads []models.AnnouncementRead
	if err := r.db.SelectContext(ctx, &reads, query, announcementID); err != nil {
		return nil, fmt.Errorf("list announcement reads: %w", err)
	}
	return reads, nil
}

// MarkRead inserts a read receipt. The ON CONFLICT guard makes repeated calls
// idempotent, including under concurrent requests.
func (r *AnnouncementRepository) MarkRead(ctx context.Context, announcementID, studentID string) error {
	const query = `INSERT INTO announcement_reads (id, announcement_id, student_id, read_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (announcement_id, student_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), announcementID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark announcement read: %w", err)
	}
	return nil
}

// ListForStudent returns the teacher's active announcements flagged with the
// student's read state.
func (r *AnnouncementRepository) ListForStudent(ctx context.Context, teacherID, studentID string) ([]models.StudentAnnouncement, error) {
	const query = `SELECT a.id, a.title, a.content, a.teacher_id, t.name AS teacher_name, a.created_at,
(ar.id IS NOT NULL) AS is_read, ar.read_at
FROM announcements a
JOIN users t ON t.id = a.teacher_id
LEFT JOIN announcement_reads ar ON ar.announcement_id = a.id AND ar.student_id = $2
WHERE a.teacher_id = $1 AND a.is_active = TRUE
ORDER BY a.created_at DESC`
	var items []models.StudentAnnouncement
	if err := r.db.SelectContext(ctx, &items, query, teacherID, studentID); err != nil {
		return nil, fmt.Errorf("list student announcements: %w", err)
	}
	return items, nil
}

// CountActiveByTeacher counts the teacher's active announcements.
func (r *AnnouncementRepository) CountActiveByTeacher(ctx context.Context, teacherID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM announcements WHERE teacher_id = $1 AND is_active = TRUE`, teacherID); err != nil {
		return 0, fmt.Errorf("count active announcements: %w", err)
	}
	return count, nil
}

// CountReadsForStudent counts the student's reads among the teacher's active
// announcements.
func (r *AnnouncementRepository) CountReadsForStudent(ctx context.Context, teacherID, studentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM announcement_reads ar
JOIN announcements a ON a.id = ar.announcement_id
WHERE ar.student_id = $2 AND a.teacher_id = $1 AND a.is_active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, teacherID, studentID); err != nil {
		return 0, fmt.Errorf("count student reads: %w", err)
	}
	return count, nil
}
