package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tothemoon-studio/vocal-api/internal/models"
)

// AdminRepository provides read-only reporting aggregations.
type AdminRepository struct {
	db *sqlx.DB
}

// NewAdminRepository creates the repository.
func NewAdminRepository(db *sqlx.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// CountByRole counts users holding the given role.
func (r *AdminRepository) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE role = $1`, role); err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return count, nil
}

// CountActiveStudents counts students with an active profile.
func (r *AdminRepository) CountActiveStudents(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(DISTINCT user_id) FROM student_profiles WHERE is_active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return count, nil
}

// CountUnassignedStudents counts student users without an active profile.
func (r *AdminRepository) CountUnassignedStudents(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM users u
WHERE u.role = 'student'
AND NOT EXISTS (SELECT 1 FROM student_profiles sp WHERE sp.user_id = u.id AND sp.is_active = TRUE)`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count unassigned students: %w", err)
	}
	return count, nil
}

// CountLessons counts all lessons.
func (r *AdminRepository) CountLessons(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM lessons`); err != nil {
		return 0, fmt.Errorf("count lessons: %w", err)
	}
	return count, nil
}

// CountUpcomingLessons counts scheduled lessons in the future.
func (r *AdminRepository) CountUpcomingLessons(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM lessons WHERE status = 'scheduled' AND scheduled_at > NOW()`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count upcoming lessons: %w", err)
	}
	return count, nil
}

// TeacherLessonStats returns per-teacher lesson counts for the current
// calendar month.
func (r *AdminRepository) TeacherLessonStats(ctx context.Context) ([]models.TeacherLessonStats, error) {
	const query = `SELECT t.id AS teacher_id, t.name AS teacher_name,
COALESCE(SUM(CASE WHEN l.status = 'completed' THEN 1 ELSE 0 END), 0) AS completed,
COALESCE(SUM(CASE WHEN l.status = 'scheduled' THEN 1 ELSE 0 END), 0) AS scheduled,
COUNT(l.id) AS total
FROM users t
LEFT JOIN lessons l ON l.teacher_id = t.id AND date_trunc('month', l.scheduled_at) = date_trunc('month', NOW())
WHERE t.role = 'teacher'
GROUP BY t.id, t.name
ORDER BY t.name ASC`
	var stats []models.TeacherLessonStats
	if err := r.db.SelectContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("teacher lesson stats: %w", err)
	}
	return stats, nil
}
