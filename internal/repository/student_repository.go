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

const profileColumns = "id, user_id, teacher_id, voice_type, level, start_date, goals, is_active, created_at, updated_at"

// StudentRepository manages student profiles and assignment state.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a profile by identifier.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_profiles WHERE id = $1 LIMIT 1`, profileColumns)
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find profile by id: %w", err)
	}
	return &profile, nil
}

// FindActiveByUserID returns the student's single active profile.
func (r *StudentRepository) FindActiveByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_profiles WHERE user_id = $1 AND is_active = TRUE LIMIT 1`, profileColumns)
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active profile: %w", err)
	}
	return &profile, nil
}

// FindActiveByUserAndTeacher returns the active profile linking a student to
// the given teacher, if any. Used as the ownership predicate for
// lesson/sticker issuance.
func (r *StudentRepository) FindActiveByUserAndTeacher(ctx context.Context, userID, teacherID string) (*models.StudentProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_profiles WHERE user_id = $1 AND teacher_id = $2 AND is_active = TRUE LIMIT 1`, profileColumns)
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, userID, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find profile by user and teacher: %w", err)
	}
	return &profile, nil
}

// ListByTeacher returns the teacher's active students with user details.
func (r *StudentRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.StudentDetail, error) {
	const query = `SELECT sp.id, sp.user_id, sp.teacher_id, sp.voice_type, sp.level, sp.start_date, sp.goals, sp.is_active, sp.created_at, sp.updated_at,
u.name, u.email, u.phone
FROM student_profiles sp
JOIN users u ON u.id = sp.user_id
WHERE sp.teacher_id = $1 AND sp.is_active = TRUE
ORDER BY u.name ASC`
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, teacherID); err != nil {
		return nil, fmt.Errorf("list students by teacher: %w", err)
	}
	return students, nil
}

// ListUnassigned returns student users without an active profile.
func (r *StudentRepository) ListUnassigned(ctx context.Context) ([]models.UnassignedStudent, error) {
	const query = `SELECT u.id, u.name, u.email, u.phone, u.created_at
FROM users u
WHERE u.role = 'student'
AND NOT EXISTS (SELECT 1 FROM student_profiles sp WHERE sp.user_id = u.id AND sp.is_active = TRUE)
ORDER BY u.created_at DESC`
	var students []models.UnassignedStudent
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list unassigned students: %w", err)
	}
	return students, nil
}

// CountActiveByTeacher returns the teacher's active student count.
func (r *StudentRepository) CountActiveByTeacher(ctx context.Context, teacherID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM student_profiles WHERE teacher_id = $1 AND is_active = TRUE`, teacherID); err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return count, nil
}

// ActiveStudentIDs returns the user ids of the teacher's active students.
func (r *StudentRepository) ActiveStudentIDs(ctx context.Context, teacherID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM student_profiles WHERE teacher_id = $1 AND is_active = TRUE`, teacherID); err != nil {
		return nil, fmt.Errorf("list active student ids: %w", err)
	}
	return ids, nil
}

// Create inserts a new profile.
func (r *StudentRepository) Create(ctx context.Context, profile *models.StudentProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	const query = `INSERT INTO student_profiles (id, user_id, teacher_id, voice_type, level, start_date, goals, is_active, created_at, updated_at)
VALUES (:id, :user_id, :teacher_id, :voice_type, :level, :start_date, :goals, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// Update persists mutable profile fields.
func (r *StudentRepository) Update(ctx context.Context, profile *models.StudentProfile) error {
	profile.UpdatedAt = time.Now().UTC()
	const query = `UPDATE student_profiles SET teacher_id = :teacher_id, voice_type = :voice_type, level = :level,
start_date = :start_date, goals = :goals, is_active = :is_active, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a profile. History on lessons/feedback/stickers is
// retained.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE student_profiles SET is_active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate profile: %w", err)
	}
	return nil
}
