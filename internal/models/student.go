package models

import "time"

// StudentProfile links a student user to a teacher. At most one active
// profile exists per student; re-assignment moves the existing profile and
// soft delete flips is_active.
type StudentProfile struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	TeacherID string     `db:"teacher_id" json:"teacher_id"`
	VoiceType *string    `db:"voice_type" json:"voice_type,omitempty"`
	Level     *string    `db:"level" json:"level,omitempty"`
	StartDate *time.Time `db:"start_date" json:"start_date,omitempty"`
	Goals     *string    `db:"goals" json:"goals,omitempty"`
	IsActive  bool       `db:"is_active" json:"is_active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentDetail joins a profile with the underlying user record.
type StudentDetail struct {
	StudentProfile
	Name  string  `db:"name" json:"name"`
	Email *string `db:"email" json:"email,omitempty"`
	Phone string  `db:"phone" json:"phone"`
}

// AssignStudentRequest links a student user to the calling teacher, creating
// or moving the active profile.
type AssignStudentRequest struct {
	UserID    string     `json:"user_id" validate:"required,uuid4"`
	VoiceType *string    `json:"voice_type" validate:"omitempty,max=50"`
	Level     *string    `json:"level" validate:"omitempty,max=50"`
	StartDate *time.Time `json:"start_date"`
	Goals     *string    `json:"goals"`
}

// UpdateStudentRequest holds partial updates to a student profile.
type UpdateStudentRequest struct {
	VoiceType *string    `json:"voice_type" validate:"omitempty,max=50"`
	Level     *string    `json:"level" validate:"omitempty,max=50"`
	StartDate *time.Time `json:"start_date"`
	Goals     *string    `json:"goals"`
}

// PreRegisterRequest creates a placeholder student account the real user can
// later claim by signing up with the same phone number.
type PreRegisterRequest struct {
	Name      string     `json:"name" validate:"required"`
	Phone     string     `json:"phone" validate:"required"`
	Email     *string    `json:"email" validate:"omitempty,email"`
	VoiceType *string    `json:"voice_type" validate:"omitempty,max=50"`
	Level     *string    `json:"level" validate:"omitempty,max=50"`
	StartDate *time.Time `json:"start_date"`
	Goals     *string    `json:"goals"`
}

// ReassignStudentRequest moves an active profile to another teacher. Admin
// only; the route guard enforces the role.
type ReassignStudentRequest struct {
	TeacherID string `json:"teacher_id" validate:"required,uuid4"`
}

// UnassignedStudent is a student user with no active profile.
type UnassignedStudent struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Phone     string    `db:"phone" json:"phone"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
