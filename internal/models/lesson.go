package models

import "time"

// LessonStatus enumerates the lesson lifecycle states.
type LessonStatus string

const (
	LessonScheduled LessonStatus = "scheduled"
	LessonCompleted LessonStatus = "completed"
	LessonCancelled LessonStatus = "cancelled"
)

// CanTransitionTo reports whether a status change is allowed. Allowed moves:
// scheduled→completed, scheduled→cancelled, cancelled→scheduled. Completed is
// terminal.
func (s LessonStatus) CanTransitionTo(next LessonStatus) bool {
	switch s {
	case LessonScheduled:
		return next == LessonCompleted || next == LessonCancelled
	case LessonCancelled:
		return next == LessonScheduled
	default:
		return false
	}
}

// Lesson represents a scheduled session between a teacher and a student.
type Lesson struct {
	ID          string       `db:"id" json:"id"`
	TeacherID   string       `db:"teacher_id" json:"teacher_id"`
	StudentID   string       `db:"student_id" json:"student_id"`
	Title       *string      `db:"title" json:"title,omitempty"`
	ScheduledAt time.Time    `db:"scheduled_at" json:"scheduled_at"`
	Duration    int          `db:"duration" json:"duration"`
	Status      LessonStatus `db:"status" json:"status"`
	Location    *string      `db:"location" json:"location,omitempty"`
	Notes       *string      `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// LessonDetail adds participant names for list responses.
type LessonDetail struct {
	Lesson
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	StudentName string `db:"student_name" json:"student_name"`
}

// CreateLessonRequest holds the payload for scheduling a lesson.
type CreateLessonRequest struct {
	StudentID   string    `json:"student_id" validate:"required,uuid4"`
	Title       *string   `json:"title" validate:"omitempty,max=200"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Duration    int       `json:"duration" validate:"required,gt=0"`
	Location    *string   `json:"location" validate:"omitempty,max=200"`
	Notes       *string   `json:"notes"`
}

// UpdateLessonRequest holds partial updates to a lesson. Nil fields are left
// untouched. TeacherID and StudentID reassign participants and are honored
// for admins only.
type UpdateLessonRequest struct {
	Title       *string    `json:"title" validate:"omitempty,max=200"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	Duration    *int       `json:"duration" validate:"omitempty,gt=0"`
	Location    *string    `json:"location" validate:"omitempty,max=200"`
	Notes       *string    `json:"notes"`
	TeacherID   *string    `json:"teacher_id" validate:"omitempty,uuid4"`
	StudentID   *string    `json:"student_id" validate:"omitempty,uuid4"`
}

// LessonFilter captures list criteria. TeacherID/StudentID scope the query to
// the caller; Timeframe is "upcoming" or "past" (admin view).
type LessonFilter struct {
	TeacherID string
	StudentID string
	Status    *LessonStatus
	Timeframe string
	Page      int
	PageSize  int
}
