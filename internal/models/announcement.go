package models

import "time"

// Announcement is a teacher broadcast message visible to all of the teacher's
// active students while is_active holds.
type Announcement struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CreateAnnouncementRequest holds the broadcast payload.
type CreateAnnouncementRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required"`
}

// UpdateAnnouncementRequest holds partial updates to an announcement.
type UpdateAnnouncementRequest struct {
	Title    *string `json:"title" validate:"omitempty,max=200"`
	Content  *string `json:"content"`
	IsActive *bool   `json:"is_active"`
}

// AnnouncementRead records that a student read an announcement. At most one
// row exists per (announcement, student) pair.
type AnnouncementRead struct {
	ID             string    `db:"id" json:"id"`
	AnnouncementID string    `db:"announcement_id" json:"announcement_id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	ReadAt         time.Time `db:"read_at" json:"read_at"`
}

// AnnouncementSummary is the teacher list view with read statistics.
type AnnouncementSummary struct {
	Announcement
	ReadCount     int `db:"read_count" json:"read_count"`
	TotalStudents int `json:"total_students"`
}

// AnnouncementReadStatus is one student's read state in the detail view.
type AnnouncementReadStatus struct {
	StudentID string     `json:"student_id"`
	Name      string     `json:"name"`
	Email     *string    `json:"email,omitempty"`
	HasRead   bool       `json:"has_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// AnnouncementDetail is the teacher detail view with the per-student
// breakdown.
type AnnouncementDetail struct {
	Announcement
	Students      []AnnouncementReadStatus `json:"students"`
	ReadCount     int                      `json:"read_count"`
	TotalStudents int                      `json:"total_students"`
}

// StudentAnnouncement is the student-facing view flagged with the caller's
// read state.
type StudentAnnouncement struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Content     string     `db:"content" json:"content"`
	TeacherID   string     `db:"teacher_id" json:"teacher_id"`
	TeacherName string     `db:"teacher_name" json:"teacher_name"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	IsRead      bool       `db:"is_read" json:"is_read"`
	ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
}
