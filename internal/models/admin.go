package models

import "time"

// AdminStats is the cross-cutting dashboard aggregation.
type AdminStats struct {
	TotalTeachers      int       `json:"total_teachers"`
	TotalStudents      int       `json:"total_students"`
	ActiveStudents     int       `json:"active_students"`
	UnassignedStudents int       `json:"unassigned_students"`
	TotalLessons       int       `json:"total_lessons"`
	UpcomingLessons    int       `json:"upcoming_lessons"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// TeacherLessonStats holds one teacher's lesson counts for the current month.
type TeacherLessonStats struct {
	TeacherID   string `db:"teacher_id" json:"teacher_id"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	Completed   int    `db:"completed" json:"completed"`
	Scheduled   int    `db:"scheduled" json:"scheduled"`
	Total       int    `db:"total" json:"total"`
}
