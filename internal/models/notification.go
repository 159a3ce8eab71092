package models

import "time"

// NotificationType enumerates in-app notification kinds.
type NotificationType string

const (
	NotificationLessonCreated      NotificationType = "lesson_created"
	NotificationLessonUpdated      NotificationType = "lesson_updated"
	NotificationLessonCancelled    NotificationType = "lesson_cancelled"
	NotificationTeacherChanged     NotificationType = "teacher_changed"
	NotificationFeedbackReceived   NotificationType = "feedback_received"
	NotificationAnnouncementPosted NotificationType = "announcement_posted"
)

// Notification is an in-app message created synchronously when a lesson,
// feedback, assignment or announcement event fires.
type Notification struct {
	ID              string           `db:"id" json:"id"`
	UserID          string           `db:"user_id" json:"user_id"`
	Type            NotificationType `db:"type" json:"type"`
	Title           string           `db:"title" json:"title"`
	Message         string           `db:"message" json:"message"`
	RelatedLessonID *string          `db:"related_lesson_id" json:"related_lesson_id,omitempty"`
	IsRead          bool             `db:"is_read" json:"is_read"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter captures list criteria for a user's notifications.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
