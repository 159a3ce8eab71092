package models

import "time"

// Feedback is the teacher's write-up for a lesson. At most one row exists per
// lesson, enforced by a unique constraint on lesson_id.
type Feedback struct {
	ID                      string     `db:"id" json:"id"`
	LessonID                string     `db:"lesson_id" json:"lesson_id"`
	TeacherID               string     `db:"teacher_id" json:"teacher_id"`
	StudentID               string     `db:"student_id" json:"student_id"`
	Rating                  int        `db:"rating" json:"rating"`
	Content                 string     `db:"content" json:"content"`
	Strengths               *string    `db:"strengths" json:"strengths,omitempty"`
	Improvements            *string    `db:"improvements" json:"improvements,omitempty"`
	Homework                *string    `db:"homework" json:"homework,omitempty"`
	ReferenceURLs           *string    `db:"reference_urls" json:"reference_urls,omitempty"`
	StudentReaction         *string    `db:"student_reaction" json:"student_reaction,omitempty"`
	StudentMessage          *string    `db:"student_message" json:"student_message,omitempty"`
	StudentReactedAt        *time.Time `db:"student_reacted_at" json:"student_reacted_at,omitempty"`
	TeacherViewedReactionAt *time.Time `db:"teacher_viewed_reaction_at" json:"teacher_viewed_reaction_at,omitempty"`
	CreatedAt               time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at" json:"updated_at"`
}

// CreateFeedbackRequest holds the teacher's write-up payload.
type CreateFeedbackRequest struct {
	LessonID      string  `json:"lesson_id" validate:"required,uuid4"`
	Rating        int     `json:"rating" validate:"required,gte=1,lte=5"`
	Content       string  `json:"content" validate:"required"`
	Strengths     *string `json:"strengths"`
	Improvements  *string `json:"improvements"`
	Homework      *string `json:"homework"`
	ReferenceURLs *string `json:"reference_urls"`
}

// UpdateFeedbackRequest holds partial updates to the teacher-editable fields.
type UpdateFeedbackRequest struct {
	Rating        *int    `json:"rating" validate:"omitempty,gte=1,lte=5"`
	Content       *string `json:"content"`
	Strengths     *string `json:"strengths"`
	Improvements  *string `json:"improvements"`
	Homework      *string `json:"homework"`
	ReferenceURLs *string `json:"reference_urls"`
}

// ReactionRequest is the student's emoji reaction with an optional short
// message.
type ReactionRequest struct {
	Reaction string  `json:"reaction" validate:"required,max=16"`
	Message  *string `json:"message" validate:"omitempty,max=100"`
}

// FeedbackFilter captures list criteria for feedback queries.
type FeedbackFilter struct {
	TeacherID string
	StudentID string
	LessonID  string
	Page      int
	PageSize  int
}
