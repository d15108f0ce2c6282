package model

import (
	"time"

	"gorm.io/datatypes"
)

type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionGraded    SubmissionStatus = "graded"
)

// swagger:model Submission
type Submission struct {
	ID                 uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	LessonID           uint             `gorm:"not null;uniqueIndex:idx_submission_lesson_student,priority:1" json:"lessonId"`
	StudentID          uint             `gorm:"not null;uniqueIndex:idx_submission_lesson_student,priority:2;index" json:"studentId"`
	CourseID           uint             `gorm:"not null;index" json:"courseId"`
	Content            datatypes.JSON   `json:"content"`
	SubmissionDate     time.Time        `gorm:"not null" json:"submissionDate"`
	Status             SubmissionStatus `gorm:"size:20;not null;default:'submitted'" json:"status"`
	Grade              *float64         `gorm:"type:decimal(5,2)" json:"grade"`
	InstructorFeedback datatypes.JSON   `json:"instructorFeedback"`
	GradedDate         *time.Time       `json:"gradedDate"`
}

func (Submission) TableName() string {
	return "submissions"
}
