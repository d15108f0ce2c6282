package model

import (
	"time"

	"gorm.io/datatypes"
)

type LessonType string

const (
	LessonText       LessonType = "text"
	LessonDevoir     LessonType = "devoir"
	LessonEvaluation LessonType = "evaluation"
	LessonQuiz       LessonType = "quiz"
)

func (t LessonType) Valid() bool {
	switch t {
	case LessonText, LessonDevoir, LessonEvaluation, LessonQuiz:
		return true
	}
	return false
}

// Submittable 仅作业和测评类课时接受提交
func (t LessonType) Submittable() bool {
	return t == LessonDevoir || t == LessonEvaluation
}

// swagger:model Course
type Course struct {
	BaseModel
	Title           string  `gorm:"size:255;not null" json:"title"`
	Description     string  `gorm:"type:text" json:"description"`
	Price           float64 `gorm:"type:decimal(10,2);default:0" json:"price"`
	ImageURL        string  `gorm:"size:255" json:"imageUrl"`
	Color           string  `gorm:"size:20" json:"color"`
	Author          string  `gorm:"size:100" json:"author"`
	StripeProductID *string `gorm:"size:100" json:"stripeProductId,omitempty"`
	StripePriceID   *string `gorm:"size:100" json:"stripePriceId,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// UserCourse 课程归属（讲师）关系，第一条记录即课程讲师
type UserCourse struct {
	ID       uint `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   uint `gorm:"not null;uniqueIndex:idx_user_course_owner,priority:1" json:"userId"`
	CourseID uint `gorm:"not null;uniqueIndex:idx_user_course_owner,priority:2;index" json:"courseId"`
}

func (UserCourse) TableName() string {
	return "user_courses"
}

type Section struct {
	BaseModel
	CourseID   uint   `gorm:"not null;index:idx_section_course_order,priority:1" json:"courseId"`
	Title      string `gorm:"size:255;not null" json:"title"`
	OrderIndex int    `gorm:"not null;index:idx_section_course_order,priority:2" json:"orderIndex"`
}

func (Section) TableName() string {
	return "sections"
}

type Lesson struct {
	BaseModel
	SectionID  uint           `gorm:"not null;index:idx_lesson_section_order,priority:1" json:"sectionId"`
	Title      string         `gorm:"size:255;not null" json:"title"`
	LessonType LessonType     `gorm:"size:20;not null;default:'text'" json:"lessonType"`
	OrderIndex int            `gorm:"not null;index:idx_lesson_section_order,priority:2" json:"orderIndex"`
	DueDate    *time.Time     `json:"dueDate,omitempty"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// ContentBlock 课时内容块，OrderIndex 为保存时数组下标（从 0 开始）
type ContentBlock struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	LessonID   uint           `gorm:"not null;index:idx_block_lesson_order,priority:1" json:"lessonId"`
	BlockType  string         `gorm:"size:50;not null;default:'text'" json:"blockType"`
	Content    string         `gorm:"type:text" json:"content"`
	OrderIndex int            `gorm:"not null;index:idx_block_lesson_order,priority:2" json:"orderIndex"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
}

func (ContentBlock) TableName() string {
	return "lesson_content_blocks"
}

const BlockTypeQuiz = "quiz"

type UserLessonCompletion struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_completion_user_lesson_course,priority:1" json:"userId"`
	LessonID       uint      `gorm:"not null;uniqueIndex:idx_completion_user_lesson_course,priority:2" json:"lessonId"`
	CourseID       uint      `gorm:"not null;uniqueIndex:idx_completion_user_lesson_course,priority:3;index" json:"courseId"`
	CompletionDate time.Time `json:"completionDate"`
}

func (UserLessonCompletion) TableName() string {
	return "user_lesson_completions"
}
