package model

import "time"

type QuestionType string

const (
	QuestionMCQ         QuestionType = "mcq"
	QuestionFillInBlank QuestionType = "fill_in_the_blank"
)

func (t QuestionType) Valid() bool {
	return t == QuestionMCQ || t == QuestionFillInBlank
}

// swagger:model Quiz
type Quiz struct {
	BaseModel
	LessonID    *uint      `gorm:"uniqueIndex" json:"lessonId,omitempty"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Questions   []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

type Question struct {
	ID                uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	QuizID            uint         `gorm:"not null;index:idx_question_quiz_order,priority:1" json:"quizId"`
	QuestionText      string       `gorm:"type:text;not null" json:"questionText"`
	QuestionType      QuestionType `gorm:"size:30;not null;default:'mcq'" json:"questionType"`
	CorrectTextAnswer string       `gorm:"size:255" json:"correctTextAnswer,omitempty"`
	OrderIndex        int          `gorm:"not null;index:idx_question_quiz_order,priority:2" json:"orderIndex"`
	Answers           []Answer     `gorm:"foreignKey:QuestionID" json:"answers,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

type Answer struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	QuestionID uint   `gorm:"not null;index" json:"questionId"`
	AnswerText string `gorm:"type:text;not null" json:"answerText"`
	IsCorrect  bool   `gorm:"default:false" json:"isCorrect"`
}

func (Answer) TableName() string {
	return "answers"
}

// QuizAttempt 创建后不可修改，只追加
type QuizAttempt struct {
	ID             uint                `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentID      uint                `gorm:"not null;index:idx_attempt_student_quiz,priority:1" json:"studentId"`
	QuizID         uint                `gorm:"not null;index:idx_attempt_student_quiz,priority:2" json:"quizId"`
	LessonID       uint                `gorm:"index" json:"lessonId"`
	Score          float64             `gorm:"type:decimal(5,2);not null" json:"score"`
	TotalQuestions int                 `gorm:"not null" json:"totalQuestions"`
	CorrectAnswers int                 `gorm:"not null" json:"correctAnswers"`
	AttemptDate    time.Time           `gorm:"not null;index" json:"attemptDate"`
	Answers        []QuizAttemptAnswer `gorm:"foreignKey:AttemptID" json:"answers,omitempty"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

type QuizAttemptAnswer struct {
	ID                 uint    `gorm:"primaryKey;autoIncrement" json:"-"`
	AttemptID          uint    `gorm:"column:quiz_attempt_id;not null;index" json:"attemptId"`
	QuestionID         uint    `gorm:"not null" json:"questionId"`
	SelectedAnswerID   *uint   `json:"selectedAnswerId"`
	SelectedTextAnswer *string `gorm:"size:255" json:"selectedTextAnswer"`
	IsCorrect          bool    `gorm:"not null" json:"isCorrect"`
}

func (QuizAttemptAnswer) TableName() string {
	return "quiz_attempt_answers"
}
