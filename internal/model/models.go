package model

// All 返回需要迁移的全部模型
func All() []interface{} {
	return []interface{}{
		&User{},
		&Course{},
		&UserCourse{},
		&Section{},
		&Lesson{},
		&ContentBlock{},
		&UserLessonCompletion{},
		&Quiz{},
		&Question{},
		&Answer{},
		&QuizAttempt{},
		&QuizAttemptAnswer{},
		&Submission{},
		&Enrollment{},
		&PayoutAccount{},
		&Conversation{},
		&ConversationParticipant{},
		&Message{},
	}
}
