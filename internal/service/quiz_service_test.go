package service

import (
	"context"
	"modula_lms_backend/internal/model"
	"modula_lms_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capitalsQuiz(lessonID *uint) SaveQuizReq {
	return SaveQuizReq{
		LessonID: lessonID,
		Title:    "Capitals",
		Questions: []QuestionReq{
			{
				QuestionText: "Capital of Italy?",
				QuestionType: "mcq",
				Answers: []AnswerReq{
					{AnswerText: "Rome", IsCorrect: true},
					{AnswerText: "Milan"},
				},
			},
			{
				QuestionText:      "Capital of France?",
				QuestionType:      "fill_in_the_blank",
				CorrectTextAnswer: "Paris",
			},
		},
	}
}

func answerByText(q model.Question, text string) model.Answer {
	for _, a := range q.Answers {
		if a.AnswerText == text {
			return a
		}
	}
	return model.Answer{}
}

func TestSaveQuiz_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, owner := env.createUser(t, "Ada Teacher", model.Instructor)

	_, err := env.QuizSvc.SaveQuiz(ctx, owner, SaveQuizReq{Title: " "})
	assert.True(t, util.IsKind(err, util.KindValidation))

	twoCorrect := SaveQuizReq{Title: "q", Questions: []QuestionReq{{
		QuestionText: "pick",
		Answers:      []AnswerReq{{AnswerText: "a", IsCorrect: true}, {AnswerText: "b", IsCorrect: true}},
	}}}
	_, err = env.QuizSvc.SaveQuiz(ctx, owner, twoCorrect)
	assert.True(t, util.IsKind(err, util.KindValidation))

	noCanonical := SaveQuizReq{Title: "q", Questions: []QuestionReq{{
		QuestionText: "fill", QuestionType: "fill_in_the_blank",
	}}}
	_, err = env.QuizSvc.SaveQuiz(ctx, owner, noCanonical)
	assert.True(t, util.IsKind(err, util.KindValidation))

	badType := SaveQuizReq{Title: "q", Questions: []QuestionReq{{QuestionText: "x", QuestionType: "essay"}}}
	_, err = env.QuizSvc.SaveQuiz(ctx, owner, badType)
	assert.True(t, util.IsKind(err, util.KindValidation))

	_, err = env.QuizSvc.SaveQuiz(ctx, owner, SaveQuizReq{ID: 4242, Title: "missing"})
	assert.True(t, util.IsKind(err, util.KindNotFound))

	var quizzes int64
	require.NoError(t, env.DB.Model(&model.Quiz{}).Count(&quizzes).Error)
	assert.Zero(t, quizzes)
}

func TestSaveQuiz_ResaveReplacesQuestions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, owner := env.createUser(t, "Ada Teacher", model.Instructor)

	quiz, err := env.QuizSvc.SaveQuiz(ctx, owner, capitalsQuiz(nil))
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 2)
	oldIDs := []uint{quiz.Questions[0].ID, quiz.Questions[1].ID}

	req := capitalsQuiz(nil)
	req.ID = quiz.ID
	req.Title = "Capitals v2"
	req.Questions = append(req.Questions, QuestionReq{QuestionText: "Capital of Spain?", QuestionType: "fill_in_the_blank", CorrectTextAnswer: "Madrid"})
	saved, err := env.QuizSvc.SaveQuiz(ctx, owner, req)
	require.NoError(t, err)

	assert.Equal(t, quiz.ID, saved.ID)
	assert.Equal(t, "Capitals v2", saved.Title)
	require.Len(t, saved.Questions, 3)
	for i, q := range saved.Questions {
		assert.Equal(t, i, q.OrderIndex)
		assert.NotContains(t, oldIDs, q.ID)
	}
	assert.Equal(t, "Capital of Spain?", saved.Questions[2].QuestionText)

	var orphans int64
	require.NoError(t, env.DB.Model(&model.Answer{}).Where("question_id IN ?", oldIDs).Count(&orphans).Error)
	assert.Zero(t, orphans)
}

func TestSaveQuiz_LessonOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, owner := env.createUser(t, "Ada Teacher", model.Instructor)
	_, other := env.createUser(t, "Bob Teacher", model.Instructor)
	course := env.createCourse(t, owner, "Geo", 0)
	sec := env.createSection(t, owner, course.ID, "Europe")
	lesson := env.createLesson(t, owner, sec.ID, "Capitals", model.LessonText).Lesson

	_, err := env.QuizSvc.SaveQuiz(ctx, other, capitalsQuiz(&lesson.ID))
	assert.True(t, util.IsKind(err, util.KindForbidden))

	quiz, err := env.QuizSvc.SaveQuiz(ctx, owner, capitalsQuiz(&lesson.ID))
	require.NoError(t, err)

	req := capitalsQuiz(nil)
	req.ID = quiz.ID
	_, err = env.QuizSvc.SaveQuiz(ctx, other, req)
	assert.True(t, util.IsKind(err, util.KindForbidden))

	missing := uint(9999)
	_, err = env.QuizSvc.SaveQuiz(ctx, owner, capitalsQuiz(&missing))
	assert.True(t, util.IsKind(err, util.KindNotFound))
}

func TestSaveQuiz_ReusesLessonQuiz(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, owner := env.createUser(t, "Ada Teacher", model.Instructor)
	learner, learnerActor := env.createUser(t, "Lea Learner", model.Learner)
	course := env.createCourse(t, owner, "Geo", 0)
	sec := env.createSection(t, owner, course.ID, "Europe")
	res := env.createLesson(t, owner, sec.ID, "Check", model.LessonQuiz)
	require.NotNil(t, res.QuizID)
	env.enroll(t, learner.ID, course.ID)

	saved, err := env.QuizSvc.SaveQuiz(ctx, owner, capitalsQuiz(&res.Lesson.ID))
	require.NoError(t, err)
	assert.Equal(t, *res.QuizID, saved.ID)
	assert.Len(t, saved.Questions, 2)

	var count int64
	require.NoError(t, env.DB.Model(&model.Quiz{}).Where("lesson_id = ?", res.Lesson.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	byLesson, err := env.QuizSvc.GetQuizByLesson(ctx, learnerActor, res.Lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byLesson.ID)
	assert.Len(t, byLesson.Questions, 2)

	details, err := env.ContentSvc.GetLessonDetails(ctx, learnerActor, res.Lesson.ID)
	require.NoError(t, err)
	require.NotNil(t, details.QuizID)
	assert.Equal(t, saved.ID, *details.QuizID)

	// 数据库层同样保证一个课时只有一个测验
	dup := &model.Quiz{LessonID: &res.Lesson.ID, Title: "dup"}
	assert.Error(t, env.DB.Create(dup).Error)
}

func TestQuestionAndAnswerEditing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, owner := env.createUser(t, "Ada Teacher", model.Instructor)

	quiz, err := env.QuizSvc.SaveQuiz(ctx, owner, capitalsQuiz(nil))
	require.NoError(t, err)

	q, err := env.QuizSvc.AddQuestion(ctx, owner, quiz.ID, QuestionReq{QuestionText: "Largest ocean?"})
	require.NoError(t, err)
	assert.Equal(t, 2, q.OrderIndex)
	assert.Equal(t, model.QuestionMCQ, q.QuestionType)

	pacific, err := env.QuizSvc.AddAnswer(ctx, owner, q.ID, AnswerReq{AnswerText: "Pacific", IsCorrect: true})
	require.NoError(t, err)
	atlantic, err := env.QuizSvc.AddAnswer(ctx, owner, q.ID, AnswerReq{AnswerText: "Atlantic", IsCorrect: true})
	require.NoError(t, err)

	// 新增正确答案会清除原正确答案
	stored, err := env.Quizzes.FindQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.False(t, answerByText(*stored, "Pacific").IsCorrect)
	assert.True(t, answerByText(*stored, "Atlantic").IsCorrect)

	updated, err := env.QuizSvc.SetCorrectAnswer(ctx, owner, q.ID, pacific.ID)
	require.NoError(t, err)
	correct := 0
	for _, a := range updated.Answers {
		if a.IsCorrect {
			correct++
			assert.Equal(t, pacific.ID, a.ID)
		}
	}
	assert.Equal(t, 1, correct)

	_, err = env.QuizSvc.SetCorrectAnswer(ctx, owner, q.ID, 9999)
	assert.True(t, util.IsKind(err, util.KindNotFound))

	fillID := quiz.Questions[1].ID
	_, err = env.QuizSvc.AddAnswer(ctx, owner, fillID, AnswerReq{AnswerText: "Lyon"})
	assert.True(t, util.IsKind(err, util.KindValidation))
	_, err = env.QuizSvc.SetCorrectAnswer(ctx, owner, fillID, atlantic.ID)
	assert.True(t, util.IsKind(err, util.KindValidation))

	require.NoError(t, env.QuizSvc.DeleteAnswer(ctx, owner, atlantic.ID))
	require.NoError(t, env.QuizSvc.DeleteQuestion(ctx, owner, q.ID))
	_, err = env.Quizzes.FindAnswer(ctx, pacific.ID)
	assert.Error(t, err)

	reloaded, err := env.QuizSvc.GetQuizDetails(ctx, owner, quiz.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Questions, 2)
}

func TestGetQuizDetails_HidesSolutionsFromLearners(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, owner := env.createUser(t, "Ada Teacher", model.Instructor)
	learner, learnerActor := env.createUser(t, "Lea Learner", model.Learner)
	_, stranger := env.createUser(t, "Sam Stranger", model.Learner)
	course := env.createCourse(t, owner, "Geo", 0)
	sec := env.createSection(t, owner, course.ID, "Europe")
	res := env.createLesson(t, owner, sec.ID, "Check", model.LessonQuiz)
	env.enroll(t, learner.ID, course.ID)

	req := capitalsQuiz(nil)
	req.ID = *res.QuizID
	_, err := env.QuizSvc.SaveQuiz(ctx, owner, req)
	require.NoError(t, err)

	forOwner, err := env.QuizSvc.GetQuizByLesson(ctx, owner, res.Lesson.ID)
	require.NoError(t, err)
	assert.True(t, answerByText(forOwner.Questions[0], "Rome").IsCorrect)
	assert.Equal(t, "Paris", forOwner.Questions[1].CorrectTextAnswer)

	forLearner, err := env.QuizSvc.GetQuizDetails(ctx, learnerActor, *res.QuizID)
	require.NoError(t, err)
	for _, q := range forLearner.Questions {
		assert.Empty(t, q.CorrectTextAnswer)
		for _, a := range q.Answers {
			assert.False(t, a.IsCorrect)
		}
	}

	_, err = env.QuizSvc.GetQuizDetails(ctx, stranger, *res.QuizID)
	assert.True(t, util.IsKind(err, util.KindForbidden))

	_, err = env.QuizSvc.GetQuizDetails(ctx, learnerActor, 9999)
	assert.True(t, util.IsKind(err, util.KindNotFound))
}

func TestSubmitQuiz_RecordsAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, owner := env.createUser(t, "Ada Teacher", model.Instructor)
	learner, learnerActor := env.createUser(t, "Lea Learner", model.Learner)
	_, stranger := env.createUser(t, "Sam Stranger", model.Learner)
	course := env.createCourse(t, owner, "Geo", 0)
	sec := env.createSection(t, owner, course.ID, "Europe")
	res := env.createLesson(t, owner, sec.ID, "Check", model.LessonQuiz)
	env.enroll(t, learner.ID, course.ID)

	req := capitalsQuiz(nil)
	req.ID = *res.QuizID
	quiz, err := env.QuizSvc.SaveQuiz(ctx, owner, req)
	require.NoError(t, err)
	mcqQ, fillQ := quiz.Questions[0], quiz.Questions[1]
	rome := answerByText(mcqQ, "Rome").ID
	milan := answerByText(mcqQ, "Milan").ID

	first, err := env.QuizSvc.SubmitQuiz(ctx, learnerActor, quiz.ID, SubmitQuizReq{Answers: map[uint]SubmittedAnswer{
		mcqQ.ID:  {AnswerID: &milan},
		fillQ.ID: {Text: ptr(" paris ")},
	}})
	require.NoError(t, err)
	assert.Equal(t, 10.0, first.Score)
	assert.Equal(t, 1, first.CorrectAnswers)
	assert.Equal(t, 2, first.TotalQuestions)
	assert.Equal(t, res.Lesson.ID, first.LessonID)

	second, err := env.QuizSvc.SubmitQuiz(ctx, learnerActor, quiz.ID, SubmitQuizReq{Answers: map[uint]SubmittedAnswer{
		mcqQ.ID:  {AnswerID: &rome},
		fillQ.ID: {Text: ptr("PARIS")},
	}})
	require.NoError(t, err)
	assert.Equal(t, 20.0, second.Score)

	last, err := env.QuizSvc.GetLastQuizAttempt(ctx, learnerActor, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, last.ID)
	assert.Len(t, last.Answers, 2)

	history, err := env.QuizSvc.GetQuizHistory(ctx, learnerActor, quiz.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	// 作答记录只追加
	stored, err := env.Quizzes.LastAttempt(ctx, learner.ID, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, stored.Score)

	_, err = env.QuizSvc.SubmitQuiz(ctx, stranger, quiz.ID, SubmitQuizReq{})
	assert.True(t, util.IsKind(err, util.KindForbidden))

	_, err = env.QuizSvc.GetLastQuizAttempt(ctx, stranger, quiz.ID)
	assert.True(t, util.IsKind(err, util.KindNotFound))
}

func TestSubmitQuiz_LessonBinding(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, owner := env.createUser(t, "Ada Teacher", model.Instructor)
	learner, learnerActor := env.createUser(t, "Lea Learner", model.Learner)
	course := env.createCourse(t, owner, "Geo", 0)
	other := env.createCourse(t, owner, "History", 0)
	sec := env.createSection(t, owner, course.ID, "Europe")
	res := env.createLesson(t, owner, sec.ID, "Check", model.LessonQuiz)
	textLesson := env.createLesson(t, owner, sec.ID, "Notes", model.LessonText).Lesson
	otherSec := env.createSection(t, owner, other.ID, "Rome")
	foreign := env.createLesson(t, owner, otherSec.ID, "Emperors", model.LessonText).Lesson
	env.enroll(t, learner.ID, course.ID)

	bound, err := env.QuizSvc.SaveQuiz(ctx, owner, capitalsQuiz(&res.Lesson.ID))
	require.NoError(t, err)

	_, err = env.QuizSvc.SubmitQuiz(ctx, learnerActor, bound.ID, SubmitQuizReq{LessonID: textLesson.ID})
	assert.True(t, util.IsKind(err, util.KindValidation))

	attempt, err := env.QuizSvc.SubmitQuiz(ctx, learnerActor, bound.ID, SubmitQuizReq{LessonID: res.Lesson.ID})
	require.NoError(t, err)
	assert.Equal(t, res.Lesson.ID, attempt.LessonID)

	standalone, err := env.QuizSvc.SaveQuiz(ctx, owner, capitalsQuiz(nil))
	require.NoError(t, err)

	attempt, err = env.QuizSvc.SubmitQuiz(ctx, learnerActor, standalone.ID, SubmitQuizReq{LessonID: textLesson.ID})
	require.NoError(t, err)
	assert.Equal(t, textLesson.ID, attempt.LessonID)

	_, err = env.QuizSvc.SubmitQuiz(ctx, learnerActor, standalone.ID, SubmitQuizReq{LessonID: foreign.ID})
	assert.True(t, util.IsKind(err, util.KindForbidden))

	_, err = env.QuizSvc.SubmitQuiz(ctx, learnerActor, standalone.ID, SubmitQuizReq{LessonID: 9999})
	assert.True(t, util.IsKind(err, util.KindNotFound))
}
