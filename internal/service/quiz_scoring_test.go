package service

import (
	"encoding/json"
	"modula_lms_backend/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mcq(id uint, correct uint, others ...uint) model.Question {
	q := model.Question{ID: id, QuestionType: model.QuestionMCQ}
	q.Answers = append(q.Answers, model.Answer{ID: correct, QuestionID: id, IsCorrect: true})
	for _, o := range others {
		q.Answers = append(q.Answers, model.Answer{ID: o, QuestionID: id})
	}
	return q
}

func fill(id uint, canonical string) model.Question {
	return model.Question{ID: id, QuestionType: model.QuestionFillInBlank, CorrectTextAnswer: canonical}
}

func TestScoreQuiz(t *testing.T) {
	questions := []model.Question{
		mcq(1, 10, 11, 12),
		mcq(2, 20, 21),
		mcq(3, 30, 31),
		fill(4, " paris "),
	}
	submitted := map[uint]SubmittedAnswer{
		1: {AnswerID: ptr(uint(10))},
		2: {AnswerID: ptr(uint(20))},
		3: {AnswerID: ptr(uint(30))},
		4: {Text: ptr("Paris")},
	}

	first := ScoreQuiz(questions, submitted)
	assert.Equal(t, 15.0, first.Score)
	assert.Equal(t, 3, first.CorrectAnswers)
	assert.Equal(t, 4, first.TotalQuestions)
	require.Len(t, first.Answers, 4)

	// 同样的输入总是同样的结果
	second := ScoreQuiz(questions, submitted)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.CorrectAnswers, second.CorrectAnswers)
}

func TestScoreQuiz_FillInTrimAndCase(t *testing.T) {
	questions := []model.Question{fill(1, "Paris")}

	cases := []struct {
		answer  string
		correct bool
	}{
		{"Paris", true},
		{"  paris\t", true},
		{"PARIS", true},
		{"Pàris", false},
		{"Paris.", false},
		{"", false},
	}
	for _, tc := range cases {
		res := ScoreQuiz(questions, map[uint]SubmittedAnswer{1: {Text: ptr(tc.answer)}})
		assert.Equal(t, tc.correct, res.Answers[0].IsCorrect, "answer %q", tc.answer)
	}
}

func TestScoreQuiz_MissingAndUnknownQuestions(t *testing.T) {
	questions := []model.Question{mcq(1, 10, 11), mcq(2, 20, 21)}

	res := ScoreQuiz(questions, map[uint]SubmittedAnswer{
		1:   {AnswerID: ptr(uint(10))},
		999: {AnswerID: ptr(uint(10))},
	})
	assert.Equal(t, 10.0, res.Score)
	assert.Equal(t, 1, res.CorrectAnswers)
	assert.Equal(t, 2, res.TotalQuestions)
	// 未作答的题目不生成作答行，未知题目被忽略
	require.Len(t, res.Answers, 1)
	assert.Equal(t, uint(1), res.Answers[0].QuestionID)
}

func TestScoreQuiz_WrongChoiceAndEmptyQuiz(t *testing.T) {
	res := ScoreQuiz([]model.Question{mcq(1, 10, 11)}, map[uint]SubmittedAnswer{1: {AnswerID: ptr(uint(11))}})
	assert.Equal(t, 0.0, res.Score)
	require.Len(t, res.Answers, 1)
	assert.False(t, res.Answers[0].IsCorrect)
	assert.Equal(t, uint(11), *res.Answers[0].SelectedAnswerID)

	empty := ScoreQuiz(nil, map[uint]SubmittedAnswer{1: {AnswerID: ptr(uint(1))}})
	assert.Equal(t, 0.0, empty.Score)
	assert.Equal(t, 0, empty.TotalQuestions)
}

func TestScoreQuiz_RoundsToTwoDecimals(t *testing.T) {
	questions := []model.Question{mcq(1, 10), mcq(2, 20), mcq(3, 30)}
	res := ScoreQuiz(questions, map[uint]SubmittedAnswer{1: {AnswerID: ptr(uint(10))}})
	assert.Equal(t, 6.67, res.Score)
}

func TestSubmittedAnswer_UnmarshalJSON(t *testing.T) {
	var answers map[uint]SubmittedAnswer
	body := `{"1": 42, "2": "  Paris ", "3": {"answerId": 7}, "4": {"text": "Lyon"}, "5": null}`
	require.NoError(t, json.Unmarshal([]byte(body), &answers))

	id, ok := answers[1].answerID()
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)

	text, ok := answers[2].text()
	assert.True(t, ok)
	assert.Equal(t, "  Paris ", text)
	_, ok = answers[2].answerID()
	assert.False(t, ok)

	id, ok = answers[3].answerID()
	assert.True(t, ok)
	assert.Equal(t, uint(7), id)

	text, ok = answers[4].text()
	assert.True(t, ok)
	assert.Equal(t, "Lyon", text)

	_, ok = answers[5].answerID()
	assert.False(t, ok)

	var bad SubmittedAnswer
	assert.Error(t, json.Unmarshal([]byte(`-3`), &bad))
}
