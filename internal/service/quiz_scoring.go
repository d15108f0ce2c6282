package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"modula_lms_backend/internal/model"
	"modula_lms_backend/internal/util"
	"strconv"
	"strings"
)

// SubmittedAnswer 单题作答：选择题为答案 ID，填空题为文本
// JSON 中可写作数字、字符串或 {"answerId":..,"text":..}
type SubmittedAnswer struct {
	AnswerID *uint   `json:"answerId,omitempty"`
	Text     *string `json:"text,omitempty"`
}

func (a *SubmittedAnswer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		a.Text = &s
	case '{':
		type plain SubmittedAnswer
		var v plain
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*a = SubmittedAnswer(v)
	default:
		id, err := strconv.ParseUint(string(b), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid answer value %s", string(b))
		}
		uid := uint(id)
		text := string(b)
		a.AnswerID = &uid
		a.Text = &text
	}
	return nil
}

func (a SubmittedAnswer) answerID() (uint, bool) {
	if a.AnswerID != nil {
		return *a.AnswerID, true
	}
	if a.Text != nil {
		if id, err := strconv.ParseUint(strings.TrimSpace(*a.Text), 10, 64); err == nil {
			return uint(id), true
		}
	}
	return 0, false
}

func (a SubmittedAnswer) text() (string, bool) {
	if a.Text != nil {
		return *a.Text, true
	}
	return "", false
}

// QuizScore 一次作答的评分结果
type QuizScore struct {
	Score          float64
	TotalQuestions int
	CorrectAnswers int
	Answers        []model.QuizAttemptAnswer
}

// ScoreQuiz 纯函数：同样的题目与作答总是得到同样的分数
// 未作答的题目计为错误；不属于该测验的题目 ID 被忽略
func ScoreQuiz(questions []model.Question, submitted map[uint]SubmittedAnswer) QuizScore {
	result := QuizScore{TotalQuestions: len(questions)}

	for _, q := range questions {
		answer, ok := submitted[q.ID]
		if !ok {
			continue
		}

		row := model.QuizAttemptAnswer{QuestionID: q.ID}
		switch q.QuestionType {
		case model.QuestionFillInBlank:
			if text, ok := answer.text(); ok {
				t := text
				row.SelectedTextAnswer = &t
				row.IsCorrect = fillInMatches(text, q.CorrectTextAnswer)
			}
		default:
			if id, ok := answer.answerID(); ok {
				selected := id
				row.SelectedAnswerID = &selected
				row.IsCorrect = isCorrectChoice(q.Answers, id)
			}
		}
		if row.IsCorrect {
			result.CorrectAnswers++
		}
		result.Answers = append(result.Answers, row)
	}

	if result.TotalQuestions > 0 {
		result.Score = util.Round2(float64(result.CorrectAnswers) / float64(result.TotalQuestions) * util.QuizMaxScore)
	}
	return result
}

// fillInMatches 去除作答文本首尾空白后与标准答案忽略大小写比较
// 标准答案按作者保存的原样参与比较，不做其它规范化
func fillInMatches(submitted, canonical string) bool {
	if strings.TrimSpace(canonical) == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(submitted), canonical)
}

func isCorrectChoice(answers []model.Answer, id uint) bool {
	for _, a := range answers {
		if a.ID == id {
			return a.IsCorrect
		}
	}
	return false
}
