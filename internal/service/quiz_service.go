package service

import (
	"context"
	"errors"
	"modula_lms_backend/internal/model"
	"modula_lms_backend/internal/repository"
	"modula_lms_backend/internal/util"
	"modula_lms_backend/pkg/logger"
	"modula_lms_backend/pkg/monitoring"
	"modula_lms_backend/pkg/tracing"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type QuizService struct {
	QuizRepo       *repository.QuizRepository
	ContentRepo    *repository.ContentRepository
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
}

func NewQuizService(
	quizRepo *repository.QuizRepository,
	contentRepo *repository.ContentRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
) *QuizService {
	return &QuizService{
		QuizRepo:       quizRepo,
		ContentRepo:    contentRepo,
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
	}
}

type AnswerReq struct {
	AnswerText string `json:"answerText"`
	IsCorrect  bool   `json:"isCorrect"`
}

type QuestionReq struct {
	QuestionText      string      `json:"questionText"`
	QuestionType      string      `json:"questionType"`
	CorrectTextAnswer string      `json:"correctTextAnswer"`
	Answers           []AnswerReq `json:"answers"`
}

// SaveQuizReq ID 为 0 时创建测验
type SaveQuizReq struct {
	ID          uint          `json:"id"`
	LessonID    *uint         `json:"lessonId"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Questions   []QuestionReq `json:"questions"`
}

func questionType(raw string) (model.QuestionType, error) {
	t := model.QuestionType(strings.TrimSpace(raw))
	if t == "" {
		t = model.QuestionMCQ
	}
	if !t.Valid() {
		return "", util.ValidationError("invalid question type: %s", raw)
	}
	return t, nil
}

func (r SaveQuizReq) toQuestions() ([]model.Question, error) {
	questions := make([]model.Question, 0, len(r.Questions))
	for i, qr := range r.Questions {
		text := strings.TrimSpace(qr.QuestionText)
		if text == "" {
			return nil, util.ValidationError("question %d: questionText is required", i+1)
		}
		qt, err := questionType(qr.QuestionType)
		if err != nil {
			return nil, err
		}

		q := model.Question{QuestionText: text, QuestionType: qt}
		switch qt {
		case model.QuestionFillInBlank:
			if strings.TrimSpace(qr.CorrectTextAnswer) == "" {
				return nil, util.ValidationError("question %d: correctTextAnswer is required for fill_in_the_blank", i+1)
			}
			q.CorrectTextAnswer = qr.CorrectTextAnswer
		case model.QuestionMCQ:
			correct := 0
			for j, ar := range qr.Answers {
				if strings.TrimSpace(ar.AnswerText) == "" {
					return nil, util.ValidationError("question %d answer %d: answerText is required", i+1, j+1)
				}
				if ar.IsCorrect {
					correct++
				}
				q.Answers = append(q.Answers, model.Answer{AnswerText: ar.AnswerText, IsCorrect: ar.IsCorrect})
			}
			if correct > 1 {
				return nil, util.ValidationError("question %d: multiple choice question can have at most one correct answer", i+1)
			}
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// authorizeQuiz 绑定到课时的测验只允许课程讲师修改；独立测验仅需讲师角色
func (s *QuizService) authorizeQuiz(ctx context.Context, actor Actor, quizID uint) error {
	courseID, err := s.QuizRepo.CourseIDForQuiz(ctx, quizID)
	if err != nil {
		return util.InternalError("database error", err)
	}
	if courseID == 0 {
		return nil
	}
	return ensureOwner(ctx, s.CourseRepo, actor, courseID)
}

// SaveQuiz 全量保存：更新测验后删除全部题目并按列表顺序重建
func (s *QuizService) SaveQuiz(ctx context.Context, actor Actor, req SaveQuizReq) (*model.Quiz, error) {
	ctx, span := tracing.Tracer.Start(ctx, "QuizService.SaveQuiz")
	defer span.End()

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, util.ValidationError("quiz title is required")
	}
	questions, err := req.toQuestions()
	if err != nil {
		return nil, err
	}

	quiz := &model.Quiz{Title: title, Description: req.Description}
	if req.ID != 0 {
		existing, err := s.QuizRepo.FindByID(ctx, req.ID)
		if err != nil {
			return nil, storeError(err, util.ErrQuizNotFound)
		}
		if err := s.authorizeQuiz(ctx, actor, existing.ID); err != nil {
			return nil, err
		}
		quiz.ID = existing.ID
		quiz.LessonID = existing.LessonID
	} else if req.LessonID != nil {
		if _, err := s.ContentRepo.FindLesson(ctx, *req.LessonID); err != nil {
			return nil, storeError(err, util.ErrLessonNotFound)
		}
		courseID, err := s.ContentRepo.CourseIDForLesson(ctx, *req.LessonID)
		if err != nil {
			return nil, storeError(err, util.ErrLessonNotFound)
		}
		if err := ensureOwner(ctx, s.CourseRepo, actor, courseID); err != nil {
			return nil, err
		}
		lessonID := *req.LessonID
		quiz.LessonID = &lessonID
		// 测验课时创建时已生成测验，一个课时只对应一个测验，直接覆盖
		existingID, err := s.QuizRepo.FindIDByLesson(ctx, lessonID)
		if err != nil {
			return nil, util.InternalError("database error", err)
		}
		quiz.ID = existingID
	}

	if err := s.QuizRepo.Save(ctx, quiz, questions); err != nil {
		return nil, storeError(err, util.ErrQuizNotFound)
	}
	return s.loadQuiz(ctx, quiz.ID)
}

func (s *QuizService) loadQuiz(ctx context.Context, id uint) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, util.ErrQuizNotFound)
	}
	return quiz, nil
}

// readable 学员只能读取已报名课程的测验，且看不到正确答案
func (s *QuizService) readable(ctx context.Context, actor Actor, quiz *model.Quiz) (*model.Quiz, error) {
	courseID, err := s.QuizRepo.CourseIDForQuiz(ctx, quiz.ID)
	if err != nil {
		return nil, util.InternalError("database error", err)
	}
	if courseID == 0 {
		if actor.Role == model.Learner {
			hideSolutions(quiz)
		}
		return quiz, nil
	}
	if err := ensureAccess(ctx, s.CourseRepo, s.EnrollmentRepo, actor, courseID); err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return quiz, nil
	}
	owner, err := s.CourseRepo.IsOwner(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, util.InternalError("database error", err)
	}
	if !owner {
		hideSolutions(quiz)
	}
	return quiz, nil
}

func hideSolutions(quiz *model.Quiz) {
	for i := range quiz.Questions {
		quiz.Questions[i].CorrectTextAnswer = ""
		for j := range quiz.Questions[i].Answers {
			quiz.Questions[i].Answers[j].IsCorrect = false
		}
	}
}

func (s *QuizService) GetQuizDetails(ctx context.Context, actor Actor, quizID uint) (*model.Quiz, error) {
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return s.readable(ctx, actor, quiz)
}

// GetQuizByLesson 优先使用关联到课时的测验，其次使用第一个测验内容块
func (s *QuizService) GetQuizByLesson(ctx context.Context, actor Actor, lessonID uint) (*model.Quiz, error) {
	if _, err := s.ContentRepo.FindLesson(ctx, lessonID); err != nil {
		return nil, storeError(err, util.ErrLessonNotFound)
	}
	quiz, err := s.QuizRepo.FindByLesson(ctx, lessonID)
	if err == nil {
		return s.readable(ctx, actor, quiz)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.InternalError("database error", err)
	}

	blocks, err := s.ContentRepo.ListBlocks(ctx, lessonID)
	if err != nil {
		return nil, util.InternalError("failed to load content blocks", err)
	}
	quizID := quizIDFromBlocks(blocks)
	if quizID == 0 {
		return nil, util.ErrQuizNotFound
	}
	return s.GetQuizDetails(ctx, actor, quizID)
}

func (s *QuizService) AddQuestion(ctx context.Context, actor Actor, quizID uint, req QuestionReq) (*model.Question, error) {
	text := strings.TrimSpace(req.QuestionText)
	if text == "" {
		return nil, util.ValidationError("questionText is required")
	}
	qt, err := questionType(req.QuestionType)
	if err != nil {
		return nil, err
	}
	if qt == model.QuestionFillInBlank && strings.TrimSpace(req.CorrectTextAnswer) == "" {
		return nil, util.ValidationError("correctTextAnswer is required for fill_in_the_blank")
	}
	if _, err := s.loadQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	if err := s.authorizeQuiz(ctx, actor, quizID); err != nil {
		return nil, err
	}

	q := &model.Question{QuizID: quizID, QuestionText: text, QuestionType: qt}
	if qt == model.QuestionFillInBlank {
		q.CorrectTextAnswer = req.CorrectTextAnswer
	}
	if err := s.QuizRepo.CreateQuestion(ctx, q); err != nil {
		return nil, util.InternalError("failed to create question", err)
	}
	return q, nil
}

func (s *QuizService) questionForWrite(ctx context.Context, actor Actor, questionID uint) (*model.Question, error) {
	q, err := s.QuizRepo.FindQuestion(ctx, questionID)
	if err != nil {
		return nil, storeError(err, util.ErrQuestionNotFound)
	}
	if err := s.authorizeQuiz(ctx, actor, q.QuizID); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QuizService) DeleteQuestion(ctx context.Context, actor Actor, questionID uint) error {
	if _, err := s.questionForWrite(ctx, actor, questionID); err != nil {
		return err
	}
	if err := s.QuizRepo.DeleteQuestion(ctx, questionID); err != nil {
		return util.InternalError("failed to delete question", err)
	}
	return nil
}

func (s *QuizService) AddAnswer(ctx context.Context, actor Actor, questionID uint, req AnswerReq) (*model.Answer, error) {
	if strings.TrimSpace(req.AnswerText) == "" {
		return nil, util.ValidationError("answerText is required")
	}
	q, err := s.questionForWrite(ctx, actor, questionID)
	if err != nil {
		return nil, err
	}
	if q.QuestionType != model.QuestionMCQ {
		return nil, util.ValidationError("answers can only be added to multiple choice questions")
	}

	a := &model.Answer{QuestionID: questionID, AnswerText: req.AnswerText, IsCorrect: req.IsCorrect}
	if err := s.QuizRepo.CreateAnswer(ctx, a, true); err != nil {
		return nil, util.InternalError("failed to create answer", err)
	}
	return a, nil
}

func (s *QuizService) DeleteAnswer(ctx context.Context, actor Actor, answerID uint) error {
	a, err := s.QuizRepo.FindAnswer(ctx, answerID)
	if err != nil {
		return storeError(err, util.ErrAnswerNotFound)
	}
	if _, err := s.questionForWrite(ctx, actor, a.QuestionID); err != nil {
		return err
	}
	if err := s.QuizRepo.DeleteAnswer(ctx, answerID); err != nil {
		return util.InternalError("failed to delete answer", err)
	}
	return nil
}

// SetCorrectAnswer 同题其它答案全部置为错误
func (s *QuizService) SetCorrectAnswer(ctx context.Context, actor Actor, questionID, answerID uint) (*model.Question, error) {
	q, err := s.questionForWrite(ctx, actor, questionID)
	if err != nil {
		return nil, err
	}
	if q.QuestionType != model.QuestionMCQ {
		return nil, util.ValidationError("only multiple choice questions have a correct answer id")
	}
	if err := s.QuizRepo.SetCorrectAnswer(ctx, questionID, answerID); err != nil {
		return nil, storeError(err, util.ErrAnswerNotFound)
	}
	q, err = s.QuizRepo.FindQuestion(ctx, questionID)
	if err != nil {
		return nil, storeError(err, util.ErrQuestionNotFound)
	}
	return q, nil
}

type SubmitQuizReq struct {
	LessonID uint                     `json:"lessonId"`
	Answers  map[uint]SubmittedAnswer `json:"answers"`
}

// SubmitQuiz 评分并追加一条不可修改的作答记录
func (s *QuizService) SubmitQuiz(ctx context.Context, actor Actor, quizID uint, req SubmitQuizReq) (*model.QuizAttempt, error) {
	ctx, span := tracing.Tracer.Start(ctx, "QuizService.SubmitQuiz")
	defer span.End()

	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	courseID, err := s.QuizRepo.CourseIDForQuiz(ctx, quizID)
	if err != nil {
		return nil, util.InternalError("database error", err)
	}
	if courseID != 0 {
		if err := ensureAccess(ctx, s.CourseRepo, s.EnrollmentRepo, actor, courseID); err != nil {
			return nil, err
		}
	}

	// 绑定课时的测验以存储的课时为准；独立测验的课时需可访问
	lessonID := req.LessonID
	if quiz.LessonID != nil {
		if lessonID != 0 && lessonID != *quiz.LessonID {
			return nil, util.ValidationError("quiz %d does not belong to lesson %d", quizID, lessonID)
		}
		lessonID = *quiz.LessonID
	} else if lessonID != 0 {
		lessonCourseID, err := s.ContentRepo.CourseIDForLesson(ctx, lessonID)
		if err != nil {
			return nil, storeError(err, util.ErrLessonNotFound)
		}
		if err := ensureAccess(ctx, s.CourseRepo, s.EnrollmentRepo, actor, lessonCourseID); err != nil {
			return nil, err
		}
	}

	result := ScoreQuiz(quiz.Questions, req.Answers)
	attempt := &model.QuizAttempt{
		StudentID:      actor.UserID,
		QuizID:         quizID,
		LessonID:       lessonID,
		Score:          result.Score,
		TotalQuestions: result.TotalQuestions,
		CorrectAnswers: result.CorrectAnswers,
		AttemptDate:    time.Now(),
		Answers:        result.Answers,
	}
	if err := s.QuizRepo.CreateAttempt(ctx, attempt); err != nil {
		return nil, util.InternalError("failed to save quiz attempt", err)
	}

	monitoring.QuizAttempts.Inc()
	logger.Log.Info("Quiz attempt scored",
		zap.Uint("quiz_id", quizID),
		zap.Uint("student_id", actor.UserID),
		zap.Float64("score", attempt.Score),
		zap.Int("correct", attempt.CorrectAnswers),
		zap.Int("total", attempt.TotalQuestions))
	return attempt, nil
}

func (s *QuizService) GetLastQuizAttempt(ctx context.Context, actor Actor, quizID uint) (*model.QuizAttempt, error) {
	attempt, err := s.QuizRepo.LastAttempt(ctx, actor.UserID, quizID)
	if err != nil {
		return nil, storeError(err, util.NotFoundError("no attempt found for this quiz"))
	}
	return attempt, nil
}

func (s *QuizService) GetQuizHistory(ctx context.Context, actor Actor, quizID uint) ([]model.QuizAttempt, error) {
	attempts, err := s.QuizRepo.ListAttempts(ctx, actor.UserID, quizID)
	if err != nil {
		return nil, util.InternalError("failed to load quiz history", err)
	}
	return attempts, nil
}
