package controller

import (
	"modula_lms_backend/internal/service"
	"modula_lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

type correctAnswerReq struct {
	AnswerID uint `json:"answerId" binding:"required"`
}

// CreateQuiz godoc
// @Summary 创建测验（含题目与选项）
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.SaveQuizReq true "测验内容"
// @Success 201 {object} util.Response{data=model.Quiz}
// @Failure 400 {object} util.Response
// @Router /api/quizzes [post]
func (c *QuizController) CreateQuiz(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	var req service.SaveQuizReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	req.ID = 0
	quiz, err := c.QuizService.SaveQuiz(ctx.Request.Context(), actor, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

// UpdateQuiz godoc
// @Summary 整体替换测验
// @Description 旧题目和选项全部删除后按请求重建，历史作答记录保留
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Param body body service.SaveQuizReq true "测验内容"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Router /api/quizzes/{id} [put]
func (c *QuizController) UpdateQuiz(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	quizID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req service.SaveQuizReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	req.ID = quizID
	quiz, err := c.QuizService.SaveQuiz(ctx.Request.Context(), actor, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// GetQuiz godoc
// @Summary 测验详情
// @Description 学员视角不返回正确答案
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Router /api/quizzes/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	quizID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	quiz, err := c.QuizService.GetQuizDetails(ctx.Request.Context(), actor, quizID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// GetQuizByLesson godoc
// @Summary 按课时获取测验
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课时ID"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Router /api/lessons/{id}/quiz [get]
func (c *QuizController) GetQuizByLesson(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	lessonID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	quiz, err := c.QuizService.GetQuizByLesson(ctx.Request.Context(), actor, lessonID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// AddQuestion godoc
// @Summary 添加题目
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Param body body service.QuestionReq true "题目"
// @Success 201 {object} util.Response{data=model.Question}
// @Router /api/quizzes/{id}/questions [post]
func (c *QuizController) AddQuestion(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	quizID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req service.QuestionReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	question, err := c.QuizService.AddQuestion(ctx.Request.Context(), actor, quizID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, question)
}

// DeleteQuestion godoc
// @Summary 删除题目
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/questions/{id} [delete]
func (c *QuizController) DeleteQuestion(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	questionID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	if err := c.QuizService.DeleteQuestion(ctx.Request.Context(), actor, questionID); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"message": "question deleted"})
}

// AddAnswer godoc
// @Summary 添加选项
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Param body body service.AnswerReq true "选项"
// @Success 201 {object} util.Response{data=model.Answer}
// @Router /api/questions/{id}/answers [post]
func (c *QuizController) AddAnswer(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	questionID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req service.AnswerReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	answer, err := c.QuizService.AddAnswer(ctx.Request.Context(), actor, questionID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, answer)
}

// DeleteAnswer godoc
// @Summary 删除选项
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "选项ID"
// @Success 200 {object} util.Response
// @Router /api/answers/{id} [delete]
func (c *QuizController) DeleteAnswer(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	answerID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	if err := c.QuizService.DeleteAnswer(ctx.Request.Context(), actor, answerID); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"message": "answer deleted"})
}

// SetCorrectAnswer godoc
// @Summary 设置单选题正确选项
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Param body body correctAnswerReq true "选项ID"
// @Success 200 {object} util.Response{data=model.Question}
// @Router /api/questions/{id}/correct-answer [put]
func (c *QuizController) SetCorrectAnswer(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	questionID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req correctAnswerReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	question, err := c.QuizService.SetCorrectAnswer(ctx.Request.Context(), actor, questionID, req.AnswerID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, question)
}

// SubmitQuiz godoc
// @Summary 提交测验
// @Description answers 以题目ID为键，值为选项ID或填空文本；得分为 0-20 分
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Param body body service.SubmitQuizReq true "作答"
// @Success 201 {object} util.Response{data=model.QuizAttempt}
// @Router /api/quizzes/{id}/submit [post]
func (c *QuizController) SubmitQuiz(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	quizID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req service.SubmitQuizReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	attempt, err := c.QuizService.SubmitQuiz(ctx.Request.Context(), actor, quizID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

// GetLastAttempt godoc
// @Summary 最近一次作答
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=model.QuizAttempt}
// @Router /api/quizzes/{id}/attempts/last [get]
func (c *QuizController) GetLastAttempt(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	quizID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	attempt, err := c.QuizService.GetLastQuizAttempt(ctx.Request.Context(), actor, quizID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// GetHistory godoc
// @Summary 作答历史
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=[]model.QuizAttempt}
// @Router /api/quizzes/{id}/attempts [get]
func (c *QuizController) GetHistory(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	quizID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	attempts, err := c.QuizService.GetQuizHistory(ctx.Request.Context(), actor, quizID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}
