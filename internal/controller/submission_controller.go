package controller

import (
	"modula_lms_backend/internal/service"
	"modula_lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SubmissionController struct {
	SubmissionService *service.SubmissionService
}

func NewSubmissionController(submissionService *service.SubmissionService) *SubmissionController {
	return &SubmissionController{SubmissionService: submissionService}
}

// SubmitAssignment godoc
// @Summary 提交作业或测评
// @Description 重复提交会覆盖原内容并清空成绩与评语
// @Tags 作业
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课时ID"
// @Param body body service.SubmitAssignmentReq true "提交内容"
// @Success 200 {object} util.Response{data=model.Submission}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/lessons/{id}/submissions [post]
func (c *SubmissionController) SubmitAssignment(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	lessonID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req service.SubmitAssignmentReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	submission, err := c.SubmissionService.SubmitAssignment(ctx.Request.Context(), actor, lessonID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, submission)
}

// GetMySubmissions godoc
// @Summary 我的提交
// @Tags 作业
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]repository.SubmissionRow}
// @Router /api/submissions/mine [get]
func (c *SubmissionController) GetMySubmissions(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	rows, err := c.SubmissionService.GetMySubmissions(ctx.Request.Context(), actor)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, rows)
}

// GetInstructorSubmissions godoc
// @Summary 讲师名下课程的全部提交
// @Tags 作业
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]repository.SubmissionRow}
// @Router /api/instructor/submissions [get]
func (c *SubmissionController) GetInstructorSubmissions(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	rows, err := c.SubmissionService.GetInstructorSubmissions(ctx.Request.Context(), actor)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, rows)
}

// GetSubmission godoc
// @Summary 提交详情
// @Tags 作业
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "提交ID"
// @Success 200 {object} util.Response{data=model.Submission}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/submissions/{id} [get]
func (c *SubmissionController) GetSubmission(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	submissionID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	submission, err := c.SubmissionService.GetSubmissionDetails(ctx.Request.Context(), actor, submissionID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, submission)
}

// GradeSubmission godoc
// @Summary 评分
// @Description 成绩可选，可多次评分，状态变为 graded
// @Tags 作业
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "提交ID"
// @Param body body service.GradeReq true "成绩与评语"
// @Success 200 {object} util.Response{data=model.Submission}
// @Router /api/submissions/{id}/grade [put]
func (c *SubmissionController) GradeSubmission(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	submissionID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req service.GradeReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	submission, err := c.SubmissionService.GradeSubmission(ctx.Request.Context(), actor, submissionID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, submission)
}
