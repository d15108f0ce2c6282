package controller

import (
	"modula_lms_backend/internal/service"
	"modula_lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ContentController struct {
	ContentService *service.ContentService
}

func NewContentController(contentService *service.ContentService) *ContentController {
	return &ContentController{ContentService: contentService}
}

type sectionReq struct {
	Title string `json:"title" binding:"required,notblank"`
}

type lessonContentReq struct {
	Blocks []service.ContentBlockReq `json:"blocks"`
}

// CreateSection godoc
// @Summary 创建章节
// @Description 新章节追加到课程末尾
// @Tags 课程内容
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param body body sectionReq true "章节标题"
// @Success 201 {object} util.Response{data=model.Section}
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response
// @Router /api/courses/{id}/sections [post]
func (c *ContentController) CreateSection(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req sectionReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	section, err := c.ContentService.CreateSection(ctx.Request.Context(), actor, courseID, req.Title)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, section)
}

// EditSection godoc
// @Summary 修改章节标题
// @Tags 课程内容
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "章节ID"
// @Param body body sectionReq true "章节标题"
// @Success 200 {object} util.Response{data=model.Section}
// @Router /api/sections/{id} [put]
func (c *ContentController) EditSection(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	sectionID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req sectionReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	section, err := c.ContentService.EditSection(ctx.Request.Context(), actor, sectionID, req.Title)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, section)
}

// DeleteSection godoc
// @Summary 删除章节及其课时
// @Tags 课程内容
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "章节ID"
// @Success 200 {object} util.Response
// @Router /api/sections/{id} [delete]
func (c *ContentController) DeleteSection(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	sectionID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	if err := c.ContentService.DeleteSection(ctx.Request.Context(), actor, sectionID); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"message": "section deleted"})
}

// CreateLesson godoc
// @Summary 创建课时
// @Description lessonType 为 quiz 时同时创建空测验并返回 quizId
// @Tags 课程内容
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "章节ID"
// @Param body body service.CreateLessonReq true "课时信息"
// @Success 201 {object} util.Response{data=service.CreateLessonResult}
// @Failure 400 {object} util.Response
// @Router /api/sections/{id}/lessons [post]
func (c *ContentController) CreateLesson(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	sectionID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req service.CreateLessonReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	result, err := c.ContentService.CreateLesson(ctx.Request.Context(), actor, sectionID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, result)
}

// EditLesson godoc
// @Summary 修改课时
// @Tags 课程内容
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课时ID"
// @Param body body service.EditLessonReq true "需要修改的字段"
// @Success 200 {object} util.Response{data=model.Lesson}
// @Router /api/lessons/{id} [put]
func (c *ContentController) EditLesson(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	lessonID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req service.EditLessonReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	lesson, err := c.ContentService.EditLesson(ctx.Request.Context(), actor, lessonID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, lesson)
}

// DeleteLesson godoc
// @Summary 删除课时
// @Tags 课程内容
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课时ID"
// @Success 200 {object} util.Response
// @Router /api/lessons/{id} [delete]
func (c *ContentController) DeleteLesson(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	lessonID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	if err := c.ContentService.DeleteLesson(ctx.Request.Context(), actor, lessonID); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"message": "lesson deleted"})
}

// SaveLessonContent godoc
// @Summary 保存课时内容块
// @Description 以请求中的块列表整体替换原有内容，顺序即列表顺序
// @Tags 课程内容
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课时ID"
// @Param body body lessonContentReq true "内容块列表"
// @Success 200 {object} util.Response{data=[]model.ContentBlock}
// @Router /api/lessons/{id}/content [put]
func (c *ContentController) SaveLessonContent(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	lessonID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req lessonContentReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	blocks, err := c.ContentService.SaveLessonContent(ctx.Request.Context(), actor, lessonID, req.Blocks)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, blocks)
}

// GetLessonDetails godoc
// @Summary 课时详情
// @Description 返回课时、内容块、关联测验ID以及当前学员的提交
// @Tags 课程内容
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课时ID"
// @Success 200 {object} util.Response{data=service.LessonDetails}
// @Router /api/lessons/{id} [get]
func (c *ContentController) GetLessonDetails(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	lessonID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	details, err := c.ContentService.GetLessonDetails(ctx.Request.Context(), actor, lessonID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, details)
}

// MarkLessonCompleted godoc
// @Summary 标记课时完成
// @Tags 课程内容
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课时ID"
// @Success 200 {object} util.Response{data=model.UserLessonCompletion}
// @Router /api/lessons/{id}/complete [post]
func (c *ContentController) MarkLessonCompleted(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	lessonID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	completion, err := c.ContentService.MarkLessonCompleted(ctx.Request.Context(), actor, lessonID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, completion)
}
