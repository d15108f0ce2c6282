package controller

import (
	"modula_lms_backend/internal/service"
	"modula_lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ChatController struct {
	ChatService *service.ChatService
}

func NewChatController(chatService *service.ChatService) *ChatController {
	return &ChatController{ChatService: chatService}
}

type groupChatReq struct {
	CourseID uint `json:"courseId" binding:"required"`
}

type individualChatReq struct {
	UserID uint `json:"userId" binding:"required"`
}

// ListConversations godoc
// @Summary 会话列表
// @Description 按最后活跃时间倒序，附带最后一条消息
// @Tags 聊天
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]repository.ConversationRow}
// @Router /api/conversations [get]
func (c *ChatController) ListConversations(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	rows, err := c.ChatService.ListConversations(ctx.Request.Context(), actor)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, rows)
}

// CreateGroupChat godoc
// @Summary 获取或创建课程群聊
// @Tags 聊天
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body groupChatReq true "课程ID"
// @Success 200 {object} util.Response{data=model.Conversation}
// @Router /api/conversations/group [post]
func (c *ChatController) CreateGroupChat(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	var req groupChatReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	conv, err := c.ChatService.CreateOrGetGroupChat(ctx.Request.Context(), actor, req.CourseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, conv)
}

// CreateIndividualChat godoc
// @Summary 获取或创建私聊
// @Tags 聊天
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body individualChatReq true "对方用户ID"
// @Success 200 {object} util.Response{data=model.Conversation}
// @Router /api/conversations/individual [post]
func (c *ChatController) CreateIndividualChat(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	var req individualChatReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	conv, err := c.ChatService.CreateOrGetIndividualChat(ctx.Request.Context(), actor, req.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, conv)
}

// ListMessages godoc
// @Summary 会话消息
// @Tags 聊天
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "会话ID"
// @Success 200 {object} util.Response{data=[]model.MessageView}
// @Failure 403 {object} util.Response
// @Router /api/conversations/{id}/messages [get]
func (c *ChatController) ListMessages(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	convID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	messages, err := c.ChatService.ListMessages(ctx.Request.Context(), actor, convID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, messages)
}

// SendMessage godoc
// @Summary 发送消息
// @Description 文本与图片至少一项
// @Tags 聊天
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "会话ID"
// @Param body body service.SendMessageReq true "消息内容"
// @Success 201 {object} util.Response{data=model.MessageView}
// @Failure 403 {object} util.Response
// @Router /api/conversations/{id}/messages [post]
func (c *ChatController) SendMessage(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	convID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req service.SendMessageReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	msg, err := c.ChatService.SendMessage(ctx.Request.Context(), actor, convID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, msg)
}
