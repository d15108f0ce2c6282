package controller

import (
	"io"
	"modula_lms_backend/internal/service"
	"modula_lms_backend/internal/util"
	"modula_lms_backend/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxWebhookBody Stripe 事件体上限
const maxWebhookBody = 64 << 10

type PaymentController struct {
	PaymentService *service.PaymentService
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{PaymentService: paymentService}
}

type checkoutReq struct {
	CourseID uint `json:"courseId" binding:"required"`
}

// CreateCheckout godoc
// @Summary 创建课程支付会话
// @Description 不写本地数据，报名由支付成功的 webhook 完成
// @Tags 支付
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body checkoutReq true "课程ID"
// @Success 200 {object} util.Response{data=service.CheckoutSession}
// @Failure 409 {object} util.Response "已报名或讲师未开通收款"
// @Failure 502 {object} util.Response "支付服务不可用"
// @Router /api/payments/checkout [post]
func (c *PaymentController) CreateCheckout(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	var req checkoutReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	session, err := c.PaymentService.CreateCheckoutSession(ctx.Request.Context(), actor, req.CourseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// CreateConnectAccount godoc
// @Summary 开通讲师收款账户
// @Description 返回收款账户的入驻链接
// @Tags 支付
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.ConnectAccountResult}
// @Failure 502 {object} util.Response
// @Router /api/payments/connect-account [post]
func (c *PaymentController) CreateConnectAccount(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	result, err := c.PaymentService.CreateConnectedAccount(ctx.Request.Context(), actor)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetConnectAccount godoc
// @Summary 收款账户状态
// @Tags 支付
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.PayoutAccount}
// @Failure 404 {object} util.Response
// @Router /api/payments/connect-account [get]
func (c *PaymentController) GetConnectAccount(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	account, err := c.PaymentService.GetPayoutStatus(ctx.Request.Context(), actor)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, account)
}

// CheckoutWebhook godoc
// @Summary 支付完成回调
// @Description 校验 Stripe-Signature 后幂等写入报名记录
// @Tags 支付
// @Accept json
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 400 {object} util.Response "签名无效"
// @Failure 500 {object} util.Response "存储失败，等待重投"
// @Router /api/webhooks/stripe/checkout [post]
func (c *PaymentController) CheckoutWebhook(ctx *gin.Context) {
	c.handleWebhook(ctx, service.WebhookCheckout)
}

// ConnectWebhook godoc
// @Summary 收款账户状态回调
// @Tags 支付
// @Accept json
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 400 {object} util.Response "签名无效"
// @Router /api/webhooks/stripe/connect [post]
func (c *PaymentController) ConnectWebhook(ctx *gin.Context) {
	c.handleWebhook(ctx, service.WebhookConnect)
}

// handleWebhook 必须读取原始请求体，签名基于原始字节计算
func (c *PaymentController) handleWebhook(ctx *gin.Context, source service.WebhookSource) {
	payload, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWebhookBody))
	if err != nil {
		logger.Log.Warn("Failed to read webhook body", zap.String("source", string(source)), zap.Error(err))
		util.BadRequest(ctx, "unable to read request body")
		return
	}

	signature := ctx.GetHeader("Stripe-Signature")
	if err := c.PaymentService.HandleWebhook(ctx.Request.Context(), source, payload, signature); err != nil {
		util.HandleError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"received": true})
}
