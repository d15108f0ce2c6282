package service

import (
	"context"
	"encoding/json"
	"fmt"
	"modula_lms_backend/internal/config"
	"modula_lms_backend/internal/util"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// CheckoutParams 创建支付会话所需参数，金额单位为分
type CheckoutParams struct {
	CourseID           uint
	UserID             uint
	CourseTitle        string
	Currency           string
	UnitAmount         int64
	ApplicationFee     int64
	DestinationAccount string
	SuccessURL         string
	CancelURL          string
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// WebhookEvent 已验签并解析的支付事件
type WebhookEvent struct {
	ID               string
	Type             string
	Metadata         map[string]string
	AccountID        string
	DetailsSubmitted bool
	PayoutsEnabled   bool
}

// PaymentGateway 支付处理方，测试中可替换
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	CreateConnectedAccount(ctx context.Context, email string) (string, error)
	CreateOnboardingLink(ctx context.Context, accountID string, links OnboardingURLs) (string, error)
	ParseWebhook(payload []byte, signature, secret string) (*WebhookEvent, error)
}

// OnboardingURLs 开通链接的回跳地址，随配置热更新
type OnboardingURLs struct {
	RefreshURL string
	ReturnURL  string
}

type StripeGateway struct {
	API *client.API
}

func NewStripeGateway(cfg *config.PaymentConfig) *StripeGateway {
	return &StripeGateway{
		API: client.New(cfg.SecretKey, nil),
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(p.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.CourseTitle),
					},
					UnitAmount: stripe.Int64(p.UnitAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			ApplicationFeeAmount: stripe.Int64(p.ApplicationFee),
			TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(p.DestinationAccount),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("user_id", fmt.Sprint(p.UserID))
	params.AddMetadata("course_id", fmt.Sprint(p.CourseID))

	s, err := g.API.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) CreateConnectedAccount(ctx context.Context, email string) (string, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	params.Context = ctx
	acct, err := g.API.Accounts.New(params)
	if err != nil {
		return "", err
	}
	return acct.ID, nil
}

func (g *StripeGateway) CreateOnboardingLink(ctx context.Context, accountID string, links OnboardingURLs) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(links.RefreshURL),
		ReturnURL:  stripe.String(links.ReturnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx
	link, err := g.API.AccountLinks.New(params)
	if err != nil {
		return "", err
	}
	return link.URL, nil
}

// ParseWebhook 在解析任何内容之前先校验签名
func (g *StripeGateway) ParseWebhook(payload []byte, signature, secret string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, util.BadSignatureError(err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, util.ValidationError("malformed checkout session payload")
		}
		out.Metadata = s.Metadata
	case stripe.EventTypeAccountUpdated:
		var acct stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
			return nil, util.ValidationError("malformed account payload")
		}
		out.AccountID = acct.ID
		out.DetailsSubmitted = acct.DetailsSubmitted
		out.PayoutsEnabled = acct.PayoutsEnabled
	}
	return out, nil
}
