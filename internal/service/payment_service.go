package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"modula_lms_backend/internal/config"
	"modula_lms_backend/internal/model"
	"modula_lms_backend/internal/repository"
	"modula_lms_backend/internal/util"
	"modula_lms_backend/pkg/logger"
	"modula_lms_backend/pkg/monitoring"
	"modula_lms_backend/pkg/tracing"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WebhookSource 两个 webhook 端点各自使用独立的签名密钥
type WebhookSource string

const (
	WebhookCheckout WebhookSource = "checkout"
	WebhookConnect  WebhookSource = "connect"
)

type PaymentService struct {
	Gateway        PaymentGateway
	CourseRepo     *repository.CourseRepository
	UserRepo       *repository.UserRepository
	PayoutRepo     *repository.PayoutRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Enrollments    *EnrollmentService

	mu      sync.RWMutex
	cfg     config.PaymentConfig
	secrets map[WebhookSource]string
}

func NewPaymentService(
	gateway PaymentGateway,
	cfg config.PaymentConfig,
	courseRepo *repository.CourseRepository,
	userRepo *repository.UserRepository,
	payoutRepo *repository.PayoutRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	enrollments *EnrollmentService,
) *PaymentService {
	s := &PaymentService{
		Gateway:        gateway,
		CourseRepo:     courseRepo,
		UserRepo:       userRepo,
		PayoutRepo:     payoutRepo,
		EnrollmentRepo: enrollmentRepo,
		Enrollments:    enrollments,
	}
	s.UpdateConfig(cfg)
	return s
}

// UpdateConfig 配置热更新时轮换 webhook 密钥与回调地址
func (s *PaymentService) UpdateConfig(cfg config.PaymentConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.secrets = map[WebhookSource]string{
		WebhookCheckout: cfg.CheckoutWebhookSecret,
		WebhookConnect:  cfg.ConnectWebhookSecret,
	}
}

func (s *PaymentService) config() config.PaymentConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *PaymentService) secret(source WebhookSource) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secrets[source]
}

// ApplicationFee 平台抽成，向下取整到分
func ApplicationFee(unitAmount int64, percent float64) int64 {
	return int64(math.Floor(float64(unitAmount) * percent / 100))
}

// CreateCheckoutSession 只调用支付处理方，不写本地数据；报名由 webhook 完成
func (s *PaymentService) CreateCheckoutSession(ctx context.Context, actor Actor, courseID uint) (*CheckoutSession, error) {
	ctx, span := tracing.Tracer.Start(ctx, "PaymentService.CreateCheckoutSession")
	defer span.End()

	course, err := s.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, storeError(err, util.ErrCourseNotFound)
	}
	enrolled, err := s.EnrollmentRepo.IsEnrolled(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, util.InternalError("database error", err)
	}
	if enrolled {
		return nil, util.ConflictError("already enrolled in this course")
	}
	if course.Price <= 0 {
		return nil, util.ValidationError("course is free and cannot be purchased")
	}

	acct, err := s.PayoutRepo.FindForCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ConflictError("course instructor has no payout account")
		}
		return nil, util.InternalError("database error", err)
	}
	if !acct.PayoutsEnabled {
		return nil, util.ConflictError("course instructor cannot receive payouts yet")
	}

	cfg := s.config()
	unitAmount := int64(math.Round(course.Price * 100))
	cancelURL := cfg.CancelURL
	if strings.Contains(cancelURL, "%d") {
		cancelURL = fmt.Sprintf(cancelURL, course.ID)
	}

	session, err := s.Gateway.CreateCheckoutSession(ctx, CheckoutParams{
		CourseID:           course.ID,
		UserID:             actor.UserID,
		CourseTitle:        course.Title,
		Currency:           cfg.Currency,
		UnitAmount:         unitAmount,
		ApplicationFee:     ApplicationFee(unitAmount, cfg.ApplicationFeePercent),
		DestinationAccount: acct.StripeAccountID,
		SuccessURL:         cfg.SuccessURL,
		CancelURL:          cancelURL,
	})
	if err != nil {
		return nil, util.ExternalError("payment processor error", err)
	}
	return session, nil
}

type ConnectAccountResult struct {
	AccountID     string `json:"accountId"`
	OnboardingURL string `json:"url"`
}

// CreateConnectedAccount 已有账户时复用，只重新生成开通链接
func (s *PaymentService) CreateConnectedAccount(ctx context.Context, actor Actor) (*ConnectAccountResult, error) {
	user, err := s.UserRepo.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, storeError(err, util.ErrUserNotFound)
	}

	acct, err := s.PayoutRepo.FindByUser(ctx, actor.UserID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.InternalError("database error", err)
		}
		accountID, err := s.Gateway.CreateConnectedAccount(ctx, user.Email)
		if err != nil {
			return nil, util.ExternalError("payment processor error", err)
		}
		acct = &model.PayoutAccount{UserID: actor.UserID, StripeAccountID: accountID}
		if err := s.PayoutRepo.Create(ctx, acct); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, util.ConflictError("payout account is already being created")
			}
			return nil, util.InternalError("failed to store payout account", err)
		}
	}

	cfg := s.config()
	url, err := s.Gateway.CreateOnboardingLink(ctx, acct.StripeAccountID, OnboardingURLs{
		RefreshURL: cfg.OnboardingRefreshURL,
		ReturnURL:  cfg.OnboardingReturnURL,
	})
	if err != nil {
		return nil, util.ExternalError("payment processor error", err)
	}
	return &ConnectAccountResult{AccountID: acct.StripeAccountID, OnboardingURL: url}, nil
}

func (s *PaymentService) GetPayoutStatus(ctx context.Context, actor Actor) (*model.PayoutAccount, error) {
	acct, err := s.PayoutRepo.FindByUser(ctx, actor.UserID)
	if err != nil {
		return nil, storeError(err, util.NotFoundError("no payout account"))
	}
	return acct, nil
}

// HandleWebhook 先验签再处理；存储失败返回错误让处理方重试，其它情况一律确认
func (s *PaymentService) HandleWebhook(ctx context.Context, source WebhookSource, payload []byte, signature string) error {
	ctx, span := tracing.Tracer.Start(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	secret := s.secret(source)
	if secret == "" {
		return util.InternalError("webhook secret not configured", fmt.Errorf("source %s", source))
	}

	event, err := s.Gateway.ParseWebhook(payload, signature, secret)
	if err != nil {
		monitoring.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		logger.Log.Warn("Webhook rejected", zap.String("source", string(source)), zap.Error(err))
		return err
	}

	outcome := "ignored"
	defer func() {
		monitoring.WebhookEvents.WithLabelValues(event.Type, outcome).Inc()
	}()

	switch event.Type {
	case util.EventCheckoutCompleted:
		userID, uerr := strconv.ParseUint(event.Metadata["user_id"], 10, 64)
		courseID, cerr := strconv.ParseUint(event.Metadata["course_id"], 10, 64)
		if uerr != nil || cerr != nil || userID == 0 || courseID == 0 {
			// 重新投递也无法补全元数据，直接确认
			logger.Log.Warn("Checkout event without usable metadata",
				zap.String("event_id", event.ID),
				zap.Any("metadata", event.Metadata))
			return nil
		}
		if err := s.Enrollments.Enroll(ctx, uint(userID), uint(courseID)); err != nil {
			outcome = "failed"
			return err
		}
		outcome = "processed"
	case util.EventAccountUpdated:
		if event.AccountID == "" {
			logger.Log.Warn("Account event without account id", zap.String("event_id", event.ID))
			return nil
		}
		if err := s.Enrollments.UpdatePayoutStatus(ctx, event.AccountID, event.DetailsSubmitted, event.PayoutsEnabled); err != nil {
			outcome = "failed"
			return err
		}
		outcome = "processed"
	default:
		logger.Log.Info("Unhandled webhook event", zap.String("type", event.Type), zap.String("event_id", event.ID))
	}
	return nil
}
