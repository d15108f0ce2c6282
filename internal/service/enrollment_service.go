package service

import (
	"context"
	"modula_lms_backend/internal/repository"
	"modula_lms_backend/internal/util"
	"modula_lms_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
)

// EnrollmentService 支付事件到报名记录的幂等映射
type EnrollmentService struct {
	EnrollmentRepo *repository.EnrollmentRepository
	PayoutRepo     *repository.PayoutRepository
	now            func() time.Time
}

func NewEnrollmentService(enrollmentRepo *repository.EnrollmentRepository, payoutRepo *repository.PayoutRepository) *EnrollmentService {
	return &EnrollmentService{
		EnrollmentRepo: enrollmentRepo,
		PayoutRepo:     payoutRepo,
		now:            time.Now,
	}
}

// Enroll 重复投递只刷新报名时间
func (s *EnrollmentService) Enroll(ctx context.Context, userID, courseID uint) error {
	if err := s.EnrollmentRepo.Upsert(ctx, userID, courseID, s.now()); err != nil {
		return util.InternalError("failed to upsert enrollment", err)
	}
	logger.Log.Info("Enrollment reconciled", zap.Uint("user_id", userID), zap.Uint("course_id", courseID))
	return nil
}

// UpdatePayoutStatus 按处理方账户 ID 覆盖状态，未知账户只记录日志
func (s *EnrollmentService) UpdatePayoutStatus(ctx context.Context, accountID string, detailsSubmitted, payoutsEnabled bool) error {
	rows, err := s.PayoutRepo.UpdateStatus(ctx, accountID, detailsSubmitted, payoutsEnabled)
	if err != nil {
		return util.InternalError("failed to update payout account", err)
	}
	if rows == 0 {
		logger.Log.Warn("Account update for unknown payout account", zap.String("account_id", accountID))
	}
	return nil
}
