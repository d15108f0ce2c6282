package repository

import (
	"context"
	"modula_lms_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

// Upsert 重复投递时只刷新报名时间，不会产生重复行
func (r *EnrollmentRepository) Upsert(ctx context.Context, userID, courseID uint, at time.Time) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"enrollment_date"}),
	}).Create(&model.Enrollment{
		UserID:         userID,
		CourseID:       courseID,
		EnrollmentDate: at,
	}).Error
}

func (r *EnrollmentRepository) Find(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	var e model.Enrollment
	err := r.DB.WithContext(ctx).Where("user_id = ? AND course_id = ?", userID, courseID).First(&e).Error
	return &e, err
}

func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, userID, courseID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}

func (r *EnrollmentRepository) StudentIDs(ctx context.Context, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("course_id = ?", courseID).
		Order("id asc").
		Pluck("user_id", &ids).Error
	return ids, err
}

// PayoutRepository 讲师收款账户
type PayoutRepository struct {
	DB *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) *PayoutRepository {
	return &PayoutRepository{DB: db}
}

func (r *PayoutRepository) FindByUser(ctx context.Context, userID uint) (*model.PayoutAccount, error) {
	var acct model.PayoutAccount
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&acct).Error
	return &acct, err
}

// FindForCourse 课程讲师的收款账户
func (r *PayoutRepository) FindForCourse(ctx context.Context, courseID uint) (*model.PayoutAccount, error) {
	var acct model.PayoutAccount
	err := r.DB.WithContext(ctx).
		Joins("JOIN user_courses uc ON uc.user_id = user_stripe_accounts.user_id").
		Where("uc.course_id = ?", courseID).
		Order("uc.id asc").
		First(&acct).Error
	return &acct, err
}

func (r *PayoutRepository) Create(ctx context.Context, acct *model.PayoutAccount) error {
	return r.DB.WithContext(ctx).Create(acct).Error
}

// UpdateStatus 按处理方账户 ID 更新状态，返回受影响行数；最后一次写入生效
func (r *PayoutRepository) UpdateStatus(ctx context.Context, accountID string, detailsSubmitted, payoutsEnabled bool) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&model.PayoutAccount{}).
		Where("stripe_account_id = ?", accountID).
		Updates(map[string]interface{}{
			"details_submitted": detailsSubmitted,
			"payouts_enabled":   payoutsEnabled,
		})
	return res.RowsAffected, res.Error
}
