package model

import "time"

type Enrollment struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_course,priority:1" json:"userId"`
	CourseID       uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_course,priority:2;index" json:"courseId"`
	EnrollmentDate time.Time `gorm:"not null" json:"enrollmentDate"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// PayoutAccount 讲师在支付处理方的收款账户（connected account）
type PayoutAccount struct {
	BaseModel
	UserID           uint   `gorm:"not null;uniqueIndex" json:"userId"`
	StripeAccountID  string `gorm:"size:100;not null;uniqueIndex" json:"stripeAccountId"`
	DetailsSubmitted bool   `gorm:"default:false" json:"detailsSubmitted"`
	PayoutsEnabled   bool   `gorm:"default:false" json:"payoutsEnabled"`
}

func (PayoutAccount) TableName() string {
	return "user_stripe_accounts"
}
