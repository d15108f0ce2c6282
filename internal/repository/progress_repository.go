package repository

import (
	"context"
	"modula_lms_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressRepository 课时完成记录
type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func upsertCompletion(tx *gorm.DB, completion *model.UserLessonCompletion) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "lesson_id"}, {Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"completion_date"}),
	}).Create(completion).Error
}

// MarkCompleted 重复标记只刷新完成时间
func (r *ProgressRepository) MarkCompleted(ctx context.Context, completion *model.UserLessonCompletion) error {
	return upsertCompletion(r.DB.WithContext(ctx), completion)
}

func (r *ProgressRepository) CompletedLessonIDs(ctx context.Context, userID, courseID uint) (map[uint]bool, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.UserLessonCompletion{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Pluck("lesson_id", &ids).Error
	if err != nil {
		return nil, err
	}
	completed := make(map[uint]bool, len(ids))
	for _, id := range ids {
		completed[id] = true
	}
	return completed, nil
}
