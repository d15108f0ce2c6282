package repository

import (
	"context"
	"modula_lms_backend/internal/model"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

// Upsert 按 (lesson_id, student_id) 插入或覆盖提交，并在同一事务中写入课时完成记录
// 覆盖时状态重置为 submitted，成绩与评语清空
func (r *SubmissionRepository) Upsert(ctx context.Context, sub *model.Submission) (*model.Submission, error) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub.Status = model.SubmissionSubmitted
		sub.Grade = nil
		sub.InstructorFeedback = nil
		sub.GradedDate = nil

		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "lesson_id"}, {Name: "student_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"course_id":           sub.CourseID,
				"content":             sub.Content,
				"submission_date":     sub.SubmissionDate,
				"status":              model.SubmissionSubmitted,
				"grade":               nil,
				"instructor_feedback": nil,
				"graded_date":         nil,
			}),
		}).Create(sub).Error
		if err != nil {
			return err
		}

		return upsertCompletion(tx, &model.UserLessonCompletion{
			UserID:         sub.StudentID,
			LessonID:       sub.LessonID,
			CourseID:       sub.CourseID,
			CompletionDate: sub.SubmissionDate,
		})
	})
	if err != nil {
		return nil, err
	}
	// 冲突更新时各驱动返回的自增 ID 不可靠，重新查询
	return r.FindByLessonAndStudent(ctx, sub.LessonID, sub.StudentID)
}

func (r *SubmissionRepository) FindByID(ctx context.Context, id uint) (*model.Submission, error) {
	var sub model.Submission
	err := r.DB.WithContext(ctx).First(&sub, id).Error
	return &sub, err
}

func (r *SubmissionRepository) FindByLessonAndStudent(ctx context.Context, lessonID, studentID uint) (*model.Submission, error) {
	var sub model.Submission
	err := r.DB.WithContext(ctx).Where("lesson_id = ? AND student_id = ?", lessonID, studentID).First(&sub).Error
	return &sub, err
}

// Grade 可重复评分，后一次覆盖前一次
func (r *SubmissionRepository) Grade(ctx context.Context, id uint, grade *float64, feedback datatypes.JSON, gradedAt time.Time) error {
	res := r.DB.WithContext(ctx).Model(&model.Submission{}).Where("id = ?", id).Updates(map[string]interface{}{
		"grade":               grade,
		"instructor_feedback": feedback,
		"status":              model.SubmissionGraded,
		"graded_date":         gradedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// MySQL 对未变化的行返回 0，需要再确认记录是否存在
		var count int64
		if err := r.DB.WithContext(ctx).Model(&model.Submission{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

type SubmissionRow struct {
	model.Submission
	LessonTitle string `json:"lessonTitle"`
	LessonType  string `json:"lessonType"`
	CourseTitle string `json:"courseTitle"`
	StudentName string `json:"studentName,omitempty"`
}

func (r *SubmissionRepository) listQuery(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).Table("submissions s").
		Select("s.*, l.title AS lesson_title, l.lesson_type AS lesson_type, c.title AS course_title, u.name AS student_name").
		Joins("JOIN lessons l ON l.id = s.lesson_id").
		Joins("JOIN courses c ON c.id = s.course_id").
		Joins("JOIN users u ON u.id = s.student_id")
}

func (r *SubmissionRepository) ListByStudent(ctx context.Context, studentID uint) ([]SubmissionRow, error) {
	var rows []SubmissionRow
	err := r.listQuery(ctx).
		Where("s.student_id = ?", studentID).
		Order("s.submission_date desc").
		Scan(&rows).Error
	return rows, err
}

// ListForInstructor 讲师名下全部课程的提交
func (r *SubmissionRepository) ListForInstructor(ctx context.Context, instructorID uint) ([]SubmissionRow, error) {
	var rows []SubmissionRow
	err := r.listQuery(ctx).
		Joins("JOIN user_courses uc ON uc.course_id = s.course_id").
		Where("uc.user_id = ?", instructorID).
		Order("s.submission_date desc").
		Scan(&rows).Error
	return rows, err
}
