package repository

import (
	"context"
	"modula_lms_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

// Create 课程与归属关系在同一事务中写入
func (r *CourseRepository) Create(ctx context.Context, course *model.Course, ownerID uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(course).Error; err != nil {
			return err
		}
		return tx.Create(&model.UserCourse{UserID: ownerID, CourseID: course.ID}).Error
	})
}

func (r *CourseRepository) FindByID(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.WithContext(ctx).First(&course, id).Error
	return &course, err
}

func (r *CourseRepository) Update(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Save(course).Error
}

func (r *CourseRepository) List(ctx context.Context) ([]model.Course, error) {
	var courses []model.Course
	err := r.DB.WithContext(ctx).Order("created_at desc, id desc").Find(&courses).Error
	return courses, err
}

// FindInstructor 课程讲师为最早建立的归属记录
func (r *CourseRepository) FindInstructor(ctx context.Context, courseID uint) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).
		Joins("JOIN user_courses uc ON uc.user_id = users.id").
		Where("uc.course_id = ?", courseID).
		Order("uc.id asc").
		First(&user).Error
	return &user, err
}

func (r *CourseRepository) IsOwner(ctx context.Context, userID, courseID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.UserCourse{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}

func (r *CourseRepository) ListOwned(ctx context.Context, userID uint) ([]model.Course, error) {
	var courses []model.Course
	err := r.DB.WithContext(ctx).
		Joins("JOIN user_courses uc ON uc.course_id = courses.id").
		Where("uc.user_id = ?", userID).
		Order("courses.created_at desc").
		Find(&courses).Error
	return courses, err
}

// LearnerCourseRow 学员已报名课程及实时统计
type LearnerCourseRow struct {
	model.Course
	EnrollmentDate     time.Time `json:"enrollmentDate"`
	TotalLessons       int64     `json:"totalLessons"`
	CompletedLessons   int64     `json:"completedLessons"`
	PendingAssignments int64     `json:"pendingAssignments"`
	PendingEvaluations int64     `json:"pendingEvaluations"`
}

// ListEnrolledWithProgress 统计全部通过关联子查询实时计算，不使用缓存计数
func (r *CourseRepository) ListEnrolledWithProgress(ctx context.Context, userID uint) ([]LearnerCourseRow, error) {
	pending := func(lessonType model.LessonType) string {
		return "(SELECT COUNT(*) FROM lessons l JOIN sections s ON l.section_id = s.id " +
			"WHERE s.course_id = c.id AND l.lesson_type = '" + string(lessonType) + "' " +
			"AND NOT EXISTS (SELECT 1 FROM submissions sub WHERE sub.lesson_id = l.id AND sub.student_id = e.user_id))"
	}

	var rows []LearnerCourseRow
	err := r.DB.WithContext(ctx).Table("courses c").
		Select("c.*, e.enrollment_date, "+
			"(SELECT COUNT(*) FROM lessons l JOIN sections s ON l.section_id = s.id WHERE s.course_id = c.id) AS total_lessons, "+
			"(SELECT COUNT(*) FROM user_lesson_completions ulc WHERE ulc.course_id = c.id AND ulc.user_id = e.user_id) AS completed_lessons, "+
			pending(model.LessonDevoir)+" AS pending_assignments, "+
			pending(model.LessonEvaluation)+" AS pending_evaluations").
		Joins("JOIN enrollments e ON e.course_id = c.id").
		Where("e.user_id = ?", userID).
		Order("e.enrollment_date desc").
		Scan(&rows).Error
	return rows, err
}

// Delete 显式删除整棵内容树及其关联数据
func (r *CourseRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sectionIDs []uint
		if err := tx.Model(&model.Section{}).Where("course_id = ?", id).Pluck("id", &sectionIDs).Error; err != nil {
			return err
		}
		var lessonIDs []uint
		if len(sectionIDs) > 0 {
			if err := tx.Model(&model.Lesson{}).Where("section_id IN ?", sectionIDs).Pluck("id", &lessonIDs).Error; err != nil {
				return err
			}
		}
		if err := deleteLessons(tx, lessonIDs); err != nil {
			return err
		}
		if len(sectionIDs) > 0 {
			if err := tx.Where("id IN ?", sectionIDs).Delete(&model.Section{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("course_id = ?", id).Delete(&model.UserLessonCompletion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&model.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&model.Enrollment{}).Error; err != nil {
			return err
		}
		if err := deleteCourseConversations(tx, id); err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&model.UserCourse{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Course{}, id).Error
	})
}

func deleteCourseConversations(tx *gorm.DB, courseID uint) error {
	var convIDs []uint
	if err := tx.Model(&model.Conversation{}).Where("course_id = ?", courseID).Pluck("id", &convIDs).Error; err != nil {
		return err
	}
	if len(convIDs) == 0 {
		return nil
	}
	if err := tx.Where("conversation_id IN ?", convIDs).Delete(&model.Message{}).Error; err != nil {
		return err
	}
	if err := tx.Where("conversation_id IN ?", convIDs).Delete(&model.ConversationParticipant{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", convIDs).Delete(&model.Conversation{}).Error
}
