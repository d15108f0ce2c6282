package repository

import (
	"context"
	"modula_lms_backend/internal/model"

	"gorm.io/gorm"
)

// ContentRepository 章节、课时与内容块
type ContentRepository struct {
	DB *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{DB: db}
}

// nextOrderIndex 同级最大序号 + 1，无同级时为 1
func nextOrderIndex(tx *gorm.DB, m interface{}, parentColumn string, parentID uint) (int, error) {
	var maxIndex int
	err := tx.Model(m).
		Where(parentColumn+" = ?", parentID).
		Select("COALESCE(MAX(order_index), 0)").
		Scan(&maxIndex).Error
	return maxIndex + 1, err
}

func (r *ContentRepository) CreateSection(ctx context.Context, section *model.Section) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		idx, err := nextOrderIndex(tx, &model.Section{}, "course_id", section.CourseID)
		if err != nil {
			return err
		}
		section.OrderIndex = idx
		return tx.Create(section).Error
	})
}

func (r *ContentRepository) FindSection(ctx context.Context, id uint) (*model.Section, error) {
	var section model.Section
	err := r.DB.WithContext(ctx).First(&section, id).Error
	return &section, err
}

func (r *ContentRepository) UpdateSectionTitle(ctx context.Context, id uint, title string) error {
	return r.DB.WithContext(ctx).Model(&model.Section{}).Where("id = ?", id).Update("title", title).Error
}

// DeleteSection 删除章节及其全部课时，不压缩剩余章节的序号
func (r *ContentRepository) DeleteSection(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lessonIDs []uint
		if err := tx.Model(&model.Lesson{}).Where("section_id = ?", id).Pluck("id", &lessonIDs).Error; err != nil {
			return err
		}
		if err := deleteLessons(tx, lessonIDs); err != nil {
			return err
		}
		return tx.Delete(&model.Section{}, id).Error
	})
}

// CreateLesson quiz 类型课时同时创建关联测验，两次写入在同一事务中
func (r *ContentRepository) CreateLesson(ctx context.Context, lesson *model.Lesson) (*model.Quiz, error) {
	var quiz *model.Quiz
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		idx, err := nextOrderIndex(tx, &model.Lesson{}, "section_id", lesson.SectionID)
		if err != nil {
			return err
		}
		lesson.OrderIndex = idx
		if err := tx.Create(lesson).Error; err != nil {
			return err
		}
		if lesson.LessonType != model.LessonQuiz {
			return nil
		}
		lessonID := lesson.ID
		q := &model.Quiz{LessonID: &lessonID, Title: lesson.Title}
		if err := tx.Create(q).Error; err != nil {
			return err
		}
		quiz = q
		return nil
	})
	if err != nil {
		lesson.ID = 0
		return nil, err
	}
	return quiz, nil
}

func (r *ContentRepository) FindLesson(ctx context.Context, id uint) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.WithContext(ctx).First(&lesson, id).Error
	return &lesson, err
}

func (r *ContentRepository) UpdateLesson(ctx context.Context, id uint, updates map[string]interface{}) error {
	return r.DB.WithContext(ctx).Model(&model.Lesson{}).Where("id = ?", id).Updates(updates).Error
}

func (r *ContentRepository) DeleteLesson(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteLessons(tx, []uint{id})
	})
}

// CourseIDForLesson 通过章节回溯课时所属课程
func (r *ContentRepository) CourseIDForLesson(ctx context.Context, lessonID uint) (uint, error) {
	var courseID uint
	err := r.DB.WithContext(ctx).Model(&model.Lesson{}).
		Select("sections.course_id").
		Joins("JOIN sections ON sections.id = lessons.section_id").
		Where("lessons.id = ?", lessonID).
		Scan(&courseID).Error
	if err == nil && courseID == 0 {
		err = gorm.ErrRecordNotFound
	}
	return courseID, err
}

// ReplaceBlocks 全量替换课时内容块：先删后插，序号取数组下标
func (r *ContentRepository) ReplaceBlocks(ctx context.Context, lessonID uint, blocks []model.ContentBlock) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lesson_id = ?", lessonID).Delete(&model.ContentBlock{}).Error; err != nil {
			return err
		}
		if len(blocks) == 0 {
			return nil
		}
		for i := range blocks {
			blocks[i].ID = 0
			blocks[i].LessonID = lessonID
			blocks[i].OrderIndex = i
		}
		return tx.Create(&blocks).Error
	})
}

func (r *ContentRepository) ListBlocks(ctx context.Context, lessonID uint) ([]model.ContentBlock, error) {
	var blocks []model.ContentBlock
	err := r.DB.WithContext(ctx).Where("lesson_id = ?", lessonID).Order("order_index asc, id asc").Find(&blocks).Error
	return blocks, err
}

func (r *ContentRepository) ListSections(ctx context.Context, courseID uint) ([]model.Section, error) {
	var sections []model.Section
	err := r.DB.WithContext(ctx).Where("course_id = ?", courseID).Order("order_index asc, id asc").Find(&sections).Error
	return sections, err
}

func (r *ContentRepository) ListLessonsForSections(ctx context.Context, sectionIDs []uint) ([]model.Lesson, error) {
	var lessons []model.Lesson
	if len(sectionIDs) == 0 {
		return lessons, nil
	}
	err := r.DB.WithContext(ctx).Where("section_id IN ?", sectionIDs).
		Order("section_id asc, order_index asc, id asc").
		Find(&lessons).Error
	return lessons, err
}

// deleteLessons 按依赖顺序显式清理课时的子数据
func deleteLessons(tx *gorm.DB, lessonIDs []uint) error {
	if len(lessonIDs) == 0 {
		return nil
	}
	if err := tx.Where("lesson_id IN ?", lessonIDs).Delete(&model.ContentBlock{}).Error; err != nil {
		return err
	}
	var quizIDs []uint
	if err := tx.Model(&model.Quiz{}).Where("lesson_id IN ?", lessonIDs).Pluck("id", &quizIDs).Error; err != nil {
		return err
	}
	if err := deleteQuizzes(tx, quizIDs); err != nil {
		return err
	}
	if err := tx.Where("lesson_id IN ?", lessonIDs).Delete(&model.Submission{}).Error; err != nil {
		return err
	}
	if err := tx.Where("lesson_id IN ?", lessonIDs).Delete(&model.UserLessonCompletion{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", lessonIDs).Delete(&model.Lesson{}).Error
}

func deleteQuizzes(tx *gorm.DB, quizIDs []uint) error {
	if len(quizIDs) == 0 {
		return nil
	}
	var attemptIDs []uint
	if err := tx.Model(&model.QuizAttempt{}).Where("quiz_id IN ?", quizIDs).Pluck("id", &attemptIDs).Error; err != nil {
		return err
	}
	if len(attemptIDs) > 0 {
		if err := tx.Where("quiz_attempt_id IN ?", attemptIDs).Delete(&model.QuizAttemptAnswer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", attemptIDs).Delete(&model.QuizAttempt{}).Error; err != nil {
			return err
		}
	}
	if err := deleteQuestionsOf(tx, quizIDs); err != nil {
		return err
	}
	return tx.Where("id IN ?", quizIDs).Delete(&model.Quiz{}).Error
}

func deleteQuestionsOf(tx *gorm.DB, quizIDs []uint) error {
	var questionIDs []uint
	if err := tx.Model(&model.Question{}).Where("quiz_id IN ?", quizIDs).Pluck("id", &questionIDs).Error; err != nil {
		return err
	}
	if len(questionIDs) == 0 {
		return nil
	}
	if err := tx.Where("question_id IN ?", questionIDs).Delete(&model.Answer{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", questionIDs).Delete(&model.Question{}).Error
}
