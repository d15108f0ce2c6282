package repository

import (
	"context"
	"modula_lms_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func preloadQuestions(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index asc, id asc")
		}).
		Preload("Questions.Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("id asc")
		})
}

func (r *QuizRepository) FindByID(ctx context.Context, id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := preloadQuestions(r.DB.WithContext(ctx)).First(&quiz, id).Error
	return &quiz, err
}

func (r *QuizRepository) FindByLesson(ctx context.Context, lessonID uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := preloadQuestions(r.DB.WithContext(ctx)).
		Where("lesson_id = ?", lessonID).
		Order("id asc").
		First(&quiz).Error
	return &quiz, err
}

// FindIDByLesson 只取测验 ID，用于课时详情
func (r *QuizRepository) FindIDByLesson(ctx context.Context, lessonID uint) (uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Quiz{}).
		Where("lesson_id = ?", lessonID).
		Order("id asc").
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	return ids[0], nil
}

// Save 全量保存测验：更新测验行，删除全部题目后按列表顺序重新插入
func (r *QuizRepository) Save(ctx context.Context, quiz *model.Quiz, questions []model.Question) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if quiz.ID == 0 {
			if err := tx.Omit(clause.Associations).Create(quiz).Error; err != nil {
				return err
			}
		} else {
			res := tx.Model(&model.Quiz{}).Where("id = ?", quiz.ID).Updates(map[string]interface{}{
				"title":       quiz.Title,
				"description": quiz.Description,
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				var count int64
				if err := tx.Model(&model.Quiz{}).Where("id = ?", quiz.ID).Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					return gorm.ErrRecordNotFound
				}
			}
		}

		if err := deleteQuestionsOf(tx, []uint{quiz.ID}); err != nil {
			return err
		}

		for i := range questions {
			q := &questions[i]
			q.ID = 0
			q.QuizID = quiz.ID
			q.OrderIndex = i
			for j := range q.Answers {
				q.Answers[j].ID = 0
				q.Answers[j].QuestionID = 0
			}
			if err := tx.Create(q).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *QuizRepository) FindQuestion(ctx context.Context, id uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.WithContext(ctx).Preload("Answers", func(db *gorm.DB) *gorm.DB {
		return db.Order("id asc")
	}).First(&q, id).Error
	return &q, err
}

// CreateQuestion 追加到测验末尾
func (r *QuizRepository) CreateQuestion(ctx context.Context, q *model.Question) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next int
		if err := tx.Model(&model.Question{}).
			Where("quiz_id = ?", q.QuizID).
			Select("COALESCE(MAX(order_index) + 1, 0)").
			Scan(&next).Error; err != nil {
			return err
		}
		q.OrderIndex = next
		return tx.Omit("Answers").Create(q).Error
	})
}

func (r *QuizRepository) DeleteQuestion(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&model.Answer{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Question{}, id).Error
	})
}

func (r *QuizRepository) FindAnswer(ctx context.Context, id uint) (*model.Answer, error) {
	var a model.Answer
	err := r.DB.WithContext(ctx).First(&a, id).Error
	return &a, err
}

// CreateAnswer exclusive 为 true 时先清除同题其它正确答案
func (r *QuizRepository) CreateAnswer(ctx context.Context, a *model.Answer, exclusive bool) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if exclusive && a.IsCorrect {
			if err := clearCorrect(tx, a.QuestionID); err != nil {
				return err
			}
		}
		return tx.Create(a).Error
	})
}

func (r *QuizRepository) DeleteAnswer(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Delete(&model.Answer{}, id).Error
}

// SetCorrectAnswer 先清除再设置，两条语句在同一事务中，保证同题最多一个正确答案
func (r *QuizRepository) SetCorrectAnswer(ctx context.Context, questionID, answerID uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := clearCorrect(tx, questionID); err != nil {
			return err
		}
		res := tx.Model(&model.Answer{}).
			Where("id = ? AND question_id = ?", answerID, questionID).
			Update("is_correct", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func clearCorrect(tx *gorm.DB, questionID uint) error {
	return tx.Model(&model.Answer{}).
		Where("question_id = ?", questionID).
		Update("is_correct", false).Error
}

// CreateAttempt 尝试记录与逐题答案一次性写入，之后不再修改
func (r *QuizRepository) CreateAttempt(ctx context.Context, attempt *model.QuizAttempt) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		answers := attempt.Answers
		if err := tx.Omit("Answers").Create(attempt).Error; err != nil {
			return err
		}
		if len(answers) == 0 {
			return nil
		}
		for i := range answers {
			answers[i].AttemptID = attempt.ID
		}
		return tx.Create(&answers).Error
	})
}

func (r *QuizRepository) LastAttempt(ctx context.Context, studentID, quizID uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("id asc")
		}).
		Where("student_id = ? AND quiz_id = ?", studentID, quizID).
		Order("attempt_date desc, id desc").
		First(&attempt).Error
	return &attempt, err
}

func (r *QuizRepository) ListAttempts(ctx context.Context, studentID, quizID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Where("student_id = ? AND quiz_id = ?", studentID, quizID).
		Order("attempt_date desc, id desc").
		Find(&attempts).Error
	return attempts, err
}

// CourseIDForQuiz 测验 -> 课时 -> 章节 -> 课程，独立测验返回 0
func (r *QuizRepository) CourseIDForQuiz(ctx context.Context, quizID uint) (uint, error) {
	var courseID uint
	err := r.DB.WithContext(ctx).Table("quizzes").
		Select("COALESCE(sections.course_id, 0)").
		Joins("LEFT JOIN lessons ON lessons.id = quizzes.lesson_id").
		Joins("LEFT JOIN sections ON sections.id = lessons.section_id").
		Where("quizzes.id = ?", quizID).
		Scan(&courseID).Error
	return courseID, err
}
