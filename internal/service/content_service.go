package service

import (
	"context"
	"encoding/json"
	"errors"
	"modula_lms_backend/internal/model"
	"modula_lms_backend/internal/repository"
	"modula_lms_backend/internal/util"
	"modula_lms_backend/pkg/logger"
	"modula_lms_backend/pkg/tracing"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ContentService 维护 课程 -> 章节 -> 课时 -> 内容块 的层级与同级顺序
type ContentService struct {
	CourseRepo     *repository.CourseRepository
	ContentRepo    *repository.ContentRepository
	QuizRepo       *repository.QuizRepository
	SubmissionRepo *repository.SubmissionRepository
	ProgressRepo   *repository.ProgressRepository
	EnrollmentRepo *repository.EnrollmentRepository
}

func NewContentService(
	courseRepo *repository.CourseRepository,
	contentRepo *repository.ContentRepository,
	quizRepo *repository.QuizRepository,
	submissionRepo *repository.SubmissionRepository,
	progressRepo *repository.ProgressRepository,
	enrollmentRepo *repository.EnrollmentRepository,
) *ContentService {
	return &ContentService{
		CourseRepo:     courseRepo,
		ContentRepo:    contentRepo,
		QuizRepo:       quizRepo,
		SubmissionRepo: submissionRepo,
		ProgressRepo:   progressRepo,
		EnrollmentRepo: enrollmentRepo,
	}
}

func (s *ContentService) CreateSection(ctx context.Context, actor Actor, courseID uint, title string) (*model.Section, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, util.ValidationError("section title is required")
	}
	if _, err := s.CourseRepo.FindByID(ctx, courseID); err != nil {
		return nil, storeError(err, util.ErrCourseNotFound)
	}
	if err := ensureOwner(ctx, s.CourseRepo, actor, courseID); err != nil {
		return nil, err
	}

	section := &model.Section{CourseID: courseID, Title: title}
	if err := s.ContentRepo.CreateSection(ctx, section); err != nil {
		return nil, util.InternalError("failed to create section", err)
	}
	return section, nil
}

// sectionForWrite 加载章节并校验操作者是课程讲师
func (s *ContentService) sectionForWrite(ctx context.Context, actor Actor, sectionID uint) (*model.Section, error) {
	section, err := s.ContentRepo.FindSection(ctx, sectionID)
	if err != nil {
		return nil, storeError(err, util.ErrSectionNotFound)
	}
	if err := ensureOwner(ctx, s.CourseRepo, actor, section.CourseID); err != nil {
		return nil, err
	}
	return section, nil
}

func (s *ContentService) EditSection(ctx context.Context, actor Actor, sectionID uint, title string) (*model.Section, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, util.ValidationError("section title is required")
	}
	section, err := s.sectionForWrite(ctx, actor, sectionID)
	if err != nil {
		return nil, err
	}
	if err := s.ContentRepo.UpdateSectionTitle(ctx, sectionID, title); err != nil {
		return nil, util.InternalError("failed to update section", err)
	}
	section.Title = title
	return section, nil
}

// DeleteSection 不压缩剩余章节序号
func (s *ContentService) DeleteSection(ctx context.Context, actor Actor, sectionID uint) error {
	if _, err := s.sectionForWrite(ctx, actor, sectionID); err != nil {
		return err
	}
	if err := s.ContentRepo.DeleteSection(ctx, sectionID); err != nil {
		return util.InternalError("failed to delete section", err)
	}
	return nil
}

type CreateLessonReq struct {
	Title      string          `json:"title"`
	LessonType string          `json:"lessonType"`
	DueDate    *time.Time      `json:"dueDate"`
	Metadata   json.RawMessage `json:"metadata" swaggertype:"object"`
}

type CreateLessonResult struct {
	Lesson *model.Lesson `json:"lesson"`
	QuizID *uint         `json:"quizId,omitempty"`
}

// CreateLesson quiz 类型课时与其测验原子创建
func (s *ContentService) CreateLesson(ctx context.Context, actor Actor, sectionID uint, req CreateLessonReq) (*CreateLessonResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "ContentService.CreateLesson")
	defer span.End()

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, util.ValidationError("lesson title is required")
	}
	lessonType := model.LessonType(req.LessonType)
	if lessonType == "" {
		lessonType = model.LessonText
	}
	if !lessonType.Valid() {
		return nil, util.ValidationError("invalid lesson type: %s", req.LessonType)
	}
	metadata, err := jsonColumn(req.Metadata, "metadata")
	if err != nil {
		return nil, err
	}
	if _, err := s.sectionForWrite(ctx, actor, sectionID); err != nil {
		return nil, err
	}

	lesson := &model.Lesson{
		SectionID:  sectionID,
		Title:      title,
		LessonType: lessonType,
		DueDate:    req.DueDate,
		Metadata:   metadata,
	}
	quiz, err := s.ContentRepo.CreateLesson(ctx, lesson)
	if err != nil {
		return nil, util.InternalError("failed to create lesson", err)
	}

	result := &CreateLessonResult{Lesson: lesson}
	if quiz != nil {
		result.QuizID = &quiz.ID
	}
	return result, nil
}

type EditLessonReq struct {
	Title        *string         `json:"title"`
	DueDate      *time.Time      `json:"dueDate"`
	ClearDueDate bool            `json:"clearDueDate"`
	Metadata     json.RawMessage `json:"metadata" swaggertype:"object"`
}

func (s *ContentService) lessonForWrite(ctx context.Context, actor Actor, lessonID uint) (*model.Lesson, uint, error) {
	lesson, err := s.ContentRepo.FindLesson(ctx, lessonID)
	if err != nil {
		return nil, 0, storeError(err, util.ErrLessonNotFound)
	}
	courseID, err := s.ContentRepo.CourseIDForLesson(ctx, lessonID)
	if err != nil {
		return nil, 0, storeError(err, util.ErrLessonNotFound)
	}
	if err := ensureOwner(ctx, s.CourseRepo, actor, courseID); err != nil {
		return nil, 0, err
	}
	return lesson, courseID, nil
}

// EditLesson 只更新标题、截止日期和元数据，不调整顺序
func (s *ContentService) EditLesson(ctx context.Context, actor Actor, lessonID uint, req EditLessonReq) (*model.Lesson, error) {
	updates := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, util.ValidationError("lesson title cannot be empty")
		}
		updates["title"] = title
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	} else if req.ClearDueDate {
		updates["due_date"] = nil
	}
	if len(req.Metadata) > 0 {
		metadata, err := jsonColumn(req.Metadata, "metadata")
		if err != nil {
			return nil, err
		}
		updates["metadata"] = metadata
	}

	if _, _, err := s.lessonForWrite(ctx, actor, lessonID); err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := s.ContentRepo.UpdateLesson(ctx, lessonID, updates); err != nil {
			return nil, util.InternalError("failed to update lesson", err)
		}
	}
	lesson, err := s.ContentRepo.FindLesson(ctx, lessonID)
	if err != nil {
		return nil, storeError(err, util.ErrLessonNotFound)
	}
	return lesson, nil
}

func (s *ContentService) DeleteLesson(ctx context.Context, actor Actor, lessonID uint) error {
	if _, _, err := s.lessonForWrite(ctx, actor, lessonID); err != nil {
		return err
	}
	if err := s.ContentRepo.DeleteLesson(ctx, lessonID); err != nil {
		return util.InternalError("failed to delete lesson", err)
	}
	return nil
}

type ContentBlockReq struct {
	BlockType string          `json:"blockType"`
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata" swaggertype:"object"`
}

// SaveLessonContent 全量替换：保存后数据库中的内容块与请求完全一致，块 ID 不保留
func (s *ContentService) SaveLessonContent(ctx context.Context, actor Actor, lessonID uint, reqs []ContentBlockReq) ([]model.ContentBlock, error) {
	ctx, span := tracing.Tracer.Start(ctx, "ContentService.SaveLessonContent")
	defer span.End()

	blocks := make([]model.ContentBlock, 0, len(reqs))
	for i, r := range reqs {
		blockType := strings.TrimSpace(r.BlockType)
		if blockType == "" {
			blockType = "text"
		}
		if blockType == model.BlockTypeQuiz {
			if _, err := strconv.ParseUint(strings.TrimSpace(r.Content), 10, 64); err != nil {
				return nil, util.ValidationError("block %d: quiz block content must be a quiz id", i)
			}
		}
		metadata, err := jsonColumn(r.Metadata, "metadata")
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, model.ContentBlock{
			BlockType: blockType,
			Content:   r.Content,
			Metadata:  metadata,
		})
	}

	if _, _, err := s.lessonForWrite(ctx, actor, lessonID); err != nil {
		return nil, err
	}
	if err := s.ContentRepo.ReplaceBlocks(ctx, lessonID, blocks); err != nil {
		return nil, util.InternalError("failed to save lesson content", err)
	}
	logger.Log.Debug("Lesson content replaced", zap.Uint("lesson_id", lessonID), zap.Int("blocks", len(blocks)))
	return blocks, nil
}

type LessonNode struct {
	ID          uint             `json:"id"`
	Title       string           `json:"title"`
	LessonType  model.LessonType `json:"lessonType"`
	OrderIndex  int              `json:"orderIndex"`
	DueDate     *time.Time       `json:"dueDate,omitempty"`
	IsCompleted bool             `json:"isCompleted"`
}

type SectionNode struct {
	ID         uint         `json:"id"`
	Title      string       `json:"title"`
	OrderIndex int          `json:"orderIndex"`
	Lessons    []LessonNode `json:"lessons"`
}

type CourseContent struct {
	Course   *model.Course `json:"course"`
	Sections []SectionNode `json:"sections"`
}

// GetCourseContent 只读：按序返回章节与课时，并标注该用户的完成状态
func (s *ContentService) GetCourseContent(ctx context.Context, courseID, userID uint) (*CourseContent, error) {
	course, err := s.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, storeError(err, util.ErrCourseNotFound)
	}
	sections, err := s.ContentRepo.ListSections(ctx, courseID)
	if err != nil {
		return nil, util.InternalError("failed to load sections", err)
	}
	sectionIDs := make([]uint, len(sections))
	for i, sec := range sections {
		sectionIDs[i] = sec.ID
	}
	lessons, err := s.ContentRepo.ListLessonsForSections(ctx, sectionIDs)
	if err != nil {
		return nil, util.InternalError("failed to load lessons", err)
	}
	completed, err := s.ProgressRepo.CompletedLessonIDs(ctx, userID, courseID)
	if err != nil {
		return nil, util.InternalError("failed to load progress", err)
	}

	bySection := make(map[uint][]LessonNode, len(sections))
	for _, l := range lessons {
		bySection[l.SectionID] = append(bySection[l.SectionID], LessonNode{
			ID:          l.ID,
			Title:       l.Title,
			LessonType:  l.LessonType,
			OrderIndex:  l.OrderIndex,
			DueDate:     l.DueDate,
			IsCompleted: completed[l.ID],
		})
	}

	content := &CourseContent{Course: course, Sections: make([]SectionNode, 0, len(sections))}
	for _, sec := range sections {
		nodes := bySection[sec.ID]
		if nodes == nil {
			nodes = []LessonNode{}
		}
		content.Sections = append(content.Sections, SectionNode{
			ID:         sec.ID,
			Title:      sec.Title,
			OrderIndex: sec.OrderIndex,
			Lessons:    nodes,
		})
	}
	return content, nil
}

// GetCourseContentFor 在读取前校验报名或讲师身份
func (s *ContentService) GetCourseContentFor(ctx context.Context, actor Actor, courseID uint) (*CourseContent, error) {
	if _, err := s.CourseRepo.FindByID(ctx, courseID); err != nil {
		return nil, storeError(err, util.ErrCourseNotFound)
	}
	if err := ensureAccess(ctx, s.CourseRepo, s.EnrollmentRepo, actor, courseID); err != nil {
		return nil, err
	}
	return s.GetCourseContent(ctx, courseID, actor.UserID)
}

type LessonDetails struct {
	Lesson      *model.Lesson        `json:"lesson"`
	CourseID    uint                 `json:"courseId"`
	Blocks      []model.ContentBlock `json:"contentBlocks"`
	QuizID      *uint                `json:"quizId,omitempty"`
	Submission  *model.Submission    `json:"submission"`
	IsCompleted bool                 `json:"isCompleted"`
}

func (s *ContentService) GetLessonDetails(ctx context.Context, actor Actor, lessonID uint) (*LessonDetails, error) {
	lesson, err := s.ContentRepo.FindLesson(ctx, lessonID)
	if err != nil {
		return nil, storeError(err, util.ErrLessonNotFound)
	}
	courseID, err := s.ContentRepo.CourseIDForLesson(ctx, lessonID)
	if err != nil {
		return nil, storeError(err, util.ErrLessonNotFound)
	}
	if err := ensureAccess(ctx, s.CourseRepo, s.EnrollmentRepo, actor, courseID); err != nil {
		return nil, err
	}

	blocks, err := s.ContentRepo.ListBlocks(ctx, lessonID)
	if err != nil {
		return nil, util.InternalError("failed to load content blocks", err)
	}
	details := &LessonDetails{Lesson: lesson, CourseID: courseID, Blocks: blocks}

	if lesson.LessonType == model.LessonQuiz {
		quizID, err := s.QuizRepo.FindIDByLesson(ctx, lessonID)
		if err != nil {
			return nil, util.InternalError("failed to load quiz", err)
		}
		if quizID == 0 {
			quizID = quizIDFromBlocks(blocks)
		}
		if quizID != 0 {
			details.QuizID = &quizID
		}
	}

	sub, err := s.SubmissionRepo.FindByLessonAndStudent(ctx, lessonID, actor.UserID)
	if err == nil {
		details.Submission = sub
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.InternalError("failed to load submission", err)
	}

	completed, err := s.ProgressRepo.CompletedLessonIDs(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, util.InternalError("failed to load progress", err)
	}
	details.IsCompleted = completed[lessonID]
	return details, nil
}

// MarkLessonCompleted 课程由课时推导，避免客户端传入不一致的 courseId
func (s *ContentService) MarkLessonCompleted(ctx context.Context, actor Actor, lessonID uint) (*model.UserLessonCompletion, error) {
	if _, err := s.ContentRepo.FindLesson(ctx, lessonID); err != nil {
		return nil, storeError(err, util.ErrLessonNotFound)
	}
	courseID, err := s.ContentRepo.CourseIDForLesson(ctx, lessonID)
	if err != nil {
		return nil, storeError(err, util.ErrLessonNotFound)
	}
	if err := ensureAccess(ctx, s.CourseRepo, s.EnrollmentRepo, actor, courseID); err != nil {
		return nil, err
	}

	completion := &model.UserLessonCompletion{
		UserID:         actor.UserID,
		LessonID:       lessonID,
		CourseID:       courseID,
		CompletionDate: time.Now(),
	}
	if err := s.ProgressRepo.MarkCompleted(ctx, completion); err != nil {
		return nil, util.InternalError("failed to mark lesson completed", err)
	}
	return completion, nil
}

func quizIDFromBlocks(blocks []model.ContentBlock) uint {
	for _, b := range blocks {
		if b.BlockType != model.BlockTypeQuiz {
			continue
		}
		if id, err := strconv.ParseUint(strings.TrimSpace(b.Content), 10, 64); err == nil && id > 0 {
			return uint(id)
		}
	}
	return 0
}

// jsonColumn 校验可选的 JSON 字段，空值存为 NULL
func jsonColumn(raw json.RawMessage, field string) (datatypes.JSON, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, util.ValidationError("%s must be valid JSON", field)
	}
	return datatypes.JSON(trimmed), nil
}
