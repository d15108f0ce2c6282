package service

import (
	"context"
	"encoding/json"
	"modula_lms_backend/internal/model"
	"modula_lms_backend/internal/repository"
	"modula_lms_backend/internal/util"
	"modula_lms_backend/pkg/monitoring"
	"modula_lms_backend/pkg/tracing"
	"time"
)

type SubmissionService struct {
	SubmissionRepo *repository.SubmissionRepository
	ContentRepo    *repository.ContentRepository
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
}

func NewSubmissionService(
	submissionRepo *repository.SubmissionRepository,
	contentRepo *repository.ContentRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
) *SubmissionService {
	return &SubmissionService{
		SubmissionRepo: submissionRepo,
		ContentRepo:    contentRepo,
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
	}
}

type SubmitAssignmentReq struct {
	Content json.RawMessage `json:"content" swaggertype:"object"`
}

// SubmitAssignment 提交或覆盖作业，同时标记课时完成；重新提交会清空成绩和评语
func (s *SubmissionService) SubmitAssignment(ctx context.Context, actor Actor, lessonID uint, req SubmitAssignmentReq) (*model.Submission, error) {
	ctx, span := tracing.Tracer.Start(ctx, "SubmissionService.SubmitAssignment")
	defer span.End()

	content, err := jsonColumn(req.Content, "content")
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, util.ValidationError("content is required")
	}

	lesson, err := s.ContentRepo.FindLesson(ctx, lessonID)
	if err != nil {
		return nil, storeError(err, util.ErrLessonNotFound)
	}
	if !lesson.LessonType.Submittable() {
		return nil, util.ValidationError("lesson of type %s does not accept submissions", lesson.LessonType)
	}
	courseID, err := s.ContentRepo.CourseIDForLesson(ctx, lessonID)
	if err != nil {
		return nil, storeError(err, util.ErrLessonNotFound)
	}
	if err := ensureAccess(ctx, s.CourseRepo, s.EnrollmentRepo, actor, courseID); err != nil {
		return nil, err
	}

	sub, err := s.SubmissionRepo.Upsert(ctx, &model.Submission{
		LessonID:       lessonID,
		StudentID:      actor.UserID,
		CourseID:       courseID,
		Content:        content,
		SubmissionDate: time.Now(),
	})
	if err != nil {
		return nil, util.InternalError("failed to save submission", err)
	}
	monitoring.Submissions.WithLabelValues(string(model.SubmissionSubmitted)).Inc()
	return sub, nil
}

type GradeReq struct {
	Grade    *float64        `json:"grade"`
	Feedback json.RawMessage `json:"feedback" swaggertype:"object"`
}

// GradeSubmission 成绩可选，可重复评分
func (s *SubmissionService) GradeSubmission(ctx context.Context, actor Actor, submissionID uint, req GradeReq) (*model.Submission, error) {
	if req.Grade != nil && *req.Grade < 0 {
		return nil, util.ValidationError("grade must be greater than or equal to 0")
	}
	feedback, err := jsonColumn(req.Feedback, "feedback")
	if err != nil {
		return nil, err
	}

	sub, err := s.SubmissionRepo.FindByID(ctx, submissionID)
	if err != nil {
		return nil, storeError(err, util.ErrSubmissionNotFound)
	}
	if err := ensureOwner(ctx, s.CourseRepo, actor, sub.CourseID); err != nil {
		return nil, err
	}

	var grade *float64
	if req.Grade != nil {
		g := util.Round2(*req.Grade)
		grade = &g
	}
	if err := s.SubmissionRepo.Grade(ctx, submissionID, grade, feedback, time.Now()); err != nil {
		return nil, storeError(err, util.ErrSubmissionNotFound)
	}
	monitoring.Submissions.WithLabelValues(string(model.SubmissionGraded)).Inc()

	sub, err = s.SubmissionRepo.FindByID(ctx, submissionID)
	if err != nil {
		return nil, storeError(err, util.ErrSubmissionNotFound)
	}
	return sub, nil
}

func (s *SubmissionService) GetMySubmissions(ctx context.Context, actor Actor) ([]repository.SubmissionRow, error) {
	rows, err := s.SubmissionRepo.ListByStudent(ctx, actor.UserID)
	if err != nil {
		return nil, util.InternalError("failed to list submissions", err)
	}
	return rows, nil
}

func (s *SubmissionService) GetInstructorSubmissions(ctx context.Context, actor Actor) ([]repository.SubmissionRow, error) {
	rows, err := s.SubmissionRepo.ListForInstructor(ctx, actor.UserID)
	if err != nil {
		return nil, util.InternalError("failed to list submissions", err)
	}
	return rows, nil
}

// GetSubmissionDetails 学员本人或课程讲师可见
func (s *SubmissionService) GetSubmissionDetails(ctx context.Context, actor Actor, submissionID uint) (*model.Submission, error) {
	sub, err := s.SubmissionRepo.FindByID(ctx, submissionID)
	if err != nil {
		return nil, storeError(err, util.ErrSubmissionNotFound)
	}
	if sub.StudentID == actor.UserID {
		return sub, nil
	}
	if err := ensureOwner(ctx, s.CourseRepo, actor, sub.CourseID); err != nil {
		return nil, util.ErrPermissionDenied
	}
	return sub, nil
}
