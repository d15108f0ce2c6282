package service

import (
	"context"
	"errors"
	"modula_lms_backend/internal/model"
	"modula_lms_backend/internal/repository"
	"modula_lms_backend/internal/util"
	"modula_lms_backend/pkg/tracing"
	"strings"

	"gorm.io/gorm"
)

type CourseService struct {
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	UserRepo       *repository.UserRepository
}

func NewCourseService(courseRepo *repository.CourseRepository, enrollmentRepo *repository.EnrollmentRepository, userRepo *repository.UserRepository) *CourseService {
	return &CourseService{
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		UserRepo:       userRepo,
	}
}

// CourseReq 创建和编辑课程共用，编辑时空字段保持原值
type CourseReq struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	ImageURL    *string  `json:"imageUrl"`
	Color       *string  `json:"color"`
}

func (r CourseReq) validate(creating bool) error {
	if creating && (r.Title == nil || strings.TrimSpace(*r.Title) == "") {
		return util.ValidationError("title is required")
	}
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		return util.ValidationError("title cannot be empty")
	}
	if r.Price != nil && *r.Price < 0 {
		return util.ValidationError("price must be greater than or equal to 0")
	}
	return nil
}

func (r CourseReq) apply(course *model.Course) {
	if r.Title != nil {
		course.Title = strings.TrimSpace(*r.Title)
	}
	if r.Description != nil {
		course.Description = *r.Description
	}
	if r.Price != nil {
		course.Price = util.Round2(*r.Price)
	}
	if r.ImageURL != nil {
		course.ImageURL = *r.ImageURL
	}
	if r.Color != nil {
		course.Color = *r.Color
	}
}

func (s *CourseService) CreateCourse(ctx context.Context, actor Actor, req CourseReq) (*model.Course, error) {
	ctx, span := tracing.Tracer.Start(ctx, "CourseService.CreateCourse")
	defer span.End()

	if err := req.validate(true); err != nil {
		return nil, err
	}
	instructor, err := s.UserRepo.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, storeError(err, util.ErrUserNotFound)
	}

	course := &model.Course{Author: instructor.Name}
	req.apply(course)
	if err := s.CourseRepo.Create(ctx, course, actor.UserID); err != nil {
		return nil, util.InternalError("failed to create course", err)
	}
	return course, nil
}

func (s *CourseService) EditCourse(ctx context.Context, actor Actor, courseID uint, req CourseReq) (*model.Course, error) {
	if err := req.validate(false); err != nil {
		return nil, err
	}
	course, err := s.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, storeError(err, util.ErrCourseNotFound)
	}
	if err := ensureOwner(ctx, s.CourseRepo, actor, courseID); err != nil {
		return nil, err
	}

	req.apply(course)
	if err := s.CourseRepo.Update(ctx, course); err != nil {
		return nil, util.InternalError("failed to update course", err)
	}
	return course, nil
}

func (s *CourseService) DeleteCourse(ctx context.Context, actor Actor, courseID uint) error {
	ctx, span := tracing.Tracer.Start(ctx, "CourseService.DeleteCourse")
	defer span.End()

	if _, err := s.CourseRepo.FindByID(ctx, courseID); err != nil {
		return storeError(err, util.ErrCourseNotFound)
	}
	if err := ensureOwner(ctx, s.CourseRepo, actor, courseID); err != nil {
		return err
	}
	if err := s.CourseRepo.Delete(ctx, courseID); err != nil {
		return util.InternalError("failed to delete course", err)
	}
	return nil
}

func (s *CourseService) ListCourses(ctx context.Context) ([]model.Course, error) {
	courses, err := s.CourseRepo.List(ctx)
	if err != nil {
		return nil, util.InternalError("failed to list courses", err)
	}
	return courses, nil
}

// InstructorInfo 课程详情中展示的讲师信息
type InstructorInfo struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profileImageUrl"`
}

type CourseDetails struct {
	model.Course
	Instructor *InstructorInfo `json:"instructor"`
}

func (s *CourseService) GetCourseDetails(ctx context.Context, courseID uint) (*CourseDetails, error) {
	course, err := s.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, storeError(err, util.ErrCourseNotFound)
	}
	details := &CourseDetails{Course: *course}
	if instructor, err := s.CourseRepo.FindInstructor(ctx, courseID); err == nil {
		details.Instructor = &InstructorInfo{
			ID:              instructor.ID,
			Name:            instructor.Name,
			ProfileImageURL: instructor.ProfileImageURL,
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.InternalError("failed to load instructor", err)
	}
	return details, nil
}

// GetMyCourses 讲师返回自己的课程，学员返回已报名课程及进度统计
func (s *CourseService) GetMyCourses(ctx context.Context, actor Actor) (interface{}, error) {
	switch actor.Role {
	case model.Instructor, model.Admin:
		courses, err := s.CourseRepo.ListOwned(ctx, actor.UserID)
		if err != nil {
			return nil, util.InternalError("failed to list courses", err)
		}
		return courses, nil
	case model.Learner:
		rows, err := s.CourseRepo.ListEnrolledWithProgress(ctx, actor.UserID)
		if err != nil {
			return nil, util.InternalError("failed to list courses", err)
		}
		return rows, nil
	}
	return nil, util.ValidationError("invalid role: %s", actor.Role)
}

func (s *CourseService) CanAccessCourse(ctx context.Context, actor Actor, courseID uint) (bool, error) {
	return canAccessCourse(ctx, s.CourseRepo, s.EnrollmentRepo, actor, courseID)
}
