package service

import (
	"context"
	"errors"
	"modula_lms_backend/internal/model"
	"modula_lms_backend/internal/repository"
	"modula_lms_backend/internal/util"

	"gorm.io/gorm"
)

// Actor 发起请求的已认证用户
type Actor struct {
	UserID uint
	Role   model.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.Admin
}

// storeError 记录不存在时返回给定的 NotFound 错误，其它一律视为内部错误
func storeError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return util.ConflictError("resource already exists")
	}
	var appErr *util.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return util.InternalError("database error", err)
}

// ensureOwner 管理员放行，其余用户必须是课程讲师
func ensureOwner(ctx context.Context, courses *repository.CourseRepository, actor Actor, courseID uint) error {
	if actor.IsAdmin() {
		return nil
	}
	owner, err := courses.IsOwner(ctx, actor.UserID, courseID)
	if err != nil {
		return util.InternalError("database error", err)
	}
	if !owner {
		return util.ForbiddenError("only the course instructor can modify this course")
	}
	return nil
}

// canAccessCourse 已报名或为课程讲师
func canAccessCourse(ctx context.Context, courses *repository.CourseRepository, enrollments *repository.EnrollmentRepository, actor Actor, courseID uint) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}
	enrolled, err := enrollments.IsEnrolled(ctx, actor.UserID, courseID)
	if err != nil {
		return false, util.InternalError("database error", err)
	}
	if enrolled {
		return true, nil
	}
	owner, err := courses.IsOwner(ctx, actor.UserID, courseID)
	if err != nil {
		return false, util.InternalError("database error", err)
	}
	return owner, nil
}

func ensureAccess(ctx context.Context, courses *repository.CourseRepository, enrollments *repository.EnrollmentRepository, actor Actor, courseID uint) error {
	ok, err := canAccessCourse(ctx, courses, enrollments, actor, courseID)
	if err != nil {
		return err
	}
	if !ok {
		return util.ForbiddenError("you are not enrolled in this course")
	}
	return nil
}
