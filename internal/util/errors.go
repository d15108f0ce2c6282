package util

import (
	"errors"
	"fmt"
)

// ErrorKind 业务错误分类，HTTP 层据此映射状态码
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindForbidden
	KindExternal
	KindBadSignature
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindExternal:
		return "external"
	case KindBadSignature:
		return "bad_signature"
	}
	return "internal"
}

type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func ValidationError(format string, args ...interface{}) error {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFoundError(format string, args ...interface{}) error {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func ConflictError(format string, args ...interface{}) error {
	return &AppError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func ForbiddenError(format string, args ...interface{}) error {
	return &AppError{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// ExternalError 支付处理方等外部依赖失败
func ExternalError(message string, err error) error {
	return &AppError{Kind: KindExternal, Message: message, Err: err}
}

func BadSignatureError(err error) error {
	return &AppError{Kind: KindBadSignature, Message: "invalid webhook signature", Err: err}
}

func InternalError(message string, err error) error {
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

// KindOf 未分类的错误一律视为内部错误
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

var (
	ErrUserNotFound       = NotFoundError("user not found")
	ErrEmailRegistered    = ConflictError("email already registered")
	ErrInvalidCredentials = ValidationError("invalid email or password")
	ErrPermissionDenied   = ForbiddenError("permission denied")
	ErrCourseNotFound     = NotFoundError("course not found")
	ErrSectionNotFound    = NotFoundError("section not found")
	ErrLessonNotFound     = NotFoundError("lesson not found")
	ErrQuizNotFound       = NotFoundError("quiz not found")
	ErrQuestionNotFound   = NotFoundError("question not found")
	ErrAnswerNotFound     = NotFoundError("answer not found")
	ErrSubmissionNotFound = NotFoundError("submission not found")
	ErrNotParticipant     = ForbiddenError("user is not a participant of this conversation")
)
