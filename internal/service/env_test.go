package service

import (
	"context"
	"fmt"
	"modula_lms_backend/internal/config"
	"modula_lms_backend/internal/model"
	"modula_lms_backend/internal/repository"
	"modula_lms_backend/pkg/database"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq int64

// testEnv 内存 SQLite 上的完整服务装配
type testEnv struct {
	DB          *gorm.DB
	Users       *repository.UserRepository
	Courses     *repository.CourseRepository
	Content     *repository.ContentRepository
	Quizzes     *repository.QuizRepository
	Progress    *repository.ProgressRepository
	Submissions *repository.SubmissionRepository
	Enrollments *repository.EnrollmentRepository
	Payouts     *repository.PayoutRepository
	Chats       *repository.ChatRepository

	CourseSvc     *CourseService
	ContentSvc    *ContentService
	QuizSvc       *QuizService
	SubmissionSvc *SubmissionService
	EnrollmentSvc *EnrollmentService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(gormlogger.Default.LogMode(gormlogger.Silent)))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	e := &testEnv{
		DB:          db,
		Users:       repository.NewUserRepository(db),
		Courses:     repository.NewCourseRepository(db),
		Content:     repository.NewContentRepository(db),
		Quizzes:     repository.NewQuizRepository(db),
		Progress:    repository.NewProgressRepository(db),
		Submissions: repository.NewSubmissionRepository(db),
		Enrollments: repository.NewEnrollmentRepository(db),
		Payouts:     repository.NewPayoutRepository(db),
		Chats:       repository.NewChatRepository(db),
	}
	e.CourseSvc = NewCourseService(e.Courses, e.Enrollments, e.Users)
	e.ContentSvc = NewContentService(e.Courses, e.Content, e.Quizzes, e.Submissions, e.Progress, e.Enrollments)
	e.QuizSvc = NewQuizService(e.Quizzes, e.Content, e.Courses, e.Enrollments)
	e.SubmissionSvc = NewSubmissionService(e.Submissions, e.Content, e.Courses, e.Enrollments)
	e.EnrollmentSvc = NewEnrollmentService(e.Enrollments, e.Payouts)
	return e
}

func (e *testEnv) paymentService(gw PaymentGateway, cfg config.PaymentConfig) *PaymentService {
	return NewPaymentService(gw, cfg, e.Courses, e.Users, e.Payouts, e.Enrollments, e.EnrollmentSvc)
}

func (e *testEnv) createUser(t *testing.T, name string, role model.UserRole) (*model.User, Actor) {
	t.Helper()
	u := &model.User{
		Name:     name,
		Email:    strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Password: "x",
		Role:     role,
	}
	require.NoError(t, e.Users.Create(context.Background(), u))
	return u, Actor{UserID: u.ID, Role: role}
}

func (e *testEnv) createCourse(t *testing.T, owner Actor, title string, price float64) *model.Course {
	t.Helper()
	course, err := e.CourseSvc.CreateCourse(context.Background(), owner, CourseReq{Title: &title, Price: &price})
	require.NoError(t, err)
	return course
}

func (e *testEnv) enroll(t *testing.T, userID, courseID uint) {
	t.Helper()
	require.NoError(t, e.Enrollments.Upsert(context.Background(), userID, courseID, time.Now()))
}

func (e *testEnv) createSection(t *testing.T, owner Actor, courseID uint, title string) *model.Section {
	t.Helper()
	sec, err := e.ContentSvc.CreateSection(context.Background(), owner, courseID, title)
	require.NoError(t, err)
	return sec
}

func (e *testEnv) createLesson(t *testing.T, owner Actor, sectionID uint, title string, lt model.LessonType) *CreateLessonResult {
	t.Helper()
	res, err := e.ContentSvc.CreateLesson(context.Background(), owner, sectionID, CreateLessonReq{Title: title, LessonType: string(lt)})
	require.NoError(t, err)
	return res
}

func ptr[T any](v T) *T {
	return &v
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
