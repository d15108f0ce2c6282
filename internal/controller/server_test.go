package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"modula_lms_backend/internal/config"
	"modula_lms_backend/internal/middleware"
	"modula_lms_backend/internal/model"
	"modula_lms_backend/internal/repository"
	"modula_lms_backend/internal/service"
	"modula_lms_backend/internal/util"
	"modula_lms_backend/pkg/database"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var serverSeq int64

type testServer struct {
	cfg    *config.Config
	db     *gorm.DB
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, util.RegisterValidators())

	dsn := fmt.Sprintf("file:controller_%d?mode=memory&cache=shared", atomic.AddInt64(&serverSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(gormlogger.Default.LogMode(gormlogger.Silent)))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		JWT: config.JWTConfig{Secret: "controller-test-secret", ExpireTime: time.Hour},
		Payment: config.PaymentConfig{
			CheckoutWebhookSecret: "whsec_checkout",
			ConnectWebhookSecret:  "whsec_connect",
			Currency:              "eur",
			ApplicationFeePercent: 20,
		},
	}

	users := repository.NewUserRepository(db)
	courses := repository.NewCourseRepository(db)
	content := repository.NewContentRepository(db)
	quizzes := repository.NewQuizRepository(db)
	progress := repository.NewProgressRepository(db)
	submissions := repository.NewSubmissionRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	payouts := repository.NewPayoutRepository(db)

	enrollmentSvc := service.NewEnrollmentService(enrollments, payouts)
	authCtrl := NewAuthController(service.NewAuthService(users, cfg))
	courseCtrl := NewCourseController(
		service.NewCourseService(courses, enrollments, users),
		service.NewContentService(courses, content, quizzes, submissions, progress, enrollments),
	)
	contentCtrl := NewContentController(service.NewContentService(courses, content, quizzes, submissions, progress, enrollments))
	quizCtrl := NewQuizController(service.NewQuizService(quizzes, content, courses, enrollments))
	paymentCtrl := NewPaymentController(service.NewPaymentService(
		service.NewStripeGateway(&cfg.Payment), cfg.Payment, courses, users, payouts, enrollments, enrollmentSvc))

	r := gin.New()
	r.Use(middleware.ConfigMiddleware(cfg))
	public := r.Group("/api")
	public.POST("/register", authCtrl.Register)
	public.POST("/login", authCtrl.Login)
	public.POST("/webhooks/stripe/checkout", paymentCtrl.CheckoutWebhook)

	auth := r.Group("/api")
	auth.Use(middleware.AuthMiddleware())
	auth.GET("/profile", authCtrl.GetProfile)
	auth.GET("/courses/:id/content", courseCtrl.GetCourseContent)
	auth.GET("/quizzes/:id", quizCtrl.GetQuiz)

	instructor := auth.Group("")
	instructor.Use(middleware.RoleMiddleware(model.Instructor))
	instructor.POST("/courses", courseCtrl.CreateCourse)
	instructor.POST("/courses/:id/sections", contentCtrl.CreateSection)
	instructor.POST("/sections/:id/lessons", contentCtrl.CreateLesson)

	return &testServer{cfg: cfg, db: db, router: r}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// signup 注册并登录，返回用户 ID 与令牌
func (s *testServer) signup(t *testing.T, name, email, role string) (uint, string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/register", "", gin.H{
		"name": name, "email": email, "password": "password123", "role": role,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/login", "", gin.H{"email": email, "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Token string     `json:"token"`
			User  model.User `json:"user"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Token)
	return resp.Data.User.ID, resp.Data.Token
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NoError(t, json.Unmarshal(resp.Data, v))
}
