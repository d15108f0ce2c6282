package app

import (
	"context"
	"log"
	"modula_lms_backend/internal/config"
	"modula_lms_backend/internal/controller"
	"modula_lms_backend/internal/middleware"
	"modula_lms_backend/internal/repository"
	"modula_lms_backend/internal/service"
	"modula_lms_backend/internal/util"
	"modula_lms_backend/pkg/configwatcher"
	"modula_lms_backend/pkg/database"
	"modula_lms_backend/pkg/logger"
	"modula_lms_backend/pkg/monitoring"
	"modula_lms_backend/pkg/security"
	"modula_lms_backend/pkg/tracing"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	ConfigDir       string
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user       *repository.UserRepository
	course     *repository.CourseRepository
	content    *repository.ContentRepository
	quiz       *repository.QuizRepository
	progress   *repository.ProgressRepository
	submission *repository.SubmissionRepository
	enrollment *repository.EnrollmentRepository
	payout     *repository.PayoutRepository
	chat       *repository.ChatRepository
}

type services struct {
	auth       *service.AuthService
	storage    *service.StorageService
	course     *service.CourseService
	content    *service.ContentService
	quiz       *service.QuizService
	submission *service.SubmissionService
	enrollment *service.EnrollmentService
	payment    *service.PaymentService
	chat       *service.ChatService
}

type controllers struct {
	auth       *controller.AuthController
	course     *controller.CourseController
	content    *controller.ContentController
	quiz       *controller.QuizController
	submission *controller.SubmissionController
	payment    *controller.PaymentController
	chat       *controller.ChatController
	upload     *controller.UploadController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		course:     repository.NewCourseRepository(db),
		content:    repository.NewContentRepository(db),
		quiz:       repository.NewQuizRepository(db),
		progress:   repository.NewProgressRepository(db),
		submission: repository.NewSubmissionRepository(db),
		enrollment: repository.NewEnrollmentRepository(db),
		payout:     repository.NewPayoutRepository(db),
		chat:       repository.NewChatRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.course = service.NewCourseService(repos.course, repos.enrollment, repos.user)
	s.content = service.NewContentService(
		repos.course,
		repos.content,
		repos.quiz,
		repos.submission,
		repos.progress,
		repos.enrollment,
	)
	s.quiz = service.NewQuizService(repos.quiz, repos.content, repos.course, repos.enrollment)
	s.submission = service.NewSubmissionService(repos.submission, repos.content, repos.course, repos.enrollment)

	s.enrollment = service.NewEnrollmentService(repos.enrollment, repos.payout)
	s.payment = service.NewPaymentService(
		service.NewStripeGateway(&cfg.Payment),
		cfg.Payment,
		repos.course,
		repos.user,
		repos.payout,
		repos.enrollment,
		s.enrollment,
	)
	// webhook 密钥轮换无需重启
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.payment.UpdateConfig(newCfg.Payment)
	})

	s.chat = service.NewChatService(
		repos.chat,
		repos.course,
		repos.enrollment,
		repos.user,
		service.NewNotifier(&cfg.Notification, rdb),
	)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth),
		course:     controller.NewCourseController(s.course, s.content),
		content:    controller.NewContentController(s.content),
		quiz:       controller.NewQuizController(s.quiz),
		submission: controller.NewSubmissionController(s.submission),
		payment:    controller.NewPaymentController(s.payment),
		chat:       controller.NewChatController(s.chat),
		upload:     controller.NewUploadController(s.storage),
		health:     controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	router.Use(security.RateLimiter(security.RateLimitOptions{
		MaxRequests:  cfg.RateLimit.MaxRequests,
		Window:       window,
		SkipPrefixes: []string{"/api/webhooks/"},
	}))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
	router.Use(middleware.ConfigMiddleware(cfg))
}

// startConfigWatcher 配置文件变更后依次执行已注册的回调
func (a *App) startConfigWatcher(ctx context.Context) {
	if a.ConfigDir == "" || len(a.configCallbacks) == 0 {
		return
	}
	configFile := filepath.Join(a.ConfigDir, "config.yaml")
	go func() {
		err := configwatcher.WatchConfig(ctx, configFile, func(newCfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(newCfg)
			}
		})
		if err != nil {
			logger.Log.Error("Config watcher stopped", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config, configDir string) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == "debug")
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// release 模式下只有显式要求时才迁移
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	app := &App{
		Config:    cfg,
		ConfigDir: configDir,
		DB:        db,
	}

	if cfg.MigrateOnly {
		return app
	}

	// Redis 只用于消息推送，未配置时不连接
	var rdb *redis.Client
	if cfg.Notification.Driver == util.NotifierRedis {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err = database.InitRedis(ctx, &cfg.Redis)
		cancel()
		if err != nil {
			logger.Log.Warn("Redis unavailable, push notifications disabled", zap.Error(err))
			rdb = nil
		}
	}
	app.Redis = rdb

	if err := util.RegisterValidators(); err != nil {
		logger.Log.Fatal("Failed to register validators", zap.Error(err))
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("modula-lms", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	a.startConfigWatcher(watchCtx)

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	log.Println("Server exiting")
}
