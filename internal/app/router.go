package app

import (
	"modula_lms_backend/docs"
	"modula_lms_backend/internal/config"
	"modula_lms_backend/internal/middleware"
	"modula_lms_backend/internal/model"
	"modula_lms_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware())
	{
		// 学员/通用 授权接口
		a.registerLearnerRoutes(authGroup, c)

		// 讲师相关接口
		a.registerInstructorRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)

		public.GET("/courses", c.course.ListCourses)
		public.GET("/courses/:id", c.course.GetCourse)

		// 支付回调，凭签名而非 JWT 鉴权
		public.POST("/webhooks/stripe/checkout", c.payment.CheckoutWebhook)
		public.POST("/webhooks/stripe/connect", c.payment.ConnectWebhook)
	}
}

func (a *App) registerLearnerRoutes(authGroup *gin.RouterGroup, c *controllers) {
	authGroup.GET("/profile", c.auth.GetProfile)
	authGroup.GET("/my-courses", c.course.GetMyCourses)
	authGroup.GET("/courses/:id/content", c.course.GetCourseContent)

	lessons := authGroup.Group("/lessons")
	{
		lessons.GET("/:id", c.content.GetLessonDetails)
		lessons.POST("/:id/complete", c.content.MarkLessonCompleted)
		lessons.GET("/:id/quiz", c.quiz.GetQuizByLesson)
		lessons.POST("/:id/submissions", c.submission.SubmitAssignment)
	}

	quizzes := authGroup.Group("/quizzes")
	{
		quizzes.GET("/:id", c.quiz.GetQuiz)
		quizzes.POST("/:id/submit", c.quiz.SubmitQuiz)
		quizzes.GET("/:id/attempts/last", c.quiz.GetLastAttempt)
		quizzes.GET("/:id/attempts", c.quiz.GetHistory)
	}

	submissions := authGroup.Group("/submissions")
	{
		submissions.GET("/mine", c.submission.GetMySubmissions)
		submissions.GET("/:id", c.submission.GetSubmission)
	}

	authGroup.POST("/payments/checkout", c.payment.CreateCheckout)

	conversations := authGroup.Group("/conversations")
	{
		conversations.GET("", c.chat.ListConversations)
		conversations.POST("/group", c.chat.CreateGroupChat)
		conversations.POST("/individual", c.chat.CreateIndividualChat)
		conversations.GET("/:id/messages", c.chat.ListMessages)
		conversations.POST("/:id/messages", c.chat.SendMessage)
	}

	authGroup.POST("/uploads", c.upload.UploadImage)
}

func (a *App) registerInstructorRoutes(authGroup *gin.RouterGroup, c *controllers) {
	instructor := authGroup.Group("")
	instructor.Use(middleware.RoleMiddleware(model.Instructor))
	{
		// 课程与内容树
		instructor.POST("/courses", c.course.CreateCourse)
		instructor.PUT("/courses/:id", c.course.EditCourse)
		instructor.DELETE("/courses/:id", c.course.DeleteCourse)
		instructor.POST("/courses/:id/sections", c.content.CreateSection)
		instructor.PUT("/sections/:id", c.content.EditSection)
		instructor.DELETE("/sections/:id", c.content.DeleteSection)
		instructor.POST("/sections/:id/lessons", c.content.CreateLesson)
		instructor.PUT("/lessons/:id", c.content.EditLesson)
		instructor.DELETE("/lessons/:id", c.content.DeleteLesson)
		instructor.PUT("/lessons/:id/content", c.content.SaveLessonContent)

		// 测验编辑
		instructor.POST("/quizzes", c.quiz.CreateQuiz)
		instructor.PUT("/quizzes/:id", c.quiz.UpdateQuiz)
		instructor.POST("/quizzes/:id/questions", c.quiz.AddQuestion)
		instructor.DELETE("/questions/:id", c.quiz.DeleteQuestion)
		instructor.POST("/questions/:id/answers", c.quiz.AddAnswer)
		instructor.PUT("/questions/:id/correct-answer", c.quiz.SetCorrectAnswer)
		instructor.DELETE("/answers/:id", c.quiz.DeleteAnswer)

		// 批改
		instructor.PUT("/submissions/:id/grade", c.submission.GradeSubmission)
		instructor.GET("/instructor/submissions", c.submission.GetInstructorSubmissions)

		// 收款账户
		instructor.POST("/payments/connect-account", c.payment.CreateConnectAccount)
		instructor.GET("/payments/connect-account", c.payment.GetConnectAccount)
	}
}
