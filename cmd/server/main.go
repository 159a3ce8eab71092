package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/tothemoon-studio/vocal-api/api/swagger"
	"github.com/tothemoon-studio/vocal-api/internal/handler"
	"github.com/tothemoon-studio/vocal-api/internal/middleware"
	"github.com/tothemoon-studio/vocal-api/internal/models"
	"github.com/tothemoon-studio/vocal-api/internal/repository"
	"github.com/tothemoon-studio/vocal-api/internal/service"
	"github.com/tothemoon-studio/vocal-api/pkg/cache"
	"github.com/tothemoon-studio/vocal-api/pkg/config"
	"github.com/tothemoon-studio/vocal-api/pkg/database"
	"github.com/tothemoon-studio/vocal-api/pkg/logger"
	corsmiddleware "github.com/tothemoon-studio/vocal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/tothemoon-studio/vocal-api/pkg/middleware/requestid"
)

// @title To The Moon Vocal Studio API
// @version 1.0.0
// @description Backend for a vocal lesson studio: lessons, feedback, stickers, announcements and notifications.
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API degrades gracefully without Redis: no token revocation
		// list, no cached aggregates.
		logr.Warn("redis unavailable, running without cache", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	stickerRepo := repository.NewStickerRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	// Services.
	metricsSvc := service.NewMetricsService()
	notificationSvc := service.NewNotificationService(notificationRepo, metricsSvc, logr)
	authSvc := service.NewAuthService(userRepo, cacheRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	lessonSvc := service.NewLessonService(lessonRepo, studentRepo, notificationSvc, validate, logr)
	feedbackSvc := service.NewFeedbackService(feedbackRepo, lessonRepo, notificationSvc, validate, logr)
	stickerSvc := service.NewStickerService(stickerRepo, studentRepo, cacheRepo, cfg.Cache.StickerStatsTTL, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, studentRepo, notificationSvc, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, userRepo, notificationSvc, validate, logr)
	adminSvc := service.NewAdminService(adminRepo, userRepo, cacheRepo, cfg.Cache.AdminStatsTTL, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	lessonHandler := handler.NewLessonHandler(lessonSvc)
	feedbackHandler := handler.NewFeedbackHandler(feedbackSvc)
	stickerHandler := handler.NewStickerHandler(stickerSvc)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	adminHandler := handler.NewAdminHandler(adminSvc, cfg.Exports.Enabled)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		auth:          authSvc,
		userRepo:      userRepo,
		logger:        logr,
		authH:         authHandler,
		lessonH:       lessonHandler,
		feedbackH:     feedbackHandler,
		stickerH:      stickerHandler,
		announcementH: announcementHandler,
		studentH:      studentHandler,
		notificationH: notificationHandler,
		adminH:        adminHandler,
		metricsH:      metricsHandler,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

type routeDeps struct {
	auth          *service.AuthService
	userRepo      *repository.UserRepository
	logger        *zap.Logger
	authH         *handler.AuthHandler
	lessonH       *handler.LessonHandler
	feedbackH     *handler.FeedbackHandler
	stickerH      *handler.StickerHandler
	announcementH *handler.AnnouncementHandler
	studentH      *handler.StudentHandler
	notificationH *handler.NotificationHandler
	adminH        *handler.AdminHandler
	metricsH      *handler.MetricsHandler
}

func registerRoutes(api *gin.RouterGroup, deps routeDeps) {
	teacherOnly := middleware.RequireRoles(models.RoleTeacher)
	studentOnly := middleware.RequireRoles(models.RoleStudent)

	api.GET("/health", deps.metricsH.Health)

	auth := api.Group("/auth")
	{
		auth.POST("/signup", deps.authH.Signup)
		auth.POST("/login", deps.authH.Login)
		auth.POST("/logout", middleware.JWT(deps.auth), deps.authH.Logout)
		auth.GET("/me", middleware.JWT(deps.auth), deps.authH.Me)
	}

	// The reward table is public so signup screens can render it.
	api.GET("/stickers/levels", deps.stickerH.Levels)

	authed := api.Group("")
	authed.Use(middleware.JWT(deps.auth))

	lessons := authed.Group("/lessons")
	{
		lessons.GET("", deps.lessonH.List)
		lessons.POST("", teacherOnly, deps.lessonH.Create)
		lessons.GET("/pending-feedback", teacherOnly, deps.lessonH.PendingFeedbackCount)
		lessons.GET("/:id", deps.lessonH.Get)
		lessons.PUT("/:id", teacherOnly, deps.lessonH.Update)
		lessons.POST("/:id/cancel", teacherOnly, deps.lessonH.Cancel)
		lessons.POST("/:id/restore", teacherOnly, deps.lessonH.Restore)
		lessons.POST("/:id/complete", teacherOnly, deps.lessonH.Complete)
		lessons.GET("/:id/feedback", deps.feedbackH.GetByLesson)
	}

	feedback := authed.Group("/feedback")
	{
		feedback.GET("", deps.feedbackH.List)
		feedback.POST("", teacherOnly, deps.feedbackH.Create)
		feedback.GET("/reactions/unviewed", teacherOnly, deps.feedbackH.UnviewedReactionCount)
		feedback.GET("/:id", deps.feedbackH.Get)
		feedback.PUT("/:id", teacherOnly, deps.feedbackH.Update)
		feedback.POST("/:id/reaction", studentOnly, deps.feedbackH.React)
		feedback.POST("/:id/reaction/viewed", teacherOnly, deps.feedbackH.MarkReactionViewed)
	}

	stickers := authed.Group("/stickers")
	{
		stickers.GET("", deps.stickerH.List)
		stickers.POST("", teacherOnly, deps.stickerH.Create)
		stickers.PUT("/:id", teacherOnly, deps.stickerH.Update)
		stickers.DELETE("/:id", teacherOnly, deps.stickerH.Delete)
		stickers.GET("/stats/:studentId", deps.stickerH.Stats)
	}

	announcements := authed.Group("/announcements")
	{
		announcements.GET("", teacherOnly, deps.announcementH.List)
		announcements.POST("", teacherOnly,
			middleware.Audit(deps.userRepo, deps.logger, models.AuditActionAnnounce, "announcement"),
			deps.announcementH.Create)
		announcements.GET("/student", studentOnly, deps.announcementH.ListForStudent)
		announcements.GET("/student/unread-count", studentOnly, deps.announcementH.UnreadCount)
		announcements.GET("/:id", teacherOnly, deps.announcementH.Get)
		announcements.PUT("/:id", teacherOnly, deps.announcementH.Update)
		announcements.DELETE("/:id", teacherOnly, deps.announcementH.Delete)
		announcements.POST("/:id/read", studentOnly, deps.announcementH.MarkRead)
	}

	students := authed.Group("/students")
	students.Use(teacherOnly)
	{
		students.GET("", deps.studentH.List)
		students.POST("", deps.studentH.Assign)
		students.POST("/pre-register", deps.studentH.PreRegister)
		students.GET("/unassigned", deps.studentH.ListUnassigned)
		students.GET("/:id", deps.studentH.Get)
		students.PUT("/:id", deps.studentH.Update)
		students.DELETE("/:id", deps.studentH.Delete)
	}

	notifications := authed.Group("/notifications")
	{
		notifications.GET("", deps.notificationH.List)
		notifications.GET("/unread-count", deps.notificationH.UnreadCount)
		notifications.POST("/read-all", deps.notificationH.MarkAllRead)
		notifications.POST("/:id/read", deps.notificationH.MarkRead)
	}

	admin := authed.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	{
		admin.GET("/stats", deps.adminH.Stats)
		admin.GET("/teacher-stats", deps.adminH.TeacherLessonStats)
		admin.GET("/teacher-stats/export", deps.adminH.ExportTeacherLessonStats)
		admin.GET("/users", deps.adminH.ListUsers)
		admin.POST("/students/:id/reassign", deps.studentH.Reassign)
	}
}
