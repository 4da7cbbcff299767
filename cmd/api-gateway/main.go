package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/attendance-portal-api/api/swagger"
	"github.com/noah-isme/attendance-portal-api/internal/aggregate"
	"github.com/noah-isme/attendance-portal-api/internal/handler"
	"github.com/noah-isme/attendance-portal-api/internal/middleware"
	"github.com/noah-isme/attendance-portal-api/internal/models"
	"github.com/noah-isme/attendance-portal-api/internal/repository"
	"github.com/noah-isme/attendance-portal-api/internal/service"
	rediscache "github.com/noah-isme/attendance-portal-api/pkg/cache"
	"github.com/noah-isme/attendance-portal-api/pkg/config"
	"github.com/noah-isme/attendance-portal-api/pkg/database"
	"github.com/noah-isme/attendance-portal-api/pkg/export"
	"github.com/noah-isme/attendance-portal-api/pkg/jobs"
	"github.com/noah-isme/attendance-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/attendance-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/attendance-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/attendance-portal-api/pkg/storage"
)

// @title Attendance Portal API
// @version 1.0.0
// @description School attendance management backend
// @BasePath /api/v1
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := rediscache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.SummaryTTL, logr, true)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	userRepo := repository.NewUserRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	attendanceRepo.Instrument(metricsSvc)
	timetableRepo := repository.NewTimetableRepository(db)
	leaveRepo := repository.NewLeaveRepository(db)
	workingDaysRepo := repository.NewWorkingDaysRepository(db)
	eventRepo := repository.NewEventRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	reportRepo := repository.NewReportRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "attendance-portal-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)

	creditMode := aggregate.CreditPerRequest
	if cfg.Attendance.LeaveCreditMode == config.LeaveCreditPerDayCovered {
		creditMode = aggregate.CreditPerDayCovered
	}
	attendanceSvc := service.NewAttendanceService(
		attendanceRepo,
		timetableRepo,
		workingDaysRepo,
		leaveRepo,
		userRepo,
		cfg.Attendance.RequiredPercentage,
		creditMode,
		validate,
		logr,
	)
	if cacheSvc != nil {
		attendanceSvc.UseCache(cacheSvc, cfg.Cache.SummaryTTL)
	}

	timetableSvc := service.NewTimetableService(timetableRepo, userRepo, attendanceRepo, validate, logr)
	workingDaysSvc := service.NewWorkingDaysService(workingDaysRepo, timetableRepo, validate, logr)
	leaveSvc := service.NewLeaveService(leaveRepo, eventRepo, attendanceRepo, validate, logr)
	eventSvc := service.NewEventService(eventRepo, validate, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, validate, logr)

	builder := service.NewReportBuilder(attendanceRepo)
	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(builder, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())

	reportWorker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
	reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc := service.NewReportService(reportRepo, builder, reportQueue, exportSvc, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.WorkerRetries,
	})
	if cacheSvc != nil {
		reportSvc.UseCache(cacheSvc, cfg.Cache.ReportTTL)
	}
	reportQueue.Start(ctx)
	defer reportQueue.Stop()
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)

	if cfg.Warnings.Enabled {
		warningSvc := service.NewWarningService(
			attendanceRepo,
			leaveRepo,
			workingDaysRepo,
			attendanceSvc,
			notificationSvc,
			notificationRepo,
			service.WarningServiceConfig{
				Interval:      cfg.Warnings.Interval,
				MaxLeaveCount: cfg.Warnings.MaxLeaveCount,
			},
			logr,
		)
		warningSvc.Start(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	workingDaysHandler := handler.NewWorkingDaysHandler(workingDaysSvc)
	leaveHandler := handler.NewLeaveHandler(leaveSvc)
	eventHandler := handler.NewEventHandler(eventSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r, cfg, routeDeps{
		auth:          authSvc,
		userRepo:      userRepo,
		authHandler:   authHandler,
		users:         userHandler,
		attendance:    attendanceHandler,
		timetable:     timetableHandler,
		workingDays:   workingDaysHandler,
		leaves:        leaveHandler,
		events:        eventHandler,
		notifications: notificationHandler,
		reports:       reportHandler,
		metrics:       metricsHandler,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

type routeDeps struct {
	auth          *service.AuthService
	userRepo      *repository.UserRepository
	authHandler   *handler.AuthHandler
	users         *handler.UserHandler
	attendance    *handler.AttendanceHandler
	timetable     *handler.TimetableHandler
	workingDays   *handler.WorkingDaysHandler
	leaves        *handler.LeaveHandler
	events        *handler.EventHandler
	notifications *handler.NotificationHandler
	reports       *handler.ReportHandler
	metrics       *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, deps routeDeps) {
	admin := string(models.RoleAdmin)
	teacher := string(models.RoleTeacher)
	student := string(models.RoleStudent)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", deps.authHandler.Login)
	auth.POST("/refresh", deps.authHandler.Refresh)
	auth.POST("/forgot-password", deps.authHandler.ForgotPassword)
	auth.POST("/reset-password", deps.authHandler.ResetPassword)

	authed := api.Group("")
	authed.Use(middleware.JWT(deps.auth))

	authed.POST("/auth/logout", deps.authHandler.Logout)
	authed.POST("/auth/change-password", deps.authHandler.ChangePassword)
	authed.GET("/auth/me", deps.authHandler.Me)

	users := authed.Group("/users")
	users.GET("", middleware.RBAC(admin), deps.users.List)
	users.GET("/counts", middleware.RBAC(admin), deps.users.Counts)
	users.GET("/:id", middleware.RBAC(admin, "SELF"), deps.users.Get)
	users.POST("", middleware.RBAC(admin), deps.users.Create)
	users.POST("/import", middleware.RBAC(admin), deps.users.Import)
	users.PUT("/:id", middleware.RBAC(admin), deps.users.Update)
	users.DELETE("/:id", middleware.RBAC(admin), deps.users.Delete)

	attendance := authed.Group("/attendance")
	attendance.GET("", middleware.RBAC(admin, teacher), deps.attendance.List)
	attendance.POST("/mark", middleware.RBAC(teacher, admin), deps.attendance.Mark)
	attendance.POST("/bulk", middleware.RBAC(teacher, admin), deps.attendance.BulkMark)
	attendance.GET("/status", middleware.RBAC(teacher, admin), deps.attendance.MarkingStatus)
	attendance.GET("/roster", middleware.RBAC(teacher, admin), deps.attendance.ClassRoster)

	authed.GET("/students/me/attendance", middleware.RBAC(student), deps.attendance.MySummary)
	authed.GET("/students/:id/attendance", middleware.RBAC(admin, teacher, "SELF"), deps.attendance.StudentSummary)

	leaves := authed.Group("/leaves")
	leaves.POST("", middleware.RBAC(student), deps.leaves.Apply)
	leaves.GET("", deps.leaves.List)
	leaves.GET("/:id", deps.leaves.Get)
	leaves.PUT("/:id/review",
		middleware.RBAC(admin, teacher),
		middleware.Audit(deps.userRepo, models.AuditActionLeaveReview, "leaves"),
		deps.leaves.Review)
	leaves.DELETE("/:id", middleware.RBAC(student), deps.leaves.Delete)

	timetable := authed.Group("/timetable")
	timetable.GET("", deps.timetable.List)
	timetable.GET("/me", middleware.RBAC(teacher), deps.timetable.MyPeriods)
	timetable.GET("/me/subjects", middleware.RBAC(teacher), deps.timetable.ClassSubjects)
	timetable.GET("/me/upcoming", middleware.RBAC(teacher), deps.timetable.UpcomingClasses)
	timetable.GET("/:id", deps.timetable.Get)
	timetable.POST("", middleware.RBAC(admin), deps.timetable.Create)
	timetable.DELETE("/:id", middleware.RBAC(admin), deps.timetable.Delete)

	workingDays := authed.Group("/working-days")
	workingDays.GET("", deps.workingDays.List)
	workingDays.GET("/:semester", deps.workingDays.Get)
	workingDays.POST("",
		middleware.RBAC(admin),
		middleware.Audit(deps.userRepo, models.AuditActionWorkingDaysSet, "working_days"),
		deps.workingDays.Set)
	workingDays.PUT("/:semester/sessions", middleware.RBAC(admin), deps.workingDays.UpdateSessions)

	events := authed.Group("/events")
	events.GET("", deps.events.List)
	events.GET("/:id", deps.events.Get)
	events.POST("", middleware.RequireRoles(models.RoleAdmin), deps.events.Create)
	events.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), deps.events.Update)
	events.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), deps.events.Delete)

	notifications := authed.Group("/notifications")
	notifications.GET("", deps.notifications.List)
	notifications.POST("", middleware.RBAC(admin), deps.notifications.Send)
	notifications.PUT("/:id/read", deps.notifications.MarkRead)

	reports := authed.Group("/reports")
	reports.GET("/monthly", middleware.RBAC(admin, teacher), deps.reports.Monthly)
	reports.GET("/semester", middleware.RBAC(admin, teacher), deps.reports.Semester)
	reports.POST("/export", middleware.RBAC(admin, teacher, student), deps.reports.Export)
	reports.GET("/jobs/:id", middleware.RBAC(admin, teacher, student), deps.reports.JobStatus)

	// Download links carry their own signed token; no session required.
	api.GET("/export/:token", middleware.OptionalJWT(deps.auth), deps.reports.Download)

	authed.GET("/metrics/system", middleware.RBAC(admin), deps.metrics.System)
}
