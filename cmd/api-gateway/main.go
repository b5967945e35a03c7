package main

import (
	"context"
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

	_ "github.com/stundenplan/grundschule-api/api/swagger"
	"github.com/stundenplan/grundschule-api/internal/engine"
	"github.com/stundenplan/grundschule-api/internal/handler"
	"github.com/stundenplan/grundschule-api/internal/middleware"
	"github.com/stundenplan/grundschule-api/internal/models"
	"github.com/stundenplan/grundschule-api/internal/repository"
	"github.com/stundenplan/grundschule-api/internal/service"
	"github.com/stundenplan/grundschule-api/pkg/cache"
	"github.com/stundenplan/grundschule-api/pkg/config"
	"github.com/stundenplan/grundschule-api/pkg/database"
	"github.com/stundenplan/grundschule-api/pkg/logger"
	corsmiddleware "github.com/stundenplan/grundschule-api/pkg/middleware/cors"
	reqidmiddleware "github.com/stundenplan/grundschule-api/pkg/middleware/requestid"
	"github.com/stundenplan/grundschule-api/pkg/storage"
)

// @title Grundschule Stundenplan API
// @version 1.0.0
// @description Weekly timetable management and generation for primary schools
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	fileStore, err := storage.NewExportStore(cfg.Exports.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewDownloadSigner(cfg.JWT.Secret, cfg.Exports.ResultTTL)

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	classRepo := repository.NewClassRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	timeslotRepo := repository.NewTimeSlotRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	qualificationRepo := repository.NewTeacherSubjectRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	// Services.
	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "grundschule-api",
	})
	userService := service.NewUserService(userRepo, validate, logr)
	teacherService := service.NewTeacherService(teacherRepo, validate, logr)
	classService := service.NewClassService(classRepo, validate, logr)
	subjectService := service.NewSubjectService(subjectRepo, validate, logr)
	timeslotService := service.NewTimeSlotService(timeslotRepo, validate, logr)
	availabilityService := service.NewAvailabilityService(availabilityRepo, teacherRepo, validate, logr)
	qualificationService := service.NewQualificationService(qualificationRepo, teacherRepo, subjectRepo, validate, logr)
	scheduleService := service.NewScheduleService(scheduleRepo, timeslotRepo, availabilityService, redisClient, cfg.Boards, validate, logr)

	solver := engine.New(snapshotRepo, engine.WithLogger(logr))
	timetableService := service.NewTimetableService(solver, scheduleRepo, scheduleService, metricsService, redisClient, cfg.Scheduler, validate, logr)

	var exportService *service.ExportService
	if cfg.Exports.Enabled {
		exportService = service.NewExportService(scheduleRepo, timeslotRepo, classRepo, teacherRepo, fileStore, signer, service.ExportOptions{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.ResultTTL,
		}, logr)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	teacherHandler := handler.NewTeacherHandler(teacherService, availabilityService, qualificationService)
	classHandler := handler.NewClassHandler(classService)
	subjectHandler := handler.NewSubjectHandler(subjectService, qualificationService)
	timeslotHandler := handler.NewTimeSlotHandler(timeslotService)
	scheduleHandler := handler.NewScheduleHandler(scheduleService, metricsService)
	timetableHandler := handler.NewTimetableHandler(timetableService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)

		authed := auth.Group("", middleware.JWT(authService))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	protected := api.Group("", middleware.JWT(authService))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	planners := middleware.RequireRoles(models.RoleAdmin, models.RolePlanner)

	users := protected.Group("/users")
	{
		users.GET("", adminOnly, userHandler.List)
		// Users may look up their own account, everything else is admin only.
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
		users.POST("", adminOnly, userHandler.Create)
		users.PUT("/:id", adminOnly, userHandler.Update)
		users.DELETE("/:id", adminOnly, userHandler.Delete)
	}

	teachers := protected.Group("/teachers")
	{
		teachers.GET("", teacherHandler.List)
		teachers.GET("/matrix", teacherHandler.QualificationMatrix)
		teachers.GET("/:id", teacherHandler.Get)
		teachers.POST("", planners, teacherHandler.Create)
		teachers.PUT("/:id", planners, teacherHandler.Update)
		teachers.DELETE("/:id", planners, teacherHandler.Delete)

		teachers.GET("/:id/availability", teacherHandler.ListAvailability)
		teachers.POST("/:id/availability", planners, teacherHandler.CreateAvailability)
		teachers.PUT("/:id/availability/:aid", planners, teacherHandler.UpdateAvailability)
		teachers.DELETE("/:id/availability/:aid", planners, teacherHandler.DeleteAvailability)

		teachers.GET("/:id/subjects", teacherHandler.ListQualifications)
		teachers.POST("/:id/subjects", planners, teacherHandler.CreateQualification)
		teachers.PUT("/:id/subjects/:qid", planners, teacherHandler.UpdateQualification)
		teachers.DELETE("/:id/subjects/:qid", planners, teacherHandler.DeleteQualification)
	}

	classes := protected.Group("/classes")
	{
		classes.GET("", classHandler.List)
		classes.GET("/:id", classHandler.Get)
		classes.POST("", planners, classHandler.Create)
		classes.PUT("/:id", planners, classHandler.Update)
		classes.DELETE("/:id", planners, classHandler.Delete)
	}

	subjects := protected.Group("/subjects")
	{
		subjects.GET("", subjectHandler.List)
		subjects.GET("/:id", subjectHandler.Get)
		subjects.POST("", planners, subjectHandler.Create)
		subjects.PUT("/:id", planners, subjectHandler.Update)
		subjects.DELETE("/:id", planners, subjectHandler.Delete)
		subjects.GET("/:id/teachers", subjectHandler.QualifiedTeachers)
	}

	timeslots := protected.Group("/timeslots")
	{
		timeslots.GET("", timeslotHandler.List)
		timeslots.GET("/:id", timeslotHandler.Get)
		timeslots.POST("", planners, timeslotHandler.Create)
		timeslots.PUT("/:id", planners, timeslotHandler.Update)
		timeslots.DELETE("/:id", planners, timeslotHandler.Delete)
		timeslots.POST("/seed", planners, timeslotHandler.SeedWeek)
	}

	schedules := protected.Group("/schedules")
	{
		schedules.GET("", scheduleHandler.List)
		schedules.GET("/conflicts", scheduleHandler.Conflicts)
		schedules.GET("/class/:id", scheduleHandler.ClassWeek)
		schedules.GET("/teacher/:id", scheduleHandler.TeacherWeek)
		schedules.GET("/room/:room", scheduleHandler.RoomWeek)
		schedules.GET("/timeslot/:id", scheduleHandler.SlotOccupancy)
		schedules.GET("/:id", scheduleHandler.Get)
		schedules.POST("", planners, scheduleHandler.Create)
		schedules.POST("/validate", planners, scheduleHandler.Validate)
		schedules.PUT("/:id", planners, scheduleHandler.Update)
		schedules.DELETE("/:id", planners, scheduleHandler.Delete)
	}

	timetable := protected.Group("/timetable", planners)
	{
		timetable.POST("/generate", timetableHandler.Generate)
		timetable.GET("/runs/:id", timetableHandler.GetRun)
		timetable.POST("/runs/:id/commit", timetableHandler.Commit)
	}

	if exportService != nil {
		exportHandler := handler.NewExportHandler(exportService)
		exports := api.Group("/exports")
		// Download links authenticate via the signed token, a bearer token
		// only enriches the request context when present.
		exports.GET("/download/:token", middleware.OptionalJWT(authService), exportHandler.Download)

		exportsAuthed := exports.Group("", middleware.JWT(authService))
		exportsAuthed.GET("/class/:id", exportHandler.ClassWeek)
		exportsAuthed.GET("/teacher/:id", exportHandler.TeacherWeek)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timetableService.StartWorkers(ctx)
	defer timetableService.StopWorkers()

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
