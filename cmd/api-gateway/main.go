package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/si-yapemri/school-admin-api/api/swagger"
	"github.com/si-yapemri/school-admin-api/internal/handler"
	"github.com/si-yapemri/school-admin-api/internal/middleware"
	"github.com/si-yapemri/school-admin-api/internal/models"
	"github.com/si-yapemri/school-admin-api/internal/repository"
	"github.com/si-yapemri/school-admin-api/internal/service"
	"github.com/si-yapemri/school-admin-api/pkg/cache"
	"github.com/si-yapemri/school-admin-api/pkg/config"
	"github.com/si-yapemri/school-admin-api/pkg/database"
	"github.com/si-yapemri/school-admin-api/pkg/jobs"
	"github.com/si-yapemri/school-admin-api/pkg/logger"
	corsmiddleware "github.com/si-yapemri/school-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/si-yapemri/school-admin-api/pkg/middleware/requestid"
)

// @title School Admin API
// @version 1.0.0
// @description Administrative backend for accounts, staff, students, parents, payments, evaluations and registrations with an approval workflow over protected records.
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
		logr.Sugar().Warnw("redis unavailable, running without cache", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	accountRepo := repository.NewAccountRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	parentRepo := repository.NewParentRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	notifications := service.NewNotificationService(jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	}, logr, service.NewLogSink(logr))
	notifications.Start(context.Background())
	defer notifications.Stop()

	resolver := service.NewApprovalResolver(approvalRepo, notifications, logr,
		service.WithResolverCache(cacheRepo),
		service.WithResolverMetrics(metrics),
	)
	reconciler := service.NewApprovalReconciler(map[models.TargetKind]service.RecordStore{
		models.TargetAccount: accountRepo,
		models.TargetStaff:   staffRepo,
		models.TargetStudent: studentRepo,
		models.TargetParent:  parentRepo,
	}, logr)

	authService := service.NewAuthService(accountRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	approvalService := service.NewApprovalService(approvalRepo, reconciler, logr,
		service.WithApprovalCache(cacheRepo, cfg.Approvals.CacheTTL),
		service.WithApprovalNotifier(notifications),
		service.WithApprovalMetrics(metrics),
		service.WithApprovalAudit(accountRepo),
	)
	accountService := service.NewAccountService(accountRepo, resolver, accountRepo, validate, logr)
	staffService := service.NewStaffService(staffRepo, resolver, validate, logr)
	studentService := service.NewStudentService(studentRepo, resolver, validate, logr)
	parentService := service.NewParentService(parentRepo, resolver, validate, logr)
	paymentService := service.NewPaymentService(paymentRepo, studentRepo, validate, logr)
	evaluationService := service.NewEvaluationService(evaluationRepo, studentRepo, validate, logr)
	registrationService := service.NewRegistrationService(registrationRepo, validate, logr)

	authHandler := handler.NewAuthHandler(authService, accountService)
	approvalHandler := handler.NewApprovalHandler(approvalService)
	accountHandler := handler.NewAccountHandler(accountService)
	staffHandler := handler.NewStaffHandler(staffService)
	studentHandler := handler.NewStudentHandler(studentService)
	parentHandler := handler.NewParentHandler(parentService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	evaluationHandler := handler.NewEvaluationHandler(evaluationService)
	registrationHandler := handler.NewRegistrationHandler(registrationService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	// The interest form is filled in by prospective parents, so submission
	// stays open while management requires a session.
	api.POST("/registrations", registrationHandler.Submit)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))

	approvals := protected.Group("/approvals")
	{
		approvals.GET("", middleware.RequireCapability(models.CapabilityApprovalRead), approvalHandler.List)
		approvals.GET("/:id", middleware.RequireCapability(models.CapabilityApprovalRead), approvalHandler.Get)
		approvals.POST("/:id/approve", middleware.RequireCapability(models.CapabilityApprovalDecide), approvalHandler.Approve)
		approvals.POST("/:id/reject", middleware.RequireCapability(models.CapabilityApprovalDecide), approvalHandler.Reject)
	}

	accounts := protected.Group("/accounts")
	accounts.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))
	{
		accounts.GET("", accountHandler.List)
		accounts.GET("/:id", accountHandler.Get)
		accounts.POST("", accountHandler.Create)
		accounts.PUT("/:id", accountHandler.Update)
		accounts.DELETE("/:id", accountHandler.Delete)
	}

	staff := protected.Group("/staff")
	{
		staff.GET("", middleware.RequireCapability(models.CapabilityDirectoryRead), staffHandler.List)
		staff.GET("/:id", middleware.RequireCapability(models.CapabilityDirectoryRead), staffHandler.Get)
		staff.POST("", middleware.RequireCapability(models.CapabilityDirectoryWrite), staffHandler.Create)
		staff.PUT("/:id", middleware.RequireCapability(models.CapabilityDirectoryWrite), staffHandler.Update)
		staff.DELETE("/:id", middleware.RequireCapability(models.CapabilityDirectoryWrite), staffHandler.Delete)
	}

	students := protected.Group("/students")
	{
		students.GET("", middleware.RequireCapability(models.CapabilityDirectoryRead), studentHandler.List)
		students.GET("/:id", middleware.RequireCapability(models.CapabilityDirectoryRead), studentHandler.Get)
		students.POST("", middleware.RequireCapability(models.CapabilityDirectoryWrite), studentHandler.Create)
		students.PUT("/:id", middleware.RequireCapability(models.CapabilityDirectoryWrite), studentHandler.Update)
		students.DELETE("/:id", middleware.RequireCapability(models.CapabilityDirectoryWrite), studentHandler.Delete)
	}

	parents := protected.Group("/parents")
	{
		parents.GET("", middleware.RequireCapability(models.CapabilityDirectoryRead), parentHandler.List)
		parents.GET("/:id", middleware.RequireCapability(models.CapabilityDirectoryRead), parentHandler.Get)
		parents.POST("", middleware.RequireCapability(models.CapabilityDirectoryWrite), parentHandler.Create)
		parents.PUT("/:id", middleware.RequireCapability(models.CapabilityDirectoryWrite), parentHandler.Update)
		parents.DELETE("/:id", middleware.RequireCapability(models.CapabilityDirectoryWrite), parentHandler.Delete)
	}

	payments := protected.Group("/payments")
	{
		payments.GET("", middleware.RequireCapability(models.CapabilityFinanceRead), paymentHandler.List)
		payments.GET("/export", middleware.RequireCapability(models.CapabilityFinanceRead),
			middleware.Audit(accountRepo, models.AuditActionExport, "payments"), paymentHandler.ExportCSV)
		payments.GET("/:id", middleware.RequireCapability(models.CapabilityFinanceRead), paymentHandler.Get)
		payments.POST("", middleware.RequireCapability(models.CapabilityFinanceWrite), paymentHandler.Create)
		payments.PUT("/:id", middleware.RequireCapability(models.CapabilityFinanceWrite), paymentHandler.Update)
		payments.POST("/:id/settle", middleware.RequireCapability(models.CapabilityFinanceWrite), paymentHandler.Settle)
		payments.DELETE("/:id", middleware.RequireCapability(models.CapabilityFinanceWrite), paymentHandler.Delete)
	}

	evaluations := protected.Group("/evaluations")
	{
		evaluations.GET("", middleware.RequireCapability(models.CapabilityRecordRead), evaluationHandler.List)
		evaluations.GET("/:id", middleware.RequireCapability(models.CapabilityRecordRead), evaluationHandler.Get)
		evaluations.GET("/:id/report", middleware.RequireCapability(models.CapabilityRecordRead), evaluationHandler.Report)
		evaluations.POST("", middleware.RequireCapability(models.CapabilityRecordWrite), evaluationHandler.Create)
		evaluations.PUT("/:id", middleware.RequireCapability(models.CapabilityRecordWrite), evaluationHandler.Update)
		evaluations.DELETE("/:id", middleware.RequireCapability(models.CapabilityRecordWrite), evaluationHandler.Delete)
	}

	registrations := protected.Group("/registrations")
	{
		registrations.GET("", middleware.RequireCapability(models.CapabilityRecordRead), registrationHandler.List)
		registrations.GET("/export", middleware.RequireCapability(models.CapabilityRecordRead),
			middleware.Audit(accountRepo, models.AuditActionExport, "registrations"), registrationHandler.ExportCSV)
		registrations.GET("/:id", middleware.RequireCapability(models.CapabilityRecordRead), registrationHandler.Get)
		registrations.PUT("/:id", middleware.RequireCapability(models.CapabilityRecordWrite), registrationHandler.Update)
		registrations.DELETE("/:id", middleware.RequireCapability(models.CapabilityRecordWrite), registrationHandler.Delete)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
