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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/hayat-interiors/appraisal-api/api/swagger"
	"github.com/hayat-interiors/appraisal-api/internal/handler"
	"github.com/hayat-interiors/appraisal-api/internal/middleware"
	"github.com/hayat-interiors/appraisal-api/internal/models"
	"github.com/hayat-interiors/appraisal-api/internal/repository"
	"github.com/hayat-interiors/appraisal-api/internal/service"
	"github.com/hayat-interiors/appraisal-api/pkg/cache"
	"github.com/hayat-interiors/appraisal-api/pkg/config"
	"github.com/hayat-interiors/appraisal-api/pkg/database"
	"github.com/hayat-interiors/appraisal-api/pkg/jobs"
	"github.com/hayat-interiors/appraisal-api/pkg/logger"
	corsmiddleware "github.com/hayat-interiors/appraisal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/hayat-interiors/appraisal-api/pkg/middleware/requestid"
	"github.com/hayat-interiors/appraisal-api/pkg/storage"
)

// @title Appraisal Portal API
// @version 1.0.0
// @description Performance appraisal workflow, hierarchy and reporting service
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
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	scopeRepo := repository.NewScopeRepository(db)
	cycleRepo := repository.NewCycleRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	formRepo := repository.NewFormRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Observability and caching.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.Enabled)

	// Core services.
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "appraisal-api",
	})
	employeeSvc := service.NewEmployeeService(employeeRepo, nil, logr)
	hierarchySvc := service.NewHierarchyService(employeeRepo, scopeRepo, logr)
	authoritySvc := service.NewAuthorityService(employeeRepo, hierarchySvc, cfg.Authority.HREmpCode, cfg.Authority.CEOEmpCode, logr)
	scopeSvc := service.NewScopeService(scopeRepo, employeeRepo, userRepo, nil, logr)
	cycleSvc := service.NewCycleService(cycleRepo, questionRepo, formRepo, employeeRepo, nil, logr)
	workflowSvc := service.NewWorkflowService(formRepo, hierarchySvc, userRepo, nil, logr)
	importSvc := service.NewImportService(employeeRepo, userRepo, cfg.Import.AdminEmpCode, logr)
	userSvc := service.NewUserService(userRepo, nil, logr)

	// Report pipeline: storage, signer, exporter, worker, queue.
	reportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(formRepo, cycleRepo, reportStorage, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, nil, nil)

	reportWorker := service.NewReportWorker(reportRepo, exportSvc, 3, logr)
	reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    2,
		BufferSize: 64,
		MaxRetries: 3,
		Logger:     logr,
	})
	reportQueue.Start(ctx)
	defer reportQueue.Stop()

	reportSvc := service.NewReportService(reportRepo, formRepo, cycleRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: time.Hour,
		MaxRetries:      3,
	})
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)

	dashboardSvc := service.NewDashboardService(cycleRepo, formRepo, cacheSvc, logr, service.DashboardServiceConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	})

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	employeeHandler := handler.NewEmployeeHandler(employeeSvc, hierarchySvc)
	scopeHandler := handler.NewScopeHandler(scopeSvc)
	cycleHandler := handler.NewCycleHandler(cycleSvc)
	formHandler := handler.NewFormHandler(workflowSvc, dashboardSvc, logr)
	importHandler := handler.NewImportHandler(importSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	userHandler := handler.NewUserHandler(userSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Signed-token downloads carry their own authorization.
	api.GET("/export/:token", reportHandler.Download)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("")
		authed.Use(middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	protected.Use(middleware.Authority(authoritySvc))
	{
		protected.GET("/employees", employeeHandler.List)
		protected.GET("/employees/:id", employeeHandler.Get)
		protected.GET("/employees/:id/reports", employeeHandler.DirectReports)

		protected.GET("/cycles", cycleHandler.List)
		protected.GET("/cycles/progress", cycleHandler.Progress)
		protected.GET("/cycles/:id", cycleHandler.Get)

		protected.GET("/forms/mine", formHandler.ListMine)
		protected.GET("/forms/review-inbox", formHandler.ReviewInbox)
		protected.GET("/forms/hr-queue", formHandler.HRQueue)
		protected.GET("/forms/:id", formHandler.Get)
		protected.PUT("/forms/:id/self", formHandler.SaveSelf)
		protected.PUT("/forms/:id/responses", formHandler.SaveSelfResponses)
		protected.POST("/forms/:id/submit", formHandler.Submit)
		protected.GET("/forms/:id/review", formHandler.OpenReview)
		protected.PUT("/forms/:id/review", formHandler.SaveReview)
		protected.POST("/forms/:id/hr-review", formHandler.HRReview)
		protected.POST("/forms/:id/ceo-comment", formHandler.CEOComment)
		protected.POST("/forms/:id/finalize", formHandler.Finalize)

		protected.POST("/reports", reportHandler.Generate)
		protected.GET("/reports/cycles/:id/summary", reportHandler.Summary)
		protected.GET("/reports/:id", reportHandler.Status)

		dash := protected.Group("/dashboard")
		dash.Use(middleware.WithResponseMeta())
		dash.GET("", dashboardHandler.Overview)
		dash.GET("/cycles/:id", dashboardHandler.Cycle)
	}

	admin := api.Group("")
	admin.Use(middleware.JWT(authSvc))
	admin.Use(middleware.Authority(authoritySvc))
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	{
		admin.POST("/employees", middleware.Audit(userRepo, "CREATE", "employee"), employeeHandler.Create)
		admin.PUT("/employees/:id", middleware.Audit(userRepo, "UPDATE", "employee"), employeeHandler.Update)
		admin.PUT("/employees/:id/manager", middleware.Audit(userRepo, "ASSIGN_MANAGER", "employee"), employeeHandler.AssignManager)

		admin.GET("/hierarchy/manager-check/:code", employeeHandler.ManagerCheck)

		admin.GET("/scopes", scopeHandler.List)
		admin.GET("/scopes/manager/:id", scopeHandler.GetForManager)
		admin.PUT("/scopes", middleware.Audit(userRepo, "UPSERT", "scope"), scopeHandler.Upsert)
		admin.POST("/scopes/bulk", middleware.Audit(userRepo, "BULK_GRANT", "scope"), scopeHandler.Bulk)
		admin.DELETE("/scopes/:id", middleware.Audit(userRepo, "DELETE", "scope"), scopeHandler.Delete)

		admin.POST("/cycles", middleware.Audit(userRepo, "CREATE", "cycle"), cycleHandler.Create)
		admin.POST("/cycles/:id/generate", middleware.Audit(userRepo, "GENERATE_FORMS", "cycle"), cycleHandler.GenerateForms)
		admin.DELETE("/cycles/:id", middleware.Audit(userRepo, "DELETE", "cycle"), cycleHandler.Delete)

		if cfg.Import.Enabled {
			admin.POST("/import/employees", middleware.Audit(userRepo, "IMPORT", "employee"), importHandler.Workbook)
		}

		admin.GET("/users/:id", userHandler.Get)
		admin.GET("/users/by-code/:code", userHandler.GetByEmpCode)
		admin.PUT("/users/:id", middleware.Audit(userRepo, "UPDATE", "user"), userHandler.Update)
		admin.POST("/users/:id/reset-password", middleware.Audit(userRepo, "RESET_PASSWORD", "user"), userHandler.ResetPassword)

		admin.GET("/metrics/system", metricsHandler.Snapshot)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
