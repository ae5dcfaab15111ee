package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/girderhq/girder/internal/app"
	"github.com/girderhq/girder/internal/audit"
	"github.com/girderhq/girder/internal/auth"
	"github.com/girderhq/girder/internal/authz"
	"github.com/girderhq/girder/internal/dailylogs"
	"github.com/girderhq/girder/internal/materials"
	"github.com/girderhq/girder/internal/observability"
	"github.com/girderhq/girder/internal/platform/cache"
	"github.com/girderhq/girder/internal/platform/db"
	"github.com/girderhq/girder/internal/shared"
	"github.com/girderhq/girder/internal/subcontractors"
	"github.com/girderhq/girder/internal/users"
	"github.com/girderhq/girder/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "girder_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	// Override store: loaded once at boot, then kept fresh by write-through
	// admin operations and the scheduled refresh job.
	overrideStore := authz.NewOverrideStore()
	engine := authz.NewEngine(overrideStore)
	authzRepo := authz.NewRepository(pool)
	authzService := authz.NewService(authzRepo, overrideStore, auditLogger, logger)
	if err := authzService.Refresh(ctx); err != nil {
		logger.Error("initial override load", slog.Any("error", err))
		os.Exit(1)
	}

	guard := authz.Middleware{
		Engine:   engine,
		Subjects: authz.SubjectFromContext,
		Logger:   logger,
		Observer: metrics,
	}

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, engine, sessionManager, csrfManager)

	redisOpts := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	jobsClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	authzHandler := authz.NewHandler(logger, authzService, engine, guard, jobsClient)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, engine, auditLogger)
	usersHandler := users.NewHandler(logger, usersService, guard)

	dailyLogsRepo := dailylogs.NewRepository(pool)
	dailyLogsService := dailylogs.NewService(dailyLogsRepo, engine, usersService)
	dailyLogsHandler := dailylogs.NewHandler(logger, dailyLogsService, guard)

	materialsRepo := materials.NewRepository(pool)
	materialsService := materials.NewService(materialsRepo)
	materialsHandler := materials.NewHandler(logger, materialsService, guard)

	subsRepo := subcontractors.NewRepository(pool)
	subsService := subcontractors.NewService(subsRepo)
	subsHandler := subcontractors.NewHandler(logger, subsService, guard)

	auditService := audit.NewService(audit.NewRepository(pool))
	auditHandler := audit.NewHandler(logger, auditService, guard)

	inspector := asynq.NewInspector(redisOpts)
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:                logger,
		Config:                cfg,
		SessionManager:        sessionManager,
		CSRFManager:           csrfManager,
		Subjects:              usersService,
		Pool:                  pool,
		AuthHandler:           authHandler,
		AuthzHandler:          authzHandler,
		UsersHandler:          usersHandler,
		DailyLogsHandler:      dailyLogsHandler,
		MaterialsHandler:      materialsHandler,
		SubcontractorsHandler: subsHandler,
		AuditHandler:          auditHandler,
		JobHandler:            jobHandler,
		Metrics:               metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
