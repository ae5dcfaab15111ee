package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/girderhq/girder/internal/app"
	"github.com/girderhq/girder/internal/authz"
	"github.com/girderhq/girder/internal/observability"
	"github.com/girderhq/girder/internal/platform/db"
	"github.com/girderhq/girder/internal/shared"
	"github.com/girderhq/girder/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	overrideStore := authz.NewOverrideStore()
	authzRepo := authz.NewRepository(pool)
	authzService := authz.NewService(authzRepo, overrideStore, auditLogger, logger)

	refreshJob := jobs.NewAuthzRefreshJob(authzService, logger, metrics)
	cleanupJob := jobs.NewOverrideCleanupJob(authzService, logger, metrics)

	cleanupTask, err := jobs.NewOverrideCleanupTask(jobs.OverrideCleanupPayload{GraceHours: 24})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuthzRefresh, Handler: refreshJob.Handle},
			{Type: jobs.TaskOverrideCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "@every " + cfg.AuthzRefreshInterval.String(), Task: jobs.NewAuthzRefreshTask(), Options: []asynq.Option{asynq.MaxRetry(2)}},
			{Spec: cfg.OverrideCleanupCron, Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
