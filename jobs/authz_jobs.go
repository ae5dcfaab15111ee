package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/girderhq/girder/internal/authz"
)

// JobObserver receives job run outcomes, typically for metrics.
type JobObserver interface {
	ObserveJobRun(task, outcome string)
}

// AuthzRefreshJob reloads the override store from postgres on a schedule, so
// API instances converge even when a write-through was missed.
type AuthzRefreshJob struct {
	service  *authz.Service
	logger   *slog.Logger
	observer JobObserver
}

// NewAuthzRefreshJob constructs the refresh job.
func NewAuthzRefreshJob(service *authz.Service, logger *slog.Logger, observer JobObserver) *AuthzRefreshJob {
	return &AuthzRefreshJob{service: service, logger: logger, observer: observer}
}

// Handle processes TaskAuthzRefresh tasks.
func (j *AuthzRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	start := time.Now()
	err := j.service.Refresh(ctx)
	j.observe(TaskAuthzRefresh, err)
	if err != nil {
		j.logger.Error("authz refresh", slog.Any("error", err))
		return err
	}
	j.logger.Info("authz refresh complete", slog.Duration("took", time.Since(start)))
	return nil
}

// OverrideCleanupJob purges expired project overrides. Scheduled nightly;
// the engine treats expired rows as inert in between runs.
type OverrideCleanupJob struct {
	service  *authz.Service
	logger   *slog.Logger
	observer JobObserver
}

// NewOverrideCleanupJob constructs the cleanup job.
func NewOverrideCleanupJob(service *authz.Service, logger *slog.Logger, observer JobObserver) *OverrideCleanupJob {
	return &OverrideCleanupJob{service: service, logger: logger, observer: observer}
}

// Handle processes TaskOverrideCleanup tasks.
func (j *OverrideCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload OverrideCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	grace := time.Duration(payload.GraceHours) * time.Hour
	purged, err := j.service.PurgeExpired(ctx, grace)
	j.observe(TaskOverrideCleanup, err)
	if err != nil {
		j.logger.Error("override cleanup", slog.Any("error", err))
		return err
	}
	j.logger.Info("override cleanup complete", slog.Int64("purged", purged))
	return nil
}

func (j *AuthzRefreshJob) observe(task string, err error) {
	observeRun(j.observer, task, err)
}

func (j *OverrideCleanupJob) observe(task string, err error) {
	observeRun(j.observer, task, err)
}

func observeRun(o JobObserver, task string, err error) {
	if o == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	o.ObserveJobRun(task, outcome)
}
