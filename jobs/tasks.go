package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuthzRefresh reloads the in-memory override store from postgres.
	TaskAuthzRefresh = "authz:refresh"
	// TaskOverrideCleanup deletes expired project overrides. Expired rows
	// are inert at evaluation time; this job is the only thing that removes
	// them.
	TaskOverrideCleanup = "authz:override-cleanup"
)

// OverrideCleanupPayload tunes a cleanup run.
type OverrideCleanupPayload struct {
	// GraceHours keeps an expired override around for this many hours
	// before deletion, so admins can inspect recent expiries.
	GraceHours int `json:"grace_hours"`
}

// NewAuthzRefreshTask constructs a refresh task.
func NewAuthzRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskAuthzRefresh, nil)
}

// NewOverrideCleanupTask constructs a cleanup task.
func NewOverrideCleanupTask(payload OverrideCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverrideCleanup, data), nil
}
