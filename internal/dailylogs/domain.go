package dailylogs

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidStatus flags a disallowed status transition.
	ErrInvalidStatus = errors.New("dailylogs: invalid status transition")
)

// Status tracks a daily log through its lifecycle.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
)

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusDraft, StatusSubmitted, StatusApproved:
		return s, nil
	default:
		return "", fmt.Errorf("dailylogs: unknown status %q", raw)
	}
}

// DailyLog is one day's site report for a project.
type DailyLog struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	AuthorID   string    `json:"author_id"`
	LogDate    time.Time `json:"log_date"`
	Weather    string    `json:"weather,omitempty"`
	CrewCount  int       `json:"crew_count"`
	WorkDone   string    `json:"work_done"`
	Issues     string    `json:"issues,omitempty"`
	Status     Status    `json:"status"`
	ApprovedBy string    `json:"approved_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ListFilter narrows a daily log listing. VisibleProjects and AuthorID are
// filled in by the service from the caller's visibility tier, never by the
// client.
type ListFilter struct {
	ProjectID       string
	Status          Status
	From            time.Time
	To              time.Time
	VisibleProjects []string
	AuthorID        string
}
