package dailylogs

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/girderhq/girder/internal/authz"
	"github.com/girderhq/girder/internal/shared"
)

// RepositoryPort defines data access methods for daily logs.
type RepositoryPort interface {
	GetLog(ctx context.Context, id string) (DailyLog, error)
	ListLogs(ctx context.Context, filter ListFilter, page shared.Pagination) ([]DailyLog, int, error)
	CreateLog(ctx context.Context, l DailyLog) error
	UpdateLog(ctx context.Context, l DailyLog) error
	UpdateStatus(ctx context.Context, id string, from, to Status, actorID string) error
	DeleteLog(ctx context.Context, id string) error
}

// AssignmentSource reports which projects a user is assigned to. Backed by
// the users module; indirected so this package stays decoupled from it.
type AssignmentSource interface {
	ProjectIDsFor(ctx context.Context, userID string) ([]string, error)
}

// Service applies visibility tiers on top of the repository. The route guard
// proves the caller may read or write daily logs at all; the service scopes
// WHICH logs per the caller's role.
type Service struct {
	repo        RepositoryPort
	engine      *authz.Engine
	assignments AssignmentSource
	now         func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, engine *authz.Engine, assignments AssignmentSource) *Service {
	return &Service{repo: repo, engine: engine, assignments: assignments, now: time.Now}
}

// scope narrows the filter to what the subject may see. Returns false when
// the subject may see nothing at all.
func (s *Service) scope(ctx context.Context, sub *authz.Subject, filter *ListFilter) (bool, error) {
	if sub == nil {
		return false, nil
	}
	switch s.engine.DailyLogVisibility(sub) {
	case authz.VisibilityAll:
		return true, nil
	case authz.VisibilityAssignedProjects:
		projects, err := s.assignments.ProjectIDsFor(ctx, sub.ID)
		if err != nil {
			return false, err
		}
		if len(projects) == 0 {
			return false, nil
		}
		filter.VisibleProjects = projects
		return true, nil
	default:
		filter.AuthorID = sub.ID
		return true, nil
	}
}

// List returns the logs visible to the subject.
func (s *Service) List(ctx context.Context, sub *authz.Subject, filter ListFilter, page shared.Pagination) ([]DailyLog, shared.Pagination, error) {
	visible, err := s.scope(ctx, sub, &filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if !visible {
		return nil, shared.NewPagination(page.Page, page.PerPage, 0), nil
	}
	logs, total, err := s.repo.ListLogs(ctx, filter, page)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return logs, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// Get returns one log if the subject's visibility tier covers it.
func (s *Service) Get(ctx context.Context, sub *authz.Subject, id string) (DailyLog, error) {
	l, err := s.repo.GetLog(ctx, id)
	if err != nil {
		return DailyLog{}, err
	}
	if !s.visible(ctx, sub, l) {
		return DailyLog{}, shared.ErrNotFound
	}
	return l, nil
}

func (s *Service) visible(ctx context.Context, sub *authz.Subject, l DailyLog) bool {
	if sub == nil {
		return false
	}
	switch s.engine.DailyLogVisibility(sub) {
	case authz.VisibilityAll:
		return true
	case authz.VisibilityAssignedProjects:
		projects, err := s.assignments.ProjectIDsFor(ctx, sub.ID)
		if err != nil {
			return false
		}
		return slices.Contains(projects, l.ProjectID)
	default:
		return l.AuthorID == sub.ID
	}
}

// CreateInput captures a new daily log.
type CreateInput struct {
	ProjectID string
	LogDate   time.Time
	Weather   string
	CrewCount int
	WorkDone  string
	Issues    string
}

// Create records a new draft log authored by the subject. Callers outside
// the all-visibility tier must be assigned to the project.
func (s *Service) Create(ctx context.Context, sub *authz.Subject, in CreateInput) (DailyLog, error) {
	if sub == nil {
		return DailyLog{}, shared.ErrPermissionDenied
	}
	if s.engine.DailyLogVisibility(sub) != authz.VisibilityAll {
		projects, err := s.assignments.ProjectIDsFor(ctx, sub.ID)
		if err != nil {
			return DailyLog{}, err
		}
		if !slices.Contains(projects, in.ProjectID) {
			return DailyLog{}, shared.ErrPermissionDenied
		}
	}
	now := s.now().UTC()
	l := DailyLog{
		ID:        uuid.NewString(),
		ProjectID: in.ProjectID,
		AuthorID:  sub.ID,
		LogDate:   in.LogDate,
		Weather:   in.Weather,
		CrewCount: in.CrewCount,
		WorkDone:  in.WorkDone,
		Issues:    in.Issues,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateLog(ctx, l); err != nil {
		return DailyLog{}, err
	}
	return l, nil
}

// UpdateInput carries the editable fields of a draft.
type UpdateInput struct {
	Weather   string
	CrewCount int
	WorkDone  string
	Issues    string
}

// Update edits a draft. Only the author may edit, and only before
// submission.
func (s *Service) Update(ctx context.Context, sub *authz.Subject, id string, in UpdateInput) (DailyLog, error) {
	l, err := s.Get(ctx, sub, id)
	if err != nil {
		return DailyLog{}, err
	}
	if l.AuthorID != sub.ID {
		return DailyLog{}, shared.ErrPermissionDenied
	}
	if l.Status != StatusDraft {
		return DailyLog{}, ErrInvalidStatus
	}
	l.Weather = in.Weather
	l.CrewCount = in.CrewCount
	l.WorkDone = in.WorkDone
	l.Issues = in.Issues
	if err := s.repo.UpdateLog(ctx, l); err != nil {
		return DailyLog{}, err
	}
	return l, nil
}

// Submit moves the author's draft into review.
func (s *Service) Submit(ctx context.Context, sub *authz.Subject, id string) error {
	l, err := s.Get(ctx, sub, id)
	if err != nil {
		return err
	}
	if l.AuthorID != sub.ID {
		return shared.ErrPermissionDenied
	}
	return s.repo.UpdateStatus(ctx, id, StatusDraft, StatusSubmitted, "")
}

// Approve accepts a submitted log. The route guard already proved the
// approve grant; visibility still applies.
func (s *Service) Approve(ctx context.Context, sub *authz.Subject, id string) error {
	if _, err := s.Get(ctx, sub, id); err != nil {
		return err
	}
	return s.repo.UpdateStatus(ctx, id, StatusSubmitted, StatusApproved, sub.ID)
}

// Delete removes the author's own draft.
func (s *Service) Delete(ctx context.Context, sub *authz.Subject, id string) error {
	l, err := s.Get(ctx, sub, id)
	if err != nil {
		return err
	}
	if l.AuthorID != sub.ID {
		return shared.ErrPermissionDenied
	}
	if l.Status != StatusDraft {
		return ErrInvalidStatus
	}
	return s.repo.DeleteLog(ctx, id)
}
