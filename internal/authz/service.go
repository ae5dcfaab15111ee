package authz

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/girderhq/girder/internal/shared"
)

// RepositoryPort defines the persistence surface the service needs.
type RepositoryPort interface {
	LoadOverrides(ctx context.Context) ([]UserOverride, []ProjectOverride, error)
	InsertUserOverride(ctx context.Context, o UserOverride) error
	DeleteUserOverride(ctx context.Context, id string) error
	InsertProjectOverride(ctx context.Context, o ProjectOverride) error
	DeleteProjectOverride(ctx context.Context, id string) error
	PurgeExpiredProjectOverrides(ctx context.Context, before time.Time) (int64, error)
	ListTemplates(ctx context.Context) ([]PermissionTemplate, error)
	GetTemplate(ctx context.Context, id string) (PermissionTemplate, error)
	ListTemplateAssignments(ctx context.Context, userID string) ([]TemplateAssignment, error)
}

// AuditRecorder persists an audit trail entry.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates override administration and store refreshes. Writes
// go to postgres first, then through to the in-memory store, so decisions
// reflect an admin change without waiting for the next wholesale refresh.
type Service struct {
	repo   RepositoryPort
	store  *OverrideStore
	audit  AuditRecorder
	logger *slog.Logger
	sf     singleflight.Group
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, store *OverrideStore, audit AuditRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		store:  store,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

// Refresh replaces the override store wholesale from postgres. Concurrent
// callers coalesce onto a single load.
func (s *Service) Refresh(ctx context.Context) error {
	_, err, _ := s.sf.Do("refresh", func() (any, error) {
		users, projects, err := s.repo.LoadOverrides(ctx)
		if err != nil {
			return nil, fmt.Errorf("authz: load overrides: %w", err)
		}
		s.store.ReplaceAll(users, projects)
		if s.logger != nil {
			s.logger.Info("authz store refreshed",
				slog.Int("user_overrides", len(users)),
				slog.Int("project_overrides", len(projects)))
		}
		return nil, nil
	})
	return err
}

// GrantUserOverrideInput captures an admin grant/revoke request.
type GrantUserOverrideInput struct {
	UserID     string
	Permission Permission
	Granted    bool
	ActorID    string
}

// CreateUserOverride persists and applies a user-level override.
func (s *Service) CreateUserOverride(ctx context.Context, in GrantUserOverrideInput) (UserOverride, error) {
	o := UserOverride{
		ID:         uuid.NewString(),
		UserID:     in.UserID,
		Permission: in.Permission,
		Granted:    in.Granted,
		CreatedBy:  in.ActorID,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.InsertUserOverride(ctx, o); err != nil {
		return UserOverride{}, err
	}
	s.store.PutUserOverride(o)
	s.recordAudit(ctx, in.ActorID, "override.user.create", "user_permission_override", o.ID, map[string]any{
		"user_id":    o.UserID,
		"permission": string(o.Permission),
		"granted":    o.Granted,
	})
	return o, nil
}

// DeleteUserOverride removes a user-level override everywhere.
func (s *Service) DeleteUserOverride(ctx context.Context, actorID, id string) error {
	if err := s.repo.DeleteUserOverride(ctx, id); err != nil {
		return err
	}
	s.store.RemoveUserOverride(id)
	s.recordAudit(ctx, actorID, "override.user.delete", "user_permission_override", id, nil)
	return nil
}

// GrantProjectOverrideInput captures a project-scoped grant/revoke request.
type GrantProjectOverrideInput struct {
	UserID     string
	ProjectID  string
	Permission Permission
	Granted    bool
	ExpiresAt  *time.Time
	ActorID    string
}

// CreateProjectOverride persists and applies a project-level override.
func (s *Service) CreateProjectOverride(ctx context.Context, in GrantProjectOverrideInput) (ProjectOverride, error) {
	o := ProjectOverride{
		ID:         uuid.NewString(),
		UserID:     in.UserID,
		ProjectID:  in.ProjectID,
		Permission: in.Permission,
		Granted:    in.Granted,
		ExpiresAt:  in.ExpiresAt,
		CreatedBy:  in.ActorID,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.InsertProjectOverride(ctx, o); err != nil {
		return ProjectOverride{}, err
	}
	s.store.PutProjectOverride(o)
	meta := map[string]any{
		"user_id":    o.UserID,
		"project_id": o.ProjectID,
		"permission": string(o.Permission),
		"granted":    o.Granted,
	}
	if o.ExpiresAt != nil {
		meta["expires_at"] = o.ExpiresAt.Format(time.RFC3339)
	}
	s.recordAudit(ctx, in.ActorID, "override.project.create", "project_permission_override", o.ID, meta)
	return o, nil
}

// DeleteProjectOverride removes a project-level override everywhere.
func (s *Service) DeleteProjectOverride(ctx context.Context, actorID, id string) error {
	if err := s.repo.DeleteProjectOverride(ctx, id); err != nil {
		return err
	}
	s.store.RemoveProjectOverride(id)
	s.recordAudit(ctx, actorID, "override.project.delete", "project_permission_override", id, nil)
	return nil
}

// UserOverrides lists the stored user-level overrides for a user.
func (s *Service) UserOverrides(userID string) []UserOverride {
	return s.store.UserOverridesFor(userID)
}

// ProjectOverrides lists the stored project-level overrides for a user and
// project, expired entries included.
func (s *Service) ProjectOverrides(userID, projectID string) []ProjectOverride {
	return s.store.ProjectOverridesFor(userID, projectID)
}

// PurgeExpired deletes project overrides that expired before the grace
// window and refreshes the store. Called by the scheduled cleanup job;
// evaluation never deletes, it only ignores expired rows.
func (s *Service) PurgeExpired(ctx context.Context, grace time.Duration) (int64, error) {
	purged, err := s.repo.PurgeExpiredProjectOverrides(ctx, s.now().UTC().Add(-grace))
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		if err := s.Refresh(ctx); err != nil {
			return purged, err
		}
	}
	return purged, nil
}

// ListTemplates returns all permission templates.
func (s *Service) ListTemplates(ctx context.Context) ([]PermissionTemplate, error) {
	return s.repo.ListTemplates(ctx)
}

// GetTemplate fetches one template.
func (s *Service) GetTemplate(ctx context.Context, id string) (PermissionTemplate, error) {
	return s.repo.GetTemplate(ctx, id)
}

// ListTemplateAssignments returns a user's template assignments.
func (s *Service) ListTemplateAssignments(ctx context.Context, userID string) ([]TemplateAssignment, error) {
	return s.repo.ListTemplateAssignments(ctx, userID)
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	}); err != nil && s.logger != nil {
		s.logger.Error("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
