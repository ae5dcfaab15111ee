package users

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/girderhq/girder/internal/authz"
	"github.com/girderhq/girder/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id string) (User, error)
	CreateUser(ctx context.Context, u User, passwordHash string) error
	UpdateRole(ctx context.Context, id string, role authz.Role) error
	SetActive(ctx context.Context, id string, active bool) error
	ListProjectAssignments(ctx context.Context, userID string) ([]ProjectAssignment, error)
}

// Service handles user administration. Hierarchy checks happen here, not in
// the route guards: the guard proves the actor may manage users at all, the
// service proves they outrank the specific target.
type Service struct {
	repo   RepositoryPort
	engine *authz.Engine
	audit  authz.AuditRecorder
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, engine *authz.Engine, audit authz.AuditRecorder) *Service {
	return &Service{repo: repo, engine: engine, audit: audit}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// ResolveSubject maps a session user id onto a permission subject. Inactive
// accounts resolve to nothing, which fails closed downstream.
func (s *Service) ResolveSubject(ctx context.Context, userID string) (*authz.Subject, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, shared.ErrNotFound
	}
	return &authz.Subject{ID: u.ID, Role: u.Role}, nil
}

// CreateUserInput captures a new-user request.
type CreateUserInput struct {
	Email    string
	Name     string
	Password string
	Role     authz.Role
}

// CreateUser provisions an account. The actor must be able to assign the
// requested role; nobody can create an account more senior than themselves.
func (s *Service) CreateUser(ctx context.Context, actor *authz.Subject, in CreateUserInput) (User, error) {
	if !s.engine.CanAssignRole(actor, in.Role) {
		return User{}, shared.ErrPermissionDenied
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	u := User{
		ID:        uuid.NewString(),
		Email:     in.Email,
		Name:      in.Name,
		Role:      in.Role,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	u.UpdatedAt = u.CreatedAt
	if err := s.repo.CreateUser(ctx, u, string(hash)); err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, actor, "user.create", u.ID, map[string]any{"role": string(u.Role)})
	return u, nil
}

// AssignRole changes a user's role. The actor must outrank both the target's
// current role and the role being assigned.
func (s *Service) AssignRole(ctx context.Context, actor *authz.Subject, userID string, role authz.Role) (User, error) {
	target, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if !s.engine.CanAssignRole(actor, role) || !s.engine.CanAssignRole(actor, target.Role) {
		return User{}, shared.ErrPermissionDenied
	}
	if err := s.repo.UpdateRole(ctx, userID, role); err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, actor, "user.assign_role", userID, map[string]any{
		"from": string(target.Role), "to": string(role),
	})
	target.Role = role
	return target, nil
}

// SetActive activates or deactivates an account. Requires manage rights over
// the target's role.
func (s *Service) SetActive(ctx context.Context, actor *authz.Subject, userID string, active bool) error {
	target, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.engine.CanManage(actor, &authz.Subject{ID: target.ID, Role: target.Role}) {
		return shared.ErrPermissionDenied
	}
	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "user.set_active", userID, map[string]any{"active": active})
	return nil
}

// ProjectAssignments lists the target's project memberships.
func (s *Service) ProjectAssignments(ctx context.Context, userID string) ([]ProjectAssignment, error) {
	return s.repo.ListProjectAssignments(ctx, userID)
}

// ProjectIDsFor returns just the project ids a user is assigned to. Feeds
// the assignedProjects visibility tier for daily logs.
func (s *Service) ProjectIDsFor(ctx context.Context, userID string) ([]string, error) {
	assignments, err := s.repo.ListProjectAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ProjectID)
	}
	return ids, nil
}

func (s *Service) recordAudit(ctx context.Context, actor *authz.Subject, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actorID := ""
	if actor != nil {
		actorID = actor.ID
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: entityID,
		Meta:     meta,
	})
}
