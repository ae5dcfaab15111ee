package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/girderhq/girder/internal/authz"
	"github.com/girderhq/girder/internal/shared"
)

type fakeRepo struct {
	users map[string]User
	roles map[string]authz.Role
}

func newFakeRepo(users ...User) *fakeRepo {
	f := &fakeRepo{users: map[string]User{}, roles: map[string]authz.Role{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeRepo) ListUsers(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeRepo) GetUser(ctx context.Context, id string) (User, error) {
	u, ok := f.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) CreateUser(ctx context.Context, u User, passwordHash string) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeRepo) UpdateRole(ctx context.Context, id string, role authz.Role) error {
	u, ok := f.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Role = role
	f.users[id] = u
	return nil
}

func (f *fakeRepo) SetActive(ctx context.Context, id string, active bool) error {
	u, ok := f.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsActive = active
	f.users[id] = u
	return nil
}

func (f *fakeRepo) ListProjectAssignments(ctx context.Context, userID string) ([]ProjectAssignment, error) {
	return nil, nil
}

func newTestService(repo *fakeRepo) *Service {
	return NewService(repo, authz.NewEngine(authz.NewOverrideStore()), nil)
}

func TestResolveSubject(t *testing.T) {
	repo := newFakeRepo(
		User{ID: "u1", Role: authz.RoleForeman, IsActive: true},
		User{ID: "u2", Role: authz.RoleViewer, IsActive: false},
	)
	svc := newTestService(repo)

	sub, err := svc.ResolveSubject(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, &authz.Subject{ID: "u1", Role: authz.RoleForeman}, sub)

	_, err = svc.ResolveSubject(context.Background(), "u2")
	assert.ErrorIs(t, err, shared.ErrNotFound, "inactive accounts resolve to nothing")

	_, err = svc.ResolveSubject(context.Background(), "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateUserRequiresAssignableRole(t *testing.T) {
	svc := newTestService(newFakeRepo())
	pm := &authz.Subject{ID: "pm", Role: authz.RoleProjectManager}

	u, err := svc.CreateUser(context.Background(), pm, CreateUserInput{
		Email: "new@girder.test", Name: "New", Password: "longenough", Role: authz.RoleForeman,
	})
	require.NoError(t, err)
	assert.Equal(t, authz.RoleForeman, u.Role)
	assert.True(t, u.IsActive)

	_, err = svc.CreateUser(context.Background(), pm, CreateUserInput{
		Email: "boss@girder.test", Name: "Boss", Password: "longenough", Role: authz.RoleAdmin,
	})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied, "cannot create an account above your own rank")
}

func TestAssignRoleChecksBothDirections(t *testing.T) {
	repo := newFakeRepo(
		User{ID: "worker", Role: authz.RoleFieldWorker, IsActive: true},
		User{ID: "chief", Role: authz.RoleAdmin, IsActive: true},
	)
	svc := newTestService(repo)
	pm := &authz.Subject{ID: "pm", Role: authz.RoleProjectManager}

	u, err := svc.AssignRole(context.Background(), pm, "worker", authz.RoleCrewLeader)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleCrewLeader, u.Role)

	// Neither promoting to a peer-or-higher role nor touching a more senior
	// account is allowed.
	_, err = svc.AssignRole(context.Background(), pm, "worker", authz.RoleAdmin)
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
	_, err = svc.AssignRole(context.Background(), pm, "chief", authz.RoleViewer)
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestAssignRoleRejectsActorWithoutGrant(t *testing.T) {
	repo := newFakeRepo(User{ID: "worker", Role: authz.RoleFieldWorker, IsActive: true})
	svc := newTestService(repo)
	foreman := &authz.Subject{ID: "f", Role: authz.RoleForeman}

	_, err := svc.AssignRole(context.Background(), foreman, "worker", authz.RoleCrewLeader)
	assert.ErrorIs(t, err, shared.ErrPermissionDenied, "foreman lacks the role-assignment grant entirely")
}

func TestSetActiveRequiresManageRights(t *testing.T) {
	repo := newFakeRepo(
		User{ID: "worker", Role: authz.RoleFieldWorker, IsActive: true},
		User{ID: "chief", Role: authz.RoleAdmin, IsActive: true},
	)
	svc := newTestService(repo)
	pm := &authz.Subject{ID: "pm", Role: authz.RoleProjectManager}

	require.NoError(t, svc.SetActive(context.Background(), pm, "worker", false))
	assert.False(t, repo.users["worker"].IsActive)

	assert.ErrorIs(t, svc.SetActive(context.Background(), pm, "chief", false), shared.ErrPermissionDenied)
	assert.ErrorIs(t, svc.SetActive(context.Background(), nil, "worker", true), shared.ErrPermissionDenied)
}
