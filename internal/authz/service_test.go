package authz

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/girderhq/girder/internal/shared"
)

type fakeRepo struct {
	mu       sync.Mutex
	users    []UserOverride
	projects []ProjectOverride
	loadErr  error
	loads    int
	purged   int64
}

func (f *fakeRepo) LoadOverrides(ctx context.Context) ([]UserOverride, []ProjectOverride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, nil, f.loadErr
	}
	return append([]UserOverride(nil), f.users...), append([]ProjectOverride(nil), f.projects...), nil
}

func (f *fakeRepo) InsertUserOverride(ctx context.Context, o UserOverride) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, o)
	return nil
}

func (f *fakeRepo) DeleteUserOverride(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, o := range f.users {
		if o.ID == id {
			f.users = append(f.users[:i], f.users[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (f *fakeRepo) InsertProjectOverride(ctx context.Context, o ProjectOverride) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects = append(f.projects, o)
	return nil
}

func (f *fakeRepo) DeleteProjectOverride(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, o := range f.projects {
		if o.ID == id {
			f.projects = append(f.projects[:i], f.projects[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (f *fakeRepo) PurgeExpiredProjectOverrides(ctx context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.projects[:0]
	var n int64
	for _, o := range f.projects {
		if o.Expired(before) {
			n++
			continue
		}
		kept = append(kept, o)
	}
	f.projects = kept
	f.purged += n
	return n, nil
}

func (f *fakeRepo) ListTemplates(ctx context.Context) ([]PermissionTemplate, error) {
	return nil, nil
}

func (f *fakeRepo) GetTemplate(ctx context.Context, id string) (PermissionTemplate, error) {
	return PermissionTemplate{}, shared.ErrNotFound
}

func (f *fakeRepo) ListTemplateAssignments(ctx context.Context, userID string) ([]TemplateAssignment, error) {
	return nil, nil
}

type fakeAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (f *fakeAudit) Record(ctx context.Context, log shared.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, log)
	return nil
}

func newTestService(repo *fakeRepo) (*Service, *OverrideStore, *fakeAudit) {
	store := NewOverrideStore()
	audit := &fakeAudit{}
	svc := NewService(repo, store, audit, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, store, audit
}

func TestRefreshReplacesStoreWholesale(t *testing.T) {
	repo := &fakeRepo{
		users: []UserOverride{{ID: "u1", UserID: "alice", Permission: PermApproveTimeEntries, Granted: true}},
	}
	svc, store, _ := newTestService(repo)

	store.PutUserOverride(UserOverride{ID: "stale", UserID: "bob", Permission: PermViewReports, Granted: true})
	require.NoError(t, svc.Refresh(context.Background()))

	got := store.UserOverridesFor("alice")
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].ID)
	assert.Empty(t, store.UserOverridesFor("bob"))
}

func TestRefreshPropagatesLoadError(t *testing.T) {
	repo := &fakeRepo{loadErr: errors.New("pg down")}
	svc, store, _ := newTestService(repo)
	store.PutUserOverride(UserOverride{ID: "keep", UserID: "alice", Permission: PermViewReports, Granted: true})

	err := svc.Refresh(context.Background())
	require.Error(t, err)
	// A failed load must not wipe decisions already in memory.
	assert.Len(t, store.UserOverridesFor("alice"), 1)
}

func TestCreateUserOverrideWritesThrough(t *testing.T) {
	repo := &fakeRepo{}
	svc, store, audit := newTestService(repo)

	o, err := svc.CreateUserOverride(context.Background(), GrantUserOverrideInput{
		UserID:     "worker-9",
		Permission: PermApproveTimeEntries,
		Granted:    true,
		ActorID:    "admin-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "admin-1", o.CreatedBy)

	// Visible to the engine immediately, before any refresh.
	engine := NewEngine(store)
	sub := &Subject{ID: "worker-9", Role: RoleFieldWorker}
	assert.True(t, engine.HasPermission(PermApproveTimeEntries, sub, ""))

	require.Len(t, repo.users, 1)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "override.user.create", audit.logs[0].Action)
}

func TestDeleteUserOverrideRemovesFromStore(t *testing.T) {
	repo := &fakeRepo{}
	svc, store, _ := newTestService(repo)

	o, err := svc.CreateUserOverride(context.Background(), GrantUserOverrideInput{
		UserID:     "worker-9",
		Permission: PermApproveTimeEntries,
		Granted:    true,
		ActorID:    "admin-1",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUserOverride(context.Background(), "admin-1", o.ID))
	assert.Empty(t, store.UserOverridesFor("worker-9"))
	assert.ErrorIs(t, svc.DeleteUserOverride(context.Background(), "admin-1", o.ID), shared.ErrNotFound)
}

func TestCreateProjectOverrideCarriesExpiry(t *testing.T) {
	repo := &fakeRepo{}
	svc, store, _ := newTestService(repo)

	expires := time.Now().Add(24 * time.Hour).UTC()
	o, err := svc.CreateProjectOverride(context.Background(), GrantProjectOverrideInput{
		UserID:     "worker-9",
		ProjectID:  "bridge-7",
		Permission: PermCreateDailyLogs,
		Granted:    true,
		ExpiresAt:  &expires,
		ActorID:    "admin-1",
	})
	require.NoError(t, err)
	require.NotNil(t, o.ExpiresAt)
	assert.True(t, o.ExpiresAt.Equal(expires))

	got := store.ProjectOverridesFor("worker-9", "bridge-7")
	require.Len(t, got, 1)
}

func TestPurgeExpiredRefreshesOnlyWhenRowsRemoved(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	repo := &fakeRepo{
		projects: []ProjectOverride{
			{ID: "p1", UserID: "a", ProjectID: "x", Permission: PermCreateDailyLogs, Granted: true, ExpiresAt: &past},
			{ID: "p2", UserID: "a", ProjectID: "x", Permission: PermViewDailyLogs, Granted: true},
		},
	}
	svc, _, _ := newTestService(repo)

	loadsBefore := repo.loads
	n, err := svc.PurgeExpired(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, loadsBefore+1, repo.loads, "purge that removed rows triggers a refresh")

	loadsBefore = repo.loads
	n, err = svc.PurgeExpired(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, loadsBefore, repo.loads, "no-op purge skips the refresh")
}
