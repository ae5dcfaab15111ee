package dailylogs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/girderhq/girder/internal/authz"
	"github.com/girderhq/girder/internal/shared"
)

type fakeRepo struct {
	logs map[string]DailyLog
}

func newFakeRepo(logs ...DailyLog) *fakeRepo {
	f := &fakeRepo{logs: map[string]DailyLog{}}
	for _, l := range logs {
		f.logs[l.ID] = l
	}
	return f
}

func (f *fakeRepo) GetLog(ctx context.Context, id string) (DailyLog, error) {
	l, ok := f.logs[id]
	if !ok {
		return DailyLog{}, shared.ErrNotFound
	}
	return l, nil
}

func (f *fakeRepo) ListLogs(ctx context.Context, filter ListFilter, page shared.Pagination) ([]DailyLog, int, error) {
	var out []DailyLog
	for _, l := range f.logs {
		if filter.ProjectID != "" && l.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.AuthorID != "" && l.AuthorID != filter.AuthorID {
			continue
		}
		if filter.VisibleProjects != nil {
			found := false
			for _, p := range filter.VisibleProjects {
				if p == l.ProjectID {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, l)
	}
	return out, len(out), nil
}

func (f *fakeRepo) CreateLog(ctx context.Context, l DailyLog) error {
	f.logs[l.ID] = l
	return nil
}

func (f *fakeRepo) UpdateLog(ctx context.Context, l DailyLog) error {
	if _, ok := f.logs[l.ID]; !ok {
		return shared.ErrNotFound
	}
	f.logs[l.ID] = l
	return nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, id string, from, to Status, actorID string) error {
	l, ok := f.logs[id]
	if !ok || l.Status != from {
		return ErrInvalidStatus
	}
	l.Status = to
	l.ApprovedBy = actorID
	f.logs[id] = l
	return nil
}

func (f *fakeRepo) DeleteLog(ctx context.Context, id string) error {
	if _, ok := f.logs[id]; !ok {
		return shared.ErrNotFound
	}
	delete(f.logs, id)
	return nil
}

type fakeAssignments map[string][]string

func (f fakeAssignments) ProjectIDsFor(ctx context.Context, userID string) ([]string, error) {
	return f[userID], nil
}

func testLogs() []DailyLog {
	return []DailyLog{
		{ID: "l1", ProjectID: "bridge", AuthorID: "worker-1", Status: StatusDraft},
		{ID: "l2", ProjectID: "bridge", AuthorID: "worker-2", Status: StatusSubmitted},
		{ID: "l3", ProjectID: "tower", AuthorID: "worker-3", Status: StatusApproved},
	}
}

func newTestService(repo *fakeRepo, assignments fakeAssignments) *Service {
	return NewService(repo, authz.NewEngine(authz.NewOverrideStore()), assignments)
}

func TestListScopesToVisibilityTier(t *testing.T) {
	repo := newFakeRepo(testLogs()...)
	svc := newTestService(repo, fakeAssignments{
		"foreman-1": {"bridge"},
		"worker-1":  {"bridge"},
	})

	// projectManager sees everything.
	logs, _, err := svc.List(context.Background(), &authz.Subject{ID: "pm", Role: authz.RoleProjectManager}, ListFilter{}, shared.Pagination{})
	require.NoError(t, err)
	assert.Len(t, logs, 3)

	// foreman sees assigned projects only.
	logs, _, err = svc.List(context.Background(), &authz.Subject{ID: "foreman-1", Role: authz.RoleForeman}, ListFilter{}, shared.Pagination{})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
	for _, l := range logs {
		assert.Equal(t, "bridge", l.ProjectID)
	}

	// fieldWorker sees own logs only, even inside an assigned project.
	logs, _, err = svc.List(context.Background(), &authz.Subject{ID: "worker-1", Role: authz.RoleFieldWorker}, ListFilter{}, shared.Pagination{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "l1", logs[0].ID)
}

func TestListWithNoAssignmentsSeesNothing(t *testing.T) {
	svc := newTestService(newFakeRepo(testLogs()...), fakeAssignments{})

	logs, pagination, err := svc.List(context.Background(), &authz.Subject{ID: "arch", Role: authz.RoleArchitect}, ListFilter{}, shared.Pagination{})
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.Zero(t, pagination.Total)
}

func TestListNilSubjectSeesNothing(t *testing.T) {
	svc := newTestService(newFakeRepo(testLogs()...), fakeAssignments{})
	logs, _, err := svc.List(context.Background(), nil, ListFilter{}, shared.Pagination{})
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestGetHidesLogsOutsideTier(t *testing.T) {
	svc := newTestService(newFakeRepo(testLogs()...), fakeAssignments{"foreman-1": {"bridge"}})
	foreman := &authz.Subject{ID: "foreman-1", Role: authz.RoleForeman}

	_, err := svc.Get(context.Background(), foreman, "l1")
	require.NoError(t, err)

	// Off-project log reads as not-found, not forbidden: no existence leak.
	_, err = svc.Get(context.Background(), foreman, "l3")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateRequiresProjectMembershipOutsideAllTier(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, fakeAssignments{"worker-1": {"bridge"}})
	worker := &authz.Subject{ID: "worker-1", Role: authz.RoleFieldWorker}

	l, err := svc.Create(context.Background(), worker, CreateInput{
		ProjectID: "bridge", LogDate: time.Now(), WorkDone: "poured footings", CrewCount: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, l.Status)
	assert.Equal(t, "worker-1", l.AuthorID)

	_, err = svc.Create(context.Background(), worker, CreateInput{
		ProjectID: "tower", LogDate: time.Now(), WorkDone: "sneaky entry",
	})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)

	// All-tier callers may log against any project.
	_, err = svc.Create(context.Background(), &authz.Subject{ID: "pm", Role: authz.RoleProjectManager}, CreateInput{
		ProjectID: "tower", LogDate: time.Now(), WorkDone: "site walk",
	})
	assert.NoError(t, err)
}

func TestUpdateOnlyAuthorAndOnlyDraft(t *testing.T) {
	repo := newFakeRepo(testLogs()...)
	svc := newTestService(repo, fakeAssignments{"worker-1": {"bridge"}, "worker-2": {"bridge"}})

	worker1 := &authz.Subject{ID: "worker-1", Role: authz.RoleFieldWorker}
	_, err := svc.Update(context.Background(), worker1, "l1", UpdateInput{WorkDone: "revised", CrewCount: 5})
	require.NoError(t, err)
	assert.Equal(t, "revised", repo.logs["l1"].WorkDone)

	worker2 := &authz.Subject{ID: "worker-2", Role: authz.RoleFieldWorker}
	_, err = svc.Update(context.Background(), worker2, "l2", UpdateInput{WorkDone: "late edit"})
	assert.ErrorIs(t, err, ErrInvalidStatus, "submitted logs are frozen")

	pm := &authz.Subject{ID: "pm", Role: authz.RoleProjectManager}
	_, err = svc.Update(context.Background(), pm, "l1", UpdateInput{WorkDone: "hijack"})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied, "visibility does not grant editing")
}

func TestSubmitAndApproveLifecycle(t *testing.T) {
	repo := newFakeRepo(testLogs()...)
	svc := newTestService(repo, fakeAssignments{"worker-1": {"bridge"}})

	worker := &authz.Subject{ID: "worker-1", Role: authz.RoleFieldWorker}
	require.NoError(t, svc.Submit(context.Background(), worker, "l1"))
	assert.Equal(t, StatusSubmitted, repo.logs["l1"].Status)

	pm := &authz.Subject{ID: "pm", Role: authz.RoleProjectManager}
	require.NoError(t, svc.Approve(context.Background(), pm, "l1"))
	assert.Equal(t, StatusApproved, repo.logs["l1"].Status)
	assert.Equal(t, "pm", repo.logs["l1"].ApprovedBy)

	// Double approval trips the status guard.
	assert.ErrorIs(t, svc.Approve(context.Background(), pm, "l1"), ErrInvalidStatus)
}

func TestDeleteOnlyAuthorDrafts(t *testing.T) {
	repo := newFakeRepo(testLogs()...)
	svc := newTestService(repo, fakeAssignments{"worker-1": {"bridge"}, "worker-2": {"bridge"}})

	worker2 := &authz.Subject{ID: "worker-2", Role: authz.RoleFieldWorker}
	assert.ErrorIs(t, svc.Delete(context.Background(), worker2, "l2"), ErrInvalidStatus)

	worker1 := &authz.Subject{ID: "worker-1", Role: authz.RoleFieldWorker}
	require.NoError(t, svc.Delete(context.Background(), worker1, "l1"))
	_, ok := repo.logs["l1"]
	assert.False(t, ok)
}
