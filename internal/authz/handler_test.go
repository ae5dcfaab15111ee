package authz

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	calls    int
	cleanups []int
	err      error
}

func (f *fakeEnqueuer) EnqueueAuthzRefresh(ctx context.Context) error {
	f.calls++
	return f.err
}

func (f *fakeEnqueuer) EnqueueOverrideCleanup(ctx context.Context, graceHours int) error {
	f.cleanups = append(f.cleanups, graceHours)
	return f.err
}

func newRefreshRouter(t *testing.T, sub *Subject, enq JobEnqueuer) http.Handler {
	t.Helper()
	engine := NewEngine(NewOverrideStore())
	guard := Middleware{Engine: engine, Subjects: subjectSource(sub)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, nil, engine, guard, enq)
	r := chi.NewRouter()
	r.Route("/authz", h.MountRoutes)
	return r
}

func TestTriggerRefreshEnqueuesJob(t *testing.T) {
	enq := &fakeEnqueuer{}
	router := newRefreshRouter(t, &Subject{ID: "admin-1", Role: RoleAdmin}, enq)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/authz/refresh", nil))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, 1, enq.calls)
}

func TestTriggerRefreshRequiresManagePermissions(t *testing.T) {
	enq := &fakeEnqueuer{}
	router := newRefreshRouter(t, &Subject{ID: "viewer-1", Role: RoleViewer}, enq)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/authz/refresh", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, enq.calls)
}

func TestTriggerRefreshReportsEnqueueFailure(t *testing.T) {
	enq := &fakeEnqueuer{err: errors.New("redis down")}
	router := newRefreshRouter(t, &Subject{ID: "admin-1", Role: RoleAdmin}, enq)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/authz/refresh", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTriggerCleanupEnqueuesWithGrace(t *testing.T) {
	enq := &fakeEnqueuer{}
	router := newRefreshRouter(t, &Subject{ID: "admin-1", Role: RoleAdmin}, enq)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/authz/overrides/cleanup?grace_hours=6", nil))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, []int{6}, enq.cleanups)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/authz/overrides/cleanup", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []int{6, 24}, enq.cleanups, "omitted grace_hours falls back to the default window")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/authz/overrides/cleanup?grace_hours=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerRefreshWithoutQueueConfigured(t *testing.T) {
	router := newRefreshRouter(t, &Subject{ID: "admin-1", Role: RoleAdmin}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/authz/refresh", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
