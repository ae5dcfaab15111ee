package authz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func guardedHandler(t *testing.T, m Middleware, perm Permission) http.Handler {
	t.Helper()
	return m.Require(perm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func subjectSource(sub *Subject) SubjectSource {
	return func(ctx context.Context) *Subject { return sub }
}

func TestRequireAllowsGrantedSubject(t *testing.T) {
	m := Middleware{
		Engine:   NewEngine(NewOverrideStore()),
		Subjects: subjectSource(&Subject{ID: "pm-1", Role: RoleProjectManager}),
	}
	rec := httptest.NewRecorder()
	guardedHandler(t, m, PermCreateProjects).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRejectsMissingPermission(t *testing.T) {
	m := Middleware{
		Engine:   NewEngine(NewOverrideStore()),
		Subjects: subjectSource(&Subject{ID: "viewer-1", Role: RoleViewer}),
	}
	rec := httptest.NewRecorder()
	guardedHandler(t, m, PermCreateProjects).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRejectsAnonymousRequest(t *testing.T) {
	m := Middleware{
		Engine:   NewEngine(NewOverrideStore()),
		Subjects: subjectSource(nil),
	}
	rec := httptest.NewRecorder()
	guardedHandler(t, m, PermViewProjects).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireReadsProjectScopeFromHeader(t *testing.T) {
	store := NewOverrideStore()
	store.PutProjectOverride(ProjectOverride{
		ID:         "po-1",
		UserID:     "viewer-1",
		ProjectID:  "bridge-7",
		Permission: PermCreateDailyLogs,
		Granted:    true,
		CreatedAt:  time.Now(),
	})
	m := Middleware{
		Engine:   NewEngine(store),
		Subjects: subjectSource(&Subject{ID: "viewer-1", Role: RoleViewer}),
	}
	handler := guardedHandler(t, m, PermCreateDailyLogs)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(ProjectScopeHeader, "bridge-7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "override applies inside its project")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code, "override does not leak outside the project scope")
}

func TestRequireAnyPassesOnFirstGrant(t *testing.T) {
	m := Middleware{
		Engine:   NewEngine(NewOverrideStore()),
		Subjects: subjectSource(&Subject{ID: "foreman-1", Role: RoleForeman}),
	}
	handler := m.RequireAny(PermManageCompanySettings, PermApproveDailyLogs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
