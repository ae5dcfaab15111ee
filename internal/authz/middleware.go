package authz

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/girderhq/girder/internal/platform/httpx"
)

// SubjectSource extracts the authenticated subject from a request context.
// Wired to shared.SubjectFromContext in the router; indirected here to keep
// the package free of the session machinery.
type SubjectSource func(ctx context.Context) *Subject

// DecisionObserver receives guard outcomes, typically for metrics.
type DecisionObserver interface {
	ObserveAuthzDecision(permission string, granted bool)
}

// Middleware wires permission guards for HTTP handlers. Decisions are
// advisory for UI gating on the clients but authoritative here: a failed
// guard stops the request.
type Middleware struct {
	Engine   *Engine
	Subjects SubjectSource
	Logger   *slog.Logger
	Observer DecisionObserver
}

// Require ensures the current subject holds the permission. The project
// scope, when present, is read from the X-Project-ID header so project
// overrides apply to project-scoped requests.
func (m Middleware) Require(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub := m.subject(r)
			granted := m.Engine.HasPermission(perm, sub, r.Header.Get(ProjectScopeHeader))
			m.observe(perm, granted)
			if !granted {
				m.deny(w, r, sub, perm)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny ensures the current subject holds at least one of the
// permissions.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			sub := m.subject(r)
			projectID := r.Header.Get(ProjectScopeHeader)
			for _, perm := range perms {
				if m.Engine.HasPermission(perm, sub, projectID) {
					m.observe(perm, true)
					next.ServeHTTP(w, r)
					return
				}
			}
			m.observe(perms[0], false)
			m.deny(w, r, sub, perms[0])
		})
	}
}

// ProjectScopeHeader carries the project scope for permission evaluation.
const ProjectScopeHeader = "X-Project-ID"

func (m Middleware) subject(r *http.Request) *Subject {
	if m.Subjects == nil {
		return nil
	}
	return m.Subjects(r.Context())
}

func (m Middleware) observe(perm Permission, granted bool) {
	if m.Observer != nil {
		m.Observer.ObserveAuthzDecision(string(perm), granted)
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, sub *Subject, perm Permission) {
	if m.Logger != nil {
		attrs := []any{slog.String("permission", string(perm)), slog.String("path", r.URL.Path)}
		if sub != nil {
			attrs = append(attrs, slog.String("user_id", sub.ID), slog.String("role", string(sub.Role)))
		}
		m.Logger.Warn("permission denied", attrs...)
	}
	httpx.Forbidden(w, "missing permission "+string(perm))
}
