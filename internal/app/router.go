package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/girderhq/girder/internal/audit"
	"github.com/girderhq/girder/internal/auth"
	"github.com/girderhq/girder/internal/authz"
	"github.com/girderhq/girder/internal/dailylogs"
	"github.com/girderhq/girder/internal/materials"
	"github.com/girderhq/girder/internal/observability"
	"github.com/girderhq/girder/internal/shared"
	"github.com/girderhq/girder/internal/subcontractors"
	"github.com/girderhq/girder/internal/users"
	"github.com/girderhq/girder/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Subjects       SubjectResolver
	Pool           *pgxpool.Pool

	AuthHandler           *auth.Handler
	AuthzHandler          *authz.Handler
	UsersHandler          *users.Handler
	DailyLogsHandler      *dailylogs.Handler
	MaterialsHandler      *materials.Handler
	SubcontractorsHandler *subcontractors.Handler
	AuditHandler          *audit.Handler
	JobHandler            *jobs.Handler
	Metrics               *observability.Metrics
}

// NewRouter constructs the chi.Router with Girder defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Subjects:       params.Subjects,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Route("/authz", params.AuthzHandler.MountRoutes)
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/dailylogs", params.DailyLogsHandler.MountRoutes)
		r.Route("/materials", params.MaterialsHandler.MountRoutes)
		r.Route("/subcontractors", params.SubcontractorsHandler.MountRoutes)
		r.Route("/audit", params.AuditHandler.MountRoutes)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
