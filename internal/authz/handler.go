package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/girderhq/girder/internal/platform/httpx"
	"github.com/girderhq/girder/internal/shared"
)

// JobEnqueuer submits asynchronous store maintenance work. Satisfied by the
// jobs client.
type JobEnqueuer interface {
	EnqueueAuthzRefresh(ctx context.Context) error
	EnqueueOverrideCleanup(ctx context.Context, graceHours int) error
}

// Handler exposes authorization decisions and override administration over
// JSON. Clients use the read endpoints to gate UI affordances; the real
// enforcement happens in the route guards server-side.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	engine    *Engine
	guard     Middleware
	jobs      JobEnqueuer
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, engine *Engine, guard Middleware, jobsClient JobEnqueuer) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		engine:    engine,
		guard:     guard,
		jobs:      jobsClient,
		validator: validator.New(),
	}
}

// MountRoutes registers authorization routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/check", h.check)
	r.Get("/permissions", h.effectivePermissions)
	r.Get("/roles", h.roleCatalog)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(PermManagePermissions))
		r.Get("/overrides/users/{userID}", h.listUserOverrides)
		r.Post("/overrides/users", h.createUserOverride)
		r.Delete("/overrides/users/{id}", h.deleteUserOverride)
		r.Get("/overrides/projects", h.listProjectOverrides)
		r.Post("/overrides/projects", h.createProjectOverride)
		r.Delete("/overrides/projects/{id}", h.deleteProjectOverride)
		r.Get("/templates", h.listTemplates)
		r.Get("/templates/{id}", h.getTemplate)
		r.Get("/templates/assignments", h.listTemplateAssignments)
		r.Post("/refresh", h.triggerRefresh)
		r.Post("/overrides/cleanup", h.triggerCleanup)
	})
}

// triggerRefresh queues a store reload instead of running it inline, so a
// slow postgres read never holds the admin request open.
func (h *Handler) triggerRefresh(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "queue unavailable", "no job queue configured")
		return
	}
	if err := h.jobs.EnqueueAuthzRefresh(r.Context()); err != nil {
		h.serverError(w, "enqueue authz refresh", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"status": "queued"})
}

// triggerCleanup queues an out-of-schedule purge of expired project
// overrides. grace_hours shrinks or widens the retention window for this
// run only.
func (h *Handler) triggerCleanup(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "queue unavailable", "no job queue configured")
		return
	}
	graceHours := 24
	if raw := r.URL.Query().Get("grace_hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpx.Problem(w, http.StatusBadRequest, "invalid grace_hours", "grace_hours must be a non-negative integer")
			return
		}
		graceHours = parsed
	}
	if err := h.jobs.EnqueueOverrideCleanup(r.Context(), graceHours); err != nil {
		h.serverError(w, "enqueue override cleanup", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"status": "queued", "grace_hours": graceHours})
}

type checkResponse struct {
	Permission Permission `json:"permission"`
	ProjectID  string     `json:"project_id,omitempty"`
	Granted    bool       `json:"granted"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	perm, err := ParsePermission(r.URL.Query().Get("permission"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid permission", err.Error())
		return
	}
	projectID := r.URL.Query().Get("project_id")
	sub := h.subject(r)
	httpx.JSON(w, http.StatusOK, checkResponse{
		Permission: perm,
		ProjectID:  projectID,
		Granted:    h.engine.HasPermission(perm, sub, projectID),
	})
}

type effectivePermissionsResponse struct {
	UserID      string       `json:"user_id"`
	Role        Role         `json:"role"`
	ProjectID   string       `json:"project_id,omitempty"`
	Permissions []Permission `json:"permissions"`
	Visibility  Visibility   `json:"daily_log_visibility"`
}

func (h *Handler) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	sub := h.subject(r)
	if sub == nil {
		httpx.Problem(w, http.StatusUnauthorized, "unauthenticated", "no active session")
		return
	}
	projectID := r.URL.Query().Get("project_id")
	httpx.JSON(w, http.StatusOK, effectivePermissionsResponse{
		UserID:      sub.ID,
		Role:        sub.Role,
		ProjectID:   projectID,
		Permissions: h.engine.EffectivePermissions(sub, projectID).Slice(),
		Visibility:  h.engine.DailyLogVisibility(sub),
	})
}

type roleCatalogEntry struct {
	Role           Role         `json:"role"`
	HierarchyLevel int          `json:"hierarchy_level"`
	Visibility     Visibility   `json:"daily_log_visibility"`
	Permissions    []Permission `json:"default_permissions"`
}

func (h *Handler) roleCatalog(w http.ResponseWriter, r *http.Request) {
	entries := make([]roleCatalogEntry, 0, len(AllRoles()))
	for _, role := range AllRoles() {
		entries = append(entries, roleCatalogEntry{
			Role:           role,
			HierarchyLevel: HierarchyLevel(role),
			Visibility:     DefaultDailyLogVisibility(role),
			Permissions:    DefaultPermissions(role).Slice(),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": entries})
}

type userOverrideView struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Permission Permission `json:"permission"`
	Granted    bool       `json:"granted"`
	CreatedBy  string     `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (h *Handler) listUserOverrides(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	overrides := h.service.UserOverrides(userID)
	views := make([]userOverrideView, 0, len(overrides))
	for _, o := range overrides {
		views = append(views, userOverrideView(o))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"overrides": views})
}

type createUserOverrideRequest struct {
	UserID     string `json:"user_id" validate:"required"`
	Permission string `json:"permission" validate:"required"`
	Granted    bool   `json:"granted"`
}

func (h *Handler) createUserOverride(w http.ResponseWriter, r *http.Request) {
	var req createUserOverrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	perm, err := ParsePermission(req.Permission)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid permission", err.Error())
		return
	}
	o, err := h.service.CreateUserOverride(r.Context(), GrantUserOverrideInput{
		UserID:     req.UserID,
		Permission: perm,
		Granted:    req.Granted,
		ActorID:    h.actorID(r),
	})
	if err != nil {
		h.serverError(w, "create user override", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, userOverrideView(o))
}

func (h *Handler) deleteUserOverride(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteUserOverride(r.Context(), h.actorID(r), id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "not found", "override does not exist")
			return
		}
		h.serverError(w, "delete user override", err)
		return
	}
	httpx.NoContent(w)
}

type projectOverrideView struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	ProjectID  string     `json:"project_id"`
	Permission Permission `json:"permission"`
	Granted    bool       `json:"granted"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedBy  string     `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (h *Handler) listProjectOverrides(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	projectID := r.URL.Query().Get("project_id")
	if userID == "" || projectID == "" {
		httpx.Problem(w, http.StatusBadRequest, "missing filter", "user_id and project_id are required")
		return
	}
	overrides := h.service.ProjectOverrides(userID, projectID)
	views := make([]projectOverrideView, 0, len(overrides))
	for _, o := range overrides {
		views = append(views, projectOverrideView(o))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"overrides": views})
}

type createProjectOverrideRequest struct {
	UserID     string     `json:"user_id" validate:"required"`
	ProjectID  string     `json:"project_id" validate:"required"`
	Permission string     `json:"permission" validate:"required"`
	Granted    bool       `json:"granted"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

func (h *Handler) createProjectOverride(w http.ResponseWriter, r *http.Request) {
	var req createProjectOverrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	perm, err := ParsePermission(req.Permission)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid permission", err.Error())
		return
	}
	o, err := h.service.CreateProjectOverride(r.Context(), GrantProjectOverrideInput{
		UserID:     req.UserID,
		ProjectID:  req.ProjectID,
		Permission: perm,
		Granted:    req.Granted,
		ExpiresAt:  req.ExpiresAt,
		ActorID:    h.actorID(r),
	})
	if err != nil {
		h.serverError(w, "create project override", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, projectOverrideView(o))
}

func (h *Handler) deleteProjectOverride(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteProjectOverride(r.Context(), h.actorID(r), id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "not found", "override does not exist")
			return
		}
		h.serverError(w, "delete project override", err)
		return
	}
	httpx.NoContent(w)
}

type templateView struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Scope       TemplateScope          `json:"scope"`
	ToolAccess  map[string]AccessLevel `json:"tool_access"`
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.service.ListTemplates(r.Context())
	if err != nil {
		h.serverError(w, "list templates", err)
		return
	}
	views := make([]templateView, 0, len(templates))
	for _, t := range templates {
		views = append(views, templateView{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Scope:       t.Scope,
			ToolAccess:  t.ToolAccess,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"templates": views})
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "not found", "template does not exist")
			return
		}
		h.serverError(w, "get template", err)
		return
	}
	httpx.JSON(w, http.StatusOK, templateView{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Scope:       t.Scope,
		ToolAccess:  t.ToolAccess,
	})
}

func (h *Handler) listTemplateAssignments(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		httpx.Problem(w, http.StatusBadRequest, "missing filter", "user_id is required")
		return
	}
	assignments, err := h.service.ListTemplateAssignments(r.Context(), userID)
	if err != nil {
		h.serverError(w, "list template assignments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

func (h *Handler) subject(r *http.Request) *Subject {
	if h.guard.Subjects == nil {
		return nil
	}
	return h.guard.Subjects(r.Context())
}

func (h *Handler) actorID(r *http.Request) string {
	if sub := h.subject(r); sub != nil {
		return sub.ID
	}
	return ""
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.Problem(w, http.StatusInternalServerError, "internal error", "")
}
