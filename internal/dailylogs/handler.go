package dailylogs

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/girderhq/girder/internal/authz"
	"github.com/girderhq/girder/internal/platform/httpx"
	"github.com/girderhq/girder/internal/shared"
)

// Handler manages daily log endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     authz.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers daily log routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.PermViewDailyLogs))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.PermCreateDailyLogs))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Post("/{id}/submit", h.submit)
		r.Delete("/{id}", h.delete)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.PermApproveDailyLogs))
		r.Post("/{id}/approve", h.approve)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{ProjectID: q.Get("project_id")}
	if raw := q.Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "invalid status", err.Error())
			return
		}
		filter.Status = status
	}
	for _, bound := range []struct {
		key string
		dst *time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		if raw := q.Get(bound.key); raw != "" {
			t, err := time.Parse("2006-01-02", raw)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "invalid date", bound.key+" must be YYYY-MM-DD")
				return
			}
			*bound.dst = t
		}
	}

	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	logs, pagination, err := h.service.List(r.Context(), authz.SubjectFromContext(r.Context()), filter,
		shared.NewPagination(page, perPage, 0))
	if err != nil {
		h.serverError(w, "list daily logs", err)
		return
	}
	if logs == nil {
		logs = []DailyLog{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"logs": logs, "pagination": pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	l, err := h.service.Get(r.Context(), authz.SubjectFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "get daily log", err)
		return
	}
	httpx.JSON(w, http.StatusOK, l)
}

type createRequest struct {
	ProjectID string `json:"project_id" validate:"required"`
	LogDate   string `json:"log_date" validate:"required"`
	Weather   string `json:"weather"`
	CrewCount int    `json:"crew_count" validate:"gte=0"`
	WorkDone  string `json:"work_done" validate:"required"`
	Issues    string `json:"issues"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	logDate, err := time.Parse("2006-01-02", req.LogDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid date", "log_date must be YYYY-MM-DD")
		return
	}
	l, err := h.service.Create(r.Context(), authz.SubjectFromContext(r.Context()), CreateInput{
		ProjectID: req.ProjectID,
		LogDate:   logDate,
		Weather:   req.Weather,
		CrewCount: req.CrewCount,
		WorkDone:  req.WorkDone,
		Issues:    req.Issues,
	})
	if err != nil {
		h.respondError(w, "create daily log", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, l)
}

type updateRequest struct {
	Weather   string `json:"weather"`
	CrewCount int    `json:"crew_count" validate:"gte=0"`
	WorkDone  string `json:"work_done" validate:"required"`
	Issues    string `json:"issues"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	l, err := h.service.Update(r.Context(), authz.SubjectFromContext(r.Context()), chi.URLParam(r, "id"), UpdateInput{
		Weather:   req.Weather,
		CrewCount: req.CrewCount,
		WorkDone:  req.WorkDone,
		Issues:    req.Issues,
	})
	if err != nil {
		h.respondError(w, "update daily log", err)
		return
	}
	httpx.JSON(w, http.StatusOK, l)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Submit(r.Context(), authz.SubjectFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "submit daily log", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Approve(r.Context(), authz.SubjectFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "approve daily log", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), authz.SubjectFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "delete daily log", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "not found", "daily log does not exist")
	case errors.Is(err, shared.ErrPermissionDenied):
		httpx.Forbidden(w, "not allowed for this daily log")
	case errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusConflict, "invalid transition", err.Error())
	default:
		h.serverError(w, op, err)
	}
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "internal error", "")
}
