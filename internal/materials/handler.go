package materials

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/girderhq/girder/internal/authz"
	"github.com/girderhq/girder/internal/platform/httpx"
	"github.com/girderhq/girder/internal/shared"
)

// Handler manages material catalog endpoints.
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

// MountRoutes registers material routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.PermViewMaterials))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.PermManageMaterials))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Post("/{id}/archive", h.archive)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Query: q.Get("q")}
	if raw := q.Get("status"); raw != "" {
		switch Status(raw) {
		case StatusActive, StatusArchived:
			filter.Status = Status(raw)
		default:
			httpx.Problem(w, http.StatusBadRequest, "invalid status", "status must be active or archived")
			return
		}
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	items, pagination, err := h.service.List(r.Context(), filter, shared.NewPagination(page, perPage, 0))
	if err != nil {
		h.serverError(w, "list materials", err)
		return
	}
	if items == nil {
		items = []Material{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"materials": items, "pagination": pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "not found", "material does not exist")
			return
		}
		h.serverError(w, "get material", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

type createRequest struct {
	Name     string  `json:"name" validate:"required"`
	SKU      string  `json:"sku" validate:"required"`
	Unit     string  `json:"unit" validate:"required"`
	UnitCost float64 `json:"unit_cost" validate:"gte=0"`
	Supplier string  `json:"supplier"`
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
	m, err := h.service.Create(r.Context(), CreateInput{
		Name:     req.Name,
		SKU:      req.SKU,
		Unit:     req.Unit,
		UnitCost: req.UnitCost,
		Supplier: req.Supplier,
	})
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			httpx.Problem(w, http.StatusConflict, "conflict", "sku already in use")
			return
		}
		h.serverError(w, "create material", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

type updateRequest struct {
	Name     string  `json:"name" validate:"required"`
	Unit     string  `json:"unit" validate:"required"`
	UnitCost float64 `json:"unit_cost" validate:"gte=0"`
	Supplier string  `json:"supplier"`
	Status   string  `json:"status" validate:"required,oneof=active archived"`
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
	m, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), UpdateInput{
		Name:     req.Name,
		Unit:     req.Unit,
		UnitCost: req.UnitCost,
		Supplier: req.Supplier,
		Status:   Status(req.Status),
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "not found", "material does not exist")
			return
		}
		h.serverError(w, "update material", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Archive(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "not found", "material does not exist")
			return
		}
		h.serverError(w, "archive material", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "internal error", "")
}
