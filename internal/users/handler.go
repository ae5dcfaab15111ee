package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/girderhq/girder/internal/authz"
	"github.com/girderhq/girder/internal/platform/httpx"
	"github.com/girderhq/girder/internal/shared"
)

// Handler manages user administration endpoints.
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

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.PermManageUsers))
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.getUser)
		r.Post("/", h.createUser)
		r.Patch("/{id}/active", h.setActive)
		r.Get("/{id}/projects", h.listProjectAssignments)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.PermAssignRoles))
		r.Put("/{id}/role", h.assignRole)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.serverError(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "not found", "user does not exist")
			return
		}
		h.serverError(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid role", err.Error())
		return
	}
	u, err := h.service.CreateUser(r.Context(), authz.SubjectFromContext(r.Context()), CreateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrPermissionDenied):
			httpx.Forbidden(w, "cannot create a user with that role")
		case errors.Is(err, shared.ErrAlreadyExists):
			httpx.Problem(w, http.StatusConflict, "conflict", "email already in use")
		default:
			h.serverError(w, "create user", err)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, u)
}

type assignRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid role", err.Error())
		return
	}
	u, err := h.service.AssignRole(r.Context(), authz.SubjectFromContext(r.Context()), chi.URLParam(r, "id"), role)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "not found", "user does not exist")
		case errors.Is(err, shared.ErrPermissionDenied):
			httpx.Forbidden(w, "cannot assign that role")
		default:
			h.serverError(w, "assign role", err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	err := h.service.SetActive(r.Context(), authz.SubjectFromContext(r.Context()), chi.URLParam(r, "id"), req.Active)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "not found", "user does not exist")
		case errors.Is(err, shared.ErrPermissionDenied):
			httpx.Forbidden(w, "cannot manage that user")
		default:
			h.serverError(w, "set active", err)
		}
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listProjectAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.service.ProjectAssignments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serverError(w, "list project assignments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "internal error", "")
}
