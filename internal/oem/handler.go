package oem

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
	"github.com/atlas-dms/atlas-dms/internal/rbac"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// Handler manages OEM endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: mw, validate: validator.New()}
}

// MountRoutes registers OEM routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionOEMView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionOEMEdit))
		r.Post("/", h.create)
		r.Patch("/{id}/status", h.setStatus)
	})
}

type contactRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
	Role  string `json:"role" validate:"required"`
}

type createRequest struct {
	Name     string           `json:"name" validate:"required"`
	Region   string           `json:"region"`
	Contacts []contactRequest `json:"contacts" validate:"required,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	contacts := make([]Contact, 0, len(req.Contacts))
	for _, c := range req.Contacts {
		contacts = append(contacts, Contact{Name: c.Name, Email: c.Email, Phone: c.Phone, Role: c.Role})
	}
	item, err := h.service.Create(r.Context(), identity, CreateInput{Name: req.Name, Region: req.Region, Contacts: contacts})
	if err != nil {
		h.logger.Error("create oem", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, item)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid oem id")
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.SetStatus(r.Context(), id, Status(req.Status)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"id": id, "status": req.Status})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	items, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, items)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid oem id")
		return
	}
	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, item)
}
