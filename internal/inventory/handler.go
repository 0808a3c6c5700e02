package inventory

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

// Handler manages inventory endpoints.
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

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionInventoryView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionInventoryEdit))
		r.Post("/", h.create)
		r.Patch("/{id}/status", h.setStatus)
	})
}

type createRequest struct {
	ProductID    int64   `json:"product_id" validate:"required"`
	OEMID        int64   `json:"oem_id" validate:"required"`
	SerialNumber string  `json:"serial_number"`
	Status       string  `json:"status"`
	BaseAmount   float64 `json:"base_amount" validate:"gte=0"`
	GSTAmount    float64 `json:"gst_amount" validate:"gte=0"`
	FinalAmount  float64 `json:"final_amount" validate:"gte=0"`
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
	item, err := h.service.Create(r.Context(), identity, CreateInput{
		ProductID:    req.ProductID,
		OEMID:        req.OEMID,
		SerialNumber: req.SerialNumber,
		Status:       Status(req.Status),
		BaseAmount:   req.BaseAmount,
		GSTAmount:    req.GSTAmount,
		FinalAmount:  req.FinalAmount,
	})
	if err != nil {
		h.logger.Error("create inventory item", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, item)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid inventory id")
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
	if err := h.service.SetStatus(r.Context(), identity, id, Status(req.Status)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"id": id, "status": req.Status})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	items, err := h.service.List(r.Context(), limit, offset, r.URL.Query().Get("status"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, items)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid inventory id")
		return
	}
	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, item)
}
