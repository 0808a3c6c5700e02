package catalog

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

// Handler manages catalog endpoints.
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

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionCatalogView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionCatalogEdit))
		r.Post("/", h.create)
		r.Patch("/{id}/active", h.setActive)
	})
}

type createRequest struct {
	SKU            string `json:"sku" validate:"required"`
	Name           string `json:"name" validate:"required"`
	HSNCode        string `json:"hsn_code"`
	AssetCategory  string `json:"asset_category"`
	AssetType      string `json:"asset_type"`
	Serialized     bool   `json:"serialized"`
	WarrantyMonths int    `json:"warranty_months" validate:"gte=0"`
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
	product, err := h.service.Create(r.Context(), identity, CreateInput{
		SKU:            req.SKU,
		Name:           req.Name,
		HSNCode:        req.HSNCode,
		AssetCategory:  req.AssetCategory,
		AssetType:      req.AssetType,
		Serialized:     req.Serialized,
		WarrantyMonths: req.WarrantyMonths,
	})
	if err != nil {
		h.logger.Error("create product", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, product)
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req activeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.SetActive(r.Context(), id, *req.Active); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"id": id, "active": *req.Active})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	activeOnly := r.URL.Query().Get("active") == "true"
	products, err := h.service.List(r.Context(), limit, offset, activeOnly)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, products)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid product id")
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, product)
}
