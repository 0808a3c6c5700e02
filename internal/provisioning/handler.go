package provisioning

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

// Handler manages provisioning and PDI endpoints.
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

// MountRoutes registers the authenticated provisioning routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionProvisionView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/pdi", h.listPDI)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionProvisionEdit))
		r.Post("/", h.create)
		r.Patch("/{id}/status", h.setStatus)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionPDIRecord))
		r.Post("/{id}/pdi", h.recordPDI)
	})
}

// MountWebhookRoutes registers the inbound OEM webhook routes. The caller
// wraps them with the shared-secret middleware.
func (h *Handler) MountWebhookRoutes(r chi.Router) {
	r.Post("/oem-reply", h.oemReply)
	r.Post("/cancelled", h.cancelled)
}

type createRequest struct {
	OEMID     int64 `json:"oem_id" validate:"required"`
	ProductID int64 `json:"product_id" validate:"required"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
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
	provision, err := h.service.Create(r.Context(), identity, CreateInput{OEMID: req.OEMID, ProductID: req.ProductID, Quantity: req.Quantity})
	if err != nil {
		h.logger.Error("create provision", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, provision)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason"`
	Force  bool   `json:"force"`
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid provision id")
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
	if err := h.service.SetStatus(r.Context(), identity, id, Status(req.Status), req.Reason, req.Force); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"id": id, "status": req.Status})
}

type pdiRequest struct {
	OEMID       int64  `json:"oem_id" validate:"required"`
	InventoryID int64  `json:"inventory_id" validate:"required"`
	Passed      *bool  `json:"passed" validate:"required"`
	Notes       string `json:"notes"`
}

func (h *Handler) recordPDI(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid provision id")
		return
	}
	var req pdiRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	record, err := h.service.RecordPDI(r.Context(), identity, PDIInput{
		ProvisionID: id,
		OEMID:       req.OEMID,
		InventoryID: req.InventoryID,
		Passed:      *req.Passed,
		Notes:       req.Notes,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, record)
}

type oemReplyRequest struct {
	ProvisionID int64  `json:"provision_id" validate:"required"`
	Outcome     string `json:"outcome" validate:"required"`
	Reason      string `json:"reason"`
}

func (h *Handler) oemReply(w http.ResponseWriter, r *http.Request) {
	var req oemReplyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.HandleOEMReply(r.Context(), req.ProvisionID, Status(req.Outcome), req.Reason); err != nil {
		h.logger.Error("oem-reply webhook", slog.Int64("provision_id", req.ProvisionID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"provision_id": req.ProvisionID, "status": req.Outcome})
}

type cancelledRequest struct {
	ProvisionID int64  `json:"provision_id" validate:"required"`
	Reason      string `json:"reason"`
}

func (h *Handler) cancelled(w http.ResponseWriter, r *http.Request) {
	var req cancelledRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.HandleCancelled(r.Context(), req.ProvisionID, req.Reason); err != nil {
		h.logger.Error("cancelled webhook", slog.Int64("provision_id", req.ProvisionID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"provision_id": req.ProvisionID, "status": string(StatusCancelled)})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	provisions, err := h.service.List(r.Context(), limit, offset, r.URL.Query().Get("status"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, provisions)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid provision id")
		return
	}
	provision, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, provision)
}

func (h *Handler) listPDI(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid provision id")
		return
	}
	records, err := h.service.ListPDI(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, records)
}
