package orders

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
	"github.com/atlas-dms/atlas-dms/internal/rbac"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// Handler manages order, GRN and dispute endpoints.
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

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionOrdersView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/disputes", h.listDisputes)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionOrdersEdit))
		r.Post("/", h.create)
		r.Post("/{id}/disputes", h.openDispute)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionOrdersGRN))
		r.Post("/{id}/grn", h.finalizeGRN)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionDisputeResolve))
		r.Patch("/disputes/{disputeID}", h.resolveDispute)
	})
}

type createRequest struct {
	DealID  int64   `json:"deal_id" validate:"required"`
	ItemIDs []int64 `json:"item_ids" validate:"required,min=1"`
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
	order, err := h.service.Create(r.Context(), identity, CreateInput{DealID: req.DealID, ItemIDs: req.ItemIDs})
	if err != nil {
		h.logger.Error("create order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, order)
}

type grnRequest struct {
	GRNID   string    `json:"grn_id" validate:"required"`
	GRNDate time.Time `json:"grn_date" validate:"required"`
}

func (h *Handler) finalizeGRN(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req grnRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.FinalizeGRN(r.Context(), identity, id, req.GRNID, req.GRNDate, r.Header.Get("Idempotency-Key")); err != nil {
		h.logger.Error("finalize grn", slog.Int64("order_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"id": id, "grn_id": req.GRNID})
}

type disputeRequest struct {
	Subject    string `json:"subject" validate:"required"`
	Detail     string `json:"detail"`
	AssigneeID int64  `json:"assignee_id" validate:"required"`
}

func (h *Handler) openDispute(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req disputeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	dispute, err := h.service.OpenDispute(r.Context(), identity, DisputeInput{
		OrderID:    orderID,
		Subject:    req.Subject,
		Detail:     req.Detail,
		AssigneeID: req.AssigneeID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, dispute)
}

type resolveRequest struct {
	Status     string `json:"status" validate:"required,oneof=resolved closed"`
	Resolution string `json:"resolution"`
}

func (h *Handler) resolveDispute(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "disputeID"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid dispute id")
		return
	}
	var req resolveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.ResolveDispute(r.Context(), identity, id, DisputeStatus(req.Status), req.Resolution); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"id": id, "status": req.Status})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	orders, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, orders)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid order id")
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, order)
}

func (h *Handler) listDisputes(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid order id")
		return
	}
	disputes, err := h.service.ListDisputes(r.Context(), orderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, disputes)
}
