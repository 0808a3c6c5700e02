package approvals

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
	"github.com/atlas-dms/atlas-dms/internal/rbac"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// Handler manages approval endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: mw}
}

// MountRoutes registers approval routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionApprovalsView))
		r.Get("/pending/count", h.countPending)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionApprovalsAct))
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
	})
}

func (h *Handler) countPending(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	count, err := h.service.CountPending(r.Context(), identity)
	if err != nil {
		h.logger.Error("count pending approvals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]int64{"pending": count})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid approval id")
		return
	}
	if err := h.service.Approve(r.Context(), identity, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]string{"status": "approved"})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid approval id")
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.Reject(r.Context(), identity, id, req.Reason); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]string{"status": "rejected"})
}
