package kyc

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
	"github.com/atlas-dms/atlas-dms/internal/rbac"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// Handler manages KYC endpoints, mounted under /leads/{leadID}/kyc.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: mw}
}

// MountRoutes registers KYC routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionKYCEdit))
		r.Get("/", h.access)
		r.Patch("/payment-method", h.setPaymentMethod)
		r.Patch("/consent", h.setConsent)
		r.Post("/documents/verify", h.verifyDocument)
		r.Post("/complete", h.complete)
	})
}

func (h *Handler) leadID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "leadID"), 10, 64)
}

func (h *Handler) access(w http.ResponseWriter, r *http.Request) {
	leadID, err := h.leadID(r)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid lead id")
		return
	}
	session, err := h.service.Access(r.Context(), leadID)
	if err != nil {
		h.respondAccessError(w, leadID, err)
		return
	}
	httpx.OK(w, session)
}

// respondAccessError adds the redirect hint when KYC is blocked on a
// non-hot lead.
func (h *Handler) respondAccessError(w http.ResponseWriter, leadID int64, err error) {
	if errors.Is(err, ErrLeadNotHot) {
		httpx.JSON(w, http.StatusForbidden, httpx.Envelope{
			Success: false,
			Error:   err.Error(),
			Data:    map[string]string{"redirect": fmt.Sprintf("/leads/%d", leadID)},
		})
		return
	}
	httpx.RespondError(w, err)
}

func (h *Handler) setPaymentMethod(w http.ResponseWriter, r *http.Request) {
	leadID, err := h.leadID(r)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid lead id")
		return
	}
	var req struct {
		PaymentMethod string `json:"payment_method"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, err := h.service.SetPaymentMethod(r.Context(), leadID, PaymentMethod(req.PaymentMethod))
	if err != nil {
		h.respondAccessError(w, leadID, err)
		return
	}
	httpx.OK(w, session)
}

func (h *Handler) setConsent(w http.ResponseWriter, r *http.Request) {
	leadID, err := h.leadID(r)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid lead id")
		return
	}
	var req struct {
		ConsentStatus string `json:"consent_status"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, err := h.service.SetConsent(r.Context(), leadID, ConsentStatus(req.ConsentStatus))
	if err != nil {
		h.respondAccessError(w, leadID, err)
		return
	}
	httpx.OK(w, session)
}

func (h *Handler) verifyDocument(w http.ResponseWriter, r *http.Request) {
	leadID, err := h.leadID(r)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid lead id")
		return
	}
	var req struct {
		DocumentType   string `json:"document_type"`
		DocumentNumber string `json:"document_number"`
		ScanRef        string `json:"scan_ref"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.service.VerifyDocument(r.Context(), leadID, req.DocumentType, req.DocumentNumber, req.ScanRef)
	if err != nil {
		h.respondAccessError(w, leadID, err)
		return
	}
	httpx.OK(w, result)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	leadID, err := h.leadID(r)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid lead id")
		return
	}
	session, err := h.service.Complete(r.Context(), identity, leadID)
	if err != nil {
		h.logger.Error("kyc complete", slog.Int64("lead_id", leadID), slog.Any("error", err))
		h.respondAccessError(w, leadID, err)
		return
	}
	httpx.OK(w, session)
}
