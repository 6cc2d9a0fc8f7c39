package payment

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solvieth/verslun-api/internal/common"
)

// Handler exposes payment intent endpoints.
type Handler struct {
	Svc *Service
}

// CreateIntent opens (or reuses) a gateway intent for a pending order.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment service not configured", nil)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	order, err := h.Svc.Q.GetOrderByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load order", nil)
		return
	}
	p := common.PrincipalFrom(r.Context())
	if !p.Admin && order.OwnerEmail != p.Email {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "order belongs to another buyer", nil)
		return
	}
	intent, err := h.Svc.CreateIntent(r.Context(), orderID)
	if err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			common.JSONError(w, http.StatusBadGateway, "GATEWAY_ERROR", gwErr.Error(), nil)
			return
		}
		common.JSONError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
		return
	}
	common.JSONData(w, http.StatusCreated, map[string]any{
		"paymentId":   intent.ID.String(),
		"provider":    intent.Provider,
		"status":      intent.Status,
		"redirectUrl": intent.RedirectURL,
		"expiresAt":   intent.ExpiresAt,
	})
}

// Status returns the best-known payment status for an order.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment service not configured", nil)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	status, err := h.Svc.ConsolidatedStatus(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to resolve status", nil)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"status": status})
}
