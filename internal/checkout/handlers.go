package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/payment"
	"github.com/solvieth/verslun-api/internal/promo"
)

// Handler wires checkout submission to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Checkout submits the cart. Guests checkout with an email in the
// payload; logged-in buyers are identified by their token.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var payload Input
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
	}
	out, err := h.Svc.Create(r.Context(), common.PrincipalFrom(r.Context()), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, out)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	var gwErr *payment.GatewayError
	switch {
	case errors.As(err, &gwErr):
		// The gateway's own message goes to the buyer unchanged.
		common.JSONError(w, http.StatusBadGateway, "GATEWAY_ERROR", gwErr.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrCartClosed):
		common.JSONError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case isPromoRejection(err):
		common.JSONError(w, http.StatusUnprocessableEntity, "PROMO_REJECTED", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}

func isPromoRejection(err error) bool {
	return errors.Is(err, promo.ErrNotFound) ||
		errors.Is(err, promo.ErrInactive) ||
		errors.Is(err, promo.ErrExpired) ||
		errors.Is(err, promo.ErrUsageLimitReached) ||
		errors.Is(err, promo.ErrPerUserLimitReached) ||
		errors.Is(err, promo.ErrMinimumSpendUnmet) ||
		errors.Is(err, promo.ErrWrongEvent)
}
