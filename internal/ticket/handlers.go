package ticket

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"

	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/payment"
	"github.com/solvieth/verslun-api/internal/promo"
	"github.com/solvieth/verslun-api/internal/store"
)

// Handler serves the public event catalogue and the purchase endpoint.
type Handler struct {
	Store    *store.Store
	Svc      *Service
	Validate *validator.Validate
}

// ListEvents returns upcoming events, soonest first.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	events, err := h.Store.ListUpcomingEvents(r.Context(), int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		out = append(out, presentEvent(e, nil, h.Svc.now()))
	}
	common.JSONData(w, http.StatusOK, out)
}

// GetEvent returns one event with its variants and the price a buyer
// would pay right now.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	event, err := h.Store.GetEventBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "event not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	variants, err := h.Store.ListEventVariants(r.Context(), event.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	common.JSONData(w, http.StatusOK, presentEvent(event, variants, h.Svc.now()))
}

// Purchase buys tickets for the event named in the payload.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "ticket service not configured", nil)
		return
	}
	var payload PurchaseInput
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
	out, err := h.Svc.Purchase(r.Context(), common.PrincipalFrom(r.Context()), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, out)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var gwErr *payment.GatewayError
	switch {
	case errors.As(err, &gwErr):
		common.JSONError(w, http.StatusBadGateway, "GATEWAY_ERROR", gwErr.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrSoldOut):
		common.JSONError(w, http.StatusConflict, "SOLD_OUT", err.Error(), nil)
	case errors.Is(err, ErrUnknownVariant), errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case isPromoRejection(err):
		common.JSONError(w, http.StatusUnprocessableEntity, "PROMO_REJECTED", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}

func presentEvent(e store.Event, variants []store.EventVariant, now time.Time) map[string]any {
	currentPrice, _ := ResolvePrice(PricingFor(e, variants), nil, nil, now)
	remaining := e.Capacity - e.IssuedCount
	if e.Capacity == 0 {
		remaining = -1
	}
	out := map[string]any{
		"id":           e.ID.String(),
		"slug":         e.Slug,
		"title":        e.Title,
		"description":  e.Description,
		"venue":        e.Venue,
		"startsAt":     e.StartsAt,
		"endsAt":       e.EndsAt,
		"soldOut":      e.SoldOut || (e.Capacity > 0 && remaining <= 0),
		"basePrice":    e.BasePrice,
		"currentPrice": currentPrice,
	}
	if e.Capacity > 0 {
		out["remaining"] = remaining
	}
	if e.EarlyBirdPrice != nil && e.EarlyBirdDeadline != nil {
		out["earlyBird"] = map[string]any{
			"price":    *e.EarlyBirdPrice,
			"deadline": *e.EarlyBirdDeadline,
			"active":   now.Before(*e.EarlyBirdDeadline),
		}
	}
	if e.SlidingScaleMin != nil && e.SlidingScaleMax != nil {
		out["slidingScale"] = map[string]any{
			"min": *e.SlidingScaleMin,
			"max": *e.SlidingScaleMax,
		}
	}
	if variants != nil {
		vs := make([]map[string]any, 0, len(variants))
		for _, v := range variants {
			vs = append(vs, map[string]any{
				"id":    v.ID.String(),
				"name":  v.Name,
				"price": v.Price,
			})
		}
		out["variants"] = vs
	}
	return out
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
