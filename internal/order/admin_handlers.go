package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/events"
	"github.com/solvieth/verslun-api/internal/store"
)

// AdminQueries lists the store operations used by the admin order
// endpoints.
type AdminQueries interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (store.Order, error)
	UpdateOrderStatusIfCurrent(ctx context.Context, id uuid.UUID, next string, current []string) (bool, error)
}

// AdminHandler exposes order status corrections for staff.
type AdminHandler struct {
	Q      AdminQueries
	Events *events.Bus
}

// allowedTransitions maps a target status to the statuses it may be
// reached from.
var allowedTransitions = map[string][]string{
	store.OrderStatusPaid:     {store.OrderStatusPendingPayment, store.OrderStatusReserved},
	store.OrderStatusCanceled: {store.OrderStatusPendingPayment, store.OrderStatusReserved},
	store.OrderStatusRefunded: {store.OrderStatusPaid},
}

// PatchStatus transitions an order between statuses. Only a fixed set
// of transitions is permitted; anything else conflicts.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	next := strings.ToUpper(strings.TrimSpace(payload.Status))
	from, ok := allowedTransitions[next]
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unsupported target status", nil)
		return
	}
	order, err := h.Q.GetOrderByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	moved, err := h.Q.UpdateOrderStatusIfCurrent(r.Context(), id, next, from)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update order", nil)
		return
	}
	if !moved {
		common.JSONError(w, http.StatusConflict, "CONFLICT",
			"order status "+order.Status+" does not allow transition to "+next, nil)
		return
	}
	if h.Events != nil {
		payload := map[string]any{
			"orderId": order.ID.String(),
			"email":   order.OwnerEmail,
			"from":    order.Status,
			"to":      next,
		}
		switch next {
		case store.OrderStatusPaid:
			_, _ = h.Events.Emit(r.Context(), events.TopicOrderPaid, order.ID, payload)
		case store.OrderStatusCanceled:
			_, _ = h.Events.Emit(r.Context(), events.TopicOrderCanceled, order.ID, payload)
		}
	}
	common.JSONData(w, http.StatusOK, map[string]any{"id": order.ID.String(), "status": next})
}
