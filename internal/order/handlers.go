package order

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/store"
)

// Queries lists the store operations the order handlers depend on.
type Queries interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (store.Order, error)
	ListOrdersByOwner(ctx context.Context, email string, limit, offset int32) ([]store.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]store.OrderItem, error)
}

// Handler serves the buyer-facing order endpoints.
type Handler struct {
	Q Queries
}

// List returns the caller's orders, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p := common.PrincipalFrom(r.Context())
	if p.Email == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	orders, err := h.Q.ListOrdersByOwner(r.Context(), p.Email, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	out := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		out = append(out, presentOrder(o, nil))
	}
	common.JSONData(w, http.StatusOK, out)
}

// Get returns one order with its lines. Buyers only see their own
// orders; admins see everything.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	o, err := h.Q.GetOrderByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	p := common.PrincipalFrom(r.Context())
	if !p.Admin && o.OwnerEmail != p.Email {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return
	}
	items, err := h.Q.ListOrderItems(r.Context(), o.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order items", nil)
		return
	}
	common.JSONData(w, http.StatusOK, presentOrder(o, items))
}

func presentOrder(o store.Order, items []store.OrderItem) map[string]any {
	out := map[string]any{
		"id":          o.ID.String(),
		"status":      o.Status,
		"paymentMode": o.PaymentMode,
		"buyerName":   o.BuyerName,
		"subtotal":    o.Subtotal,
		"discount":    o.Discount,
		"shipping":    o.Shipping,
		"total":       o.Total,
		"promo":       o.PromoCode,
		"createdAt":   o.CreatedAt,
	}
	if items != nil {
		lines := make([]map[string]any, 0, len(items))
		for _, it := range items {
			lines = append(lines, map[string]any{
				"description": it.Description,
				"qty":         it.Qty,
				"unitPrice":   it.UnitPrice,
				"subtotal":    it.Subtotal,
			})
		}
		out["items"] = lines
	}
	return out
}
