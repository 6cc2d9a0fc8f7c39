package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/promo"
	"github.com/solvieth/verslun-api/internal/shipping"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc      *Service
	Ship     *shipping.Resolver
	Currency string
}

// Create creates or returns the caller's pending cart. Guests without
// an anon id get one minted for them.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	p := common.PrincipalFrom(r.Context())
	if p.Email == "" {
		var payload struct {
			AnonID string `json:"anonId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		p.AnonID = strings.TrimSpace(payload.AnonID)
		if p.AnonID == "" {
			p.AnonID = uuid.NewString()
		}
	}
	cart, err := h.Svc.EnsureCart(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, map[string]any{
		"cartId": cart.ID.String(),
		"anonId": cart.AnonID,
		"promo":  cart.PromoCode,
	})
}

// Get returns cart contents and a pricing preview. Shipping query
// parameters (method, option, postalCode) feed the quoted fee.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	sel := selectionFromQuery(r)
	view, err := h.Svc.Load(r.Context(), cartID, common.PrincipalFrom(r.Context()).Owner(), sel)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if view.Cart.ExpiresAt.Before(h.Svc.now()) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart expired", nil)
		return
	}
	common.JSONData(w, http.StatusOK, h.present(view))
}

func (h *Handler) present(view View) map[string]any {
	items := make([]map[string]any, 0, len(view.Items))
	for _, it := range view.Items {
		items = append(items, map[string]any{
			"id":        it.ID.String(),
			"productId": it.ProductID.String(),
			"title":     it.Title,
			"qty":       it.Qty,
			"unitPrice": it.UnitPrice,
			"subtotal":  it.Subtotal,
		})
	}
	out := map[string]any{
		"id":     view.Cart.ID.String(),
		"anonId": view.Cart.AnonID,
		"promo":  view.Cart.PromoCode,
		"items":  items,
		"pricing": map[string]any{
			"subtotal": view.Summary.Subtotal,
			"discount": view.Summary.Discount,
			"shipping": view.Summary.Shipping,
			"total":    view.Summary.Total,
		},
		"currency": h.Currency,
	}
	if view.PromoNote != "" {
		out["promoNote"] = view.PromoNote
	}
	return out
}

// AddItem adds or increments a cart line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	var payload struct {
		ProductID string `json:"productId"`
		Qty       int32  `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	productID, err := uuid.Parse(payload.ProductID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	if payload.Qty <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "qty must be positive", nil)
		return
	}
	if err := h.Svc.AddItem(r.Context(), cartID, productID, payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.Get(w, r)
}

// UpdateItem sets the quantity of a cart line. Zero removes the line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	var payload struct {
		Qty int32 `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Svc.UpdateQty(r.Context(), cartID, itemID, payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.Get(w, r)
}

// RemoveItem deletes a cart line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), cartID, itemID); err != nil {
		h.writeError(w, err)
		return
	}
	h.Get(w, r)
}

// ApplyPromo attaches a promo code to the cart.
func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	payload.Code = strings.TrimSpace(payload.Code)
	if payload.Code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	owner := common.PrincipalFrom(r.Context()).Owner()
	discount, err := h.Svc.ApplyPromo(r.Context(), cartID, payload.Code, owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"discount": discount})
}

// RemovePromo clears the applied promo code.
func (h *Handler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	if err := h.Svc.RemovePromo(r.Context(), cartID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"promo": nil})
}

// QuoteShipping returns the delivery fee for a shipping selection
// without touching the cart.
func (h *Handler) QuoteShipping(w http.ResponseWriter, r *http.Request) {
	if h.Ship == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "shipping rates not configured", nil)
		return
	}
	var sel shipping.Selection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !h.Ship.Complete(sel) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "incomplete shipping selection", nil)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{
		"method":   sel.Method,
		"option":   sel.Option,
		"shipping": h.Ship.Quote(sel),
		"currency": h.Currency,
	})
}

func selectionFromQuery(r *http.Request) *shipping.Selection {
	q := r.URL.Query()
	method := q.Get("method")
	if method == "" {
		return nil
	}
	return &shipping.Selection{
		Method:     method,
		Option:     q.Get("option"),
		PostalCode: q.Get("postalCode"),
	}
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
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound), errors.Is(err, promo.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrCartClosed):
		common.JSONError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case isPromoRejection(err):
		common.JSONError(w, http.StatusUnprocessableEntity, "PROMO_REJECTED", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}
