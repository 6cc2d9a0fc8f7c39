package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/events"
	"github.com/solvieth/verslun-api/internal/obs"
	"github.com/solvieth/verslun-api/internal/payment"
	"github.com/solvieth/verslun-api/internal/pricing"
	"github.com/solvieth/verslun-api/internal/promo"
	"github.com/solvieth/verslun-api/internal/shipping"
	"github.com/solvieth/verslun-api/internal/store"
)

// ErrNotFound indicates the cart could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the submitted payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrEmptyCart rejects checkout on a cart without lines.
var ErrEmptyCart = errors.New("cart is empty")

// ErrCartClosed rejects checkout on a cart that was already settled.
var ErrCartClosed = errors.New("cart already closed")

// Input is one checkout submission.
type Input struct {
	CartID      string             `json:"cartId" validate:"required,uuid"`
	BuyerName   string             `json:"buyerName" validate:"required,min=2,max=128"`
	BuyerEmail  string             `json:"buyerEmail" validate:"omitempty,email"`
	Shipping    shipping.Selection `json:"shipping"`
	PaymentMode string             `json:"paymentMode" validate:"omitempty,oneof=gateway door"`
}

// Output describes where the buyer goes next: a gateway redirect for
// card payments, or a local confirmation for free and pay-at-door
// orders.
type Output struct {
	OrderID          string `json:"orderId"`
	Status           string `json:"status"`
	PaymentMode      string `json:"paymentMode"`
	Total            int64  `json:"total"`
	RedirectURL      string `json:"redirectUrl,omitempty"`
	ConfirmationPath string `json:"confirmationPath,omitempty"`
}

// Service turns a cart into an order.
type Service struct {
	Store    *store.Store
	Pool     *pgxpool.Pool
	Promo    *promo.Service
	Ship     *shipping.Resolver
	Payments *payment.Service
	Events   *events.Bus
	Currency string
}

// Create submits the checkout. Zero-total and pay-at-door orders are
// written directly and confirmed locally; everything else opens a
// gateway intent. A failed gateway call leaves the cart untouched so
// the buyer can resubmit.
func (s *Service) Create(ctx context.Context, p common.Principal, in Input) (Output, error) {
	if s == nil || s.Store == nil || s.Pool == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	cartID, err := uuid.Parse(in.CartID)
	if err != nil {
		return Output{}, fmt.Errorf("invalid cart id: %w", ErrInvalidInput)
	}
	buyerEmail := strings.TrimSpace(p.Email)
	if buyerEmail == "" {
		buyerEmail = strings.ToLower(strings.TrimSpace(in.BuyerEmail))
	}
	if buyerEmail == "" {
		return Output{}, fmt.Errorf("buyer email is required: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(in.BuyerName) == "" {
		return Output{}, fmt.Errorf("buyer name is required: %w", ErrInvalidInput)
	}
	if s.Ship == nil || !s.Ship.Complete(in.Shipping) {
		return Output{}, fmt.Errorf("incomplete shipping selection: %w", ErrInvalidInput)
	}

	mode := store.PaymentModeGateway
	if strings.EqualFold(in.PaymentMode, store.PaymentModeDoor) {
		mode = store.PaymentModeDoor
	}
	result := "error"
	defer func() {
		if obs.CheckoutTotal != nil {
			obs.CheckoutTotal.WithLabelValues(mode, result).Inc()
		}
	}()

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Output{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	q := s.Store.WithTx(tx)

	cart, err := q.GetCartByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Output{}, ErrNotFound
		}
		return Output{}, err
	}
	if cart.Status != store.CartStatusPending {
		return Output{}, ErrCartClosed
	}
	if cart.OwnerEmail != nil && *cart.OwnerEmail != "" && !strings.EqualFold(*cart.OwnerEmail, buyerEmail) {
		return Output{}, fmt.Errorf("cart belongs to another buyer: %w", ErrInvalidInput)
	}
	items, err := q.ListCartItems(ctx, cartID)
	if err != nil {
		return Output{}, err
	}
	if len(items) == 0 {
		return Output{}, ErrEmptyCart
	}

	pricingItems := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		pricingItems = append(pricingItems, pricing.Item{Qty: int(it.Qty), UnitPrice: it.UnitPrice})
	}
	subtotal := pricing.Subtotal(pricingItems)

	var discount pricing.Money
	var promoCode *string
	if cart.PromoCode != nil && *cart.PromoCode != "" {
		if s.Promo == nil {
			return Output{}, errors.New("promo service not configured")
		}
		d, rule, err := s.Promo.Evaluate(ctx, *cart.PromoCode, buyerEmail, subtotal, nil)
		if err != nil {
			return Output{}, err
		}
		discount = d
		code := rule.Code
		promoCode = &code
	}

	summary := pricing.Compute(pricingItems, discount, s.Ship.Quote(in.Shipping))
	if mode == store.PaymentModeGateway && summary.Total == 0 {
		mode = store.PaymentModeFree
	}

	status := store.OrderStatusPendingPayment
	switch mode {
	case store.PaymentModeFree:
		status = store.OrderStatusPaid
	case store.PaymentModeDoor:
		status = store.OrderStatusReserved
	}

	selJSON, err := json.Marshal(in.Shipping)
	if err != nil {
		return Output{}, err
	}
	order, err := q.CreateOrder(ctx, store.Order{
		CartID:            &cart.ID,
		OwnerEmail:        buyerEmail,
		BuyerName:         strings.TrimSpace(in.BuyerName),
		Status:            status,
		PaymentMode:       mode,
		Subtotal:          summary.Subtotal,
		Discount:          summary.Discount,
		Shipping:          summary.Shipping,
		Total:             summary.Total,
		PromoCode:         promoCode,
		ShippingSelection: selJSON,
	})
	if err != nil {
		return Output{}, err
	}
	for _, it := range items {
		productID := it.ProductID
		if err := q.CreateOrderItem(ctx, store.OrderItem{
			OrderID:     order.ID,
			ProductID:   &productID,
			Description: it.Title,
			Qty:         it.Qty,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal,
		}); err != nil {
			return Output{}, err
		}
	}

	direct := mode != store.PaymentModeGateway
	if direct {
		if _, err := q.MarkCartPaid(ctx, cart.ID); err != nil {
			return Output{}, err
		}
		if promoCode != nil {
			if err := q.RecordPromoRedemption(ctx, *promoCode, buyerEmail, order.ID); err != nil {
				return Output{}, err
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Output{}, err
	}

	s.emitCreated(ctx, order, buyerEmail)
	out := Output{
		OrderID:     order.ID.String(),
		Status:      order.Status,
		PaymentMode: mode,
		Total:       summary.Total,
	}

	if direct {
		result = "success"
		if s.Events != nil {
			_, _ = s.Events.Emit(ctx, events.TopicOrderPaid, order.ID, map[string]any{
				"orderId": order.ID.String(),
				"email":   buyerEmail,
				"name":    order.BuyerName,
				"total":   summary.Total,
				"mode":    mode,
			})
		}
		out.ConfirmationPath = "/orders/" + order.ID.String() + "/confirmation"
		return out, nil
	}

	if s.Payments == nil {
		return Output{}, errors.New("payment service not configured")
	}
	intent, err := s.Payments.CreateIntent(ctx, order.ID)
	if err != nil {
		// The order is parked as canceled; the cart still holds the
		// lines so resubmission opens a fresh order.
		_, _ = s.Store.UpdateOrderStatusIfCurrent(ctx, order.ID, store.OrderStatusCanceled,
			[]string{store.OrderStatusPendingPayment})
		return Output{}, err
	}
	result = "success"
	if intent.RedirectURL != nil {
		out.RedirectURL = *intent.RedirectURL
	}
	return out, nil
}

func (s *Service) emitCreated(ctx context.Context, order store.Order, email string) {
	if s.Events == nil {
		return
	}
	_, _ = s.Events.Emit(ctx, events.TopicOrderCreated, order.ID, map[string]any{
		"orderId": order.ID.String(),
		"email":   email,
		"name":    order.BuyerName,
		"total":   order.Total,
		"mode":    order.PaymentMode,
	})
}
