package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/events"
	"github.com/solvieth/verslun-api/internal/obs"
	"github.com/solvieth/verslun-api/internal/payment"
	"github.com/solvieth/verslun-api/internal/pricing"
	"github.com/solvieth/verslun-api/internal/promo"
	"github.com/solvieth/verslun-api/internal/store"
)

// ErrNotFound indicates the event could not be located.
var ErrNotFound = errors.New("event not found")

// ErrSoldOut rejects a purchase against a full or flagged event.
var ErrSoldOut = errors.New("event sold out")

// ErrInvalidInput is returned when the submitted payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// PurchaseInput is one ticket purchase submission.
type PurchaseInput struct {
	EventSlug     string  `json:"eventSlug" validate:"required"`
	Qty           int32   `json:"qty" validate:"required,gt=0,lte=20"`
	VariantID     *string `json:"variantId"`
	SlidingAmount *int64  `json:"slidingAmount"`
	PromoCode     string  `json:"promoCode"`
	BuyerName     string  `json:"buyerName" validate:"required,min=2,max=128"`
	BuyerEmail    string  `json:"buyerEmail" validate:"omitempty,email"`
	PayAtDoor     bool    `json:"payAtDoor"`
}

// PurchaseOutput mirrors the checkout output: a redirect for gateway
// payments, a local confirmation otherwise.
type PurchaseOutput struct {
	OrderID          string `json:"orderId"`
	Status           string `json:"status"`
	UnitPrice        int64  `json:"unitPrice"`
	Total            int64  `json:"total"`
	RedirectURL      string `json:"redirectUrl,omitempty"`
	ConfirmationPath string `json:"confirmationPath,omitempty"`
}

// Service issues event tickets.
type Service struct {
	Store    *store.Store
	Pool     *pgxpool.Pool
	Promo    *promo.Service
	Payments *payment.Service
	Events   *events.Bus
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// PricingFor maps a stored event and its variants onto the price
// resolution rules.
func PricingFor(e store.Event, variants []store.EventVariant) Pricing {
	p := Pricing{
		BasePrice:         e.BasePrice,
		EarlyBirdPrice:    e.EarlyBirdPrice,
		EarlyBirdDeadline: e.EarlyBirdDeadline,
		SlidingScaleMin:   e.SlidingScaleMin,
		SlidingScaleMax:   e.SlidingScaleMax,
	}
	for _, v := range variants {
		p.Variants = append(p.Variants, Variant{ID: v.ID, Name: v.Name, Price: v.Price})
	}
	return p
}

// Purchase resolves the unit price, reserves capacity and writes the
// order plus one ticket row per admission. The sold-out flag and the
// capacity guard are independent gates: either one blocks the sale.
func (s *Service) Purchase(ctx context.Context, p common.Principal, in PurchaseInput) (PurchaseOutput, error) {
	if s == nil || s.Store == nil || s.Pool == nil {
		return PurchaseOutput{}, errors.New("ticket service not configured")
	}
	if in.Qty <= 0 {
		return PurchaseOutput{}, fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	buyerEmail := strings.TrimSpace(p.Email)
	if buyerEmail == "" {
		buyerEmail = strings.ToLower(strings.TrimSpace(in.BuyerEmail))
	}
	if buyerEmail == "" {
		return PurchaseOutput{}, fmt.Errorf("buyer email is required: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(in.BuyerName) == "" {
		return PurchaseOutput{}, fmt.Errorf("buyer name is required: %w", ErrInvalidInput)
	}
	var variantID *uuid.UUID
	if in.VariantID != nil && *in.VariantID != "" {
		parsed, err := uuid.Parse(*in.VariantID)
		if err != nil {
			return PurchaseOutput{}, fmt.Errorf("invalid variant id: %w", ErrInvalidInput)
		}
		variantID = &parsed
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PurchaseOutput{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	q := s.Store.WithTx(tx)

	event, err := q.GetEventBySlug(ctx, strings.TrimSpace(in.EventSlug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOutput{}, ErrNotFound
		}
		return PurchaseOutput{}, err
	}
	if event.SoldOut {
		return PurchaseOutput{}, ErrSoldOut
	}
	variants, err := q.ListEventVariants(ctx, event.ID)
	if err != nil {
		return PurchaseOutput{}, err
	}
	unit, err := ResolvePrice(PricingFor(event, variants), variantID, in.SlidingAmount, s.now())
	if err != nil {
		return PurchaseOutput{}, err
	}

	subtotal := unit * pricing.Money(in.Qty)
	var discount pricing.Money
	var promoCode *string
	if code := strings.TrimSpace(in.PromoCode); code != "" {
		if s.Promo == nil {
			return PurchaseOutput{}, errors.New("promo service not configured")
		}
		d, rule, err := s.Promo.Evaluate(ctx, code, buyerEmail, subtotal, &event.ID)
		if err != nil {
			return PurchaseOutput{}, err
		}
		discount = d
		c := rule.Code
		promoCode = &c
	}
	if discount > subtotal {
		discount = subtotal
	}
	total := subtotal - discount

	reserved, err := q.ReserveEventCapacity(ctx, event.ID, in.Qty)
	if err != nil {
		return PurchaseOutput{}, err
	}
	if !reserved {
		return PurchaseOutput{}, ErrSoldOut
	}

	mode := store.PaymentModeGateway
	switch {
	case total == 0:
		mode = store.PaymentModeFree
	case in.PayAtDoor:
		mode = store.PaymentModeDoor
	}
	status := store.OrderStatusPendingPayment
	ticketStatus := store.TicketStatusReserved
	switch mode {
	case store.PaymentModeFree:
		status = store.OrderStatusPaid
		ticketStatus = store.TicketStatusIssued
	case store.PaymentModeDoor:
		status = store.OrderStatusReserved
		ticketStatus = store.TicketStatusIssued
	}

	description := "Miði: " + event.Title
	if variantID != nil {
		for _, v := range variants {
			if v.ID == *variantID {
				description += " (" + v.Name + ")"
			}
		}
	}
	order, err := q.CreateOrder(ctx, store.Order{
		OwnerEmail:  buyerEmail,
		BuyerName:   strings.TrimSpace(in.BuyerName),
		Status:      status,
		PaymentMode: mode,
		Subtotal:    subtotal,
		Discount:    discount,
		Shipping:    0,
		Total:       total,
		PromoCode:   promoCode,
	})
	if err != nil {
		return PurchaseOutput{}, err
	}
	if err := q.CreateOrderItem(ctx, store.OrderItem{
		OrderID:     order.ID,
		Description: description,
		Qty:         in.Qty,
		UnitPrice:   unit,
		Subtotal:    subtotal,
	}); err != nil {
		return PurchaseOutput{}, err
	}
	for i := int32(0); i < in.Qty; i++ {
		if _, err := q.CreateTicket(ctx, store.Ticket{
			EventID:    event.ID,
			OrderID:    order.ID,
			BuyerEmail: buyerEmail,
			BuyerName:  order.BuyerName,
			VariantID:  variantID,
			UnitPrice:  unit,
			Status:     ticketStatus,
		}); err != nil {
			return PurchaseOutput{}, err
		}
	}

	direct := mode != store.PaymentModeGateway
	if direct && promoCode != nil {
		if err := q.RecordPromoRedemption(ctx, *promoCode, buyerEmail, order.ID); err != nil {
			return PurchaseOutput{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return PurchaseOutput{}, err
	}

	out := PurchaseOutput{
		OrderID:   order.ID.String(),
		Status:    order.Status,
		UnitPrice: unit,
		Total:     total,
	}
	payload := map[string]any{
		"orderId":    order.ID.String(),
		"email":      buyerEmail,
		"name":       order.BuyerName,
		"eventTitle": event.Title,
		"eventSlug":  event.Slug,
		"qty":        in.Qty,
		"total":      total,
	}
	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicOrderCreated, order.ID, payload)
	}

	if direct {
		if obs.TicketsIssuedTotal != nil {
			obs.TicketsIssuedTotal.WithLabelValues(event.Slug).Add(float64(in.Qty))
		}
		if s.Events != nil {
			_, _ = s.Events.Emit(ctx, events.TopicTicketIssued, order.ID, payload)
		}
		out.ConfirmationPath = "/orders/" + order.ID.String() + "/confirmation"
		return out, nil
	}

	if s.Payments == nil {
		return PurchaseOutput{}, errors.New("payment service not configured")
	}
	intent, err := s.Payments.CreateIntent(ctx, order.ID)
	if err != nil {
		s.rollbackGateway(ctx, order.ID, event.ID, in.Qty)
		return PurchaseOutput{}, err
	}
	if intent.RedirectURL != nil {
		out.RedirectURL = *intent.RedirectURL
	}
	return out, nil
}

// rollbackGateway unwinds a committed purchase whose gateway intent
// could not be opened: the order parks as canceled and the seats return
// to the pool.
func (s *Service) rollbackGateway(ctx context.Context, orderID, eventID uuid.UUID, qty int32) {
	_, _ = s.Store.UpdateOrderStatusIfCurrent(ctx, orderID, store.OrderStatusCanceled,
		[]string{store.OrderStatusPendingPayment})
	_, _ = s.Store.DeleteTicketsByOrder(ctx, orderID)
	_ = s.Store.ReleaseEventCapacity(ctx, eventID, qty)
}
