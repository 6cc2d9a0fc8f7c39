package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/solvieth/verslun-api/internal/obs"
	"github.com/solvieth/verslun-api/internal/store"
)

// Queries lists the store operations the payment service depends on.
type Queries interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (store.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]store.OrderItem, error)
	GetLatestPaymentByOrder(ctx context.Context, orderID uuid.UUID) (store.Payment, error)
	CreatePayment(ctx context.Context, p store.Payment) (store.Payment, error)
}

// Service coordinates payment intents and status retrieval.
type Service struct {
	Q               Queries
	Provider        Provider
	IntentTTL       time.Duration
	CallbackBaseURL string
	Currency        string
}

// Lines builds the itemized gateway request from persisted order data.
// The discount travels as a negative line and shipping as its own line,
// so the line totals sum to the order total.
func Lines(items []store.OrderItem, discount, shipping int64) []Line {
	lines := make([]Line, 0, len(items)+2)
	for _, it := range items {
		lines = append(lines, Line{
			Description: it.Description,
			Count:       it.Qty,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.Subtotal,
		})
	}
	if discount > 0 {
		lines = append(lines, Line{
			Description: "Afsláttur",
			Count:       1,
			UnitPrice:   -discount,
			TotalPrice:  -discount,
		})
	}
	if shipping > 0 {
		lines = append(lines, Line{
			Description: "Sendingarkostnaður",
			Count:       1,
			UnitPrice:   shipping,
			TotalPrice:  shipping,
		})
	}
	return lines
}

// CreateIntent creates (or reuses) a payment intent for the provided
// order. The order must still be awaiting payment and the intent amount
// always comes from the persisted order, never from the caller.
func (s *Service) CreateIntent(ctx context.Context, orderID uuid.UUID) (store.Payment, error) {
	var zero store.Payment
	if s == nil || s.Q == nil || s.Provider == nil {
		return zero, errors.New("payment service not configured")
	}
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.CreateIntent")
	defer span.End()

	start := time.Now()
	providerName := providerLabel(s.Provider)
	result := "error"
	defer func() {
		span.SetAttributes(
			attribute.String("payment.provider", providerName),
			attribute.Float64("payment.intent.duration_ms", obs.DurationMillis(time.Since(start))),
			attribute.String("payment.intent.result", result),
		)
		if obs.PaymentIntentTotal != nil {
			obs.PaymentIntentTotal.WithLabelValues(providerName, result).Inc()
		}
	}()

	span.SetAttributes(attribute.String("order.id", orderID.String()))
	order, err := s.Q.GetOrderByID(ctx, orderID)
	if err != nil {
		return zero, err
	}
	if order.Status != store.OrderStatusPendingPayment {
		return zero, fmt.Errorf("order status %s does not allow new intents", order.Status)
	}

	existing, err := s.Q.GetLatestPaymentByOrder(ctx, orderID)
	if err == nil {
		if existing.Status == store.PaymentStatusPaid {
			return zero, errors.New("order already paid")
		}
		if existing.Status == store.PaymentStatusPending {
			if existing.ExpiresAt == nil || existing.ExpiresAt.After(time.Now()) {
				result = "reused"
				return existing, nil
			}
		}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return zero, err
	}

	items, err := s.Q.ListOrderItems(ctx, orderID)
	if err != nil {
		return zero, err
	}
	ttl := s.IntentTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	resp, err := s.Provider.CreateIntent(ctx, IntentRequest{
		OrderID:    orderID.String(),
		Amount:     order.Total,
		Currency:   s.Currency,
		BuyerName:  order.BuyerName,
		BuyerEmail: order.OwnerEmail,
		Lines:      Lines(items, order.Discount, order.Shipping),
		SuccessURL: s.callbackURL("/checkout/confirmed"),
		CancelURL:  s.callbackURL("/checkout/canceled"),
		ExpiresIn:  ttl,
	})
	if err != nil {
		span.RecordError(err)
		return zero, err
	}
	if resp.Provider != "" {
		providerName = normaliseLabel(resp.Provider)
	}
	result = "success"

	expiresAt := resp.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(ttl)
	}
	redirect := resp.RedirectURL
	return s.Q.CreatePayment(ctx, store.Payment{
		OrderID:     orderID,
		Provider:    providerName,
		Status:      store.PaymentStatusPending,
		Amount:      order.Total,
		RedirectURL: &redirect,
		ExpiresAt:   &expiresAt,
	})
}

// ConsolidatedStatus returns the best-known status for an order payment.
func (s *Service) ConsolidatedStatus(ctx context.Context, orderID uuid.UUID) (string, error) {
	if s == nil || s.Q == nil {
		return "", errors.New("payment service not configured")
	}
	payment, err := s.Q.GetLatestPaymentByOrder(ctx, orderID)
	if err == nil {
		return payment.Status, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	order, err := s.Q.GetOrderByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	switch order.Status {
	case store.OrderStatusPaid, store.OrderStatusReserved:
		return store.PaymentStatusPaid, nil
	case store.OrderStatusCanceled:
		return store.PaymentStatusFailed, nil
	default:
		return store.PaymentStatusPending, nil
	}
}

func (s *Service) callbackURL(path string) string {
	base := strings.TrimRight(strings.TrimSpace(s.CallbackBaseURL), "/")
	if base == "" {
		return ""
	}
	return base + path
}

func providerLabel(p Provider) string {
	switch p.(type) {
	case SaltPay:
		return "saltpay"
	default:
		return "unknown"
	}
}

func normaliseLabel(value string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
