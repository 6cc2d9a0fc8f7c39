package payment

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/solvieth/verslun-api/internal/store"
)

type stubPaymentQueries struct {
	order   store.Order
	items   []store.OrderItem
	latest  *store.Payment
	created []store.Payment
}

func (s *stubPaymentQueries) GetOrderByID(_ context.Context, id uuid.UUID) (store.Order, error) {
	if s.order.ID != id {
		return store.Order{}, pgx.ErrNoRows
	}
	return s.order, nil
}

func (s *stubPaymentQueries) ListOrderItems(_ context.Context, _ uuid.UUID) ([]store.OrderItem, error) {
	return s.items, nil
}

func (s *stubPaymentQueries) GetLatestPaymentByOrder(_ context.Context, _ uuid.UUID) (store.Payment, error) {
	if s.latest == nil {
		return store.Payment{}, pgx.ErrNoRows
	}
	return *s.latest, nil
}

func (s *stubPaymentQueries) CreatePayment(_ context.Context, p store.Payment) (store.Payment, error) {
	p.ID = uuid.New()
	s.created = append(s.created, p)
	return p, nil
}

type staticProvider struct {
	resp IntentResponse
	err  error
	reqs []IntentRequest
}

func (p *staticProvider) CreateIntent(_ context.Context, req IntentRequest) (IntentResponse, error) {
	p.reqs = append(p.reqs, req)
	if p.err != nil {
		return IntentResponse{}, p.err
	}
	return p.resp, nil
}

func (p *staticProvider) VerifyWebhook(_ *http.Request, _ []byte) (WebhookVerifyResult, error) {
	return WebhookVerifyResult{}, nil
}

func TestCreateIntentUsesOrderTotal(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	q := &stubPaymentQueries{
		order: store.Order{
			ID: orderID, Status: store.OrderStatusPendingPayment,
			OwnerEmail: "jon@example.is", BuyerName: "Jón",
			Subtotal: 10000, Discount: 1000, Shipping: 1350, Total: 10350,
		},
		items: []store.OrderItem{{Description: "Skál", Qty: 2, UnitPrice: 5000, Subtotal: 10000}},
	}
	provider := &staticProvider{resp: IntentResponse{
		Provider: "saltpay", Reference: "sp-1", RedirectURL: "https://checkout.saltpay.is/sp-1",
	}}
	svc := &Service{Q: q, Provider: provider, IntentTTL: 15 * time.Minute, Currency: "ISK"}

	p, err := svc.CreateIntent(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, store.PaymentStatusPending, p.Status)
	require.Equal(t, int64(10350), p.Amount)

	require.Len(t, provider.reqs, 1)
	req := provider.reqs[0]
	require.Equal(t, int64(10350), req.Amount)
	// merchandise line, negative discount line, shipping line
	require.Len(t, req.Lines, 3)
	require.Equal(t, int64(-1000), req.Lines[1].TotalPrice)
	require.Equal(t, int64(1350), req.Lines[2].TotalPrice)
}

func TestCreateIntentReusesPendingIntent(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	expires := time.Now().Add(10 * time.Minute)
	q := &stubPaymentQueries{
		order: store.Order{ID: orderID, Status: store.OrderStatusPendingPayment, Total: 5000},
		latest: &store.Payment{
			ID: uuid.New(), OrderID: orderID, Provider: "saltpay",
			Status: store.PaymentStatusPending, Amount: 5000, ExpiresAt: &expires,
		},
	}
	provider := &staticProvider{}
	svc := &Service{Q: q, Provider: provider, Currency: "ISK"}

	p, err := svc.CreateIntent(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, q.latest.ID, p.ID)
	require.Empty(t, provider.reqs)
	require.Empty(t, q.created)
}

func TestCreateIntentRejectsSettledOrder(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	q := &stubPaymentQueries{
		order: store.Order{ID: orderID, Status: store.OrderStatusPaid, Total: 5000},
	}
	svc := &Service{Q: q, Provider: &staticProvider{}, Currency: "ISK"}

	_, err := svc.CreateIntent(context.Background(), orderID)
	require.Error(t, err)
}
