package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Payment statuses.
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
	PaymentStatusFailed  = "FAILED"
	PaymentStatusExpired = "EXPIRED"
)

// Payment tracks one gateway intent for an order.
type Payment struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	Provider    string
	Status      string
	Amount      int64
	RedirectURL *string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const paymentColumns = `id, order_id, provider, status, amount, redirect_url, expires_at, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Provider, &p.Status, &p.Amount, &p.RedirectURL,
		&p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreatePayment inserts a pending payment intent.
func (s *Store) CreatePayment(ctx context.Context, p Payment) (Payment, error) {
	return scanPayment(s.db.QueryRow(ctx,
		`INSERT INTO payments (order_id, provider, status, amount, redirect_url, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+paymentColumns,
		p.OrderID, p.Provider, p.Status, p.Amount, p.RedirectURL, p.ExpiresAt))
}

// GetLatestPaymentByOrder returns the most recent intent for the order.
func (s *Store) GetLatestPaymentByOrder(ctx context.Context, orderID uuid.UUID) (Payment, error) {
	return scanPayment(s.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`,
		orderID))
}

// UpdatePaymentStatus transitions a payment row.
func (s *Store) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE payments SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}
