package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CreditEntry is one append-only row in the work-credit ledger. Amounts
// may be negative to record spend.
type CreditEntry struct {
	ID        uuid.UUID
	UserEmail string
	Amount    int64
	Reason    string
	CreatedAt time.Time
}

// CreateCreditEntry appends a ledger row.
func (s *Store) CreateCreditEntry(ctx context.Context, e CreditEntry) (CreditEntry, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO credit_entries (user_email, amount, reason)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		e.UserEmail, e.Amount, e.Reason).
		Scan(&e.ID, &e.CreatedAt)
	return e, err
}

// ListCreditEntries returns the ledger rows of a user, newest first.
func (s *Store) ListCreditEntries(ctx context.Context, email string, limit, offset int32) ([]CreditEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_email, amount, reason, created_at
		 FROM credit_entries WHERE user_email = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		email, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []CreditEntry
	for rows.Next() {
		var e CreditEntry
		if err := rows.Scan(&e.ID, &e.UserEmail, &e.Amount, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CreditBalance computes the running balance of a user's ledger.
func (s *Store) CreditBalance(ctx context.Context, email string) (int64, error) {
	var balance int64
	err := s.db.QueryRow(ctx,
		`SELECT coalesce(sum(amount), 0) FROM credit_entries WHERE user_email = $1`, email).Scan(&balance)
	return balance, err
}

// CreditSubscription grants a user a fixed credit amount per batch run.
type CreditSubscription struct {
	ID        uuid.UUID
	UserEmail string
	Amount    int64
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

const creditSubColumns = `id, user_email, amount, active, created_at, updated_at`

func scanCreditSub(row interface{ Scan(...any) error }) (CreditSubscription, error) {
	var sub CreditSubscription
	err := row.Scan(&sub.ID, &sub.UserEmail, &sub.Amount, &sub.Active, &sub.CreatedAt, &sub.UpdatedAt)
	return sub, err
}

// CreateCreditSubscription inserts a subscription.
func (s *Store) CreateCreditSubscription(ctx context.Context, sub CreditSubscription) (CreditSubscription, error) {
	return scanCreditSub(s.db.QueryRow(ctx,
		`INSERT INTO credit_subscriptions (user_email, amount, active)
		 VALUES ($1, $2, $3)
		 RETURNING `+creditSubColumns,
		sub.UserEmail, sub.Amount, sub.Active))
}

// UpdateCreditSubscription overwrites amount and active state.
func (s *Store) UpdateCreditSubscription(ctx context.Context, id uuid.UUID, amount int64, active bool) (CreditSubscription, error) {
	return scanCreditSub(s.db.QueryRow(ctx,
		`UPDATE credit_subscriptions SET amount = $2, active = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING `+creditSubColumns,
		id, amount, active))
}

// DeleteCreditSubscription removes a subscription.
func (s *Store) DeleteCreditSubscription(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM credit_subscriptions WHERE id = $1`, id)
	return err
}

// ListCreditSubscriptions returns all subscriptions, newest first.
func (s *Store) ListCreditSubscriptions(ctx context.Context, limit, offset int32) ([]CreditSubscription, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+creditSubColumns+` FROM credit_subscriptions ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []CreditSubscription
	for rows.Next() {
		sub, err := scanCreditSub(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ListActiveCreditSubscriptions returns every active subscription for
// batch processing.
func (s *Store) ListActiveCreditSubscriptions(ctx context.Context) ([]CreditSubscription, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+creditSubColumns+` FROM credit_subscriptions WHERE active ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []CreditSubscription
	for rows.Next() {
		sub, err := scanCreditSub(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
