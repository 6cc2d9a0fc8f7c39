package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PromoCode is a persisted discount rule. Codes are stored upper-cased.
type PromoCode struct {
	ID           uuid.UUID
	Code         string
	Kind         string
	Value        int64
	MinCartTotal int64
	MaxUses      *int32
	UsedCount    int32
	PerUserLimit *int32
	ValidFrom    *time.Time
	ValidTo      *time.Time
	EventIDs     []uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const promoColumns = `id, code, kind, value, min_cart_total, max_uses, used_count, per_user_limit,
	valid_from, valid_to, event_ids, created_at, updated_at`

func scanPromo(row interface{ Scan(...any) error }) (PromoCode, error) {
	var p PromoCode
	err := row.Scan(&p.ID, &p.Code, &p.Kind, &p.Value, &p.MinCartTotal, &p.MaxUses, &p.UsedCount,
		&p.PerUserLimit, &p.ValidFrom, &p.ValidTo, &p.EventIDs, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetPromoByCode loads a promo code by its canonical form.
func (s *Store) GetPromoByCode(ctx context.Context, code string) (PromoCode, error) {
	return scanPromo(s.db.QueryRow(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, code))
}

// ListPromos returns all promo codes, newest first.
func (s *Store) ListPromos(ctx context.Context, limit, offset int32) ([]PromoCode, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+promoColumns+` FROM promo_codes ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var promos []PromoCode
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

// CreatePromo inserts a promo code.
func (s *Store) CreatePromo(ctx context.Context, p PromoCode) (PromoCode, error) {
	return scanPromo(s.db.QueryRow(ctx,
		`INSERT INTO promo_codes (code, kind, value, min_cart_total, max_uses, per_user_limit, valid_from, valid_to, event_ids)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+promoColumns,
		p.Code, p.Kind, p.Value, p.MinCartTotal, p.MaxUses, p.PerUserLimit, p.ValidFrom, p.ValidTo, p.EventIDs))
}

// UpdatePromo overwrites the mutable fields of a promo code.
func (s *Store) UpdatePromo(ctx context.Context, p PromoCode) (PromoCode, error) {
	return scanPromo(s.db.QueryRow(ctx,
		`UPDATE promo_codes
		 SET kind = $2, value = $3, min_cart_total = $4, max_uses = $5, per_user_limit = $6,
		     valid_from = $7, valid_to = $8, event_ids = $9, updated_at = now()
		 WHERE code = $1
		 RETURNING `+promoColumns,
		p.Code, p.Kind, p.Value, p.MinCartTotal, p.MaxUses, p.PerUserLimit, p.ValidFrom, p.ValidTo, p.EventIDs))
}

// DeletePromo removes a promo code.
func (s *Store) DeletePromo(ctx context.Context, code string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM promo_codes WHERE code = $1`, code)
	return err
}

// CountPromoRedemptionsByUser reports how many times the owner redeemed
// the code.
func (s *Store) CountPromoRedemptionsByUser(ctx context.Context, code, owner string) (int32, error) {
	var count int32
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM promo_redemptions WHERE code = $1 AND owner = $2`, code, owner).Scan(&count)
	return count, err
}

// RecordPromoRedemption writes a redemption row and bumps the global
// counter. Called inside the order-creation transaction.
func (s *Store) RecordPromoRedemption(ctx context.Context, code, owner string, orderID uuid.UUID) error {
	if _, err := s.db.Exec(ctx,
		`INSERT INTO promo_redemptions (code, owner, order_id) VALUES ($1, $2, $3)`, code, owner, orderID); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx,
		`UPDATE promo_codes SET used_count = used_count + 1, updated_at = now() WHERE code = $1`, code)
	return err
}
