package promo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solvieth/verslun-api/internal/pricing"
	"github.com/solvieth/verslun-api/internal/store"
)

// Queries lists the store operations the promo service depends on.
type Queries interface {
	GetPromoByCode(ctx context.Context, code string) (store.PromoCode, error)
	CountPromoRedemptionsByUser(ctx context.Context, code, owner string) (int32, error)
}

// Service evaluates promo codes against the live usage counters.
type Service struct {
	Q                   Queries
	Now                 func() time.Time
	DefaultPerUserLimit int
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RuleFor loads the stored code and folds in the caller's redemption
// count.
func (s *Service) RuleFor(ctx context.Context, code, owner string) (Rule, error) {
	if s == nil || s.Q == nil {
		return Rule{}, errors.New("promo service not configured")
	}
	normalized := NormalizeCode(code)
	if normalized == "" {
		return Rule{}, ErrNotFound
	}
	row, err := s.Q.GetPromoByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, ErrNotFound
		}
		return Rule{}, err
	}
	rule := Rule{
		Code:         row.Code,
		Kind:         row.Kind,
		Value:        row.Value,
		MinCartTotal: row.MinCartTotal,
		MaxUses:      row.MaxUses,
		UsedCount:    row.UsedCount,
		PerUserLimit: row.PerUserLimit,
		ValidFrom:    row.ValidFrom,
		ValidTo:      row.ValidTo,
		EventIDs:     row.EventIDs,
	}
	if rule.PerUserLimit == nil && s.DefaultPerUserLimit > 0 {
		limit := int32(s.DefaultPerUserLimit)
		rule.PerUserLimit = &limit
	}
	if owner != "" && rule.PerUserLimit != nil {
		used, err := s.Q.CountPromoRedemptionsByUser(ctx, normalized, owner)
		if err != nil {
			return Rule{}, err
		}
		rule.PerUserUsed = used
	}
	return rule, nil
}

// Evaluate validates the code for the given cart context and returns the
// discount it yields. A rejection is returned as a typed error with a
// human-readable reason.
func (s *Service) Evaluate(ctx context.Context, code, owner string, subtotal pricing.Money, eventID *uuid.UUID) (pricing.Money, Rule, error) {
	rule, err := s.RuleFor(ctx, code, owner)
	if err != nil {
		return 0, Rule{}, err
	}
	if err := rule.Validate(s.now(), subtotal, eventID); err != nil {
		return 0, rule, err
	}
	return Compute(subtotal, rule), rule, nil
}
