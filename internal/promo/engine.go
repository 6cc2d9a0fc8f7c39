package promo

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solvieth/verslun-api/internal/pricing"
)

var (
	// ErrNotFound is returned when no promo code matches the given token.
	ErrNotFound = errors.New("promo code not found")
	// ErrUsageLimitReached indicates the code has exhausted its global quota.
	ErrUsageLimitReached = errors.New("promo code usage limit reached")
	// ErrPerUserLimitReached indicates the caller exceeded the per-user allowance.
	ErrPerUserLimitReached = errors.New("promo code already used the maximum number of times")
	// ErrInactive is returned when the code is used before its validity window opens.
	ErrInactive = errors.New("promo code not active yet")
	// ErrExpired is returned when the code's validity window has closed.
	ErrExpired = errors.New("promo code expired")
	// ErrMinimumSpendUnmet indicates the cart total did not meet the code requirement.
	ErrMinimumSpendUnmet = errors.New("cart total below promo code minimum")
	// ErrWrongEvent is returned when the code is restricted to other events.
	ErrWrongEvent = errors.New("promo code not valid for this event")
)

// Discount kinds.
const (
	KindPercent = "percent"
	KindFixed   = "fixed"
)

// Rule captures the runtime constraints of a promo code.
type Rule struct {
	Code         string
	Kind         string
	Value        int64
	MinCartTotal int64
	MaxUses      *int32
	UsedCount    int32
	PerUserLimit *int32
	PerUserUsed  int32
	ValidFrom    *time.Time
	ValidTo      *time.Time
	EventIDs     []uuid.UUID
}

// NormalizeCode maps a user-supplied token to its canonical stored form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate ensures the rule can be applied at the provided instant, cart
// total and event context. A failed check is always reported as a typed
// error carrying a human-readable reason; the discount is never silently
// zeroed.
func (r Rule) Validate(now time.Time, cartTotal int64, eventID *uuid.UUID) error {
	if cartTotal < r.MinCartTotal {
		return ErrMinimumSpendUnmet
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrInactive
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return ErrExpired
	}
	if r.MaxUses != nil && *r.MaxUses >= 0 && r.UsedCount >= *r.MaxUses {
		return ErrUsageLimitReached
	}
	if r.PerUserLimit != nil && *r.PerUserLimit > 0 && r.PerUserUsed >= *r.PerUserLimit {
		return ErrPerUserLimitReached
	}
	if len(r.EventIDs) > 0 {
		if eventID == nil {
			return ErrWrongEvent
		}
		for _, id := range r.EventIDs {
			if id == *eventID {
				return nil
			}
		}
		return ErrWrongEvent
	}
	return nil
}

// Compute determines the discount amount for the merchandise subtotal.
// Percent codes round half-up; fixed codes are capped at the subtotal so
// the total never goes negative from the discount alone.
func Compute(subtotal pricing.Money, r Rule) pricing.Money {
	if subtotal <= 0 {
		return 0
	}
	var discount int64
	switch strings.ToLower(r.Kind) {
	case KindPercent:
		if r.Value <= 0 {
			return 0
		}
		discount = (subtotal*r.Value + 50) / 100
	case KindFixed:
		discount = r.Value
	default:
		return 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		return 0
	}
	return discount
}
