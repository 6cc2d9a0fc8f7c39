package ticket

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/solvieth/verslun-api/internal/pricing"
)

// ErrUnknownVariant is returned when the selected variant does not belong
// to the event.
var ErrUnknownVariant = errors.New("unknown ticket variant")

// Variant is a named alternate ticket type with its own fixed price. It is
// independent of early-bird and sliding-scale rules.
type Variant struct {
	ID    uuid.UUID
	Name  string
	Price pricing.Money
}

// Pricing holds everything needed to resolve a ticket's unit price.
type Pricing struct {
	BasePrice         pricing.Money
	EarlyBirdPrice    *pricing.Money
	EarlyBirdDeadline *time.Time
	SlidingScaleMin   *pricing.Money
	SlidingScaleMax   *pricing.Money
	Variants          []Variant
}

// SlidingScale reports whether the event lets buyers choose their price.
func (p Pricing) SlidingScale() bool {
	return p.SlidingScaleMin != nil && p.SlidingScaleMax != nil
}

// ResolvePrice picks the single applicable unit price for a purchase.
// Precedence, highest first: explicit variant selection (overrides
// everything, including an open early-bird window), sliding scale with the
// buyer's choice clamped into [min, max] (base price when no choice was
// made), early-bird strictly before its deadline, base price.
func ResolvePrice(p Pricing, variantID *uuid.UUID, slidingChoice *pricing.Money, now time.Time) (pricing.Money, error) {
	if variantID != nil {
		for _, v := range p.Variants {
			if v.ID == *variantID {
				return v.Price, nil
			}
		}
		return 0, ErrUnknownVariant
	}
	if p.SlidingScale() {
		if slidingChoice == nil {
			return p.BasePrice, nil
		}
		chosen := *slidingChoice
		if chosen < *p.SlidingScaleMin {
			chosen = *p.SlidingScaleMin
		}
		if chosen > *p.SlidingScaleMax {
			chosen = *p.SlidingScaleMax
		}
		return chosen, nil
	}
	if p.EarlyBirdPrice != nil && p.EarlyBirdDeadline != nil && now.Before(*p.EarlyBirdDeadline) {
		return *p.EarlyBirdPrice, nil
	}
	return p.BasePrice, nil
}
