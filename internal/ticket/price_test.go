package ticket

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/solvieth/verslun-api/internal/pricing"
)

func money(v int64) *pricing.Money { return &v }

func TestVariantOverridesEarlyBird(t *testing.T) {
	deadline := time.Now().Add(24 * time.Hour)
	variant := Variant{ID: uuid.New(), Name: "Backstage", Price: 9000}
	p := Pricing{
		BasePrice:         5000,
		EarlyBirdPrice:    money(4000),
		EarlyBirdDeadline: &deadline,
		Variants:          []Variant{variant},
	}
	got, err := ResolvePrice(p, &variant.ID, nil, time.Now())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != 9000 {
		t.Fatalf("expected variant price 9000 despite open early-bird, got %d", got)
	}
}

func TestUnknownVariantRejected(t *testing.T) {
	p := Pricing{BasePrice: 5000, Variants: []Variant{{ID: uuid.New(), Price: 7000}}}
	stranger := uuid.New()
	if _, err := ResolvePrice(p, &stranger, nil, time.Now()); err != ErrUnknownVariant {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestEarlyBirdStrictlyBeforeDeadline(t *testing.T) {
	deadline := time.Now()
	p := Pricing{
		BasePrice:         5000,
		EarlyBirdPrice:    money(4000),
		EarlyBirdDeadline: &deadline,
	}

	got, err := ResolvePrice(p, nil, nil, deadline.Add(-time.Minute))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != 4000 {
		t.Fatalf("expected early-bird price before deadline, got %d", got)
	}

	// At the deadline exactly, early-bird no longer applies.
	got, err = ResolvePrice(p, nil, nil, deadline)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != 5000 {
		t.Fatalf("expected base price at deadline, got %d", got)
	}

	got, _ = ResolvePrice(p, nil, nil, deadline.Add(time.Hour))
	if got != 5000 {
		t.Fatalf("expected base price after deadline, got %d", got)
	}
}

func TestSlidingScaleClampsChoice(t *testing.T) {
	p := Pricing{
		BasePrice:       3000,
		SlidingScaleMin: money(1000),
		SlidingScaleMax: money(6000),
	}

	got, _ := ResolvePrice(p, nil, money(500), time.Now())
	if got != 1000 {
		t.Fatalf("expected clamp to min 1000, got %d", got)
	}
	got, _ = ResolvePrice(p, nil, money(9000), time.Now())
	if got != 6000 {
		t.Fatalf("expected clamp to max 6000, got %d", got)
	}
	got, _ = ResolvePrice(p, nil, money(2500), time.Now())
	if got != 2500 {
		t.Fatalf("expected chosen price 2500, got %d", got)
	}
}

func TestSlidingScaleDefaultsToBasePrice(t *testing.T) {
	p := Pricing{
		BasePrice:       3000,
		SlidingScaleMin: money(1000),
		SlidingScaleMax: money(6000),
	}
	got, _ := ResolvePrice(p, nil, nil, time.Now())
	if got != 3000 {
		t.Fatalf("expected suggested base price 3000, got %d", got)
	}
}

func TestSlidingScaleBeatsEarlyBird(t *testing.T) {
	deadline := time.Now().Add(time.Hour)
	p := Pricing{
		BasePrice:         3000,
		EarlyBirdPrice:    money(2000),
		EarlyBirdDeadline: &deadline,
		SlidingScaleMin:   money(1000),
		SlidingScaleMax:   money(6000),
	}
	got, _ := ResolvePrice(p, nil, money(4500), time.Now())
	if got != 4500 {
		t.Fatalf("expected sliding-scale choice over early-bird, got %d", got)
	}
}

func TestBasePriceFallback(t *testing.T) {
	got, _ := ResolvePrice(Pricing{BasePrice: 5000}, nil, nil, time.Now())
	if got != 5000 {
		t.Fatalf("expected base price 5000, got %d", got)
	}
}
