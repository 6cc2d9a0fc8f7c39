package promo

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestComputePercent(t *testing.T) {
	rule := Rule{Kind: "percent", Value: 20}
	if got := Compute(10_000, rule); got != 2_000 {
		t.Fatalf("expected 2000 discount, got %d", got)
	}
}

func TestComputePercentRoundsHalfUp(t *testing.T) {
	rule := Rule{Kind: "percent", Value: 15}
	// 15% of 1010 = 151.5, rounds to 152.
	if got := Compute(1010, rule); got != 152 {
		t.Fatalf("expected 152 discount, got %d", got)
	}
}

func TestComputePercentNeverExceedsSubtotal(t *testing.T) {
	rule := Rule{Kind: "percent", Value: 100}
	if got := Compute(3000, rule); got != 3000 {
		t.Fatalf("expected discount equal to subtotal, got %d", got)
	}
}

func TestComputeFixedCappedAtSubtotal(t *testing.T) {
	rule := Rule{Kind: "fixed", Value: 5000}
	if got := Compute(3000, rule); got != 3000 {
		t.Fatalf("expected discount capped at 3000, got %d", got)
	}
	if got := Compute(8000, rule); got != 5000 {
		t.Fatalf("expected full fixed discount 5000, got %d", got)
	}
}

func TestComputeUnknownKind(t *testing.T) {
	if got := Compute(3000, Rule{Kind: "bogus", Value: 100}); got != 0 {
		t.Fatalf("expected 0 for unknown kind, got %d", got)
	}
}

func TestValidateWindow(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if err := (Rule{ValidFrom: &future}).Validate(now, 1000, nil); err != ErrInactive {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
	if err := (Rule{ValidTo: &past}).Validate(now, 1000, nil); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if err := (Rule{ValidFrom: &past, ValidTo: &future}).Validate(now, 1000, nil); err != nil {
		t.Fatalf("expected valid rule, got %v", err)
	}
}

func TestValidateUsageLimits(t *testing.T) {
	now := time.Now()
	max := int32(10)
	perUser := int32(1)

	rule := Rule{MaxUses: &max, UsedCount: 10}
	if err := rule.Validate(now, 1000, nil); err != ErrUsageLimitReached {
		t.Fatalf("expected ErrUsageLimitReached, got %v", err)
	}
	rule = Rule{PerUserLimit: &perUser, PerUserUsed: 1}
	if err := rule.Validate(now, 1000, nil); err != ErrPerUserLimitReached {
		t.Fatalf("expected ErrPerUserLimitReached, got %v", err)
	}
}

func TestValidateMinimumSpend(t *testing.T) {
	rule := Rule{MinCartTotal: 5000}
	if err := rule.Validate(time.Now(), 4999, nil); err != ErrMinimumSpendUnmet {
		t.Fatalf("expected ErrMinimumSpendUnmet, got %v", err)
	}
	if err := rule.Validate(time.Now(), 5000, nil); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestValidateEventScope(t *testing.T) {
	target := uuid.New()
	other := uuid.New()
	rule := Rule{EventIDs: []uuid.UUID{target}}

	if err := rule.Validate(time.Now(), 1000, nil); err != ErrWrongEvent {
		t.Fatalf("expected ErrWrongEvent for missing event, got %v", err)
	}
	if err := rule.Validate(time.Now(), 1000, &other); err != ErrWrongEvent {
		t.Fatalf("expected ErrWrongEvent for other event, got %v", err)
	}
	if err := rule.Validate(time.Now(), 1000, &target); err != nil {
		t.Fatalf("expected valid for scoped event, got %v", err)
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  sumar10 "); got != "SUMAR10" {
		t.Fatalf("expected SUMAR10, got %q", got)
	}
}
