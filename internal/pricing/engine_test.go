package pricing

import "testing"

func TestSubtotal(t *testing.T) {
	items := []Item{
		{Qty: 2, UnitPrice: 1000},
		{Qty: 1, UnitPrice: 2500},
	}
	if got := Subtotal(items); got != 4500 {
		t.Fatalf("expected subtotal 4500, got %d", got)
	}
}

func TestSubtotalSkipsZeroQty(t *testing.T) {
	items := []Item{
		{Qty: 0, UnitPrice: 1000},
		{Qty: -1, UnitPrice: 500},
	}
	if got := Subtotal(items); got != 0 {
		t.Fatalf("expected subtotal 0, got %d", got)
	}
	if got := Subtotal(nil); got != 0 {
		t.Fatalf("expected empty subtotal 0, got %d", got)
	}
}

func TestComputeCapsDiscountAtSubtotal(t *testing.T) {
	items := []Item{{Qty: 1, UnitPrice: 3000}}
	s := Compute(items, 5000, 1450)
	if s.Discount != 3000 {
		t.Fatalf("expected discount capped at 3000, got %d", s.Discount)
	}
	if s.Total != 1450 {
		t.Fatalf("expected shipping to survive full discount, got total %d", s.Total)
	}
}

func TestComputeDiscountNotAppliedToShipping(t *testing.T) {
	items := []Item{
		{Qty: 2, UnitPrice: 1000},
		{Qty: 1, UnitPrice: 2500},
	}
	s := Compute(items, 500, 1450)
	if s.Subtotal != 4500 {
		t.Fatalf("expected subtotal 4500, got %d", s.Subtotal)
	}
	if s.Total != 4500-500+1450 {
		t.Fatalf("expected total %d, got %d", 4500-500+1450, s.Total)
	}
}

func TestComputeNegativeInputsClamped(t *testing.T) {
	s := Compute([]Item{{Qty: 1, UnitPrice: 100}}, -50, -10)
	if s.Discount != 0 || s.Shipping != 0 {
		t.Fatalf("expected clamped components, got %+v", s)
	}
	if s.Total != 100 {
		t.Fatalf("expected total 100, got %d", s.Total)
	}
}
