package pricing

// Money represents a monetary value in minor currency units. ISK carries
// no decimals, so values equal whole krónur.
type Money = int64

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal Money
	Discount Money
	Shipping Money
	Total    Money
}

// Subtotal reduces line items into a merchandise subtotal. Lines with a
// non-positive quantity are treated as absent.
func Subtotal(items []Item) Money {
	var subtotal Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	return subtotal
}

// Compute calculates order totals given the provided inputs. The discount
// is capped at the merchandise subtotal and never reduces the shipping
// / fee: a 100%-off code on a delivery order still leaves shipping payable.
func Compute(items []Item, discount Money, shipping Money) Summary {
	subtotal := Subtotal(items)
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	if shipping < 0 {
		shipping = 0
	}
	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Total:    subtotal - discount + shipping,
	}
}
