package shipping

import (
	"strings"

	"github.com/solvieth/verslun-api/internal/pricing"
)

// Delivery methods accepted by the resolver.
const (
	MethodPickup   = "pickup"
	MethodDelivery = "delivery"
)

// Shipping options within the delivery method.
const (
	OptionLocation = "location"
	OptionHome     = "home"
)

// Rates holds the static shipping fee table per option and area tier.
type Rates struct {
	LocationCapital pricing.Money
	LocationOther   pricing.Money
	HomeCapital     pricing.Money
	HomeOther       pricing.Money
}

// DefaultRates mirrors the published fee table.
func DefaultRates() Rates {
	return Rates{
		LocationCapital: 790,
		LocationOther:   990,
		HomeCapital:     1350,
		HomeOther:       1450,
	}
}

// Resolver maps a delivery selection to a shipping fee. Area membership is
// a binary check against the configured capital-area postal codes; every
// other code falls into the higher tier.
type Resolver struct {
	Rates        Rates
	CapitalCodes map[string]struct{}
}

// NewResolver builds a resolver from a list of capital-area postal codes.
func NewResolver(rates Rates, capitalCodes []string) *Resolver {
	set := make(map[string]struct{}, len(capitalCodes))
	for _, code := range capitalCodes {
		trimmed := strings.TrimSpace(code)
		if trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return &Resolver{Rates: rates, CapitalCodes: set}
}

// Selection captures the buyer's delivery choice.
type Selection struct {
	Method     string `json:"method" validate:"required,oneof=pickup delivery"`
	Option     string `json:"option" validate:"omitempty,oneof=location home"`
	PostalCode string `json:"postalCode"`
}

// Quote resolves the shipping fee for the selection. Pickup is always
// free. For delivery, an unresolved option or empty postal code yields 0;
// callers must block checkout submission until the selection is complete.
func (r *Resolver) Quote(sel Selection) pricing.Money {
	method := strings.ToLower(strings.TrimSpace(sel.Method))
	if method != MethodDelivery {
		return 0
	}
	postal := strings.TrimSpace(sel.PostalCode)
	if postal == "" {
		return 0
	}
	capital := r.isCapital(postal)
	switch strings.ToLower(strings.TrimSpace(sel.Option)) {
	case OptionLocation:
		if capital {
			return r.Rates.LocationCapital
		}
		return r.Rates.LocationOther
	case OptionHome:
		if capital {
			return r.Rates.HomeCapital
		}
		return r.Rates.HomeOther
	default:
		return 0
	}
}

// Complete reports whether the selection carries everything needed to
// price it. Pickup needs nothing further; delivery needs a known option
// and a postal code.
func (r *Resolver) Complete(sel Selection) bool {
	method := strings.ToLower(strings.TrimSpace(sel.Method))
	if method == MethodPickup {
		return true
	}
	if method != MethodDelivery {
		return false
	}
	option := strings.ToLower(strings.TrimSpace(sel.Option))
	if option != OptionLocation && option != OptionHome {
		return false
	}
	return strings.TrimSpace(sel.PostalCode) != ""
}

func (r *Resolver) isCapital(postal string) bool {
	if r == nil || r.CapitalCodes == nil {
		return false
	}
	_, ok := r.CapitalCodes[postal]
	return ok
}
