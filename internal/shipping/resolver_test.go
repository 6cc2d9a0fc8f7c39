package shipping_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solvieth/verslun-api/internal/shipping"
)

func newResolver() *shipping.Resolver {
	return shipping.NewResolver(shipping.DefaultRates(), []string{"101", "105", "107", "200", "210"})
}

func TestPickupIsAlwaysFree(t *testing.T) {
	t.Parallel()

	r := newResolver()
	for _, sel := range []shipping.Selection{
		{Method: "pickup"},
		{Method: "pickup", Option: "home", PostalCode: "101"},
		{Method: "pickup", Option: "location", PostalCode: "600"},
	} {
		require.EqualValues(t, 0, r.Quote(sel))
	}
}

func TestDeliveryRateTable(t *testing.T) {
	t.Parallel()

	r := newResolver()
	cases := []struct {
		option string
		postal string
		want   int64
	}{
		{"location", "101", 790},
		{"location", "600", 990},
		{"home", "105", 1350},
		{"home", "600", 1450},
	}
	for _, tc := range cases {
		got := r.Quote(shipping.Selection{Method: "delivery", Option: tc.option, PostalCode: tc.postal})
		require.EqualValues(t, tc.want, got, "option %s postal %s", tc.option, tc.postal)
	}
}

func TestUnknownPostalCodeFallsToOtherTier(t *testing.T) {
	t.Parallel()

	r := newResolver()
	got := r.Quote(shipping.Selection{Method: "delivery", Option: "home", PostalCode: "999"})
	require.EqualValues(t, 1450, got)
}

func TestIncompleteSelectionQuotesZero(t *testing.T) {
	t.Parallel()

	r := newResolver()
	require.EqualValues(t, 0, r.Quote(shipping.Selection{Method: "delivery", Option: "home"}))
	require.EqualValues(t, 0, r.Quote(shipping.Selection{Method: "delivery", PostalCode: "101"}))
	require.False(t, r.Complete(shipping.Selection{Method: "delivery", Option: "home"}))
	require.False(t, r.Complete(shipping.Selection{Method: "delivery", Option: "express", PostalCode: "101"}))
	require.True(t, r.Complete(shipping.Selection{Method: "pickup"}))
	require.True(t, r.Complete(shipping.Selection{Method: "delivery", Option: "location", PostalCode: "101"}))
}
