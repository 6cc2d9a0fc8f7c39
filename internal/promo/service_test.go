package promo

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/solvieth/verslun-api/internal/store"
)

type stubQueries struct {
	promo      store.PromoCode
	promoErr   error
	userCounts map[string]int32
	countCalls int
}

func (s *stubQueries) GetPromoByCode(_ context.Context, code string) (store.PromoCode, error) {
	if s.promoErr != nil {
		return store.PromoCode{}, s.promoErr
	}
	if s.promo.Code != code {
		return store.PromoCode{}, pgx.ErrNoRows
	}
	return s.promo, nil
}

func (s *stubQueries) CountPromoRedemptionsByUser(_ context.Context, _, owner string) (int32, error) {
	s.countCalls++
	return s.userCounts[owner], nil
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func TestEvaluateAppliesPercentDiscount(t *testing.T) {
	t.Parallel()

	q := &stubQueries{promo: store.PromoCode{Code: "SUMMER20", Kind: KindPercent, Value: 20}}
	svc := &Service{Q: q, Now: fixedNow}

	discount, rule, err := svc.Evaluate(context.Background(), "summer20", "anna@example.is", 10000, nil)
	require.NoError(t, err)
	require.Equal(t, int64(2000), discount)
	require.Equal(t, "SUMMER20", rule.Code)
}

func TestEvaluateUnknownCode(t *testing.T) {
	t.Parallel()

	svc := &Service{Q: &stubQueries{promo: store.PromoCode{Code: "OTHER"}}, Now: fixedNow}

	_, _, err := svc.Evaluate(context.Background(), "MISSING", "", 5000, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEvaluateDefaultPerUserLimit(t *testing.T) {
	t.Parallel()

	q := &stubQueries{
		promo:      store.PromoCode{Code: "ONCE", Kind: KindFixed, Value: 500},
		userCounts: map[string]int32{"repeat@example.is": 1},
	}
	svc := &Service{Q: q, Now: fixedNow, DefaultPerUserLimit: 1}

	_, _, err := svc.Evaluate(context.Background(), "ONCE", "repeat@example.is", 5000, nil)
	require.ErrorIs(t, err, ErrPerUserLimitReached)

	discount, _, err := svc.Evaluate(context.Background(), "ONCE", "fresh@example.is", 5000, nil)
	require.NoError(t, err)
	require.Equal(t, int64(500), discount)
}

func TestEvaluateSkipsUserCountWithoutOwner(t *testing.T) {
	t.Parallel()

	q := &stubQueries{promo: store.PromoCode{Code: "GUEST", Kind: KindFixed, Value: 300}}
	svc := &Service{Q: q, Now: fixedNow, DefaultPerUserLimit: 1}

	discount, _, err := svc.Evaluate(context.Background(), "GUEST", "", 2000, nil)
	require.NoError(t, err)
	require.Equal(t, int64(300), discount)
	require.Zero(t, q.countCalls)
}

func TestEvaluateExpiredWindow(t *testing.T) {
	t.Parallel()

	past := fixedNow().Add(-time.Hour)
	q := &stubQueries{promo: store.PromoCode{Code: "OLD", Kind: KindPercent, Value: 10, ValidTo: &past}}
	svc := &Service{Q: q, Now: fixedNow}

	_, _, err := svc.Evaluate(context.Background(), "OLD", "", 5000, nil)
	require.ErrorIs(t, err, ErrExpired)
}
