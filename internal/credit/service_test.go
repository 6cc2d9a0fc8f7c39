package credit

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/solvieth/verslun-api/internal/store"
)

type stubCredits struct {
	entries []store.CreditEntry
	subs    []store.CreditSubscription
	failFor map[string]error
}

func (s *stubCredits) CreateCreditEntry(_ context.Context, e store.CreditEntry) (store.CreditEntry, error) {
	if err, ok := s.failFor[e.UserEmail]; ok {
		return store.CreditEntry{}, err
	}
	e.ID = uuid.New()
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *stubCredits) ListCreditEntries(_ context.Context, email string, _, _ int32) ([]store.CreditEntry, error) {
	var out []store.CreditEntry
	for _, e := range s.entries {
		if e.UserEmail == email {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *stubCredits) CreditBalance(_ context.Context, email string) (int64, error) {
	var balance int64
	for _, e := range s.entries {
		if e.UserEmail == email {
			balance += e.Amount
		}
	}
	return balance, nil
}

func (s *stubCredits) CreateCreditSubscription(_ context.Context, sub store.CreditSubscription) (store.CreditSubscription, error) {
	sub.ID = uuid.New()
	s.subs = append(s.subs, sub)
	return sub, nil
}

func (s *stubCredits) UpdateCreditSubscription(_ context.Context, id uuid.UUID, amount int64, active bool) (store.CreditSubscription, error) {
	for i, sub := range s.subs {
		if sub.ID == id {
			s.subs[i].Amount = amount
			s.subs[i].Active = active
			return s.subs[i], nil
		}
	}
	return store.CreditSubscription{}, errors.New("no rows")
}

func (s *stubCredits) DeleteCreditSubscription(_ context.Context, id uuid.UUID) error {
	for i, sub := range s.subs {
		if sub.ID == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *stubCredits) ListCreditSubscriptions(_ context.Context, _, _ int32) ([]store.CreditSubscription, error) {
	return s.subs, nil
}

func (s *stubCredits) ListActiveCreditSubscriptions(_ context.Context) ([]store.CreditSubscription, error) {
	var out []store.CreditSubscription
	for _, sub := range s.subs {
		if sub.Active {
			out = append(out, sub)
		}
	}
	return out, nil
}

func TestAddEntryTracksBalance(t *testing.T) {
	t.Parallel()
	stub := &stubCredits{}
	svc := &Service{Q: stub}

	_, balance, err := svc.AddEntry(context.Background(), "Starfsmadur@Example.is", 5000, "Greitt fyrir vakt")
	require.NoError(t, err)
	require.Equal(t, int64(5000), balance)

	_, balance, err = svc.AddEntry(context.Background(), "starfsmadur@example.is", -1500, "Notað í verslun")
	require.NoError(t, err)
	require.Equal(t, int64(3500), balance)
}

func TestAddEntryRejectsZeroAmount(t *testing.T) {
	t.Parallel()
	svc := &Service{Q: &stubCredits{}}
	_, _, err := svc.AddEntry(context.Background(), "a@b.is", 0, "x")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRunBatchContinuesPastFailures(t *testing.T) {
	t.Parallel()
	stub := &stubCredits{
		subs: []store.CreditSubscription{
			{ID: uuid.New(), UserEmail: "a@example.is", Amount: 1000, Active: true},
			{ID: uuid.New(), UserEmail: "b@example.is", Amount: 2000, Active: true},
			{ID: uuid.New(), UserEmail: "c@example.is", Amount: 3000, Active: true},
			{ID: uuid.New(), UserEmail: "sleeping@example.is", Amount: 9000, Active: false},
		},
		failFor: map[string]error{"b@example.is": errors.New("constraint violation")},
	}
	svc := &Service{Q: stub}

	report, err := svc.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Processed)
	require.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	require.Contains(t, report.Errors[0], "b@example.is")

	// Successful items stay credited despite the failure in between.
	balanceA, _ := stub.CreditBalance(context.Background(), "a@example.is")
	balanceC, _ := stub.CreditBalance(context.Background(), "c@example.is")
	require.Equal(t, int64(1000), balanceA)
	require.Equal(t, int64(3000), balanceC)
}

func TestRunBatchHoldsSingleFlightLock(t *testing.T) {
	t.Parallel()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.SetNX(context.Background(), batchLockKey, "held", time.Minute).Err())

	svc := &Service{
		Q:     &stubCredits{subs: []store.CreditSubscription{{ID: uuid.New(), UserEmail: "a@example.is", Amount: 500, Active: true}}},
		Redis: client,
	}
	_, err = svc.RunBatch(context.Background())
	require.ErrorIs(t, err, ErrBatchRunning)

	// Once the previous run's lock is gone the batch proceeds.
	require.NoError(t, client.Del(context.Background(), batchLockKey).Err())
	report, err := svc.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Processed)
}
