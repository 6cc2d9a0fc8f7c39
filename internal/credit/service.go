package credit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/solvieth/verslun-api/internal/events"
	"github.com/solvieth/verslun-api/internal/obs"
	"github.com/solvieth/verslun-api/internal/store"
)

// ErrInvalidInput is returned when a ledger or subscription payload is
// invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrBatchRunning indicates another monthly run currently holds the lock.
var ErrBatchRunning = errors.New("credit batch already running")

const batchLockKey = "credit:monthly_run:lock"

// Queries lists the store operations the credit service depends on.
type Queries interface {
	CreateCreditEntry(ctx context.Context, e store.CreditEntry) (store.CreditEntry, error)
	ListCreditEntries(ctx context.Context, email string, limit, offset int32) ([]store.CreditEntry, error)
	CreditBalance(ctx context.Context, email string) (int64, error)
	CreateCreditSubscription(ctx context.Context, sub store.CreditSubscription) (store.CreditSubscription, error)
	UpdateCreditSubscription(ctx context.Context, id uuid.UUID, amount int64, active bool) (store.CreditSubscription, error)
	DeleteCreditSubscription(ctx context.Context, id uuid.UUID) error
	ListCreditSubscriptions(ctx context.Context, limit, offset int32) ([]store.CreditSubscription, error)
	ListActiveCreditSubscriptions(ctx context.Context) ([]store.CreditSubscription, error)
}

// Service keeps the work-credit ledger and runs the auto-credit batch.
type Service struct {
	Q        Queries
	Redis    *redis.Client
	Events   *events.Bus
	LockTTL  time.Duration
	BatchRef string
}

// AddEntry appends a ledger row and returns it with the new balance.
func (s *Service) AddEntry(ctx context.Context, email string, amount int64, reason string) (store.CreditEntry, int64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return store.CreditEntry{}, 0, fmt.Errorf("user email is required: %w", ErrInvalidInput)
	}
	if amount == 0 {
		return store.CreditEntry{}, 0, fmt.Errorf("amount must be non-zero: %w", ErrInvalidInput)
	}
	entry, err := s.Q.CreateCreditEntry(ctx, store.CreditEntry{
		UserEmail: email,
		Amount:    amount,
		Reason:    strings.TrimSpace(reason),
	})
	if err != nil {
		return store.CreditEntry{}, 0, err
	}
	balance, err := s.Q.CreditBalance(ctx, email)
	if err != nil {
		return store.CreditEntry{}, 0, err
	}
	return entry, balance, nil
}

// BatchReport is the combined outcome of one monthly run. Successful
// items are never rolled back when later ones fail.
type BatchReport struct {
	BatchID   string   `json:"batchId"`
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// RunBatch credits every active subscription once. The run continues
// past per-item failures and reports them together. A Redis lock keeps
// concurrent triggers (scheduler plus admin endpoint) from double
// crediting.
func (s *Service) RunBatch(ctx context.Context) (BatchReport, error) {
	if s.Redis != nil {
		ttl := s.LockTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		ok, err := s.Redis.SetNX(ctx, batchLockKey, time.Now().UTC().Format(time.RFC3339), ttl).Result()
		if err != nil {
			return BatchReport{}, err
		}
		if !ok {
			return BatchReport{}, ErrBatchRunning
		}
		defer s.Redis.Del(context.WithoutCancel(ctx), batchLockKey)
	}

	batchID := uuid.New()
	report := BatchReport{BatchID: batchID.String()}
	reason := s.BatchRef
	if reason == "" {
		reason = "Mánaðarleg vinnueining"
	}

	subs, err := s.Q.ListActiveCreditSubscriptions(ctx)
	if err != nil {
		return BatchReport{}, err
	}
	for _, sub := range subs {
		if _, err := s.Q.CreateCreditEntry(ctx, store.CreditEntry{
			UserEmail: sub.UserEmail,
			Amount:    sub.Amount,
			Reason:    reason,
		}); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", sub.UserEmail, err))
			if obs.CreditBatchItemsTotal != nil {
				obs.CreditBatchItemsTotal.WithLabelValues("error").Inc()
			}
			log.Ctx(ctx).Error().Err(err).Str("user", sub.UserEmail).Msg("credit batch item failed")
			continue
		}
		report.Processed++
		if obs.CreditBatchItemsTotal != nil {
			obs.CreditBatchItemsTotal.WithLabelValues("credited").Inc()
		}
	}

	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicCreditBatchDone, batchID, report)
	}
	return report, nil
}
