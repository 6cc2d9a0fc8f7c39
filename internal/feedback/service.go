package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/solvieth/verslun-api/internal/store"
)

// ErrNotFound indicates the event does not exist.
var ErrNotFound = errors.New("event not found")

// ErrInvalidInput is returned when the review payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrNotAttendee rejects reviews from buyers without a ticket to the
// event.
var ErrNotAttendee = errors.New("only ticket holders may review this event")

// ErrEventNotEnded rejects reviews submitted before the event is over.
var ErrEventNotEnded = errors.New("event has not ended yet")

// ErrAlreadyReviewed rejects a second review from the same buyer.
var ErrAlreadyReviewed = errors.New("you have already reviewed this event")

// Queries lists the store operations the feedback service depends on.
type Queries interface {
	GetEventBySlug(ctx context.Context, slug string) (store.Event, error)
	CountTicketsByBuyerAndEvent(ctx context.Context, email string, eventID uuid.UUID) (int64, error)
	GetReviewByBuyer(ctx context.Context, eventID uuid.UUID, email string) (store.Review, error)
	CreateReview(ctx context.Context, r store.Review) (store.Review, error)
	ListReviewsByEvent(ctx context.Context, eventID uuid.UUID, limit, offset int32) ([]store.Review, error)
	GetReviewStats(ctx context.Context, eventID uuid.UUID) (store.ReviewStats, error)
}

// Service gates and records post-event reviews.
type Service struct {
	Q   Queries
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SubmitInput is one review submission.
type SubmitInput struct {
	EventSlug string `json:"eventSlug" validate:"required"`
	Rating    int32  `json:"rating" validate:"required,gte=1,lte=5"`
	Comment   string `json:"comment" validate:"max=2000"`
}

// Submit records a review once the gates pass: the buyer holds a ticket,
// the event has ended, and no earlier review exists.
func (s *Service) Submit(ctx context.Context, email string, in SubmitInput) (store.Review, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return store.Review{}, fmt.Errorf("reviewer email is required: %w", ErrInvalidInput)
	}
	if in.Rating < 1 || in.Rating > 5 {
		return store.Review{}, fmt.Errorf("rating must be between 1 and 5: %w", ErrInvalidInput)
	}

	event, err := s.Q.GetEventBySlug(ctx, strings.TrimSpace(in.EventSlug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Review{}, ErrNotFound
		}
		return store.Review{}, err
	}
	ended := event.StartsAt
	if event.EndsAt != nil {
		ended = *event.EndsAt
	}
	if s.now().Before(ended) {
		return store.Review{}, ErrEventNotEnded
	}

	tickets, err := s.Q.CountTicketsByBuyerAndEvent(ctx, email, event.ID)
	if err != nil {
		return store.Review{}, err
	}
	if tickets == 0 {
		return store.Review{}, ErrNotAttendee
	}

	if _, err := s.Q.GetReviewByBuyer(ctx, event.ID, email); err == nil {
		return store.Review{}, ErrAlreadyReviewed
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return store.Review{}, err
	}

	review, err := s.Q.CreateReview(ctx, store.Review{
		EventID:   event.ID,
		UserEmail: email,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return store.Review{}, ErrAlreadyReviewed
		}
		return store.Review{}, err
	}
	return review, nil
}
