package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/solvieth/verslun-api/internal/store"
)

type stubFeedback struct {
	event   store.Event
	tickets map[string]int64
	reviews []store.Review
}

func (s *stubFeedback) GetEventBySlug(_ context.Context, slug string) (store.Event, error) {
	if s.event.Slug != slug {
		return store.Event{}, pgx.ErrNoRows
	}
	return s.event, nil
}

func (s *stubFeedback) CountTicketsByBuyerAndEvent(_ context.Context, email string, _ uuid.UUID) (int64, error) {
	return s.tickets[email], nil
}

func (s *stubFeedback) GetReviewByBuyer(_ context.Context, eventID uuid.UUID, email string) (store.Review, error) {
	for _, r := range s.reviews {
		if r.EventID == eventID && r.UserEmail == email {
			return r, nil
		}
	}
	return store.Review{}, pgx.ErrNoRows
}

func (s *stubFeedback) CreateReview(_ context.Context, r store.Review) (store.Review, error) {
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	s.reviews = append(s.reviews, r)
	return r, nil
}

func (s *stubFeedback) ListReviewsByEvent(_ context.Context, eventID uuid.UUID, _, _ int32) ([]store.Review, error) {
	var out []store.Review
	for _, r := range s.reviews {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubFeedback) GetReviewStats(_ context.Context, eventID uuid.UUID) (store.ReviewStats, error) {
	var stats store.ReviewStats
	var sum int64
	for _, r := range s.reviews {
		if r.EventID == eventID {
			stats.Count++
			sum += int64(r.Rating)
		}
	}
	if stats.Count > 0 {
		stats.Average = float64(sum) / float64(stats.Count)
	}
	return stats, nil
}

func endedEventStub() *stubFeedback {
	ended := time.Now().Add(-48 * time.Hour)
	return &stubFeedback{
		event: store.Event{
			ID:       uuid.New(),
			Slug:     "vortonleikar",
			Title:    "Vortónleikar",
			StartsAt: ended.Add(-2 * time.Hour),
			EndsAt:   &ended,
		},
		tickets: map[string]int64{"gestur@example.is": 2},
	}
}

func TestSubmitRequiresTicket(t *testing.T) {
	t.Parallel()
	svc := &Service{Q: endedEventStub()}
	_, err := svc.Submit(context.Background(), "okunnugur@example.is",
		SubmitInput{EventSlug: "vortonleikar", Rating: 5})
	require.ErrorIs(t, err, ErrNotAttendee)
}

func TestSubmitRejectsOngoingEvent(t *testing.T) {
	t.Parallel()
	stub := endedEventStub()
	future := time.Now().Add(72 * time.Hour)
	stub.event.StartsAt = time.Now().Add(-1 * time.Hour)
	stub.event.EndsAt = &future
	svc := &Service{Q: stub}

	_, err := svc.Submit(context.Background(), "gestur@example.is",
		SubmitInput{EventSlug: "vortonleikar", Rating: 4})
	require.ErrorIs(t, err, ErrEventNotEnded)
}

func TestSubmitOncePerBuyer(t *testing.T) {
	t.Parallel()
	svc := &Service{Q: endedEventStub()}

	review, err := svc.Submit(context.Background(), "Gestur@Example.is",
		SubmitInput{EventSlug: "vortonleikar", Rating: 5, Comment: "Frábært kvöld"})
	require.NoError(t, err)
	require.Equal(t, int32(5), review.Rating)
	require.Equal(t, "gestur@example.is", review.UserEmail)

	_, err = svc.Submit(context.Background(), "gestur@example.is",
		SubmitInput{EventSlug: "vortonleikar", Rating: 3})
	require.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestSubmitUnknownEvent(t *testing.T) {
	t.Parallel()
	svc := &Service{Q: endedEventStub()}
	_, err := svc.Submit(context.Background(), "gestur@example.is",
		SubmitInput{EventSlug: "ekki-til", Rating: 5})
	require.ErrorIs(t, err, ErrNotFound)
}
