package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Review is one attendee's post-event feedback, at most one per buyer per
// event (unique constraint on event_id + user_email).
type Review struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	UserEmail string
	Rating    int32
	Comment   string
	CreatedAt time.Time
}

// CreateReview inserts a review row.
func (s *Store) CreateReview(ctx context.Context, r Review) (Review, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO reviews (event_id, user_email, rating, comment)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		r.EventID, r.UserEmail, r.Rating, r.Comment).
		Scan(&r.ID, &r.CreatedAt)
	return r, err
}

// GetReviewByBuyer loads a buyer's existing review for an event.
func (s *Store) GetReviewByBuyer(ctx context.Context, eventID uuid.UUID, email string) (Review, error) {
	var r Review
	err := s.db.QueryRow(ctx,
		`SELECT id, event_id, user_email, rating, comment, created_at
		 FROM reviews WHERE event_id = $1 AND user_email = $2`, eventID, email).
		Scan(&r.ID, &r.EventID, &r.UserEmail, &r.Rating, &r.Comment, &r.CreatedAt)
	return r, err
}

// ListReviewsByEvent returns the event's reviews, newest first.
func (s *Store) ListReviewsByEvent(ctx context.Context, eventID uuid.UUID, limit, offset int32) ([]Review, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, event_id, user_email, rating, comment, created_at
		 FROM reviews WHERE event_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		eventID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reviews []Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.EventID, &r.UserEmail, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// ReviewStats aggregates feedback for an event.
type ReviewStats struct {
	Count   int64
	Average float64
}

// GetReviewStats computes count and average rating for an event.
func (s *Store) GetReviewStats(ctx context.Context, eventID uuid.UUID) (ReviewStats, error) {
	var stats ReviewStats
	err := s.db.QueryRow(ctx,
		`SELECT count(*), coalesce(avg(rating), 0) FROM reviews WHERE event_id = $1`, eventID).
		Scan(&stats.Count, &stats.Average)
	return stats, err
}
