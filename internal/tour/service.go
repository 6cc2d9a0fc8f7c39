package tour

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solvieth/verslun-api/internal/events"
	"github.com/solvieth/verslun-api/internal/obs"
	"github.com/solvieth/verslun-api/internal/store"
)

// ErrNotFound indicates the tour or session does not exist.
var ErrNotFound = errors.New("tour not found")

// ErrInvalidInput is returned when the booking payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrInsufficientSpots rejects a booking against a session that cannot
// hold the requested party.
var ErrInsufficientSpots = errors.New("not enough spots left on this session")

// BookingStatusConfirmed is the only status bookings are created with.
const BookingStatusConfirmed = "CONFIRMED"

// BookInput is one booking submission for a session.
type BookInput struct {
	Name  string `json:"name" validate:"required,min=2,max=128"`
	Email string `json:"email" validate:"required,email"`
	Spots int32  `json:"spots" validate:"required,gt=0,lte=20"`
}

// Service books tour sessions.
type Service struct {
	Store  *store.Store
	Pool   *pgxpool.Pool
	Events *events.Bus
}

// Book reserves spots on a session and records the booking in one
// transaction. The capacity guard in ReserveTourSpots is the single
// source of truth under concurrency.
func (s *Service) Book(ctx context.Context, sessionID uuid.UUID, in BookInput) (store.TourBooking, error) {
	result := "error"
	defer func() {
		if obs.TourBookingsTotal != nil {
			obs.TourBookingsTotal.WithLabelValues(result).Inc()
		}
	}()

	if in.Spots <= 0 {
		result = "invalid"
		return store.TourBooking{}, fmt.Errorf("spots must be positive: %w", ErrInvalidInput)
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.TourBooking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	q := s.Store.WithTx(tx)

	session, err := q.GetTourSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			result = "not_found"
			return store.TourBooking{}, ErrNotFound
		}
		return store.TourBooking{}, err
	}
	if time.Now().After(session.StartsAt) {
		result = "invalid"
		return store.TourBooking{}, fmt.Errorf("session already started: %w", ErrInvalidInput)
	}

	reserved, err := q.ReserveTourSpots(ctx, sessionID, in.Spots)
	if err != nil {
		return store.TourBooking{}, err
	}
	if !reserved {
		result = "full"
		return store.TourBooking{}, ErrInsufficientSpots
	}
	booking, err := q.CreateTourBooking(ctx, store.TourBooking{
		SessionID: sessionID,
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Spots:     in.Spots,
		Status:    BookingStatusConfirmed,
	})
	if err != nil {
		return store.TourBooking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return store.TourBooking{}, err
	}
	result = "booked"

	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicTourBooked, booking.ID, map[string]any{
			"bookingId": booking.ID.String(),
			"sessionId": sessionID.String(),
			"email":     booking.Email,
			"name":      booking.Name,
			"spots":     booking.Spots,
			"startsAt":  session.StartsAt,
		})
	}
	return booking, nil
}
