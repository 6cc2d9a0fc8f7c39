package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Tour is a bookable guided tour with scheduled sessions.
type Tour struct {
	ID          uuid.UUID
	Slug        string
	Title       string
	Description string
	Price       int64
	Active      bool
	CreatedAt   time.Time
}

// ListTours returns active tours.
func (s *Store) ListTours(ctx context.Context, limit, offset int32) ([]Tour, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, slug, title, description, price, active, created_at
		 FROM tours WHERE active ORDER BY title LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tours []Tour
	for rows.Next() {
		var t Tour
		if err := rows.Scan(&t.ID, &t.Slug, &t.Title, &t.Description, &t.Price, &t.Active, &t.CreatedAt); err != nil {
			return nil, err
		}
		tours = append(tours, t)
	}
	return tours, rows.Err()
}

// GetTourByID loads a tour.
func (s *Store) GetTourByID(ctx context.Context, id uuid.UUID) (Tour, error) {
	var t Tour
	err := s.db.QueryRow(ctx,
		`SELECT id, slug, title, description, price, active, created_at FROM tours WHERE id = $1`, id).
		Scan(&t.ID, &t.Slug, &t.Title, &t.Description, &t.Price, &t.Active, &t.CreatedAt)
	return t, err
}

// TourSession is a dated run of a tour with its own capacity.
type TourSession struct {
	ID          uuid.UUID
	TourID      uuid.UUID
	StartsAt    time.Time
	Capacity    int32
	BookedCount int32
}

const tourSessionColumns = `id, tour_id, starts_at, capacity, booked_count`

// ListTourSessions returns upcoming sessions for a tour.
func (s *Store) ListTourSessions(ctx context.Context, tourID uuid.UUID) ([]TourSession, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+tourSessionColumns+` FROM tour_sessions WHERE tour_id = $1 AND starts_at > now() ORDER BY starts_at`,
		tourID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []TourSession
	for rows.Next() {
		var ts TourSession
		if err := rows.Scan(&ts.ID, &ts.TourID, &ts.StartsAt, &ts.Capacity, &ts.BookedCount); err != nil {
			return nil, err
		}
		sessions = append(sessions, ts)
	}
	return sessions, rows.Err()
}

// GetTourSession loads a session.
func (s *Store) GetTourSession(ctx context.Context, id uuid.UUID) (TourSession, error) {
	var ts TourSession
	err := s.db.QueryRow(ctx,
		`SELECT `+tourSessionColumns+` FROM tour_sessions WHERE id = $1`, id).
		Scan(&ts.ID, &ts.TourID, &ts.StartsAt, &ts.Capacity, &ts.BookedCount)
	return ts, err
}

// ReserveTourSpots bumps booked_count by n only while capacity allows.
// Returns false when fewer than n spots remain.
func (s *Store) ReserveTourSpots(ctx context.Context, sessionID uuid.UUID, n int32) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE tour_sessions SET booked_count = booked_count + $2
		 WHERE id = $1 AND booked_count + $2 <= capacity`, sessionID, n)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// TourBooking records one reservation on a session.
type TourBooking struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Name      string
	Email     string
	Spots     int32
	Status    string
	CreatedAt time.Time
}

// CreateTourBooking inserts a booking row.
func (s *Store) CreateTourBooking(ctx context.Context, b TourBooking) (TourBooking, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO tour_bookings (session_id, name, email, spots, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		b.SessionID, b.Name, b.Email, b.Spots, b.Status).
		Scan(&b.ID, &b.CreatedAt)
	return b, err
}
