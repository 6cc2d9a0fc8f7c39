package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Venue-booking request statuses.
const (
	VenueBookingStatusNew       = "NEW"
	VenueBookingStatusReviewed  = "REVIEWED"
	VenueBookingStatusConfirmed = "CONFIRMED"
	VenueBookingStatusDeclined  = "DECLINED"
)

// VenueBooking is a private-event venue rental request taken in through
// the public intake form and worked by admins.
type VenueBooking struct {
	ID          uuid.UUID
	ContactName string
	Email       string
	Phone       string
	Date        time.Time
	Headcount   int32
	Notes       string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const venueBookingColumns = `id, contact_name, email, phone, date, headcount, notes, status, created_at, updated_at`

func scanVenueBooking(row interface{ Scan(...any) error }) (VenueBooking, error) {
	var v VenueBooking
	err := row.Scan(&v.ID, &v.ContactName, &v.Email, &v.Phone, &v.Date, &v.Headcount, &v.Notes,
		&v.Status, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

// CreateVenueBooking inserts an intake request with status NEW.
func (s *Store) CreateVenueBooking(ctx context.Context, v VenueBooking) (VenueBooking, error) {
	return scanVenueBooking(s.db.QueryRow(ctx,
		`INSERT INTO venue_bookings (contact_name, email, phone, date, headcount, notes, status)
		 VALUES ($1, $2, $3, $4, $5, $6, 'NEW')
		 RETURNING `+venueBookingColumns,
		v.ContactName, v.Email, v.Phone, v.Date, v.Headcount, v.Notes))
}

// GetVenueBooking loads a request.
func (s *Store) GetVenueBooking(ctx context.Context, id uuid.UUID) (VenueBooking, error) {
	return scanVenueBooking(s.db.QueryRow(ctx,
		`SELECT `+venueBookingColumns+` FROM venue_bookings WHERE id = $1`, id))
}

// ListVenueBookings returns requests, optionally filtered by status.
func (s *Store) ListVenueBookings(ctx context.Context, status *string, limit, offset int32) ([]VenueBooking, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+venueBookingColumns+` FROM venue_bookings
		 WHERE ($1::text IS NULL OR status = $1) ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bookings []VenueBooking
	for rows.Next() {
		v, err := scanVenueBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, v)
	}
	return bookings, rows.Err()
}

// UpdateVenueBooking overwrites the editable fields of a request.
func (s *Store) UpdateVenueBooking(ctx context.Context, v VenueBooking) (VenueBooking, error) {
	return scanVenueBooking(s.db.QueryRow(ctx,
		`UPDATE venue_bookings
		 SET contact_name = $2, email = $3, phone = $4, date = $5, headcount = $6, notes = $7, status = $8, updated_at = now()
		 WHERE id = $1
		 RETURNING `+venueBookingColumns,
		v.ID, v.ContactName, v.Email, v.Phone, v.Date, v.Headcount, v.Notes, v.Status))
}
