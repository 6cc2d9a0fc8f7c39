package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is a ticketed happening with optional early-bird, sliding-scale
// and variant pricing.
type Event struct {
	ID                uuid.UUID
	Slug              string
	Title             string
	Description       string
	Venue             string
	StartsAt          time.Time
	EndsAt            *time.Time
	Capacity          int32
	IssuedCount       int32
	SoldOut           bool
	BasePrice         int64
	EarlyBirdPrice    *int64
	EarlyBirdDeadline *time.Time
	SlidingScaleMin   *int64
	SlidingScaleMax   *int64
	CreatedAt         time.Time
}

const eventColumns = `id, slug, title, description, venue, starts_at, ends_at, capacity, issued_count, sold_out,
	base_price, early_bird_price, early_bird_deadline, sliding_scale_min, sliding_scale_max, created_at`

func scanEvent(row interface{ Scan(...any) error }) (Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.Slug, &e.Title, &e.Description, &e.Venue, &e.StartsAt, &e.EndsAt,
		&e.Capacity, &e.IssuedCount, &e.SoldOut,
		&e.BasePrice, &e.EarlyBirdPrice, &e.EarlyBirdDeadline, &e.SlidingScaleMin, &e.SlidingScaleMax, &e.CreatedAt)
	return e, err
}

// ListUpcomingEvents returns events that have not yet started.
func (s *Store) ListUpcomingEvents(ctx context.Context, limit, offset int32) ([]Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE starts_at > now() ORDER BY starts_at LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetEventBySlug loads an event by its public slug.
func (s *Store) GetEventBySlug(ctx context.Context, slug string) (Event, error) {
	return scanEvent(s.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE slug = $1`, slug))
}

// GetEventByID loads an event.
func (s *Store) GetEventByID(ctx context.Context, id uuid.UUID) (Event, error) {
	return scanEvent(s.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

// ReserveEventCapacity bumps issued_count by n, guarded so the count can
// never exceed a non-zero capacity. Returns false when the event is full.
func (s *Store) ReserveEventCapacity(ctx context.Context, id uuid.UUID, n int32) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE events SET issued_count = issued_count + $2
		 WHERE id = $1 AND NOT sold_out AND (capacity = 0 OR issued_count + $2 <= capacity)`,
		id, n)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// EventVariant is a named alternate ticket type with its own price.
type EventVariant struct {
	ID      uuid.UUID
	EventID uuid.UUID
	Name    string
	Price   int64
}

// ListEventVariants returns the event's ticket variants.
func (s *Store) ListEventVariants(ctx context.Context, eventID uuid.UUID) ([]EventVariant, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, event_id, name, price FROM event_variants WHERE event_id = $1 ORDER BY price`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var variants []EventVariant
	for rows.Next() {
		var v EventVariant
		if err := rows.Scan(&v.ID, &v.EventID, &v.Name, &v.Price); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// Ticket statuses.
const (
	TicketStatusIssued   = "ISSUED"
	TicketStatusReserved = "RESERVED"
)

// Ticket is a single admission unit, one row per quantity unit purchased.
type Ticket struct {
	ID         uuid.UUID
	EventID    uuid.UUID
	OrderID    uuid.UUID
	BuyerEmail string
	BuyerName  string
	VariantID  *uuid.UUID
	UnitPrice  int64
	Status     string
	CreatedAt  time.Time
}

// CreateTicket inserts a ticket row.
func (s *Store) CreateTicket(ctx context.Context, t Ticket) (Ticket, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO tickets (event_id, order_id, buyer_email, buyer_name, variant_id, unit_price, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		t.EventID, t.OrderID, t.BuyerEmail, t.BuyerName, t.VariantID, t.UnitPrice, t.Status).
		Scan(&t.ID, &t.CreatedAt)
	return t, err
}

// ListTicketsByOrder returns every ticket held by the order.
func (s *Store) ListTicketsByOrder(ctx context.Context, orderID uuid.UUID) ([]Ticket, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, event_id, order_id, buyer_email, buyer_name, variant_id, unit_price, status, created_at
		 FROM tickets WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tickets []Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.ID, &t.EventID, &t.OrderID, &t.BuyerEmail, &t.BuyerName,
			&t.VariantID, &t.UnitPrice, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// MarkTicketsIssuedByOrder flips the order's reserved tickets to issued
// once payment settles. Returns the number of tickets affected.
func (s *Store) MarkTicketsIssuedByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE tickets SET status = $2 WHERE order_id = $1 AND status = $3`,
		orderID, TicketStatusIssued, TicketStatusReserved)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteTicketsByOrder removes the order's tickets when payment falls
// through. Returns the number of tickets removed.
func (s *Store) DeleteTicketsByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM tickets WHERE order_id = $1`, orderID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ReleaseEventCapacity hands reserved spots back after a failed or
// canceled purchase.
func (s *Store) ReleaseEventCapacity(ctx context.Context, id uuid.UUID, n int32) error {
	_, err := s.db.Exec(ctx,
		`UPDATE events SET issued_count = GREATEST(issued_count - $2, 0) WHERE id = $1`, id, n)
	return err
}

// CountTicketsByBuyerAndEvent reports how many tickets the buyer holds for
// the event. Used to gate the post-event feedback flow.
func (s *Store) CountTicketsByBuyerAndEvent(ctx context.Context, email string, eventID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM tickets WHERE buyer_email = $1 AND event_id = $2`, email, eventID).Scan(&count)
	return count, err
}
