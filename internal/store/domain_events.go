package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a persisted record of something that happened, consumed
// by notifiers.
type DomainEvent struct {
	ID          uuid.UUID
	Topic       string
	AggregateID uuid.UUID
	Payload     []byte
	OccurredAt  time.Time
}

// InsertDomainEvent appends an event row.
func (s *Store) InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (DomainEvent, error) {
	ev := DomainEvent{Topic: topic, AggregateID: aggregateID, Payload: payload}
	err := s.db.QueryRow(ctx,
		`INSERT INTO domain_events (topic, aggregate_id, payload)
		 VALUES ($1, $2, $3)
		 RETURNING id, occurred_at`,
		topic, aggregateID, payload).
		Scan(&ev.ID, &ev.OccurredAt)
	return ev, err
}
