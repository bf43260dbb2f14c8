package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-kasir/internal/events"
)

// EventStore implements events.EventStore on a pgx connection pool.
type EventStore struct {
	Pool *pgxpool.Pool
}

// InsertDomainEvent persists one event row and returns it with generated fields.
func (s EventStore) InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.DomainEvent, error) {
	if s.Pool == nil {
		return events.DomainEvent{}, errors.New("repo: pool not configured")
	}
	ev := events.DomainEvent{Topic: topic, AggregateID: aggregateID, Payload: payload}
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO domain_events (topic, aggregate_id, payload)
		VALUES ($1, $2, $3)
		RETURNING id, occurred_at
	`, topic, aggregateID, payload).Scan(&ev.ID, &ev.OccurredAt)
	if err != nil {
		return events.DomainEvent{}, err
	}
	return ev, nil
}
