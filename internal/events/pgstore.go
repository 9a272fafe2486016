package events

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists events into the domain_events table.
type PGStore struct {
	Pool *pgxpool.Pool
}

// InsertEvent implements Store.
func (s PGStore) InsertEvent(ctx context.Context, e Event) (Event, error) {
	const q = `
		INSERT INTO domain_events (org_id, topic, aggregate_id, payload)
		VALUES ((SELECT id FROM organizations WHERE slug = $1), $2, $3, $4)
		RETURNING id, occurred_at`
	row := s.Pool.QueryRow(ctx, q, e.Org, e.Topic, e.AggregateID, e.Payload)
	if err := row.Scan(&e.ID, &e.OccurredAt); err != nil {
		return Event{}, err
	}
	return e, nil
}
