package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// DomainEvent is an outbox row recording something that happened to a sale or
// product. Workers and audits read from here.
type DomainEvent struct {
	ID         int64
	EventID    string
	Topic      string
	Payload    []byte
	OccurredAt pgtype.Timestamptz
}

const insertDomainEvent = `
INSERT INTO domain_events (event_id, topic, payload)
VALUES ($1, $2, $3)
RETURNING id, event_id, topic, payload, occurred_at
`

func (q *Queries) InsertDomainEvent(ctx context.Context, eventID, topic string, payload []byte) (DomainEvent, error) {
	var e DomainEvent
	err := q.db.QueryRow(ctx, insertDomainEvent, eventID, topic, payload).
		Scan(&e.ID, &e.EventID, &e.Topic, &e.Payload, &e.OccurredAt)
	return e, err
}

const listDomainEvents = `
SELECT id, event_id, topic, payload, occurred_at
FROM domain_events
WHERE ($1 = '' OR topic = $1)
ORDER BY id DESC
LIMIT $2
`

func (q *Queries) ListDomainEvents(ctx context.Context, topic string, limit int32) ([]DomainEvent, error) {
	rows, err := q.db.Query(ctx, listDomainEvents, topic, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DomainEvent
	for rows.Next() {
		var e DomainEvent
		if err := rows.Scan(&e.ID, &e.EventID, &e.Topic, &e.Payload, &e.OccurredAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
