// Package events records domain events and fans them out to in-process
// subscribers. Every event is persisted to the domain_events outbox before
// any subscriber runs, so downstream consumers can replay history.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/store"
)

// Topics published by the sale and inventory flows.
const (
	TopicSaleCompleted = "sale.completed"
	TopicSaleRefunded  = "sale.refunded"
	TopicStockLow      = "stock.low"
)

// Event is what subscribers receive.
type Event struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Handler consumes one event. Errors are logged, not propagated; a failing
// subscriber must not undo a committed sale.
type Handler func(ctx context.Context, ev Event)

type recorder interface {
	InsertDomainEvent(ctx context.Context, eventID, topic string, payload []byte) (store.DomainEvent, error)
}

// Bus is a minimal publish/subscribe hub backed by the outbox table.
type Bus struct {
	mu       sync.RWMutex
	store    recorder
	log      zerolog.Logger
	handlers map[string][]Handler

	Now func() time.Time
}

// NewBus builds a bus that records events through q.
func NewBus(q recorder, log zerolog.Logger) *Bus {
	return &Bus{
		store:    q,
		log:      log,
		handlers: make(map[string][]Handler),
		Now:      time.Now,
	}
}

// Subscribe registers h for topic. Not safe to call concurrently with Publish
// during startup wiring only; after that subscriptions are stable.
func (b *Bus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish persists the event and invokes subscribers synchronously. payload
// must be JSON-marshalable.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ev := Event{
		ID:         uuid.NewString(),
		Topic:      topic,
		Payload:    body,
		OccurredAt: b.Now().UTC(),
	}
	if _, err := b.store.InsertDomainEvent(ctx, ev.ID, ev.Topic, ev.Payload); err != nil {
		return err
	}

	b.mu.RLock()
	subs := b.handlers[topic]
	b.mu.RUnlock()
	for _, h := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error().Str("topic", topic).Interface("panic", r).Msg("event handler panicked")
				}
			}()
			h(ctx, ev)
		}()
	}
	return nil
}
