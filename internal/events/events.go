// Package events publishes domain events about bookings and inventory. Publishing is
// best effort: the reservation ledger stays the source of truth, so failures are
// logged and never returned to callers.
package events

import (
	"context"
	"sync"
	"time"

	"hulu/pkg/kafka"
	"hulu/pkg/logger"
	"hulu/pkg/middleware"
)

const (
	BookingConfirmed    = "booking.confirmed"
	BookingCancelled    = "booking.cancelled"
	ReservationReleased = "reservation.released"
	RoomTypeOversold    = "roomtype.oversold"

	schemaVersion = "1"
)

type Event struct {
	Type       string
	Key        string
	Payload    any
	OccurredAt time.Time
}

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type KafkaPublisher struct {
	producer *kafka.Producer
	source   string
	log      *logger.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, source string, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		source:   source,
		log:      log,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	msg, err := kafka.NewMessage().
		WithKey(event.Key).
		WithEventType(event.Type).
		WithSource(p.source).
		WithSchemaVersion(schemaVersion).
		WithCorrelationID(middleware.RequestID(ctx)).
		WithValue(envelope{Type: event.Type, OccurredAt: event.OccurredAt, Data: event.Payload}).
		Build()
	if err != nil {
		p.log.Error("Failed to build event", "event_type", event.Type, "key", event.Key, "error", err)
		return
	}

	if err := p.producer.Publish(context.WithoutCancel(ctx), msg); err != nil {
		p.log.Error("Failed to publish event",
			"event_type", event.Type,
			"key", event.Key,
			"topic", p.producer.Topic(),
			"error", err,
		)
	}
}

type envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
