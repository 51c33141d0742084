package events

import (
	"context"
	"testing"

	"hulu/pkg/config"
	"hulu/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Publish(context.Background(), Event{Type: BookingConfirmed, Key: "HULU-1"})
	r.Publish(context.Background(), Event{Type: RoomTypeOversold, Key: "rt-1"})
	r.Publish(context.Background(), Event{Type: BookingConfirmed, Key: "HULU-2"})

	assert.Len(t, r.Events(), 3)
	confirmed := r.OfType(BookingConfirmed)
	assert.Len(t, confirmed, 2)
	assert.Equal(t, "HULU-2", confirmed[1].Key)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NotPanics(t, func() {
		p.Publish(context.Background(), Event{Type: BookingCancelled})
	})
}

func TestSetup_KafkaDisabled(t *testing.T) {
	cfg := &config.Config{Log: logger.NewNop(), KafkaEnabled: false}

	publisher, closeFn := Setup(cfg, "bookings")
	defer closeFn()

	assert.IsType(t, NoopPublisher{}, publisher)
}
