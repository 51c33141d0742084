package kafka_middleware

import (
	"context"
	"time"

	"hulu/pkg/kafka"
	"hulu/pkg/metrics"
)

func MetricsProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		metrics.ObserveKafkaPublish(msg.Topic, err, time.Since(start))
		return err
	}
}
