package events

import (
	"hulu/pkg/config"
	"hulu/pkg/kafka"
	kafka_config "hulu/pkg/kafka/config"
	kafka_middleware "hulu/pkg/kafka/middleware"
)

// Setup returns the publisher a service should use and a function that flushes it.
// With Kafka disabled, or when the producer cannot be built, events are dropped.
func Setup(cfg *config.Config, source string) (Publisher, func()) {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, domain events will not be published")
		return NoopPublisher{}, func() {}
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Error("Invalid Kafka configuration, domain events will not be published", "error", err)
		return NoopPublisher{}, func() {}
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.BookingEventsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Error("Failed to create Kafka producer, domain events will not be published", "error", err)
		return NoopPublisher{}, func() {}
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(kafka_middleware.MetricsProducerMiddleware())

	cfg.Log.Info("Publishing domain events to Kafka", "topic", cfg.BookingEventsTopic)
	return NewKafkaPublisher(producer, source, cfg.Log), func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	}
}
