// Package metrics holds the prometheus collectors shared by the hulu services.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hulu"

// Reservation outcomes.
const (
	OutcomeHeld         = "held"
	OutcomeReplayed     = "replayed"
	OutcomeInsufficient = "insufficient_inventory"
	OutcomeConflict     = "conflict"
	OutcomeError        = "error"
)

var (
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests segmented by method and status code.",
	}, []string{"method", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	reservations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "reservations_total",
		Help:      "Reserve calls segmented by outcome.",
	}, []string{"outcome"})

	reserveRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "reserve_retries_total",
		Help:      "Reserve attempts retried after lock contention or a write conflict.",
	})

	reservationTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "reservation_transitions_total",
		Help:      "Held reservations moved to a terminal state.",
	}, []string{"state"})

	oversoldTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "oversold_transitions_total",
		Help:      "Room types flagged or cleared as oversold.",
	}, []string{"transition"})

	sweepTasks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "release",
		Name:      "sweep_tasks_total",
		Help:      "Release tasks processed by the sweeper.",
	}, []string{"result"})

	sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "release",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of a release sweep.",
		Buckets:   prometheus.DefBuckets,
	})

	bookings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bookings",
		Name:      "total",
		Help:      "Bookings that reached a status.",
	}, []string{"status"})

	kafkaPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "kafka",
		Name:      "messages_published_total",
		Help:      "Kafka messages published segmented by topic and result.",
	}, []string{"topic", "result"})

	kafkaPublishDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "kafka",
		Name:      "publish_duration_seconds",
		Help:      "Duration of kafka publish calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"topic"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		reservations,
		reserveRetries,
		reservationTransitions,
		oversoldTransitions,
		sweepTasks,
		sweepDuration,
		bookings,
		kafkaPublished,
		kafkaPublishDuration,
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func ObserveHTTP(method string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func ObserveReserve(outcome string) {
	reservations.WithLabelValues(outcome).Inc()
}

func ObserveReserveRetry() {
	reserveRetries.Inc()
}

func ObserveTransition(state string) {
	reservationTransitions.WithLabelValues(state).Inc()
}

// ObserveOversold counts a room type entering (flagged) or leaving the oversold
// state. The stored flag is the source of truth; the counters only record changes.
func ObserveOversold(flagged bool) {
	transition := "cleared"
	if flagged {
		transition = "flagged"
	}
	oversoldTransitions.WithLabelValues(transition).Inc()
}

func ObserveSweep(fired, failed int, duration time.Duration) {
	sweepTasks.WithLabelValues("released").Add(float64(fired))
	sweepTasks.WithLabelValues("failed").Add(float64(failed))
	sweepDuration.Observe(duration.Seconds())
}

func ObserveBooking(status string) {
	bookings.WithLabelValues(status).Inc()
}

func ObserveKafkaPublish(topic string, err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	kafkaPublished.WithLabelValues(topic, result).Inc()
	kafkaPublishDuration.WithLabelValues(topic).Observe(duration.Seconds())
}
