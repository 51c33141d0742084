package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017/?replicaSet=rs0"
	DefaultMongoDatabaseName = "hulu"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisDB = 0

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultReleaseSweepInterval = 1 * time.Minute
	DefaultReleaseSweepBatch    = 100
	DefaultReserveMaxAttempts   = 5
	DefaultReserveRetryBackoff  = 25 * time.Millisecond
	DefaultInventoryLockTTL     = 10 * time.Second
	DefaultMaxRoomsPerBooking   = 20
	DefaultMaxStayNights        = 90

	DefaultKafkaEnabled       = false
	DefaultBookingEventsTopic = "booking-events"

	DefaultPaginationLimit = 100
)
