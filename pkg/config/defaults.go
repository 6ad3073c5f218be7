package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "locafy"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8000"
	DefaultLogLevel = "info"
	DefaultBaseURL  = "http://localhost:8000"

	DefaultLoginTokenTTL    = 15 * 24 * time.Hour
	DefaultRegisterTokenTTL = 7 * 24 * time.Hour
	DefaultResetTokenTTL    = 15 * time.Minute
	DefaultOTPTTL           = 10 * time.Minute
	DefaultOTPMaxAttempts   = 5

	DefaultSMTPPort = 587

	DefaultBookingEventsTopic = "locafy.booking.events"

	DefaultRateLimitRequests = 200
	DefaultRateLimitWindow   = 1 * time.Minute
	DefaultRateLimitBurst    = 50

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB
	DefaultMaxUploadSize  = 8 * 1024 * 1024

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100
)
