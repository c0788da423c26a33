package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Queue configuration
	FixedMinimumWaitMinutes int

	// Reservation configuration
	DefaultReservationTTL  time.Duration
	ReservationWarningLead time.Duration
	SweepInterval          time.Duration

	// Station lock configuration
	StationLockTTL        time.Duration
	StationLockWait       time.Duration
	StationLockRetryDelay time.Duration

	// Rate limiting
	JoinRateLimit  int
	JoinRateWindow time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Queue
		FixedMinimumWaitMinutes: getEnvAsInt("FIXED_MINIMUM_WAIT_MINUTES", 5),

		// Reservations
		DefaultReservationTTL:  getEnvAsDuration("RESERVATION_TTL", "15m"),
		ReservationWarningLead: getEnvAsDuration("RESERVATION_WARNING_LEAD", "5m"),
		SweepInterval:          getEnvAsDuration("RESERVATION_SWEEP_INTERVAL", "5s"),

		// Station locks
		StationLockTTL:        getEnvAsDuration("STATION_LOCK_TTL", "10s"),
		StationLockWait:       getEnvAsDuration("STATION_LOCK_WAIT", "3s"),
		StationLockRetryDelay: getEnvAsDuration("STATION_LOCK_RETRY_DELAY", "50ms"),

		// Rate limiting
		JoinRateLimit:  getEnvAsInt("JOIN_RATE_LIMIT", 30),
		JoinRateWindow: getEnvAsDuration("JOIN_RATE_WINDOW", "1m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
