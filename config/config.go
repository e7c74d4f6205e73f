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

	// Venue search provider
	PlacesBaseURL      string
	PlacesAPIKey       string
	VenueSearchTimeout time.Duration
	MaxVenues          int

	// Geocoding provider
	GeocodeBaseURL string

	// Session configuration
	MaxParticipants int
	SessionTTL      time.Duration
	CleanupInterval time.Duration

	// Rate limiting
	RateLimitPerMinute int

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

		// Venue search
		PlacesBaseURL:      getEnv("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
		PlacesAPIKey:       getEnv("PLACES_API_KEY", ""),
		VenueSearchTimeout: getEnvAsDuration("VENUE_SEARCH_TIMEOUT", "5s"),
		MaxVenues:          getEnvAsInt("MAX_VENUES", 24),

		// Geocoding
		GeocodeBaseURL: getEnv("GEOCODE_BASE_URL", "https://maps.googleapis.com/maps/api/geocode"),

		// Sessions
		MaxParticipants: getEnvAsInt("MAX_PARTICIPANTS", 10),
		SessionTTL:      getEnvAsDuration("SESSION_TTL", "12h"),
		CleanupInterval: getEnvAsDuration("CLEANUP_INTERVAL", "10m"),

		// Rate limiting
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),

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
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
