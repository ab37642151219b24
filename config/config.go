package config

import (
	"os"
	"strconv"
	"time"

	"expo-tickets/internal/gateway/pesapal"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Event branding stamped into verification payloads and artifacts
	EventName string
	Currency  string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Attendee manifest retention across the payment redirect
	ManifestTTL     time.Duration
	JanitorInterval time.Duration

	// Payment gateway configuration
	Pesapal         pesapal.Config
	PaymentCallback string

	// PubNub configuration (purchase lifecycle events)
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUUID         string

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
	OpsTokenHash  string

	// Rate limiting on the ops port
	OpsRateLimit  int
	OpsRateWindow time.Duration
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Event
		EventName: getEnv("EVENT_NAME", "Investment Expo"),
		Currency:  getEnv("CURRENCY", "UGX"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// Manifest
		ManifestTTL:     getEnvAsDuration("MANIFEST_TTL", "48h"),
		JanitorInterval: getEnvAsDuration("JANITOR_INTERVAL", "1h"),

		// Gateway
		Pesapal: pesapal.Config{
			BaseURL:        getEnv("PESAPAL_BASE_URL", "https://cybqa.pesapal.com/pesapalv3"),
			ConsumerKey:    getEnv("PESAPAL_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("PESAPAL_CONSUMER_SECRET", ""),
			IPNID:          getEnv("PESAPAL_IPN_ID", ""),

			PNSubKey:    getEnv("PESAPAL_PN_SUBKEY", ""),
			PNSubSecret: getEnv("PESAPAL_PN_SUBSECRET", ""),
			PNUUID:      getEnv("PESAPAL_PN_UUID", "expo-tickets-ipn"),
			PNChannel:   getEnv("PESAPAL_PN_CHANNEL", ""),
		},
		PaymentCallback: getEnv("PAYMENT_CALLBACK_URL", "http://localhost:8090/api/payments/callback"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUUID:         getEnv("PUBNUB_UUID", "expo-tickets"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
		OpsTokenHash:  getEnv("OPS_TOKEN_HASH", ""),

		// Rate limiting
		OpsRateLimit:  getEnvAsInt("OPS_RATE_LIMIT", 60),
		OpsRateWindow: getEnvAsDuration("OPS_RATE_WINDOW", "1m"),
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
