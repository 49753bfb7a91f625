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

	// Check-in configuration
	StoreTimeout   time.Duration
	NotifyDebounce time.Duration
	HistoryLimit   int

	// Rate limiting
	ValidateRateLimit  int
	ValidateRateWindow time.Duration

	// PagBank gateway
	PagBankConfig PagBankConfig

	// Harness (development gateway test server)
	HarnessPort string

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

type PagBankConfig struct {
	BaseURL       string `json:"baseUrl" mapstructure:"base_url"`
	Token         string `json:"token" mapstructure:"token"`
	WebhookSecret string `json:"webhookSecret" mapstructure:"webhook_secret"`
	NotifyURL     string `json:"notifyUrl" mapstructure:"notify_url"`

	PNSubKey    string `json:"pn_subkey" mapstructure:"pn_subkey"`
	PNSubSecret string `json:"pn_subsecret" mapstructure:"pn_subsecret"`
	PNUUID      string `json:"pn_uuid" mapstructure:"pn_uuid"`
	PNChannel   string `json:"pn_channel" mapstructure:"pn_channel"`
	PNCipherKey string `json:"pn_cipherKey" mapstructure:"pn_cipherkey"`
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

		// Check-in
		StoreTimeout:   getEnvAsDuration("STORE_TIMEOUT", "5s"),
		NotifyDebounce: getEnvAsDuration("NOTIFY_DEBOUNCE", "500ms"),
		HistoryLimit:   getEnvAsInt("HISTORY_LIMIT", 50),

		// Rate limiting
		ValidateRateLimit:  getEnvAsInt("VALIDATE_RATE_LIMIT", 60),
		ValidateRateWindow: getEnvAsDuration("VALIDATE_RATE_WINDOW", "1m"),

		// PagBank
		PagBankConfig: PagBankConfig{
			BaseURL:       getEnv("PAGBANK_BASE_URL", "https://sandbox.api.pagseguro.com"),
			Token:         getEnv("PAGBANK_TOKEN", ""),
			WebhookSecret: getEnv("PAGBANK_WEBHOOK_SECRET", ""),
			NotifyURL:     getEnv("PAGBANK_NOTIFY_URL", ""),

			PNSubKey:    getEnv("PAGBANK_PN_SUBKEY", ""),
			PNSubSecret: getEnv("PAGBANK_PN_SUBSECRET", ""),
			PNUUID:      getEnv("PAGBANK_PN_UUID", ""),
			PNChannel:   getEnv("PAGBANK_PN_CHANNEL", ""),
			PNCipherKey: getEnv("PAGBANK_PN_CIPHERKEY", ""),
		},

		// Harness
		HarnessPort: getEnv("HARNESS_PORT", "8091"),

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
