package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr     string
	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	Broker    BrokerConfig
	AI        AIConfig
	RateLimit RateLimitConfig
	Cloud     CloudConfig
}

// RedisConfig configures the session metadata cache and the rate limiter.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	WriteTimeout time.Duration
	SessionTTL   time.Duration
}

// BrokerConfig configures the NATS-backed event publisher.
type BrokerConfig struct {
	URL                  string
	TopicSessionStarted  string
	TopicSessionProgress string
	TopicSessionSubmit   string
	TopicSessionEnded    string
}

// AIConfig configures the Perplexity analysis client.
type AIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

type RateLimitConfig struct {
	Enabled             bool
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	IngestUserRate      float64
	IngestUserBurst     int
	IngestEndpointRate  float64
	IngestEndpointBurst int
}

type CloudConfig struct {
	AccountID string
	Metrics   CloudMetricsConfig
}

type CloudMetricsConfig struct {
	Enabled   bool
	Exporter  string
	Endpoint  string
	AuthToken string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "solvetrace"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "solvetrace"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		Redis: RedisConfig{
			Addr:         getenv("REDIS_ADDR", "localhost:6379"),
			Password:     getenv("REDIS_PASSWORD", ""),
			DB:           getenvInt("REDIS_DB", 0),
			WriteTimeout: getenvDuration("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
			SessionTTL:   getenvDuration("SESSION_CACHE_TTL", 2*time.Hour),
		},
		Broker: BrokerConfig{
			URL:                  getenv("NATS_URL", "nats://localhost:4222"),
			TopicSessionStarted:  getenv("TOPIC_SESSION_STARTED", "session.started"),
			TopicSessionProgress: getenv("TOPIC_SESSION_PROGRESS", "session.progress"),
			TopicSessionSubmit:   getenv("TOPIC_SESSION_SUBMITTED", "session.submitted"),
			TopicSessionEnded:    getenv("TOPIC_SESSION_ENDED", "session.ended"),
		},
		AI: AIConfig{
			BaseURL:     getenv("PERPLEXITY_BASE_URL", "https://api.perplexity.ai"),
			APIKey:      strings.TrimSpace(getenv("PERPLEXITY_API_KEY", "")),
			Model:       getenv("PERPLEXITY_MODEL", "sonar-pro"),
			MaxTokens:   getenvInt("PERPLEXITY_MAX_TOKENS", 2000),
			Temperature: getenvFloat("PERPLEXITY_TEMPERATURE", 0.2),
			Timeout:     getenvDuration("PERPLEXITY_TIMEOUT", 30*time.Second),
			MaxRetries:  getenvInt("PERPLEXITY_MAX_RETRIES", 2),
		},
		RateLimit: RateLimitConfig{
			Enabled:             getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:           getenv("RATE_LIMIT_REDIS_ADDR", getenv("REDIS_ADDR", "localhost:6379")),
			RedisPassword:       getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:             getenvInt("RATE_LIMIT_REDIS_DB", 0),
			IngestUserRate:      getenvFloat("INGEST_USER_RATE", 20),
			IngestUserBurst:     getenvInt("INGEST_USER_BURST", 40),
			IngestEndpointRate:  getenvFloat("INGEST_ENDPOINT_RATE", 200),
			IngestEndpointBurst: getenvInt("INGEST_ENDPOINT_BURST", 400),
		},
		Cloud: CloudConfig{
			AccountID: strings.TrimSpace(getenv("CLOUD_ACCOUNT_ID", "")),
			Metrics: CloudMetricsConfig{
				Enabled:   getenvBool("CLOUD_METRICS_ENABLED", false),
				Exporter:  strings.ToLower(getenv("CLOUD_METRICS_EXPORTER", "")),
				Endpoint:  strings.TrimSpace(getenv("CLOUD_METRICS_ENDPOINT", "")),
				AuthToken: strings.TrimSpace(getenv("CLOUD_METRICS_AUTH_TOKEN", "")),
			},
		},
	}

	return cfg
}

// IsCloud reports whether this instance is linked to a cloud account.
func (c Config) IsCloud() bool {
	return strings.TrimSpace(c.Cloud.AccountID) != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
