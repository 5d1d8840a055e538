// Package config centralises configuration parsing for the SmartRoutine processes.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration values.
type Config struct {
	Env                string
	LogLevel           string
	HTTPAddress        string
	MetricsAddress     string
	CORSOrigin         string
	PostgresURL        string // Empty selects the in-memory store.
	KafkaBrokers       []string
	SchemaRegistryURL  string
	OutboxEnabled      bool
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	ConsumerGroupID    string
	ConsumerTopics     []string
	LiveGroupID        string
	LiveResync         time.Duration
	JWTSecret          string
	JWTIssuer          string
	JWTTTL             time.Duration
	DLQPollInterval    time.Duration // Interval between DLQ polling iterations.
	DLQMaxRetries      int           // Maximum number of DLQ retry attempts before quarantine.
	DLQBaseDelay       time.Duration // Base delay used for exponential backoff.
	DLQBatchSize       int
	Blob               BlobConfig
	EvidenceMaxBytes   int64
	DurationPolicy     string
	GeminiAPIKey       string
	GeminiModel        string
	InsightHistory     int
}

// BlobConfig addresses the S3-compatible evidence bucket.
type BlobConfig struct {
	Endpoint  string // Empty disables evidence uploads.
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// Load reads environment variables into Config, applying defaults for local
// dev. A .env file in the working directory is applied first when present;
// real environment variables take precedence.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Env:                getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		HTTPAddress:        getEnv("HTTP_ADDRESS", ":8080"),
		MetricsAddress:     getEnv("METRICS_ADDRESS", ":9102"),
		CORSOrigin:         getEnv("CORS_ORIGIN", "http://localhost:9002"),
		PostgresURL:        getEnv("POSTGRES_URL", ""),
		SchemaRegistryURL:  getEnv("SCHEMA_REGISTRY_URL", "http://schema-registry:8081"),
		OutboxEnabled:      getBoolEnv("OUTBOX_ENABLED", true),
		OutboxPollInterval: getDurationEnv("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:    getIntEnv("OUTBOX_BATCH_SIZE", 25),
		ConsumerGroupID:    getEnv("CONSUMER_GROUP_ID", "smartroutine-audit"),
		LiveGroupID:        getEnv("LIVE_GROUP_ID", ""),
		LiveResync:         getDurationEnv("LIVE_RESYNC_INTERVAL", 30*time.Second),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:          getEnv("JWT_ISSUER", "smartroutine"),
		JWTTTL:             getDurationEnv("JWT_TTL", 24*time.Hour),
		DLQPollInterval:    getDurationEnv("DLQ_POLL_INTERVAL", 30*time.Second),
		DLQMaxRetries:      getIntEnv("DLQ_MAX_RETRIES", 5),
		DLQBaseDelay:       getDurationEnv("DLQ_BASE_DELAY", time.Minute),
		DLQBatchSize:       getIntEnv("DLQ_BATCH_SIZE", 50),
		Blob: BlobConfig{
			Endpoint:  getEnv("BLOB_ENDPOINT", ""),
			AccessKey: getEnv("BLOB_ACCESS_KEY", ""),
			SecretKey: getEnv("BLOB_SECRET_KEY", ""),
			Bucket:    getEnv("BLOB_BUCKET", "smartroutine-evidence"),
			UseSSL:    getBoolEnv("BLOB_USE_SSL", false),
			PublicURL: getEnv("BLOB_PUBLIC_URL", ""),
		},
		EvidenceMaxBytes: int64(getIntEnv("EVIDENCE_MAX_BYTES", 10<<20)),
		DurationPolicy:   getEnv("DURATION_POLICY", "clamp"),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		InsightHistory:   getIntEnv("INSIGHT_HISTORY_LIMIT", 50),
	}

	cfg.KafkaBrokers = splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092"))
	cfg.ConsumerTopics = splitAndTrim(getEnv("CONSUMER_TOPICS", "activity_events,goal_events"))
	return cfg
}

// UsesPostgres reports whether a Postgres URL was configured.
func (c Config) UsesPostgres() bool {
	return strings.TrimSpace(c.PostgresURL) != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
