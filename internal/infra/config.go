package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"genbroker/internal/domain"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string

	AgentBaseURL string
	AgentToken   string
	AgentTimeout time.Duration

	OutputBucket         string
	OutputPrefixTemplate string
	ConfiguredModelsPath string

	MigrationsDir string

	KafkaBrokers []string
	KafkaTopic   string

	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3UseSSL     bool
	PresignTTL   time.Duration

	GeoIPDBPath string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		AgentBaseURL: os.Getenv("AGENT_BASE_URL"),
		AgentToken:   os.Getenv("AGENT_TOKEN"),
		AgentTimeout: time.Second * time.Duration(getEnvInt("AGENT_TIMEOUT_SECONDS", 30)),

		OutputBucket:         getEnv("OUTPUT_BUCKET", "generations"),
		OutputPrefixTemplate: getEnv("OUTPUT_PREFIX_TEMPLATE", "generations/{user}/{job}"),
		ConfiguredModelsPath: os.Getenv("CONFIGURED_MODELS_PATH"),

		MigrationsDir: getEnv("MIGRATIONS_DIR", "internal/db/migrations"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "generation-job-events"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3UseSSL:    getEnvBool("S3_USE_SSL", false),
		PresignTTL:  time.Minute * time.Duration(getEnvInt("PRESIGN_TTL_MINUTES", 15)),

		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.AgentBaseURL == "" {
		return nil, fmt.Errorf("AGENT_BASE_URL is required")
	}

	return cfg, nil
}

// LoadConfiguredModels reads the statically configured model list. A missing
// path yields an empty list.
func LoadConfiguredModels(path string) ([]domain.ConfiguredModel, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configured models: %w", err)
	}
	var models []domain.ConfiguredModel
	if err := json.Unmarshal(raw, &models); err != nil {
		return nil, fmt.Errorf("parse configured models: %w", err)
	}
	for _, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("configured model with empty id in %s", path)
		}
	}
	return models, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
