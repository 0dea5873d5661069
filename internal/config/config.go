package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port               string
	DBUrl              string
	DBMaxConns         int32
	DBMinConns         int32
	JWTSecret          string
	AppEnv             string
	LogLevel           string
	LogJSON            bool
	SupabaseURL        string
	SupabaseBucket     string
	SupabaseServiceKey string
	Batch              BatchConfig
}

// BatchConfig holds the defaults handed to the batch utility by services
// and the cashctl commands.
type BatchConfig struct {
	Size            int
	Delay           time.Duration
	ContinueOnError bool
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		DBUrl:              getEnv("DB_URL", ""),
		DBMaxConns:         int32(getEnvInt("DB_MAX_CONNS", 10)),
		DBMinConns:         int32(getEnvInt("DB_MIN_CONNS", 2)),
		JWTSecret:          jwtSecret,
		AppEnv:             normalizeEnv(getEnv("APP_ENV", "production")),
		LogLevel:           strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		LogJSON:            getEnvBool("LOG_JSON", true),
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseBucket:     getEnv("SUPABASE_BUCKET", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		Batch: BatchConfig{
			Size:            getEnvInt("BATCH_SIZE", 50),
			Delay:           time.Duration(getEnvInt("BATCH_DELAY_MS", 100)) * time.Millisecond,
			ContinueOnError: getEnvBool("BATCH_CONTINUE_ON_ERROR", true),
		},
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return nil, fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", cfg.DBMinConns, cfg.DBMaxConns)
	}
	if cfg.Batch.Size <= 0 {
		return nil, fmt.Errorf("BATCH_SIZE must be positive")
	}
	return cfg, nil
}

// LoadDatabaseURL is used by tools that only need the connection string.
func LoadDatabaseURL() (string, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found")
	}
	dbURL := getEnv("DB_URL", "")
	if dbURL == "" {
		return "", fmt.Errorf("DB_URL environment variable is required")
	}
	return dbURL, nil
}

func (c *Config) StorageConfigured() bool {
	return c != nil && c.SupabaseURL != "" && c.SupabaseBucket != "" && c.SupabaseServiceKey != ""
}

func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}
