package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/FACorreiaa/poker-ledger/internal/domain/categorization"
	"github.com/FACorreiaa/poker-ledger/internal/domain/import/dedup"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Log           LogConfig
	Storage       StorageConfig
	Import        ImportConfig
	Reclassify    ReclassifyConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
	AllowedOrigins     []string
	MaxUploadMB        int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
}

type AuthConfig struct {
	JWTSecret string
}

type ObservabilityConfig struct {
	MetricsEnabled     bool
	MetricsPort        int
	TracingExporter    string // "none" or "stdout"
	TracingSampleRatio float64
}

type LogConfig struct {
	Level  string
	Format string
}

type StorageConfig struct {
	LocalPath string
}

type ImportConfig struct {
	ChunkSize        int
	ProgressEvery    int
	DuplicatePreview int
	DedupMode        dedup.Mode
	TierScheme       string
	RulesFile        string
}

type ReclassifyConfig struct {
	// Schedule is a cron spec; empty disables the sweep.
	Schedule string
}

// ErrMissingJWTSecret is returned by RequireAuth when no secret is configured.
var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

// Load reads configuration from environment variables, after loading a .env file
// from the working directory when one exists. Variables already set win over the
// file. Malformed values fall back to their defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 100),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 200),
			AllowedOrigins:     getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			MaxUploadMB:        getEnvAsInt("SERVER_MAX_UPLOAD_MB", 32),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "poker-ledger"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("POSTGRES_MAX_CONNS", 10),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled:     getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:        getEnvAsInt("METRICS_PORT", 9090),
			TracingExporter:    strings.ToLower(getEnv("TRACING_EXPORTER", "none")),
			TracingSampleRatio: getEnvAsFloat("TRACING_SAMPLE_RATIO", 1),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Storage: StorageConfig{
			LocalPath: getEnv("STORAGE_LOCAL_PATH", "./uploads"),
		},
		Import: ImportConfig{
			ChunkSize:        getEnvAsPositiveInt("IMPORT_CHUNK_SIZE", 200),
			ProgressEvery:    getEnvAsPositiveInt("IMPORT_PROGRESS_EVERY", 50),
			DuplicatePreview: getEnvAsPositiveInt("IMPORT_DUPLICATE_PREVIEW", 10),
			DedupMode:        dedup.ModeBulk,
			TierScheme:       strings.ToLower(getEnv("TIER_SCHEME", "standard")),
			RulesFile:        getEnv("CATEGORIZATION_RULES_FILE", ""),
		},
		Reclassify: ReclassifyConfig{
			Schedule: "0 3 * * *",
		},
	}

	if mode, err := dedup.ParseMode(getEnv("IMPORT_DEDUP_MODE", string(dedup.ModeBulk))); err == nil {
		cfg.Import.DedupMode = mode
	}
	if _, err := categorization.ParseTierScheme(cfg.Import.TierScheme); err != nil {
		cfg.Import.TierScheme = categorization.StandardTiers.Name()
	}
	if v, ok := os.LookupEnv("RECLASSIFY_SCHEDULE"); ok {
		cfg.Reclassify.Schedule = strings.TrimSpace(v)
	}

	return cfg, nil
}

// RequireAuth fails when the API cannot authenticate requests.
func (c *Config) RequireAuth() error {
	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns the host:port the API listens on.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsPositiveInt(key string, defaultValue int) int {
	if v := getEnvAsInt(key, defaultValue); v > 0 {
		return v
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
