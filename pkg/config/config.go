package config

import (
	"fmt"
	"os"
	"strconv"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database      DatabaseConfig
	Importer      ImporterConfig
	Observability ObservabilityConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// ImporterConfig controls statement pipeline behavior.
type ImporterConfig struct {
	// AbortBatchOnError aborts a multi-document batch on the first failing
	// document. The default isolates failures per document.
	AbortBatchOnError bool
	// DebugPreviewBytes caps the reconstructed-text preview returned when a
	// caller requests one.
	DebugPreviewBytes int
	// EnableSuggestions allows the optional last-resort category suggester
	// to be consulted for transactions both tiers fail to categorize.
	EnableSuggestions bool
	// HistoryLimit bounds how many prior ledger rows feed the similarity tier.
	HistoryLimit int
	// ArchiveDir stores a copy of every imported document. Empty disables archiving.
	ArchiveDir string
	// CurrencyCode used for operator-facing amount formatting.
	CurrencyCode string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "statements-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Importer: ImporterConfig{
			AbortBatchOnError: getEnvAsBool("IMPORT_ABORT_BATCH_ON_ERROR", false),
			DebugPreviewBytes: getEnvAsInt("IMPORT_DEBUG_PREVIEW_BYTES", 2000),
			EnableSuggestions: getEnvAsBool("IMPORT_ENABLE_SUGGESTIONS", false),
			HistoryLimit:      getEnvAsInt("IMPORT_HISTORY_LIMIT", 1000),
			ArchiveDir:        getEnv("IMPORT_ARCHIVE_DIR", ""),
			CurrencyCode:      getEnv("IMPORT_CURRENCY_CODE", "USD"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
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

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
