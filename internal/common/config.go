package common

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	LLM      LLMConfig
	Extract  ExtractConfig
	Log      LogConfig
	Output   OutputConfig
}

// DatabaseConfig holds persistence-related configuration
type DatabaseConfig struct {
	Driver          string // "sqlite" | "postgres"
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// LLMConfig holds inference-endpoint configuration
type LLMConfig struct {
	BaseURL          string
	APIKeys          []string // candidate credentials, tried in order
	Timeout          time.Duration
	ModelSwitchDelay time.Duration
}

// ExtractConfig holds text extraction configuration
type ExtractConfig struct {
	Backend   string // "fitz" | "pdftotext"
	Pdftotext string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string // "text" | "json"
}

// OutputConfig holds where rendered documents land
type OutputConfig struct {
	Dir string
}

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return WrapError(err, "load "+p)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			DSN:             getEnv("DB_URL", "file:cogniflow.db?_pragma=busy_timeout(5000)"),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		LLM: LLMConfig{
			BaseURL:          getEnv("LLM_BASE_URL", "https://api.cerebras.ai/v1"),
			APIKeys:          []string{os.Getenv("CEREBRAS_API_KEY"), os.Getenv("OPENAI_API_KEY")},
			Timeout:          getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
			ModelSwitchDelay: getEnvAsDuration("LLM_MODEL_SWITCH_DELAY", 500*time.Millisecond),
		},
		Extract: ExtractConfig{
			Backend:   getEnv("EXTRACT_BACKEND", "fitz"),
			Pdftotext: getEnv("PDFTOTEXT_BIN", "pdftotext"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Output: OutputConfig{
			Dir: getEnv("OUTPUT_DIR", "."),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// SlogLevel maps the configured level name onto slog.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("DB_URL", c.Database.DSN, Required)
	v.Field("DB_DRIVER", c.Database.Driver, OneOf("sqlite", "postgres"))
	v.Field("LLM_BASE_URL", c.LLM.BaseURL, Required)
	v.Field("EXTRACT_BACKEND", c.Extract.Backend, OneOf("fitz", "pdftotext"))
	if v.HasErrors() {
		return ConfigError(v.ErrorMessage())
	}
	return nil
}
