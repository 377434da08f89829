package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the assistant service.
// Environment variables are parsed from the ASSISTANT_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Storage: "postgres" or "sqlite"
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"assistant.db"`

	// External project-management API
	SourceBaseURL string `envconfig:"SOURCE_BASE_URL" default:"http://localhost:3001"`
	SourceAPIKey  string `envconfig:"SOURCE_API_KEY" default:""`

	// Activity filtering window and exclusion sentinels. Times are decimal
	// hours; sentinels come from the upstream planner and carry no meaning
	// beyond "excluded".
	WorkdayStartHour    float64 `envconfig:"WORKDAY_START_HOUR" default:"7"`
	WorkdayEndHour      float64 `envconfig:"WORKDAY_END_HOUR" default:"17"`
	ExcludedTitlePrefix string  `envconfig:"EXCLUDED_TITLE_PREFIX" default:"[BLOQUEO]"`
	ExcludedStatus      string  `envconfig:"EXCLUDED_STATUS" default:"cancelada"`

	// Duplicate detection
	SimilarityThreshold float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.85"`

	// AI providers (failover order: groq first, then gemini)
	GroqAPIKey   string `envconfig:"GROQ_API_KEY" default:""`
	GroqModel    string `envconfig:"GROQ_MODEL" default:"llama-3.3-70b-versatile"`
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY" default:""`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`

	// Health checking
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"15"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"5"`
	BootstrapTimeoutSeconds   int `envconfig:"BOOTSTRAP_TIMEOUT_SECONDS" default:"30"`
}

// ResolveDefaults validates the configuration and derives DBDriver when set
// to "auto" or empty: postgres when a DSN is present, sqlite otherwise.
func (c *Config) ResolveDefaults() error {
	if c.DBDriver == "" || c.DBDriver == "auto" {
		if c.PostgresDSN != "" {
			c.DBDriver = "postgres"
		} else {
			c.DBDriver = "sqlite"
		}
	}
	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.WorkdayStartHour >= c.WorkdayEndHour {
		return fmt.Errorf("workday window is empty: start %.2f >= end %.2f", c.WorkdayStartHour, c.WorkdayEndHour)
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold out of range: %v", c.SimilarityThreshold)
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Variables are prefixed with ASSISTANT_, e.g. ASSISTANT_HTTP_PORT.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("ASSISTANT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("db_driver", cfg.DBDriver).
		Str("source_base_url", cfg.SourceBaseURL).
		Float64("workday_start", cfg.WorkdayStartHour).
		Float64("workday_end", cfg.WorkdayEndHour).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config suitable for unit tests: sqlite in a temp
// location, permissive window, no external keys.
func NewForTesting() *Config {
	return &Config{
		Environment:         EnvTesting,
		HTTPPort:            8080,
		DBDriver:            "sqlite",
		SQLitePath:          ":memory:",
		WorkdayStartHour:    7,
		WorkdayEndHour:      17,
		ExcludedTitlePrefix: "[BLOQUEO]",
		ExcludedStatus:      "cancelada",
		SimilarityThreshold: 0.85,
	}
}
