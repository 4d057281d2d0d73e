// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"

	"stashkeeper/internal/observability"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port      string `mapstructure:"PORT"`
	Env       string `mapstructure:"APP_ENV"`
	JWTSecret string `mapstructure:"JWT_SECRET"`

	// Row store backing the request table.
	RowStoreDriver string `mapstructure:"ROWSTORE_DRIVER"` // memory, sqlite, postgres
	RowStoreDSN    string `mapstructure:"ROWSTORE_DSN"`

	// Bounded-retry budget applied to every row-store call.
	RowStoreMaxAttempts int           `mapstructure:"ROWSTORE_MAX_ATTEMPTS"`
	RowStoreBaseDelay   time.Duration `mapstructure:"ROWSTORE_BASE_DELAY"`
	RowStoreMaxDelay    time.Duration `mapstructure:"ROWSTORE_MAX_DELAY"`

	RedisURL string `mapstructure:"REDIS_URL"`

	// Priority directory persistence: "redis" or a JSON file path.
	PriorityStore   string `mapstructure:"PRIORITY_STORE"`
	PriorityFile    string `mapstructure:"PRIORITY_FILE"`
	DefaultPriority int    `mapstructure:"DEFAULT_PRIORITY"`

	CatalogPath string `mapstructure:"CATALOG_PATH"`

	SessionIdleSeconds int  `mapstructure:"SESSION_IDLE_SECONDS"`
	MergeDuplicates    bool `mapstructure:"MERGE_DUPLICATE_REQUESTS"`

	// Evidence storage: "memory", "filesystem", or "s3".
	EvidenceStore  string `mapstructure:"EVIDENCE_STORE"`
	EvidenceDir    string `mapstructure:"EVIDENCE_DIR"`
	EvidenceBucket string `mapstructure:"EVIDENCE_BUCKET"`
	EvidenceRegion string `mapstructure:"EVIDENCE_REGION"`

	TracingEnabled  bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string  `mapstructure:"OTLP_ENDPOINT"`
	SamplerRatio    float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// SessionIdle returns the configured session idle window.
func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleSeconds) * time.Second
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if errors.As(err, &notFoundErr) {
			observability.Logger.Info("config file not found; using environment variables and defaults")
		} else {
			return nil, err
		}
	}

	viper.SetDefault("PORT", "8480")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("JWT_SECRET", "change-me-in-production")
	viper.SetDefault("ROWSTORE_DRIVER", "sqlite")
	viper.SetDefault("ROWSTORE_DSN", "stashkeeper.db")
	viper.SetDefault("ROWSTORE_MAX_ATTEMPTS", 3)
	viper.SetDefault("ROWSTORE_BASE_DELAY", "250ms")
	viper.SetDefault("ROWSTORE_MAX_DELAY", "5s")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("PRIORITY_STORE", "redis")
	viper.SetDefault("PRIORITY_FILE", "priority_users.json")
	viper.SetDefault("DEFAULT_PRIORITY", 1)
	viper.SetDefault("CATALOG_PATH", "")
	viper.SetDefault("SESSION_IDLE_SECONDS", 120)
	viper.SetDefault("MERGE_DUPLICATE_REQUESTS", false)
	viper.SetDefault("EVIDENCE_STORE", "filesystem")
	viper.SetDefault("EVIDENCE_DIR", "/tmp/stashkeeper/evidence")
	viper.SetDefault("EVIDENCE_BUCKET", "")
	viper.SetDefault("EVIDENCE_REGION", "us-east-1")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
