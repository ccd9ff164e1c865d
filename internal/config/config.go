// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; empty means site presets and telemetry run without a store.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// AdminAPIKey protects mutating site-preset routes. Empty means those routes answer 503.
	AdminAPIKey string `mapstructure:"ADMIN_API_KEY"`
	// Env is the application environment (e.g. "dev", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the slog level name: debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// MaxBodyBytes caps inbound request bodies. Zero disables the limit.
	MaxBodyBytes int64 `mapstructure:"MAX_BODY_BYTES"`

	// AIInferenceEnabled switches the remote positioning model on. Without it
	// (or without a key) analysis always uses the local instruction table.
	AIInferenceEnabled bool `mapstructure:"AI_INFERENCE_ENABLED"`
	// AIModelAccessKey is the bearer credential for the inference endpoint.
	AIModelAccessKey string `mapstructure:"AI_MODEL_ACCESS_KEY"`
	// AIModelID is the model identifier sent with each inference request.
	AIModelID string `mapstructure:"AI_MODEL_ID"`
	// AIInferenceURL is the chat-completions endpoint.
	AIInferenceURL string `mapstructure:"AI_INFERENCE_URL"`
	// AIInferenceTimeout bounds each inference call (e.g. "6s").
	AIInferenceTimeout string `mapstructure:"AI_INFERENCE_TIMEOUT"`

	// OTLPEndpoint is the OTLP collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("ADMIN_API_KEY", "")
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_BODY_BYTES", 1<<20)
	v.SetDefault("AI_INFERENCE_ENABLED", false)
	v.SetDefault("AI_MODEL_ACCESS_KEY", "")
	v.SetDefault("AI_MODEL_ID", "")
	v.SetDefault("AI_INFERENCE_URL", "https://inference.do-ai.run/v1/chat/completions")
	v.SetDefault("AI_INFERENCE_TIMEOUT", "6s")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.MaxBodyBytes < 0 {
		return nil, errors.New("config: MAX_BODY_BYTES must not be negative")
	}
	if cfg.AIInferenceEnabled && cfg.AIInferenceURL == "" {
		return nil, errors.New("config: AI_INFERENCE_URL must be set when AI_INFERENCE_ENABLED")
	}

	return &cfg, nil
}

// InferenceTimeout parses AIInferenceTimeout as a time.Duration. Returns 6s if unset or invalid.
func (c *Config) InferenceTimeout() time.Duration {
	d, err := time.ParseDuration(c.AIInferenceTimeout)
	if err != nil || d <= 0 {
		return 6 * time.Second
	}
	return d
}
