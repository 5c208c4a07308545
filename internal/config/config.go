// Package config defines service configuration structures and loading hooks.
//
// Values are layered: defaults, then an optional YAML file named by
// GROSOQ_CONFIG, then GROSOQ_* environment variables. A .env file is read
// into the environment first so secrets can stay out of the shell.
package config

import (
	"context"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// DataDir holds the bolt database or the JSON files.
	DataDir string `koanf:"data_dir" validate:"required_unless=StoreBackend memory"`

	// StoreBackend selects persistence: bolt, json or memory.
	StoreBackend string `koanf:"store_backend" validate:"oneof=bolt json memory"`

	// OCR* configure the vision model endpoint.
	OCRAPIKey            string `koanf:"ocr_api_key"`
	OCRBaseURL           string `koanf:"ocr_base_url" validate:"omitempty,url"`
	OCRModel             string `koanf:"ocr_model" validate:"required"`
	OCRTimeoutSeconds    int    `koanf:"ocr_timeout_seconds" validate:"min=1,max=600"`
	OCRMaxRetries        int    `koanf:"ocr_max_retries" validate:"min=0,max=10"`
	OCRRequestsPerMinute int    `koanf:"ocr_requests_per_minute" validate:"min=0"`
	OCRReferer           string `koanf:"ocr_referer"`
	OCRTitle             string `koanf:"ocr_title"`

	// CacheTTLSeconds bounds the last-result cache; 0 keeps it until replaced.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds" validate:"min=0"`

	// MaxUploadBytes caps POST /analyze bodies.
	MaxUploadBytes int64 `koanf:"max_upload_bytes" validate:"min=1024"`

	// PinnedTeam is the initial current-team override.
	PinnedTeam string `koanf:"pinned_team"`
}

// New creates a Config with defaults. Context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		DataDir:              "data",
		StoreBackend:         "bolt",
		OCRBaseURL:           "https://openrouter.ai/api/v1/chat/completions",
		OCRModel:             "google/gemini-2.0-flash-001",
		OCRTimeoutSeconds:    45,
		OCRMaxRetries:        2,
		OCRRequestsPerMinute: 20,
		OCRTitle:             "grosoq",
		CacheTTLSeconds:      0,
		MaxUploadBytes:       16 << 20,
	}
}

// OCRTimeout returns the per-request timeout of the vision model call.
func (c *Config) OCRTimeout() time.Duration {
	return time.Duration(c.OCRTimeoutSeconds) * time.Second
}

// CacheTTL returns the lifetime of the last-result cache entry.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
