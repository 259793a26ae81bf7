// Package config centralises runtime configuration for the fxlane engine.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment identifies the runtime environment where fxlane operates.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// BackendSettings aggregates marketplace backend transport configuration.
type BackendSettings struct {
	BaseURL          string        `yaml:"baseUrl"`
	WSURL            string        `yaml:"wsUrl"`
	HTTPTimeout      time.Duration `yaml:"httpTimeout"`
	HandshakeTimeout time.Duration `yaml:"handshakeTimeout"`
	RetryMaxAttempts int           `yaml:"retryMaxAttempts"`
	// MutationsPerSecond throttles transition-triggering calls; it protects
	// the backend from a looping caller, not the user from themselves.
	MutationsPerSecond float64 `yaml:"mutationsPerSecond"`
}

// SyncSettings tunes the trade synchronization loop.
type SyncSettings struct {
	Interval time.Duration `yaml:"interval"`
	// FailureLimit is the number of consecutive poll failures tolerated
	// before the loop escalates once to the caller.
	FailureLimit int `yaml:"failureLimit"`
}

// TelemetrySettings configures the OTLP metric exporter.
type TelemetrySettings struct {
	Enabled        bool          `yaml:"enabled"`
	OTLPEndpoint   string        `yaml:"otlpEndpoint"`
	OTLPInsecure   bool          `yaml:"otlpInsecure"`
	MetricInterval time.Duration `yaml:"metricInterval"`
	ServiceName    string        `yaml:"serviceName"`
}

// Settings contains the fxlane configuration tree loaded from defaults,
// an optional YAML file, and environment overrides, in that precedence.
type Settings struct {
	Environment Environment       `yaml:"environment"`
	Backend     BackendSettings   `yaml:"backend"`
	Sync        SyncSettings      `yaml:"sync"`
	Telemetry   TelemetrySettings `yaml:"telemetry"`
}

// Default returns the default fxlane configuration.
func Default() Settings {
	return Settings{
		Environment: EnvProd,
		Backend: BackendSettings{
			BaseURL:            "https://api.fxlane.example",
			WSURL:              "wss://api.fxlane.example/ws",
			HTTPTimeout:        10 * time.Second,
			HandshakeTimeout:   10 * time.Second,
			RetryMaxAttempts:   3,
			MutationsPerSecond: 2,
		},
		Sync: SyncSettings{
			Interval:     6 * time.Second,
			FailureLimit: 3,
		},
		Telemetry: TelemetrySettings{
			Enabled:        true,
			OTLPEndpoint:   "localhost:4318",
			OTLPInsecure:   false,
			MetricInterval: 30 * time.Second,
			ServiceName:    "fxlane",
		},
	}
}

// Load reads settings from the YAML file at path layered over Default and
// then applies environment overrides. An empty path skips the file layer.
func Load(path string) (Settings, error) {
	cfg := Default()

	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("FXLANE_CONFIG"))
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Settings{}, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	cfg = fromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// FromEnv loads configuration values from environment variables over defaults.
func FromEnv() Settings {
	return fromEnv(Default())
}

func fromEnv(cfg Settings) Settings {
	if v := strings.TrimSpace(os.Getenv("FXLANE_ENV")); v != "" {
		cfg.Environment = Environment(strings.ToLower(v))
	}
	if v := strings.TrimSpace(os.Getenv("FXLANE_BACKEND_URL")); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("FXLANE_WS_URL")); v != "" {
		cfg.Backend.WSURL = v
	}
	if v := strings.TrimSpace(os.Getenv("FXLANE_HTTP_TIMEOUT")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			cfg.Backend.HTTPTimeout = dur
		}
	}
	if v := strings.TrimSpace(os.Getenv("FXLANE_POLL_INTERVAL")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			cfg.Sync.Interval = dur
		}
	}
	if v := strings.TrimSpace(os.Getenv("FXLANE_POLL_FAILURE_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sync.FailureLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		cfg.Telemetry.Enabled = v != "false"
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME")); v != "" {
		cfg.Telemetry.ServiceName = v
	}
	return cfg
}

// Validate performs semantic validation on the loaded configuration.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.Backend.BaseURL) == "" {
		return fmt.Errorf("config: backend baseUrl must not be empty")
	}
	if s.Backend.HTTPTimeout <= 0 {
		return fmt.Errorf("config: backend httpTimeout must be positive")
	}
	if s.Sync.Interval <= 0 {
		return fmt.Errorf("config: sync interval must be positive")
	}
	if s.Sync.FailureLimit <= 0 {
		return fmt.Errorf("config: sync failureLimit must be positive")
	}
	return nil
}
