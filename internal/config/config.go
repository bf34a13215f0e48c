// Package config provides configuration loading for the sirsim server.
// It supports YAML files with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ServerConfig contains all sirsim-server settings.
type ServerConfig struct {
	// Addr is the TCP address the HTTP API listens on.
	Addr string `yaml:"addr"`

	// MetricsAddr is the HTTP address for Prometheus /metrics.
	MetricsAddr string `yaml:"metrics_addr"`

	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
	Limits  LimitsConfig  `yaml:"limits"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level sets the log verbosity: debug, info (default), warn, error.
	Level string `yaml:"level"`
	// Format selects the handler: text (default) or json.
	Format string `yaml:"format"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Exporter    string  `yaml:"exporter"` // stdout | otlp
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// LimitsConfig bounds what simulation requests the server accepts.
// Requests above the limits are rejected as usage errors before any
// simulation work starts.
type LimitsConfig struct {
	MaxNodes int `yaml:"max_nodes"`
	MaxSteps int `yaml:"max_steps"`
}

// Default returns the configuration used when no file is given.
func Default() ServerConfig {
	return ServerConfig{
		Addr:        ":8080",
		MetricsAddr: ":9090",
		Logging:     LoggingConfig{Level: "info", Format: "text"},
		Tracing: TracingConfig{
			ServiceName: "sirsim-api",
			Exporter:    "stdout",
			SampleRatio: 1.0,
		},
		Limits: LimitsConfig{
			MaxNodes: 10000,
			MaxSteps: 10000,
		},
	}
}

// Load reads configuration from the YAML file at path, starting from
// defaults and finishing with environment overrides. An empty path
// skips the file and still applies defaults and environment.
func Load(path string) (ServerConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv lets deployment environments override file settings without
// editing the file.
func applyEnv(cfg *ServerConfig) {
	if v := os.Getenv("SIRSIM_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("SIRSIM_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("SIRSIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SIRSIM_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SIRSIM_MAX_NODES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Limits.MaxNodes = n
		}
	}
	if v := os.Getenv("SIRSIM_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Limits.MaxSteps = n
		}
	}
}
