package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so both TOML and YAML files can use human
// readable strings such as "30s".
type Duration struct {
	time.Duration
}

func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	return parsed, nil
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	parsed, err := parseDuration(value.Value)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// StorageConfig selects the key-value backend for ledger state.
type StorageConfig struct {
	Backend string `toml:"Backend" yaml:"backend"`
	Path    string `toml:"Path" yaml:"path"`
}

// AuthConfig controls bearer token verification on the RPC surface.
type AuthConfig struct {
	JWTSecret string   `toml:"JWTSecret" yaml:"jwt_secret"`
	Issuer    string   `toml:"Issuer" yaml:"issuer"`
	Audience  string   `toml:"Audience" yaml:"audience"`
	Leeway    Duration `toml:"Leeway" yaml:"leeway"`
}

// RateLimitConfig bounds requests per caller.
type RateLimitConfig struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond" yaml:"requests_per_second"`
	Burst             int     `toml:"Burst" yaml:"burst"`
}

// ClaimsConfig selects where claim ownership is read from.
type ClaimsConfig struct {
	Backend     string   `toml:"Backend" yaml:"backend"`
	EVMEndpoint string   `toml:"EVMEndpoint" yaml:"evm_endpoint"`
	Contract    string   `toml:"Contract" yaml:"contract"`
	CallTimeout Duration `toml:"CallTimeout" yaml:"call_timeout"`
}

// LogConfig tunes the structured logger.
type LogConfig struct {
	Level       string `toml:"Level" yaml:"level"`
	Environment string `toml:"Environment" yaml:"environment"`
	// File additionally writes logs to a size-rotated file.
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"max_size_mb"`
	MaxBackups int    `toml:"MaxBackups" yaml:"max_backups"`
}

// TelemetryConfig configures OTLP export.
type TelemetryConfig struct {
	Endpoint    string  `toml:"Endpoint" yaml:"endpoint"`
	Insecure    bool    `toml:"Insecure" yaml:"insecure"`
	Headers     string  `toml:"Headers" yaml:"headers"`
	Traces      bool    `toml:"Traces" yaml:"traces"`
	Metrics     bool    `toml:"Metrics" yaml:"metrics"`
	SampleRatio float64 `toml:"SampleRatio" yaml:"sample_ratio"`
}
