package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvJWTSecret overrides Auth.JWTSecret when set.
const EnvJWTSecret = "ESCROW_JWT_SECRET"

// Claim registry backends.
const (
	ClaimsNative = "native"
	ClaimsEVM    = "evm"
)

// Config is the escrowd node configuration.
type Config struct {
	RPCAddress     string          `toml:"RPCAddress" yaml:"rpc_address"`
	ReadTimeout    Duration        `toml:"ReadTimeout" yaml:"read_timeout"`
	WriteTimeout   Duration        `toml:"WriteTimeout" yaml:"write_timeout"`
	CORSOrigins    []string        `toml:"CORSOrigins" yaml:"cors_origins"`
	Storage        StorageConfig   `toml:"storage" yaml:"storage"`
	EventLogPath   string          `toml:"EventLogPath" yaml:"event_log"`
	CustodyAddress string          `toml:"CustodyAddress" yaml:"custody_address"`
	PausedModules  []string        `toml:"PausedModules" yaml:"paused_modules"`
	Auth           AuthConfig      `toml:"auth" yaml:"auth"`
	RateLimit      RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
	Claims         ClaimsConfig    `toml:"claims" yaml:"claims"`
	Log            LogConfig       `toml:"log" yaml:"log"`
	Telemetry      TelemetryConfig `toml:"telemetry" yaml:"telemetry"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads the configuration at path. YAML is used for .yaml and .yml files,
// TOML otherwise. A missing TOML file is created with defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if isYAML(path) {
			return nil, fmt.Errorf("config file %s not found", path)
		}
		return createDefault(path)
	}

	if isYAML(path) {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		dec := yaml.NewDecoder(file)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
		}
	}

	applyDefaults(cfg)
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8545"
	}
	if cfg.ReadTimeout.Duration == 0 {
		cfg.ReadTimeout.Duration = 15 * time.Second
	}
	if cfg.WriteTimeout.Duration == 0 {
		cfg.WriteTimeout.Duration = 15 * time.Second
	}
	if strings.TrimSpace(cfg.Storage.Backend) == "" {
		cfg.Storage.Backend = "leveldb"
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		cfg.Storage.Path = "./escrow-data/state"
	}
	if strings.TrimSpace(cfg.EventLogPath) == "" {
		cfg.EventLogPath = "./escrow-data/events.db"
	}
	if cfg.Auth.Leeway.Duration == 0 {
		cfg.Auth.Leeway.Duration = 30 * time.Second
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 20
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 40
	}
	if strings.TrimSpace(cfg.Claims.Backend) == "" {
		cfg.Claims.Backend = ClaimsNative
	}
	if cfg.Claims.CallTimeout.Duration == 0 {
		cfg.Claims.CallTimeout.Duration = 5 * time.Second
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
}

func applyEnv(cfg *Config) {
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
}

// createDefault writes a default TOML configuration file and returns it. The
// JWT secret is left empty and must come from the environment.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, &cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
