package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123"

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "escrowd.toml", `RPCAddress = "127.0.0.1:9000"
EventLogPath = "/tmp/events.db"
PausedModules = ["bank"]

[storage]
Backend = "bolt"
Path = "/tmp/state.bolt"

[auth]
JWTSecret = "`+testSecret+`"
Issuer = "lending-ops"
Leeway = "45s"

[rate_limit]
RequestsPerSecond = 2.5
Burst = 5

[claims]
Backend = "evm"
EVMEndpoint = "http://127.0.0.1:8546"
Contract = "0x00000000000000000000000000000000000c1a11"
CallTimeout = "2s"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "127.0.0.1:9000" {
		t.Fatalf("unexpected rpc address %q", cfg.RPCAddress)
	}
	if cfg.Storage.Backend != "bolt" || cfg.Storage.Path != "/tmp/state.bolt" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Auth.Leeway.Duration != 45*time.Second || cfg.Auth.Issuer != "lending-ops" {
		t.Fatalf("unexpected auth %+v", cfg.Auth)
	}
	if cfg.RateLimit.RequestsPerSecond != 2.5 || cfg.RateLimit.Burst != 5 {
		t.Fatalf("unexpected rate limit %+v", cfg.RateLimit)
	}
	if cfg.Claims.Backend != ClaimsEVM || cfg.Claims.CallTimeout.Duration != 2*time.Second {
		t.Fatalf("unexpected claims %+v", cfg.Claims)
	}
	if len(cfg.PausedModules) != 1 || cfg.PausedModules[0] != "bank" {
		t.Fatalf("unexpected paused modules %v", cfg.PausedModules)
	}
	if cfg.ReadTimeout.Duration != 15*time.Second {
		t.Fatalf("default read timeout not applied: %v", cfg.ReadTimeout)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "escrowd.yaml", `rpc_address: ":7000"
storage:
  backend: memory
auth:
  jwt_secret: `+testSecret+`
  leeway: 10s
log:
  level: debug
  environment: staging
telemetry:
  traces: true
  sample_ratio: 0.5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":7000" || cfg.Storage.Backend != "memory" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Auth.Leeway.Duration != 10*time.Second {
		t.Fatalf("unexpected leeway %v", cfg.Auth.Leeway)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Environment != "staging" {
		t.Fatalf("unexpected log config %+v", cfg.Log)
	}
	if !cfg.Telemetry.Traces || cfg.Telemetry.SampleRatio != 0.5 {
		t.Fatalf("unexpected telemetry %+v", cfg.Telemetry)
	}
	if cfg.Claims.Backend != ClaimsNative {
		t.Fatalf("default claims backend not applied")
	}
}

func TestLoadYAMLRejectsUnknownField(t *testing.T) {
	path := writeFile(t, "escrowd.yml", "rpc_adress: \":7000\"\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestLoadTOMLRejectsUnknownKey(t *testing.T) {
	path := writeFile(t, "escrowd.toml", "RPCAdress = \":7000\"\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestEnvOverridesSecret(t *testing.T) {
	t.Setenv(EnvJWTSecret, "environment-secret-value")
	path := writeFile(t, "escrowd.toml", "[storage]\nBackend = \"memory\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.JWTSecret != "environment-secret-value" {
		t.Fatalf("env secret not applied")
	}
}

func TestLoadCreatesDefaultTOML(t *testing.T) {
	t.Setenv(EnvJWTSecret, testSecret)
	path := filepath.Join(t.TempDir(), "nested", "escrowd.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	if cfg.RPCAddress != ":8545" || cfg.Storage.Backend != "leveldb" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if strings.Contains(string(data), testSecret) {
		t.Fatalf("secret persisted to disk")
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload default: %v", err)
	}
	if reloaded.ReadTimeout.Duration != cfg.ReadTimeout.Duration {
		t.Fatalf("durations did not round trip")
	}
}

func TestMissingYAMLFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing yaml")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Auth.JWTSecret = testSecret
		return &cfg
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "defaults", mutate: func(*Config) {}, ok: true},
		{name: "short secret", mutate: func(c *Config) { c.Auth.JWTSecret = "short" }},
		{name: "bad backend", mutate: func(c *Config) { c.Storage.Backend = "rocksdb" }},
		{name: "negative burst", mutate: func(c *Config) { c.RateLimit.Burst = -1 }},
		{name: "bad custody", mutate: func(c *Config) { c.CustodyAddress = "not-an-address" }},
		{name: "hex custody", mutate: func(c *Config) { c.CustodyAddress = "0x00000000000000000000000000000000000000cc" }, ok: true},
		{name: "evm without endpoint", mutate: func(c *Config) {
			c.Claims.Backend = ClaimsEVM
			c.Claims.Contract = "0x00000000000000000000000000000000000c1a11"
		}},
		{name: "evm bad contract", mutate: func(c *Config) {
			c.Claims.Backend = ClaimsEVM
			c.Claims.EVMEndpoint = "http://localhost:8546"
			c.Claims.Contract = "nope"
		}},
		{name: "unknown claims backend", mutate: func(c *Config) { c.Claims.Backend = "ipfs" }},
		{name: "sample ratio", mutate: func(c *Config) { c.Telemetry.SampleRatio = 1.5 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
