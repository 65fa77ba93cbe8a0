package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/punnkam/private-lending/crypto"
	"github.com/punnkam/private-lending/storage"
)

// MinJWTSecretLength is the shortest accepted HMAC secret.
const MinJWTSecretLength = 16

// Validate checks the configuration for values the node cannot start with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case storage.BackendMemory, storage.BackendLevelDB, storage.BackendBolt:
	default:
		return fmt.Errorf("storage: unsupported backend %q", cfg.Storage.Backend)
	}
	if len(cfg.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth: jwt secret must be at least %d bytes (set %s)", MinJWTSecretLength, EnvJWTSecret)
	}
	if cfg.RateLimit.RequestsPerSecond < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must not be negative")
	}
	if cfg.CustodyAddress != "" {
		if _, err := crypto.ParseAddress(cfg.CustodyAddress); err != nil {
			return fmt.Errorf("custody_address: %w", err)
		}
	}
	switch cfg.Claims.Backend {
	case ClaimsNative:
	case ClaimsEVM:
		if strings.TrimSpace(cfg.Claims.EVMEndpoint) == "" {
			return fmt.Errorf("claims: evm_endpoint required for evm backend")
		}
		if !common.IsHexAddress(cfg.Claims.Contract) {
			return fmt.Errorf("claims: contract must be a 0x address")
		}
	default:
		return fmt.Errorf("claims: unsupported backend %q", cfg.Claims.Backend)
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample_ratio must be within [0,1]")
	}
	return nil
}
