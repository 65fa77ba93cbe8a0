package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/punnkam/private-lending/config"
	"github.com/punnkam/private-lending/core"
	"github.com/punnkam/private-lending/core/events"
	"github.com/punnkam/private-lending/crypto"
	"github.com/punnkam/private-lending/integrations/evmclaims"
	"github.com/punnkam/private-lending/native/common"
	"github.com/punnkam/private-lending/native/escrow"
	"github.com/punnkam/private-lending/observability"
	"github.com/punnkam/private-lending/storage"
	"github.com/punnkam/private-lending/storage/eventlog"
)

// buildNode opens storage, the event log and the claim registry selected by
// cfg and assembles a node over them.
func buildNode(cfg *config.Config, logger *slog.Logger) (*core.Node, error) {
	if err := ensureParent(cfg.Storage.Path); err != nil {
		return nil, err
	}
	db, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	var log *eventlog.Log
	if path := strings.TrimSpace(cfg.EventLogPath); path != "" {
		if err := ensureParent(path); err != nil {
			db.Close()
			return nil, err
		}
		log, err = eventlog.Open(path)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("open event log: %w", err)
		}
		log.SetLogger(logger)
	}

	registry, err := buildRegistry(cfg.Claims)
	if err != nil {
		closeAll(db, log)
		return nil, err
	}

	var custody [20]byte
	if cfg.CustodyAddress != "" {
		custody, err = crypto.ParseAddress(cfg.CustodyAddress)
		if err != nil {
			closeAll(db, log)
			return nil, fmt.Errorf("custody address: %w", err)
		}
	}

	node, err := core.NewNode(core.NodeOptions{
		DB:        db,
		Custody:   custody,
		Registry:  registry,
		EventLog:  log,
		Emitters:  []events.Emitter{observability.Events()},
		Observers: []escrow.Observer{observability.Escrow()},
		Pauses:    common.NewPauses(cfg.PausedModules...),
		Logger:    logger,
	})
	if err != nil {
		closeAll(db, log)
		return nil, err
	}
	return node, nil
}

// buildRegistry returns nil for the native backend so the node uses its own
// registry.
func buildRegistry(cfg config.ClaimsConfig) (escrow.ClaimRegistry, error) {
	switch cfg.Backend {
	case "", config.ClaimsNative:
		return nil, nil
	case config.ClaimsEVM:
		client, err := evmclaims.Dial(cfg.EVMEndpoint)
		if err != nil {
			return nil, err
		}
		registry, err := evmclaims.NewRegistry(client, ethcommon.HexToAddress(cfg.Contract), cfg.CallTimeout.Duration)
		if err != nil {
			client.Close()
			return nil, err
		}
		return registry, nil
	default:
		return nil, fmt.Errorf("claims: unsupported backend %q", cfg.Backend)
	}
}

func ensureParent(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

func closeAll(db storage.Database, log *eventlog.Log) {
	if log != nil {
		_ = log.Close()
	}
	db.Close()
}
