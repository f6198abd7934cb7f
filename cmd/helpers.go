package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-ops/netplan/internal/payload"
	"github.com/meridian-ops/netplan/internal/store"
)

// loadPayload reads and decodes an invocation payload from a file, or stdin
// when path is "-".
func loadPayload(path string) (*payload.Payload, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "read payload %s", path)
	}
	return payload.Parse(data)
}

// plannerDefaults maps the app config to payload defaults.
func plannerDefaults() payload.Defaults {
	p := cfg.Planner
	return payload.Defaults{
		MaxUtilization:          p.MaxUtilization,
		MinUtilization:          p.MinUtilization,
		ServiceLevelRequirement: p.ServiceLevelRequirement,
		MaxDistanceMiles:        p.MaxDistanceMiles,
		CostPerMile:             p.CostPerMile,
		LeaseYears:              p.LeaseYears,
		OpenLagYears:            p.OpenLagYears,
		Weights:                 p.Weights,
	}
}

// openStore opens the configured run-history backend.
func openStore(ctx context.Context) (store.Store, error) {
	var s store.Store
	var err error
	switch cfg.Store.Driver {
	case "postgres":
		s, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		s, err = store.NewSQLite(cfg.Store.Path)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// recordRun persists a finished run when a store is available. Persistence
// failures are logged, never fatal to the computation that already succeeded.
func recordRun(ctx context.Context, s store.Store, kind string, result any, runErr error) {
	if s == nil {
		return
	}
	id, err := s.CreateRun(ctx, kind)
	if err != nil {
		zap.L().Warn("store: create run failed", zap.Error(err))
		return
	}
	if runErr != nil {
		if err := s.FailRun(ctx, id, runErr.Error()); err != nil {
			zap.L().Warn("store: fail run failed", zap.String("run_id", id), zap.Error(err))
		}
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		zap.L().Warn("store: marshal result failed", zap.String("run_id", id), zap.Error(err))
		return
	}
	if err := s.CompleteRun(ctx, id, string(data)); err != nil {
		zap.L().Warn("store: complete run failed", zap.String("run_id", id), zap.Error(err))
		return
	}
	zap.L().Info("run recorded", zap.String("run_id", id), zap.String("kind", kind))
}
