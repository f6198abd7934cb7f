package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meridian-ops/netplan/internal/config"
	"github.com/meridian-ops/netplan/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestLoadPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"forecast": [{"year": 2025, "annual_units": 1000}],
		"facilities": [{"id": "f1", "base_capacity": 500}]
	}`), 0644))

	p, err := loadPayload(path)
	require.NoError(t, err)
	assert.Len(t, p.Forecast, 1)
	assert.Equal(t, "f1", p.Facilities[0].ID)

	_, err = loadPayload(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoadPayloadStdin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stdin.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"forecast": [{"year": 2025, "annual_units": 1000}],
		"facilities": [{"id": "f1", "base_capacity": 500}]
	}`), 0644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	orig := os.Stdin
	os.Stdin = f
	t.Cleanup(func() { os.Stdin = orig })

	p, err := loadPayload("-")
	require.NoError(t, err)
	assert.Len(t, p.Forecast, 1)
	assert.Equal(t, "f1", p.Facilities[0].ID)
}

func TestPlannerDefaults(t *testing.T) {
	cfg = &config.Config{Planner: config.PlannerConfig{
		MaxUtilization:          0.85,
		MinUtilization:          0.40,
		ServiceLevelRequirement: 0.95,
		MaxDistanceMiles:        500,
		CostPerMile:             2.5,
		LeaseYears:              3,
		OpenLagYears:            1,
		Weights:                 model.Weights{Cost: 0.5, ServiceLevel: 0.3, Utilization: 0.2},
	}}

	def := plannerDefaults()
	assert.InDelta(t, 0.85, def.MaxUtilization, 1e-9)
	assert.InDelta(t, 2.5, def.CostPerMile, 1e-9)
	assert.Equal(t, 3, def.LeaseYears)
	assert.Equal(t, 1, def.OpenLagYears)
	assert.Equal(t, cfg.Planner.Weights, def.Weights)
}

func TestOpenStoreSQLite(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}}

	s, err := openStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	defer s.Close() //nolint:errcheck

	id, err := s.CreateRun(context.Background(), "optimize")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestRecordRunRoundTrip(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}}
	s, err := openStore(context.Background())
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	ctx := context.Background()
	recordRun(ctx, s, "optimize", map[string]int{"total": 42}, nil)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "done", runs[0].Status)
	assert.Contains(t, runs[0].Result, "42")

	recordRun(ctx, s, "sweep", nil, assert.AnError)
	runs, err = s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	var failed bool
	for _, r := range runs {
		if r.Status == "failed" {
			failed = true
			assert.NotEmpty(t, r.Error)
		}
	}
	assert.True(t, failed)

	// Nil store is a no-op, not a panic.
	recordRun(ctx, nil, "optimize", nil, nil)
}

func TestJSONRawPassthrough(t *testing.T) {
	out, err := json.Marshal(jsonRaw(`{"already":"encoded"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"already":"encoded"}`, string(out))
}
