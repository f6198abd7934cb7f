package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "netplan.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Sweep.Concurrency)
	assert.InDelta(t, 0.85, cfg.Planner.MaxUtilization, 0.001)
	assert.InDelta(t, 0.40, cfg.Planner.MinUtilization, 0.001)
	assert.InDelta(t, 0.95, cfg.Planner.ServiceLevelRequirement, 0.001)
	assert.InDelta(t, 500.0, cfg.Planner.MaxDistanceMiles, 0.001)
	assert.InDelta(t, 2.5, cfg.Planner.CostPerMile, 0.001)
	assert.Equal(t, 3, cfg.Planner.LeaseYears)
	assert.Equal(t, 0, cfg.Planner.OpenLagYears)
	assert.InDelta(t, 0.5, cfg.Planner.Weights.Cost, 0.001)
	assert.InDelta(t, 0.3, cfg.Planner.Weights.ServiceLevel, 0.001)
	assert.InDelta(t, 0.2, cfg.Planner.Weights.Utilization, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/netplan
log:
  level: debug
  format: console
planner:
  lease_years: 5
  max_utilization: 0.9
sweep:
  concurrency: 8
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/netplan", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 5, cfg.Planner.LeaseYears)
	assert.InDelta(t, 0.9, cfg.Planner.MaxUtilization, 0.001)
	assert.Equal(t, 8, cfg.Sweep.Concurrency)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.40, cfg.Planner.MinUtilization, 0.001)
	assert.InDelta(t, 2.5, cfg.Planner.CostPerMile, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("NETPLAN_STORE_DRIVER", "postgres")
	t.Setenv("NETPLAN_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{"json info", LogConfig{Level: "info", Format: "json"}, false},
		{"console debug", LogConfig{Level: "debug", Format: "console"}, false},
		{"bad level", LogConfig{Level: "loud", Format: "json"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := InitLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, zap.L())
		})
	}
	zap.ReplaceGlobals(zap.NewNop())
}
