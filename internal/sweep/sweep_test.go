package sweep

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-ops/netplan/internal/model"
	"github.com/meridian-ops/netplan/internal/optimizer"
	"github.com/meridian-ops/netplan/internal/registry"
)

func testRegistry(t *testing.T, n int) *registry.Registry {
	t.Helper()
	fs := make([]model.Facility, 0, n)
	for i := 0; i < n; i++ {
		fs = append(fs, model.Facility{
			ID:               fmt.Sprintf("site-%02d", i+1),
			BaseCapacity:     1000,
			FixedCostPerYear: float64(100000 * (i + 1)),
			Kind:             model.FacilityCandidate,
		})
	}
	reg, err := registry.New(fs)
	require.NoError(t, err)
	return reg
}

func testBase(distance float64) optimizer.Input {
	return optimizer.Input{
		Years:  []int{2025},
		Demand: map[int]map[string]float64{2025: {"d1": 800}},
		Cost: func(string, string) (float64, float64, bool) {
			return 1.0, distance, true
		},
		Config: optimizer.Config{
			LeaseYears:              3,
			MaxUtilization:          0.85,
			MinUtilization:          0.40,
			ServiceLevelRequirement: 0.95,
			MaxDistanceMiles:        500,
		},
	}
}

func TestRunCoversRangeAndPicksCheapest(t *testing.T) {
	t.Parallel()

	res, err := Run(context.Background(), Input{
		MinNodes:    1,
		MaxNodes:    3,
		Concurrency: 2,
		Registry:    testRegistry(t, 3),
		Base:        testBase(100),
	})
	require.NoError(t, err)
	require.Len(t, res.Scenarios, 3)

	for i, s := range res.Scenarios {
		assert.Equal(t, i+1, s.Nodes, "scenarios merge in node order")
		assert.Empty(t, s.Err)
		require.NotNil(t, s.Result)
	}

	require.NotNil(t, res.Best)
	assert.False(t, res.BelowServiceFloor)

	// Best must be the cheapest scenario meeting the service floor.
	for _, s := range res.Scenarios {
		if s.KPIs.WeightedServiceLevel >= 0.95 {
			assert.LessOrEqual(t, res.Best.KPIs.TotalNetworkCost, s.KPIs.TotalNetworkCost)
		}
	}
}

func TestRunClampsMaxNodesToRegistry(t *testing.T) {
	t.Parallel()

	res, err := Run(context.Background(), Input{
		MinNodes: 1,
		MaxNodes: 10,
		Registry: testRegistry(t, 2),
		Base:     testBase(100),
	})
	require.NoError(t, err)
	assert.Len(t, res.Scenarios, 2)
}

func TestRunBelowServiceFloorFallback(t *testing.T) {
	t.Parallel()

	// Every facility sits beyond the distance limit: no scenario can meet
	// the service requirement, so the flagged fallback applies.
	res, err := Run(context.Background(), Input{
		MinNodes: 1,
		MaxNodes: 2,
		Registry: testRegistry(t, 2),
		Base:     testBase(900),
	})
	require.NoError(t, err)

	require.NotNil(t, res.Best)
	assert.True(t, res.BelowServiceFloor)
	assert.Less(t, res.Best.KPIs.WeightedServiceLevel, 0.95)
	for _, s := range res.Scenarios {
		assert.GreaterOrEqual(t, res.Best.KPIs.WeightedServiceLevel, s.KPIs.WeightedServiceLevel)
	}
}

func TestRunCapacityExceededEverywhere(t *testing.T) {
	t.Parallel()

	// Demand outstrips the fully built-out network in every configuration:
	// scenarios stay degraded data, never failures.
	reg, err := registry.New([]model.Facility{
		{ID: "small-1", BaseCapacity: 500, FixedCostPerYear: 100000, Kind: model.FacilityCandidate},
		{ID: "small-2", BaseCapacity: 500, FixedCostPerYear: 120000, Kind: model.FacilityCandidate},
	})
	require.NoError(t, err)

	base := testBase(100)
	base.Demand = map[int]map[string]float64{2025: {"d1": 5000}}

	res, err := Run(context.Background(), Input{
		MinNodes: 1,
		MaxNodes: 2,
		Registry: reg,
		Base:     base,
	})
	require.NoError(t, err)
	require.Len(t, res.Scenarios, 2)

	for _, s := range res.Scenarios {
		assert.Empty(t, s.Err)
		require.NotNil(t, s.Result)
		assert.Greater(t, s.Result.Totals.Unserved, 0.0)
		assert.True(t, s.Result.PerYear[0].Totals.DegradedService)
	}

	require.NotNil(t, res.Best)
	assert.True(t, res.BelowServiceFloor)
	assert.Less(t, res.Best.KPIs.WeightedServiceLevel, 0.95)
}

func TestRunValidatesParameters(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, 2)
	tests := []struct {
		name string
		in   Input
	}{
		{"zero min nodes", Input{MinNodes: 0, MaxNodes: 2, Registry: reg, Base: testBase(100)}},
		{"max below min", Input{MinNodes: 3, MaxNodes: 2, Registry: reg, Base: testBase(100)}},
		{"nil registry", Input{MinNodes: 1, MaxNodes: 2, Base: testBase(100)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Run(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, model.IsConfigurationError(err))
		})
	}
}

func TestRunCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Input{
		MinNodes: 1,
		MaxNodes: 3,
		Registry: testRegistry(t, 3),
		Base:     testBase(100),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunDeterministic(t *testing.T) {
	t.Parallel()

	in := Input{
		MinNodes:    1,
		MaxNodes:    4,
		Concurrency: 4,
		Registry:    testRegistry(t, 4),
		Base:        testBase(100),
		Weights:     model.Weights{Cost: 0.5, ServiceLevel: 0.3, Utilization: 0.2},
	}

	first, err := Run(context.Background(), in)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := Run(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, first.Scenarios, again.Scenarios, "concurrent sweeps must merge identically")
		assert.Equal(t, first.Best.Nodes, again.Best.Nodes)
	}
}

func TestPickBestSkipsFailedScenarios(t *testing.T) {
	t.Parallel()

	res := &model.SweepResult{Scenarios: []model.ScenarioScore{
		{Nodes: 1, Err: "structurally infeasible in year 2025: boom"},
		{Nodes: 2, KPIs: model.KPIs{TotalNetworkCost: 100, WeightedServiceLevel: 0.99}},
		{Nodes: 3, KPIs: model.KPIs{TotalNetworkCost: 90, WeightedServiceLevel: 0.80}},
	}}
	pickBest(res, 0.95)

	require.NotNil(t, res.Best)
	assert.Equal(t, 2, res.Best.Nodes, "failed and below-floor scenarios are excluded")
	assert.False(t, res.BelowServiceFloor)
}

func TestPickBestAllFailed(t *testing.T) {
	t.Parallel()

	res := &model.SweepResult{Scenarios: []model.ScenarioScore{
		{Nodes: 1, Err: "bad"},
		{Nodes: 2, Err: "worse"},
	}}
	pickBest(res, 0.95)
	assert.Nil(t, res.Best)
}

func TestBlendScores(t *testing.T) {
	t.Parallel()

	res := &model.SweepResult{Scenarios: []model.ScenarioScore{
		{Nodes: 1, KPIs: model.KPIs{TotalNetworkCost: 100, WeightedServiceLevel: 1.0, AvgUtilization: 0.75}},
		{Nodes: 2, KPIs: model.KPIs{TotalNetworkCost: 200, WeightedServiceLevel: 1.0, AvgUtilization: 0.75}},
		{Nodes: 3, Err: "failed"},
	}}
	BlendScores(res, model.Weights{Cost: 0.5, ServiceLevel: 0.3, Utilization: 0.2})

	// Cheapest scenario with perfect service and balanced utilization scores 1.
	assert.InDelta(t, 1.0, res.Scenarios[0].KPIs.BlendedScore, 1e-9)
	assert.Greater(t, res.Scenarios[0].KPIs.BlendedScore, res.Scenarios[1].KPIs.BlendedScore)
	assert.Zero(t, res.Scenarios[2].KPIs.BlendedScore, "failed scenarios are never scored")
}

func TestBlendScoresZeroWeightsNoop(t *testing.T) {
	t.Parallel()

	res := &model.SweepResult{Scenarios: []model.ScenarioScore{
		{Nodes: 1, KPIs: model.KPIs{TotalNetworkCost: 100}},
	}}
	BlendScores(res, model.Weights{})
	assert.Zero(t, res.Scenarios[0].KPIs.BlendedScore)
}
