package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacilityMaxCapacity(t *testing.T) {
	t.Parallel()

	f := Facility{
		BaseCapacity: 1000,
		Tiers: []ExpansionTier{
			{Name: "t1", CapacityIncrement: 500},
			{Name: "t2", CapacityIncrement: 250},
		},
	}
	assert.InDelta(t, 1750.0, f.MaxCapacity(), 1e-9)
	assert.InDelta(t, 100.0, Facility{BaseCapacity: 100}.MaxCapacity(), 1e-9)
}

func TestFacilityCostPerUnit(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 50.0, Facility{BaseCapacity: 1000, FixedCostPerYear: 50000}.CostPerUnit(), 1e-9)
	assert.Zero(t, Facility{FixedCostPerYear: 50000}.CostPerUnit(), "zero capacity never divides")
}

func TestLeaseEligible(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    FacilityYearState
		year int
		want bool
	}{
		{"mid lease", FacilityYearState{Status: StatusOpen, LeaseOpenedYear: 2025, LeaseYearsCommitted: 3}, 2027, false},
		{"lease elapsed", FacilityYearState{Status: StatusOpen, LeaseOpenedYear: 2025, LeaseYearsCommitted: 3}, 2028, true},
		{"beyond lease", FacilityYearState{Status: StatusOpen, LeaseOpenedYear: 2025, LeaseYearsCommitted: 3}, 2030, true},
		{"closed never eligible", FacilityYearState{Status: StatusClosed, LeaseOpenedYear: 2020, LeaseYearsCommitted: 3}, 2030, false},
		{"opening counts from signing", FacilityYearState{Status: StatusOpening, LeaseOpenedYear: 2025, LeaseYearsCommitted: 3}, 2028, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.s.LeaseEligible(tt.year))
		})
	}
}

func TestSortFacilities(t *testing.T) {
	t.Parallel()

	fs := []Facility{{ID: "c"}, {ID: "a"}, {ID: "b"}}
	SortFacilities(fs)
	assert.Equal(t, "a", fs[0].ID)
	assert.Equal(t, "b", fs[1].ID)
	assert.Equal(t, "c", fs[2].ID)
}

func TestSanitizeReplacesNonFiniteValues(t *testing.T) {
	t.Parallel()

	r := &NetworkResult{
		PerYear: []YearResult{{
			Year:        2025,
			Assignments: []Assignment{{VolumeAssigned: math.NaN(), DistanceMiles: math.Inf(1)}},
			FacilityMetrics: []FacilityMetrics{{
				Utilization: math.Inf(-1),
				AvgDistance: math.NaN(),
			}},
			States: []FacilityYearState{{ActiveCapacity: math.NaN()}},
			Totals: YearTotals{ServiceLevel: math.NaN(), TotalCost: 100},
		}},
		Totals: NetworkTotals{WeightedServiceLevel: math.Inf(1), TotalCost: 100},
	}
	r.Sanitize()

	assert.True(t, r.Totals.Sanitized)
	assert.Zero(t, r.PerYear[0].Assignments[0].VolumeAssigned)
	assert.Zero(t, r.PerYear[0].Assignments[0].DistanceMiles)
	assert.Zero(t, r.PerYear[0].FacilityMetrics[0].Utilization)
	assert.Zero(t, r.PerYear[0].FacilityMetrics[0].AvgDistance)
	assert.Zero(t, r.PerYear[0].States[0].ActiveCapacity)
	assert.Zero(t, r.PerYear[0].Totals.ServiceLevel)
	assert.Zero(t, r.Totals.WeightedServiceLevel)
	assert.InDelta(t, 100.0, r.Totals.TotalCost, 1e-9, "finite values pass through untouched")

	// The sanitized result must serialize as plain JSON numbers.
	_, err := json.Marshal(r)
	require.NoError(t, err)
}

func TestSanitizeCleanResultUnflagged(t *testing.T) {
	t.Parallel()

	r := &NetworkResult{
		PerYear: []YearResult{{Totals: YearTotals{TotalCost: 42}}},
		Totals:  NetworkTotals{TotalCost: 42},
	}
	r.Sanitize()
	assert.False(t, r.Totals.Sanitized)
}

func TestConfigurationErrorDetection(t *testing.T) {
	t.Parallel()

	err := NewConfigurationError("forecast.year", "duplicate year %d", 2025)
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "forecast.year")
	assert.Contains(t, err.Error(), "2025")

	wrapped := eris.Wrap(err, "loading payload")
	assert.True(t, IsConfigurationError(wrapped), "detection must survive wrapping")
	assert.False(t, IsConfigurationError(eris.New("unrelated")))
	assert.False(t, IsStructuralInfeasibility(err))
}

func TestStructuralInfeasibilityDetection(t *testing.T) {
	t.Parallel()

	err := &StructuralInfeasibilityError{Year: 2026, Reason: "no candidate facilities"}
	assert.True(t, IsStructuralInfeasibility(err))
	assert.Contains(t, err.Error(), "2026")

	wrapped := eris.Wrap(err, "optimizer")
	assert.True(t, IsStructuralInfeasibility(wrapped))
	assert.False(t, IsConfigurationError(wrapped))
}

func TestLatLngCoordConvention(t *testing.T) {
	t.Parallel()

	c := LatLng{Lat: 41.88, Lng: -87.63}.Coord()
	assert.InDelta(t, -87.63, c.X(), 1e-9, "x is longitude")
	assert.InDelta(t, 41.88, c.Y(), 1e-9, "y is latitude")
}
