// Package model holds the planner's domain types: facilities, demand,
// per-year facility state, allocation output, and the multi-year network
// result shared by the optimizer, sweep driver, and financial analyzer.
package model

import (
	"sort"

	"github.com/twpayne/go-geom"
)

// FacilityKind distinguishes sites already under lease from candidate sites.
type FacilityKind string

const (
	FacilityExisting  FacilityKind = "existing"
	FacilityCandidate FacilityKind = "candidate"
)

// FacilityStatus is the per-year lifecycle state of a facility.
type FacilityStatus string

const (
	StatusClosed    FacilityStatus = "closed"
	StatusOpening   FacilityStatus = "opening"
	StatusOpen      FacilityStatus = "open"
	StatusExpanding FacilityStatus = "expanding"
)

// ExpansionTier is a discrete, priced increment of capacity addable to an
// already-open facility. Tiers apply in order.
type ExpansionTier struct {
	Name              string  `json:"name"`
	CapacityIncrement float64 `json:"capacity_increment"`
	FixedCostPerYear  float64 `json:"fixed_cost_per_year"`
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Coord returns the location as a go-geom coordinate (x=lng, y=lat).
func (l LatLng) Coord() geom.Coord {
	return geom.Coord{l.Lng, l.Lat}
}

// Facility is an immutable candidate site record owned by the registry.
type Facility struct {
	ID               string          `json:"id"`
	Name             string          `json:"name,omitempty"`
	Location         LatLng          `json:"location"`
	BaseCapacity     float64         `json:"base_capacity"`
	FixedCostPerYear float64         `json:"fixed_cost_per_year"`
	Tiers            []ExpansionTier `json:"expansion_tiers,omitempty"`
	Kind             FacilityKind    `json:"kind"`
	Mandatory        bool            `json:"mandatory,omitempty"`
}

// MaxCapacity returns base capacity plus every expansion tier.
func (f Facility) MaxCapacity() float64 {
	c := f.BaseCapacity
	for _, t := range f.Tiers {
		c += t.CapacityIncrement
	}
	return c
}

// CostPerUnit returns annual fixed cost per unit of base capacity, used as
// the deterministic ranking key for opening decisions and top-N selection.
func (f Facility) CostPerUnit() float64 {
	if f.BaseCapacity <= 0 {
		return 0
	}
	return f.FixedCostPerYear / f.BaseCapacity
}

// DemandRecord is one (destination, year) demand observation.
type DemandRecord struct {
	Destination string  `json:"destination"`
	Year        int     `json:"year"`
	Volume      float64 `json:"volume"`
}

// FacilityYearState is the optimizer-owned state of one facility in one year.
// Only the optimizer's year-advance step mutates it.
type FacilityYearState struct {
	FacilityID          string         `json:"facility_id"`
	Year                int            `json:"year"`
	Status              FacilityStatus `json:"status"`
	ActiveCapacity      float64        `json:"active_capacity"`
	LeaseOpenedYear     int            `json:"lease_opened_year,omitempty"`
	LeaseYearsCommitted int            `json:"lease_years_committed,omitempty"`
	TiersApplied        int            `json:"tiers_applied,omitempty"`
}

// LeaseEligible reports whether the facility may transition to closed in the
// given year: the lease commitment must have fully elapsed.
func (s FacilityYearState) LeaseEligible(year int) bool {
	if s.Status == StatusClosed {
		return false
	}
	return year-s.LeaseOpenedYear >= s.LeaseYearsCommitted
}

// Assignment maps one destination's volume (or part of it) to a facility for
// one year. Derived fresh each year by the allocator; never carried across years.
type Assignment struct {
	Destination       string  `json:"destination"`
	FacilityID        string  `json:"facility_id"`
	Year              int     `json:"year"`
	VolumeAssigned    float64 `json:"volume_assigned"`
	DistanceMiles     float64 `json:"distance_miles"`
	OutOfServiceLevel bool    `json:"out_of_service_level,omitempty"`
}

// FacilityMetrics summarizes one facility's year from the allocator's view.
type FacilityMetrics struct {
	FacilityID    string  `json:"facility_id"`
	Demand        float64 `json:"demand"`
	Capacity      float64 `json:"capacity"`
	Utilization   float64 `json:"utilization"`
	AvgDistance   float64 `json:"avg_distance"`
	TransportCost float64 `json:"transport_cost"`
	FixedCost     float64 `json:"fixed_cost"`
}

// YearTotals aggregates one year of the network.
type YearTotals struct {
	TransportCost   float64 `json:"transportation_cost"`
	FacilityCost    float64 `json:"facility_cost"`
	TotalCost       float64 `json:"total_cost"`
	Demand          float64 `json:"demand"`
	DemandServed    float64 `json:"demand_served"`
	Unserved        float64 `json:"unserved"`
	ServiceLevel    float64 `json:"service_level"`
	AvgUtilization  float64 `json:"avg_utilization"`
	DegradedService bool    `json:"degraded_service,omitempty"`
}

// YearResult is the finalized outcome of one planning year. Immutable once
// the optimizer finalizes the year.
type YearResult struct {
	Year            int                 `json:"year"`
	OpenFacilities  []string            `json:"open_facilities"`
	States          []FacilityYearState `json:"states"`
	Assignments     []Assignment        `json:"assignments"`
	FacilityMetrics []FacilityMetrics   `json:"facility_metrics"`
	Totals          YearTotals          `json:"totals"`
}

// NetworkTotals aggregates cost and service across the whole horizon.
type NetworkTotals struct {
	TransportCost        float64 `json:"transport_cost"`
	FacilityCost         float64 `json:"warehouse_cost"`
	TotalCost            float64 `json:"total_network_cost_all_years"`
	Demand               float64 `json:"demand"`
	DemandServed         float64 `json:"demand_served"`
	Unserved             float64 `json:"unserved"`
	WeightedServiceLevel float64 `json:"weighted_service_level"`
	AvgUtilization       float64 `json:"avg_utilization"`
	Sanitized            bool    `json:"sanitized,omitempty"`
}

// NetworkResult is the optimizer's full output: one YearResult per input
// year, in order, plus horizon totals.
type NetworkResult struct {
	PerYear    []YearResult     `json:"per_year"`
	OpenByYear map[int][]string `json:"open_by_year"`
	Totals     NetworkTotals    `json:"totals"`
}

// KPIs are the sweep driver's per-scenario comparison metrics.
type KPIs struct {
	TotalNetworkCost     float64 `json:"total_network_cost_all_years"`
	WeightedServiceLevel float64 `json:"weighted_service_level"`
	TransportCost        float64 `json:"transport_cost"`
	WarehouseCost        float64 `json:"warehouse_cost"`
	AvgUtilization       float64 `json:"avg_utilization"`
	BlendedScore         float64 `json:"blended_score"`
}

// ScenarioScore is one sweep parameter point: the node count, its KPIs, and
// the full network result. Err carries a per-scenario failure; failed
// scenarios never participate in best-selection.
type ScenarioScore struct {
	Nodes  int            `json:"nodes"`
	KPIs   KPIs           `json:"kpis"`
	Result *NetworkResult `json:"result,omitempty"`
	Err    string         `json:"error,omitempty"`
}

// SweepResult is the comparison table plus the selected best scenario.
type SweepResult struct {
	Scenarios []ScenarioScore `json:"scenarios"`
	Best      *ScenarioScore  `json:"best,omitempty"`
	// BelowServiceFloor is set when no scenario met the service requirement
	// and Best was chosen by highest service level instead of lowest cost.
	BelowServiceFloor bool `json:"below_service_floor,omitempty"`
}

// Weights blends cost, service level, and utilization into one scenario
// ranking score. Zero-value weights fall back to cost-only ranking.
type Weights struct {
	Cost         float64 `json:"cost" mapstructure:"cost"`
	ServiceLevel float64 `json:"service_level" mapstructure:"service_level"`
	Utilization  float64 `json:"utilization" mapstructure:"utilization"`
}

// SortFacilities orders facilities by id ascending, the tie-break order used
// everywhere determinism matters.
func SortFacilities(fs []Facility) {
	sort.Slice(fs, func(i, j int) bool { return fs[i].ID < fs[j].ID })
}
