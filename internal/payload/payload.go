// Package payload decodes and validates the optimizer invocation payload and
// turns it into a runnable optimizer input: demand by year, a candidate
// registry, and a deterministic transportation cost function.
//
// Validation is strict and front-loaded: malformed input is rejected with a
// field-level ConfigurationError before any planning year is processed.
package payload

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/meridian-ops/netplan/internal/alloc"
	"github.com/meridian-ops/netplan/internal/geodist"
	"github.com/meridian-ops/netplan/internal/model"
	"github.com/meridian-ops/netplan/internal/optimizer"
	"github.com/meridian-ops/netplan/internal/registry"
)

// ForecastYear is one year of aggregate demand in units.
type ForecastYear struct {
	Year        int     `json:"year"`
	AnnualUnits float64 `json:"annual_units"`
}

// SKU describes one product's packing profile, used to convert forecast
// units into pallet-equivalent capacity units.
type SKU struct {
	SKU            string  `json:"sku"`
	AnnualVolume   float64 `json:"annual_volume"`
	UnitsPerCase   float64 `json:"units_per_case"`
	CasesPerPallet float64 `json:"cases_per_pallet"`
}

// CostMatrix is an explicit origin×destination distance matrix in miles.
// Rows are facility ids, cols are destination names.
type CostMatrix struct {
	Rows []string    `json:"rows"`
	Cols []string    `json:"cols"`
	Cost [][]float64 `json:"cost"`
}

// Destination optionally carries coordinates so distances can be derived
// when no explicit matrix is supplied.
type Destination struct {
	Name     string       `json:"name"`
	Location model.LatLng `json:"location"`
}

// OptimizationConfig holds objective weights and utilization bounds.
type OptimizationConfig struct {
	Weights        model.Weights `json:"weights"`
	MaxUtilization float64       `json:"max_utilization,omitempty"`
	MinUtilization float64       `json:"min_utilization,omitempty"`
}

// TransportationConfig holds the network-shaping knobs.
type TransportationConfig struct {
	FixedCostPerFacility    float64  `json:"fixed_cost_per_facility,omitempty"`
	CostPerMile             float64  `json:"cost_per_mile,omitempty"`
	FlatCostPerUnit         float64  `json:"flat_cost_per_unit,omitempty"`
	ServiceLevelRequirement float64  `json:"service_level_requirement,omitempty"`
	MaxDistanceMiles        float64  `json:"max_distance_miles,omitempty"`
	RequiredFacilities      int      `json:"required_facilities,omitempty"`
	MaxFacilities           int      `json:"max_facilities,omitempty"`
	LeaseYears              int      `json:"lease_years,omitempty"`
	OpenLagYears            int      `json:"open_lag_years,omitempty"`
	MandatoryFacilities     []string `json:"mandatory_facilities,omitempty"`
}

// PlanConfig is the payload's config block.
type PlanConfig struct {
	Optimization   OptimizationConfig   `json:"optimization"`
	Transportation TransportationConfig `json:"transportation"`
}

// Payload is the full optimizer invocation input.
type Payload struct {
	Forecast     []ForecastYear       `json:"forecast,omitempty"`
	SKUs         []SKU                `json:"skus,omitempty"`
	Demand       []model.DemandRecord `json:"demand,omitempty"`
	Destinations []Destination        `json:"destinations,omitempty"`
	Facilities   []model.Facility     `json:"facilities"`
	CostMatrix   *CostMatrix          `json:"costMatrix,omitempty"`
	Config       PlanConfig           `json:"config"`
}

// Defaults supplies values for knobs the payload leaves unset, enumerated
// once at this boundary instead of deep inside the algorithm.
type Defaults struct {
	MaxUtilization          float64
	MinUtilization          float64
	ServiceLevelRequirement float64
	MaxDistanceMiles        float64
	CostPerMile             float64
	LeaseYears              int
	OpenLagYears            int
	Weights                 model.Weights
}

// Parse decodes a payload, rejecting unknown fields.
func Parse(data []byte) (*Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, eris.Wrap(err, "payload: decode")
	}
	return &p, nil
}

// Validate checks structural consistency. Returns the first violation as a
// ConfigurationError naming the offending field.
func (p *Payload) Validate() error {
	if len(p.Forecast) == 0 && len(p.Demand) == 0 {
		return model.NewConfigurationError("forecast", "either forecast or demand records are required")
	}
	seenYears := make(map[int]bool)
	for _, f := range p.Forecast {
		if f.AnnualUnits < 0 {
			return model.NewConfigurationError("forecast.annual_units", "year %d: must not be negative", f.Year)
		}
		if seenYears[f.Year] {
			return model.NewConfigurationError("forecast.year", "duplicate year %d", f.Year)
		}
		seenYears[f.Year] = true
	}
	for _, d := range p.Demand {
		if d.Volume < 0 {
			return model.NewConfigurationError("demand.volume", "destination %q year %d: must not be negative", d.Destination, d.Year)
		}
		if d.Destination == "" {
			return model.NewConfigurationError("demand.destination", "must not be empty")
		}
	}
	for _, s := range p.SKUs {
		if s.UnitsPerCase <= 0 || s.CasesPerPallet <= 0 {
			return model.NewConfigurationError("skus", "sku %q: units_per_case and cases_per_pallet must be positive", s.SKU)
		}
	}
	if m := p.CostMatrix; m != nil {
		if len(m.Cost) != len(m.Rows) {
			return model.NewConfigurationError("costMatrix.cost", "have %d rows, want %d", len(m.Cost), len(m.Rows))
		}
		for i, row := range m.Cost {
			if len(row) != len(m.Cols) {
				return model.NewConfigurationError("costMatrix.cost", "row %d has %d cols, want %d", i, len(row), len(m.Cols))
			}
		}
	}
	if p.CostMatrix == nil && len(p.Destinations) == 0 && len(p.Demand) > 0 {
		return model.NewConfigurationError("costMatrix", "either a cost matrix or destination coordinates are required")
	}
	if tc := p.Config.Transportation; tc.LeaseYears < 0 {
		return model.NewConfigurationError("transportation.lease_years", "must not be negative, got %d", tc.LeaseYears)
	}
	return nil
}

// PalletFactor converts forecast units to pallet-equivalent capacity units.
// With no SKU profile the factor is 1 (volumes already in capacity units).
func (p *Payload) PalletFactor() float64 {
	var units, pallets float64
	for _, s := range p.SKUs {
		if s.UnitsPerCase <= 0 || s.CasesPerPallet <= 0 {
			continue
		}
		units += s.AnnualVolume
		pallets += s.AnnualVolume / (s.UnitsPerCase * s.CasesPerPallet)
	}
	if units <= 0 || pallets <= 0 {
		return 1
	}
	return units / pallets
}

// BuildInput assembles the optimizer input and the candidate registry.
func (p *Payload) BuildInput(def Defaults) (optimizer.Input, *registry.Registry, error) {
	if err := p.Validate(); err != nil {
		return optimizer.Input{}, nil, err
	}

	reg, err := p.buildRegistry(def)
	if err != nil {
		return optimizer.Input{}, nil, err
	}

	years, demand := p.buildDemand()
	costFn, err := p.buildCostFn(reg, def)
	if err != nil {
		return optimizer.Input{}, nil, err
	}

	cfg := p.buildConfig(def)
	in := optimizer.Input{
		Years:      years,
		Demand:     demand,
		Facilities: reg.Facilities(),
		Cost:       costFn,
		Config:     cfg,
	}
	return in, reg, nil
}

func (p *Payload) buildRegistry(def Defaults) (*registry.Registry, error) {
	fs := make([]model.Facility, len(p.Facilities))
	copy(fs, p.Facilities)
	for i := range fs {
		if fs[i].FixedCostPerYear == 0 {
			fs[i].FixedCostPerYear = p.Config.Transportation.FixedCostPerFacility
		}
		if fs[i].Kind == "" {
			fs[i].Kind = model.FacilityCandidate
		}
	}
	return registry.New(fs)
}

// buildDemand returns the sorted year list and per-year destination volumes.
// Explicit demand records win; otherwise forecast units are converted to
// pallet-equivalents and spread evenly across the known destinations.
func (p *Payload) buildDemand() ([]int, map[int]map[string]float64) {
	demand := make(map[int]map[string]float64)
	add := func(year int, dest string, vol float64) {
		if demand[year] == nil {
			demand[year] = make(map[string]float64)
		}
		demand[year][dest] += vol
	}

	if len(p.Demand) > 0 {
		for _, d := range p.Demand {
			add(d.Year, d.Destination, d.Volume)
		}
	} else {
		dests := p.destinationNames()
		factor := p.PalletFactor()
		for _, f := range p.Forecast {
			vol := f.AnnualUnits / factor
			if len(dests) == 0 {
				add(f.Year, "network", vol)
				continue
			}
			share := vol / float64(len(dests))
			for _, d := range dests {
				add(f.Year, d, share)
			}
		}
	}

	years := make([]int, 0, len(demand))
	for y := range demand {
		years = append(years, y)
	}
	sort.Ints(years)
	return years, demand
}

func (p *Payload) destinationNames() []string {
	if p.CostMatrix != nil && len(p.CostMatrix.Cols) > 0 {
		out := make([]string, len(p.CostMatrix.Cols))
		copy(out, p.CostMatrix.Cols)
		return out
	}
	out := make([]string, 0, len(p.Destinations))
	for _, d := range p.Destinations {
		out = append(out, d.Name)
	}
	return out
}

// buildCostFn constructs the deterministic per-pair cost function. An
// explicit matrix supplies distances directly; otherwise distances come from
// great-circle miles between facility and destination coordinates. Unit cost
// is flat + per-mile · distance.
func (p *Payload) buildCostFn(reg *registry.Registry, def Defaults) (alloc.CostFn, error) {
	tc := p.Config.Transportation
	perMile := tc.CostPerMile
	if perMile == 0 {
		perMile = def.CostPerMile
	}
	flat := tc.FlatCostPerUnit

	if m := p.CostMatrix; m != nil {
		dist := make(map[string]map[string]float64, len(m.Rows))
		for i, row := range m.Rows {
			dist[row] = make(map[string]float64, len(m.Cols))
			for j, col := range m.Cols {
				dist[row][col] = m.Cost[i][j]
			}
		}
		return func(facilityID, destination string) (float64, float64, bool) {
			d, ok := dist[facilityID][destination]
			if !ok {
				return 0, 0, false
			}
			return flat + perMile*d, d, true
		}, nil
	}

	destLoc := make(map[string]model.LatLng, len(p.Destinations))
	for _, d := range p.Destinations {
		destLoc[d.Name] = d.Location
	}
	facLoc := make(map[string]model.LatLng, reg.Len())
	for _, f := range reg.Facilities() {
		facLoc[f.ID] = f.Location
	}
	return func(facilityID, destination string) (float64, float64, bool) {
		dl, ok := destLoc[destination]
		if !ok {
			// Synthetic aggregate destination: flat cost, zero distance.
			if destination == "network" {
				return flat, 0, true
			}
			return 0, 0, false
		}
		fl, ok := facLoc[facilityID]
		if !ok {
			return 0, 0, false
		}
		d := geodist.Miles(fl.Coord(), dl.Coord())
		return flat + perMile*d, d, true
	}, nil
}

func (p *Payload) buildConfig(def Defaults) optimizer.Config {
	oc, tc := p.Config.Optimization, p.Config.Transportation

	cfg := optimizer.Config{
		LeaseYears:              tc.LeaseYears,
		OpenLagYears:            tc.OpenLagYears,
		MaxUtilization:          oc.MaxUtilization,
		MinUtilization:          oc.MinUtilization,
		ServiceLevelRequirement: tc.ServiceLevelRequirement,
		MaxDistanceMiles:        tc.MaxDistanceMiles,
		RequiredFacilities:      tc.RequiredFacilities,
		MaxFacilities:           tc.MaxFacilities,
		MandatoryFacilities:     tc.MandatoryFacilities,
	}
	if cfg.LeaseYears == 0 {
		cfg.LeaseYears = def.LeaseYears
	}
	if cfg.OpenLagYears == 0 {
		cfg.OpenLagYears = def.OpenLagYears
	}
	if cfg.MaxUtilization == 0 {
		cfg.MaxUtilization = def.MaxUtilization
	}
	if cfg.MinUtilization == 0 {
		cfg.MinUtilization = def.MinUtilization
	}
	if cfg.ServiceLevelRequirement == 0 {
		cfg.ServiceLevelRequirement = def.ServiceLevelRequirement
	}
	if cfg.MaxDistanceMiles == 0 {
		cfg.MaxDistanceMiles = def.MaxDistanceMiles
	}
	return cfg
}

// Weights returns the payload's objective weights, falling back to defaults.
func (p *Payload) Weights(def Defaults) model.Weights {
	w := p.Config.Optimization.Weights
	if w.Cost == 0 && w.ServiceLevel == 0 && w.Utilization == 0 {
		return def.Weights
	}
	return w
}
