// Package registry holds the candidate facility universe and the
// deterministic policies that constrain it for sweep scenarios.
package registry

import (
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/meridian-ops/netplan/internal/model"
)

// Registry is the fixed universe of facility sites for one planning run.
// Facilities are held sorted by id; the registry is immutable after creation.
type Registry struct {
	facilities []model.Facility
}

// New builds a registry from the given facilities, rejecting duplicates and
// records that could never hold capacity.
func New(facilities []model.Facility) (*Registry, error) {
	seen := make(map[string]bool, len(facilities))
	fs := make([]model.Facility, 0, len(facilities))
	for _, f := range facilities {
		if f.ID == "" {
			return nil, model.NewConfigurationError("facilities.id", "facility id must not be empty")
		}
		if seen[f.ID] {
			return nil, model.NewConfigurationError("facilities.id", "duplicate facility id %q", f.ID)
		}
		if f.BaseCapacity <= 0 {
			return nil, model.NewConfigurationError("facilities.base_capacity", "facility %q: base capacity must be positive", f.ID)
		}
		for _, t := range f.Tiers {
			if t.CapacityIncrement <= 0 {
				return nil, model.NewConfigurationError("facilities.expansion_tiers", "facility %q tier %q: capacity increment must be positive", f.ID, t.Name)
			}
		}
		seen[f.ID] = true
		fs = append(fs, f)
	}
	model.SortFacilities(fs)
	return &Registry{facilities: fs}, nil
}

// LoadJSON builds a registry from a JSON array of facilities.
func LoadJSON(data []byte) (*Registry, error) {
	var fs []model.Facility
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, eris.Wrap(err, "registry: decode facilities")
	}
	return New(fs)
}

// Facilities returns the full universe, sorted by id.
func (r *Registry) Facilities() []model.Facility {
	out := make([]model.Facility, len(r.facilities))
	copy(out, r.facilities)
	return out
}

// Len returns the number of candidate sites.
func (r *Registry) Len() int { return len(r.facilities) }

// SelectTopN constrains the registry to n facilities for a sweep scenario.
// Policy: mandatory and existing facilities first, then candidates by
// ascending fixed-cost-per-unit-base-capacity, ties by id ascending. The
// policy is deterministic so repeated sweeps produce identical subsets.
func (r *Registry) SelectTopN(n int) *Registry {
	if n >= len(r.facilities) {
		return &Registry{facilities: r.Facilities()}
	}

	ranked := r.Facilities()
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Mandatory != b.Mandatory {
			return a.Mandatory
		}
		if (a.Kind == model.FacilityExisting) != (b.Kind == model.FacilityExisting) {
			return a.Kind == model.FacilityExisting
		}
		if a.CostPerUnit() != b.CostPerUnit() {
			return a.CostPerUnit() < b.CostPerUnit()
		}
		return a.ID < b.ID
	})

	if n < 0 {
		n = 0
	}
	picked := ranked[:n]
	model.SortFacilities(picked)
	return &Registry{facilities: picked}
}

// TotalCapacity sums every facility's maximum (fully expanded) capacity.
func (r *Registry) TotalCapacity() float64 {
	var c float64
	for _, f := range r.facilities {
		c += f.MaxCapacity()
	}
	return c
}
