// Package alloc solves the single-year transportation sub-problem: assign
// destination demand to a fixed set of open facilities, minimizing marginal
// cost subject to capacity and max-distance constraints.
//
// Infeasibility never fails a run. Demand that cannot be placed within the
// distance constraint is flagged out-of-service-level; demand that cannot be
// placed at all is recorded as unserved. The conservation invariant holds
// exactly: assigned + unserved == input demand.
package alloc

import (
	"sort"

	"go.uber.org/zap"

	"github.com/meridian-ops/netplan/internal/model"
)

// capEpsilon guards against float dust when draining facility capacity.
const capEpsilon = 1e-9

// CostFn returns the per-unit transportation cost and distance for shipping
// from a facility to a destination. ok is false when the pair is unknown,
// which removes the facility from consideration for that destination. The
// function must be deterministic and total-orderable per pair.
type CostFn func(facilityID, destination string) (unitCost, distanceMiles float64, ok bool)

// OpenFacility pairs a facility with the capacity active this year,
// including any expansion tiers already applied.
type OpenFacility struct {
	Facility       model.Facility
	ActiveCapacity float64
}

// Request is one allocation problem instance.
type Request struct {
	Year             int
	Open             []OpenFacility
	Demand           map[string]float64
	Cost             CostFn
	MaxDistanceMiles float64
}

// Result reports the assignment plan and its per-facility and total metrics.
type Result struct {
	Assignments      []model.Assignment
	Metrics          []model.FacilityMetrics
	TotalDemand      float64
	Served           float64
	ServedInDistance float64
	Unserved         float64
	TransportCost    float64
	ServiceLevel     float64
	// AllUnserved flags the degenerate case of positive demand with an empty
	// open set. Degraded result, not an error.
	AllUnserved bool
}

// facilityState tracks remaining capacity and accumulated metrics while the
// greedy assignment runs.
type facilityState struct {
	f             model.Facility
	capacity      float64
	remaining     float64
	demand        float64
	transportCost float64
	distVolume    float64 // Σ distance·volume, for the volume-weighted average
}

// Allocate runs greedy nearest-feasible assignment. Destinations are
// processed in decreasing-volume order (ties by name ascending) to reduce
// fragmentation; facility ties break by id ascending for determinism. A
// destination's volume may split across facilities when no single facility
// has room for all of it.
func Allocate(req Request) *Result {
	res := &Result{}

	type destDemand struct {
		name   string
		volume float64
	}
	dests := make([]destDemand, 0, len(req.Demand))
	for name, vol := range req.Demand {
		res.TotalDemand += vol
		if vol > 0 {
			dests = append(dests, destDemand{name: name, volume: vol})
		}
	}
	sort.Slice(dests, func(i, j int) bool {
		if dests[i].volume != dests[j].volume {
			return dests[i].volume > dests[j].volume
		}
		return dests[i].name < dests[j].name
	})

	states := make([]*facilityState, 0, len(req.Open))
	for _, of := range req.Open {
		states = append(states, &facilityState{
			f:         of.Facility,
			capacity:  of.ActiveCapacity,
			remaining: of.ActiveCapacity,
		})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].f.ID < states[j].f.ID })

	if len(states) == 0 {
		if res.TotalDemand > 0 {
			res.Unserved = res.TotalDemand
			res.AllUnserved = true
			zap.L().Warn("alloc: no open facilities for positive demand",
				zap.Int("year", req.Year),
				zap.Float64("demand", res.TotalDemand),
			)
		}
		res.ServiceLevel = serviceLevel(res.ServedInDistance, res.TotalDemand)
		return res
	}

	for _, d := range dests {
		remaining := d.volume
		for remaining > capEpsilon {
			st, dist, unitCost, withinDistance := pickFacility(states, req.Cost, d.name, req.MaxDistanceMiles)
			if st == nil {
				res.Unserved += remaining
				break
			}

			amt := remaining
			if amt > st.remaining {
				amt = st.remaining
			}

			res.Assignments = append(res.Assignments, model.Assignment{
				Destination:       d.name,
				FacilityID:        st.f.ID,
				Year:              req.Year,
				VolumeAssigned:    amt,
				DistanceMiles:     dist,
				OutOfServiceLevel: !withinDistance,
			})

			st.remaining -= amt
			st.demand += amt
			st.transportCost += amt * unitCost
			st.distVolume += amt * dist

			res.Served += amt
			if withinDistance {
				res.ServedInDistance += amt
			}
			res.TransportCost += amt * unitCost
			remaining -= amt
		}
	}

	for _, st := range states {
		m := model.FacilityMetrics{
			FacilityID:    st.f.ID,
			Demand:        st.demand,
			Capacity:      st.capacity,
			TransportCost: st.transportCost,
			FixedCost:     st.f.FixedCostPerYear,
		}
		if st.capacity > 0 {
			m.Utilization = st.demand / st.capacity
		}
		if st.demand > 0 {
			m.AvgDistance = st.distVolume / st.demand
		}
		res.Metrics = append(res.Metrics, m)
	}

	res.ServiceLevel = serviceLevel(res.ServedInDistance, res.TotalDemand)
	return res
}

// pickFacility selects the lowest-marginal-cost facility with remaining
// capacity, preferring facilities within the distance constraint. Ties break
// by facility id ascending, which the sorted iteration order guarantees.
func pickFacility(states []*facilityState, cost CostFn, dest string, maxDistance float64) (st *facilityState, dist, unitCost float64, withinDistance bool) {
	var bestNear, bestFar *facilityState
	var bestNearCost, bestFarCost float64
	var bestNearDist, bestFarDist float64

	for _, s := range states {
		if s.remaining <= capEpsilon {
			continue
		}
		c, d, ok := cost(s.f.ID, dest)
		if !ok {
			continue
		}
		if maxDistance <= 0 || d <= maxDistance {
			if bestNear == nil || c < bestNearCost {
				bestNear, bestNearCost, bestNearDist = s, c, d
			}
		} else if bestFar == nil || c < bestFarCost {
			bestFar, bestFarCost, bestFarDist = s, c, d
		}
	}

	if bestNear != nil {
		return bestNear, bestNearDist, bestNearCost, true
	}
	if bestFar != nil {
		return bestFar, bestFarDist, bestFarCost, false
	}
	return nil, 0, 0, false
}

func serviceLevel(servedInDistance, total float64) float64 {
	if total <= 0 {
		return 1.0
	}
	return servedInDistance / total
}

// AggregateUtilization returns demand-weighted network utilization for the
// allocation, in [0, 1].
func (r *Result) AggregateUtilization() float64 {
	var capacity float64
	for _, m := range r.Metrics {
		capacity += m.Capacity
	}
	if capacity <= 0 {
		return 0
	}
	return r.Served / capacity
}
