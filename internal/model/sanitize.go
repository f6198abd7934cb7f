package model

import "math"

// Sanitize replaces NaN and Inf values throughout the result with 0 so the
// structure is safe to serialize as plain JSON numbers. Totals.Sanitized is
// set when any value was replaced.
func (r *NetworkResult) Sanitize() {
	touched := false
	fix := func(v *float64) {
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			*v = 0
			touched = true
		}
	}

	for yi := range r.PerYear {
		y := &r.PerYear[yi]
		for i := range y.Assignments {
			fix(&y.Assignments[i].VolumeAssigned)
			fix(&y.Assignments[i].DistanceMiles)
		}
		for i := range y.FacilityMetrics {
			m := &y.FacilityMetrics[i]
			fix(&m.Demand)
			fix(&m.Capacity)
			fix(&m.Utilization)
			fix(&m.AvgDistance)
			fix(&m.TransportCost)
			fix(&m.FixedCost)
		}
		for i := range y.States {
			fix(&y.States[i].ActiveCapacity)
		}
		fix(&y.Totals.TransportCost)
		fix(&y.Totals.FacilityCost)
		fix(&y.Totals.TotalCost)
		fix(&y.Totals.Demand)
		fix(&y.Totals.DemandServed)
		fix(&y.Totals.Unserved)
		fix(&y.Totals.ServiceLevel)
		fix(&y.Totals.AvgUtilization)
	}

	fix(&r.Totals.TransportCost)
	fix(&r.Totals.FacilityCost)
	fix(&r.Totals.TotalCost)
	fix(&r.Totals.Demand)
	fix(&r.Totals.DemandServed)
	fix(&r.Totals.Unserved)
	fix(&r.Totals.WeightedServiceLevel)
	fix(&r.Totals.AvgUtilization)

	if touched {
		r.Totals.Sanitized = true
	}
}
