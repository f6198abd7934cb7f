// Package optimizer decides the multi-year facility network trajectory: which
// facilities to open, expand, keep, or close each year, honoring lease
// commitments, while minimizing fixed plus transportation cost.
//
// Years run strictly in sequence because each year's decisions depend on the
// previous year's lease clocks. The allocator is invoked to score the network
// after every applied action; closing is only accepted when a trial
// allocation proves the network stays feasible without the facility.
package optimizer

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-ops/netplan/internal/alloc"
	"github.com/meridian-ops/netplan/internal/model"
)

const volEpsilon = 1e-6

// Config holds the optimizer's decision parameters.
type Config struct {
	// LeaseYears is the minimum commitment once a facility opens.
	LeaseYears int
	// OpenLagYears delays capacity availability after the lease is signed.
	// Zero means capacity is active the year the open decision is made.
	OpenLagYears int
	// MaxUtilization is the ceiling above which the network adds capacity.
	MaxUtilization float64
	// MinUtilization is the floor below which closing is considered.
	MinUtilization float64
	// ServiceLevelRequirement is the required fraction of demand served
	// within MaxDistanceMiles.
	ServiceLevelRequirement float64
	MaxDistanceMiles        float64
	// RequiredFacilities keeps at least this many facilities open.
	RequiredFacilities int
	// MaxFacilities caps the open count; zero means unbounded.
	MaxFacilities int
	// MandatoryFacilities are always opened in the first year and never closed.
	MandatoryFacilities []string
}

// Validate rejects configurations the state machine cannot run with.
func (c Config) Validate() error {
	if c.LeaseYears <= 0 {
		return model.NewConfigurationError("transportation.lease_years", "must be positive, got %d", c.LeaseYears)
	}
	if c.OpenLagYears < 0 {
		return model.NewConfigurationError("transportation.open_lag_years", "must not be negative, got %d", c.OpenLagYears)
	}
	if c.MaxUtilization <= 0 || c.MaxUtilization > 1 {
		return model.NewConfigurationError("optimization.max_utilization", "must be in (0, 1], got %g", c.MaxUtilization)
	}
	if c.MinUtilization < 0 || c.MinUtilization >= c.MaxUtilization {
		return model.NewConfigurationError("optimization.min_utilization", "must be in [0, max_utilization), got %g", c.MinUtilization)
	}
	if c.ServiceLevelRequirement < 0 || c.ServiceLevelRequirement > 1 {
		return model.NewConfigurationError("transportation.service_level_requirement", "must be in [0, 1], got %g", c.ServiceLevelRequirement)
	}
	if c.MaxFacilities > 0 && c.RequiredFacilities > c.MaxFacilities {
		return model.NewConfigurationError("transportation.required_facilities", "exceeds max_facilities (%d > %d)", c.RequiredFacilities, c.MaxFacilities)
	}
	return nil
}

// Input is one complete optimization problem.
type Input struct {
	// Years in ascending order.
	Years []int
	// Demand maps year to destination volumes.
	Demand map[int]map[string]float64
	// Facilities is the candidate universe (registry subset for sweeps).
	Facilities []model.Facility
	Cost       alloc.CostFn
	Config     Config
}

// facilityTrack is the optimizer's mutable per-facility state across years.
type facilityTrack struct {
	f               model.Facility
	status          model.FacilityStatus
	activeCapacity  float64
	leaseOpenedYear int
	tiersApplied    int
	expandedThis    bool
	mandatory       bool
}

func (t *facilityTrack) leased() bool {
	return t.status != model.StatusClosed
}

// active reports whether capacity serves demand this year (opening facilities
// under a build lag are leased but not yet active).
func (t *facilityTrack) active() bool {
	return t.status == model.StatusOpen || t.status == model.StatusExpanding
}

func (t *facilityTrack) leaseEligible(year int, leaseYears int) bool {
	st := model.FacilityYearState{
		Status:              t.status,
		LeaseOpenedYear:     t.leaseOpenedYear,
		LeaseYearsCommitted: leaseYears,
	}
	return st.LeaseEligible(year)
}

// annualFixedCost is the facility's lease cost for one year: base fixed cost
// plus every applied expansion tier.
func (t *facilityTrack) annualFixedCost() float64 {
	c := t.f.FixedCostPerYear
	for i := 0; i < t.tiersApplied; i++ {
		c += t.f.Tiers[i].FixedCostPerYear
	}
	return c
}

// Run executes the state machine over every input year, in order, and returns
// one YearResult per year. Cancellation is checked between year iterations.
func Run(ctx context.Context, in Input) (*model.NetworkResult, error) {
	if err := in.Config.Validate(); err != nil {
		return nil, err
	}
	if len(in.Years) == 0 {
		return nil, model.NewConfigurationError("forecast", "at least one planning year is required")
	}
	for year, dm := range in.Demand {
		for dest, v := range dm {
			if v < 0 {
				return nil, model.NewConfigurationError("demand", "destination %q year %d: volume must not be negative", dest, year)
			}
		}
	}

	mandatory := make(map[string]bool, len(in.Config.MandatoryFacilities))
	for _, id := range in.Config.MandatoryFacilities {
		mandatory[id] = true
	}

	tracks := make([]*facilityTrack, 0, len(in.Facilities))
	for _, f := range in.Facilities {
		t := &facilityTrack{
			f:         f,
			status:    model.StatusClosed,
			mandatory: f.Mandatory || mandatory[f.ID],
		}
		// Existing sites enter the horizon already under lease.
		if f.Kind == model.FacilityExisting {
			t.status = model.StatusOpen
			t.activeCapacity = f.BaseCapacity
			t.leaseOpenedYear = in.Years[0]
		}
		tracks = append(tracks, t)
	}
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].f.ID < tracks[j].f.ID })

	result := &model.NetworkResult{OpenByYear: make(map[int][]string)}
	o := &run{in: in, tracks: tracks}

	for yi, year := range in.Years {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrapf(err, "optimizer: canceled before year %d", year)
		}

		yr, err := o.planYear(year, yi == 0)
		if err != nil {
			return nil, err
		}

		result.PerYear = append(result.PerYear, *yr)
		result.OpenByYear[year] = yr.OpenFacilities
	}

	aggregate(result)
	return result, nil
}

type run struct {
	in     Input
	tracks []*facilityTrack
}

// planYear executes the per-year procedure: promote pending opens, bootstrap
// or grow capacity, allocate, consider closures, finalize.
func (o *run) planYear(year int, firstYear bool) (*model.YearResult, error) {
	cfg := o.in.Config
	demand := o.in.Demand[year]
	var demandTotal float64
	for _, v := range demand {
		demandTotal += v
	}

	// Pending opens become active once the build lag elapses. Expanding
	// facilities settle back to open.
	for _, t := range o.tracks {
		t.expandedThis = false
		if t.status == model.StatusExpanding {
			t.status = model.StatusOpen
		}
		if t.status == model.StatusOpening && year-t.leaseOpenedYear >= cfg.OpenLagYears {
			t.status = model.StatusOpen
			t.activeCapacity = t.f.BaseCapacity
		}
	}

	if demandTotal > volEpsilon && len(o.tracks) == 0 {
		return nil, eris.Wrap(
			&model.StructuralInfeasibilityError{Year: year, Reason: "no candidate facilities for positive demand"},
			"optimizer: empty candidate set",
		)
	}

	// Mandatory facilities and the required-count floor are honored before
	// any utilization-driven decision.
	if firstYear {
		for _, t := range o.tracks {
			if t.mandatory && !t.leased() {
				o.open(t, year)
			}
		}
	}
	for o.openCount() < cfg.RequiredFacilities {
		t := o.cheapestClosed()
		if t == nil {
			break
		}
		o.open(t, year)
	}

	res := o.allocate(year, demand)

	// Grow capacity while demand is unserved or the network runs above the
	// utilization ceiling. Candidate actions are ranked by fixed cost per
	// unit of capacity added, so a cheap expansion tier beats an expensive
	// new lease and vice versa.
	for o.needsCapacity(res, demandTotal) {
		act := o.bestGrowth()
		if act == nil {
			break
		}
		act.apply(o, year)
		res = o.allocate(year, demand)
	}

	if demandTotal > volEpsilon && o.leasedCount() == 0 {
		return nil, eris.Wrap(
			&model.StructuralInfeasibilityError{Year: year, Reason: "no facility could be opened for positive demand"},
			"optimizer: nothing feasible to open",
		)
	}

	// Shrink when over-provisioned: evaluate the most expensive
	// lease-eligible facility first, and only accept a closure the trial
	// allocation proves feasible.
	res = o.considerClosures(year, demand, demandTotal, res)

	yr := o.finalize(year, res)

	zap.L().Debug("optimizer: year finalized",
		zap.Int("year", year),
		zap.Int("open", len(yr.OpenFacilities)),
		zap.Float64("demand", demandTotal),
		zap.Float64("unserved", yr.Totals.Unserved),
		zap.Float64("service_level", yr.Totals.ServiceLevel),
	)
	return yr, nil
}

func (o *run) needsCapacity(res *alloc.Result, demandTotal float64) bool {
	if demandTotal <= volEpsilon {
		return false
	}
	if o.projectedShortfall(demandTotal) > volEpsilon {
		return true
	}
	return res.Unserved > volEpsilon && o.pendingCapacity() <= volEpsilon
}

// projectedShortfall compares demand against the capacity the committed
// network will have once pending opens activate, held to the utilization
// ceiling. Positive means more capacity is needed.
func (o *run) projectedShortfall(demandTotal float64) float64 {
	var committed float64
	for _, t := range o.tracks {
		switch t.status {
		case model.StatusOpen, model.StatusExpanding:
			committed += t.activeCapacity
		case model.StatusOpening:
			committed += t.f.BaseCapacity
		}
	}
	return demandTotal/o.in.Config.MaxUtilization - committed
}

func (o *run) pendingCapacity() float64 {
	var c float64
	for _, t := range o.tracks {
		if t.status == model.StatusOpening {
			c += t.f.BaseCapacity
		}
	}
	return c
}

// growthAction is one candidate capacity addition: opening a closed site or
// applying the next expansion tier of an open one.
type growthAction struct {
	track   *facilityTrack
	expand  bool
	capGain float64
	cost    float64
}

func (a *growthAction) costPerUnit() float64 {
	if a.capGain <= 0 {
		return 0
	}
	return a.cost / a.capGain
}

func (a *growthAction) apply(o *run, year int) {
	if a.expand {
		t := a.track
		tier := t.f.Tiers[t.tiersApplied]
		t.tiersApplied++
		t.activeCapacity += tier.CapacityIncrement
		t.status = model.StatusExpanding
		t.expandedThis = true
		zap.L().Debug("optimizer: expansion applied",
			zap.String("facility", t.f.ID),
			zap.Int("year", year),
			zap.String("tier", tier.Name),
			zap.Float64("capacity", t.activeCapacity),
		)
		return
	}
	o.open(a.track, year)
}

// bestGrowth picks the lowest cost-per-unit-capacity action, ties broken by
// facility id ascending (iteration order is id-sorted).
func (o *run) bestGrowth() *growthAction {
	cfg := o.in.Config
	var best *growthAction
	for _, t := range o.tracks {
		var cand *growthAction
		switch {
		case !t.leased():
			if cfg.MaxFacilities > 0 && o.leasedCount() >= cfg.MaxFacilities {
				continue
			}
			cand = &growthAction{track: t, capGain: t.f.BaseCapacity, cost: t.f.FixedCostPerYear}
		case t.active() && t.tiersApplied < len(t.f.Tiers) && !t.expandedThis:
			tier := t.f.Tiers[t.tiersApplied]
			cand = &growthAction{track: t, expand: true, capGain: tier.CapacityIncrement, cost: tier.FixedCostPerYear}
		default:
			continue
		}
		if best == nil || cand.costPerUnit() < best.costPerUnit() {
			best = cand
		}
	}
	return best
}

// considerClosures closes lease-eligible facilities while the network is
// over-provisioned, most expensive per unit first. Closing is advisory: a
// candidate stays open unless the post-closure trial allocation keeps full
// coverage and the service level at or above requirement.
func (o *run) considerClosures(year int, demand map[string]float64, demandTotal float64, res *alloc.Result) *alloc.Result {
	cfg := o.in.Config

	for {
		util := res.AggregateUtilization()
		if demandTotal > volEpsilon && util >= cfg.MinUtilization {
			return res
		}

		var candidates []*facilityTrack
		for _, t := range o.tracks {
			if !t.active() || t.mandatory {
				continue
			}
			if !t.leaseEligible(year, cfg.LeaseYears) {
				continue
			}
			candidates = append(candidates, t)
		}
		if len(candidates) == 0 || o.activeCount() <= cfg.RequiredFacilities {
			return res
		}
		if demandTotal > volEpsilon && o.activeCount() <= 1 {
			return res
		}
		sort.Slice(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			au, bu := perUnit(a), perUnit(b)
			if au != bu {
				return au > bu
			}
			return a.f.ID < b.f.ID
		})

		closed := false
		for _, t := range candidates {
			trial := o.allocateWithout(year, demand, t)
			if trial.Unserved > volEpsilon {
				continue
			}
			if demandTotal > volEpsilon && trial.ServiceLevel < cfg.ServiceLevelRequirement && trial.ServiceLevel < res.ServiceLevel {
				continue
			}
			zap.L().Debug("optimizer: facility closed",
				zap.String("facility", t.f.ID),
				zap.Int("year", year),
				zap.Int("lease_opened", t.leaseOpenedYear),
			)
			t.status = model.StatusClosed
			t.activeCapacity = 0
			t.tiersApplied = 0
			res = trial
			closed = true
			break
		}
		if !closed {
			return res
		}
	}
}

func perUnit(t *facilityTrack) float64 {
	if t.activeCapacity <= 0 {
		return 0
	}
	return t.annualFixedCost() / t.activeCapacity
}

func (o *run) open(t *facilityTrack, year int) {
	t.leaseOpenedYear = year
	if o.in.Config.OpenLagYears > 0 {
		t.status = model.StatusOpening
		t.activeCapacity = 0
	} else {
		t.status = model.StatusOpen
		t.activeCapacity = t.f.BaseCapacity
	}
	zap.L().Debug("optimizer: facility opened",
		zap.String("facility", t.f.ID),
		zap.Int("year", year),
		zap.Int("lag_years", o.in.Config.OpenLagYears),
	)
}

func (o *run) cheapestClosed() *facilityTrack {
	var best *facilityTrack
	for _, t := range o.tracks {
		if t.leased() {
			continue
		}
		if best == nil || t.f.CostPerUnit() < best.f.CostPerUnit() {
			best = t
		}
	}
	return best
}

func (o *run) openCount() int   { return o.count(func(t *facilityTrack) bool { return t.leased() }) }
func (o *run) leasedCount() int { return o.openCount() }
func (o *run) activeCount() int { return o.count(func(t *facilityTrack) bool { return t.active() }) }

func (o *run) count(pred func(*facilityTrack) bool) int {
	n := 0
	for _, t := range o.tracks {
		if pred(t) {
			n++
		}
	}
	return n
}

func (o *run) allocate(year int, demand map[string]float64) *alloc.Result {
	return o.allocateWithout(year, demand, nil)
}

func (o *run) allocateWithout(year int, demand map[string]float64, excluded *facilityTrack) *alloc.Result {
	var open []alloc.OpenFacility
	for _, t := range o.tracks {
		if !t.active() || t == excluded {
			continue
		}
		open = append(open, alloc.OpenFacility{Facility: t.f, ActiveCapacity: t.activeCapacity})
	}
	return alloc.Allocate(alloc.Request{
		Year:             year,
		Open:             open,
		Demand:           demand,
		Cost:             o.in.Cost,
		MaxDistanceMiles: o.in.Config.MaxDistanceMiles,
	})
}

// finalize freezes the year: statuses, metrics, and totals.
func (o *run) finalize(year int, res *alloc.Result) *model.YearResult {
	yr := &model.YearResult{Year: year}

	var facilityCost float64
	for _, t := range o.tracks {
		st := model.FacilityYearState{
			FacilityID:     t.f.ID,
			Year:           year,
			Status:         t.status,
			ActiveCapacity: t.activeCapacity,
		}
		if t.leased() {
			st.LeaseOpenedYear = t.leaseOpenedYear
			st.LeaseYearsCommitted = o.in.Config.LeaseYears
			st.TiersApplied = t.tiersApplied
			yr.OpenFacilities = append(yr.OpenFacilities, t.f.ID)
			facilityCost += t.annualFixedCost()
		}
		yr.States = append(yr.States, st)
	}

	yr.Assignments = res.Assignments
	yr.FacilityMetrics = res.Metrics
	for i := range yr.FacilityMetrics {
		m := &yr.FacilityMetrics[i]
		for _, t := range o.tracks {
			if t.f.ID == m.FacilityID {
				m.FixedCost = t.annualFixedCost()
				break
			}
		}
	}

	yr.Totals = model.YearTotals{
		TransportCost:  res.TransportCost,
		FacilityCost:   facilityCost,
		TotalCost:      res.TransportCost + facilityCost,
		Demand:         res.TotalDemand,
		DemandServed:   res.Served,
		Unserved:       res.Unserved,
		ServiceLevel:   res.ServiceLevel,
		AvgUtilization: res.AggregateUtilization(),
	}
	if res.Unserved > volEpsilon || res.ServiceLevel < o.in.Config.ServiceLevelRequirement {
		yr.Totals.DegradedService = true
	}
	return yr
}

// aggregate rolls the per-year stream into horizon totals.
func aggregate(r *model.NetworkResult) {
	var servedInDistance float64
	for _, y := range r.PerYear {
		r.Totals.TransportCost += y.Totals.TransportCost
		r.Totals.FacilityCost += y.Totals.FacilityCost
		r.Totals.TotalCost += y.Totals.TotalCost
		r.Totals.Demand += y.Totals.Demand
		r.Totals.DemandServed += y.Totals.DemandServed
		r.Totals.Unserved += y.Totals.Unserved
		r.Totals.AvgUtilization += y.Totals.AvgUtilization
		servedInDistance += y.Totals.ServiceLevel * y.Totals.Demand
	}
	if n := len(r.PerYear); n > 0 {
		r.Totals.AvgUtilization /= float64(n)
	}
	if r.Totals.Demand > 0 {
		r.Totals.WeightedServiceLevel = servedInDistance / r.Totals.Demand
	} else {
		r.Totals.WeightedServiceLevel = 1.0
	}
}
