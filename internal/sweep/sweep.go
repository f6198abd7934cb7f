// Package sweep runs the optimizer across a range of candidate network sizes
// and selects the best configuration. Scenarios are independent (each gets
// its own registry subset and facility state) and run concurrently under a
// bounded errgroup; results merge deterministically by node count.
package sweep

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-ops/netplan/internal/model"
	"github.com/meridian-ops/netplan/internal/optimizer"
	"github.com/meridian-ops/netplan/internal/registry"
)

// Input parameterizes one sweep.
type Input struct {
	MinNodes int
	MaxNodes int
	// Concurrency bounds parallel scenario runs; values < 1 mean serial.
	Concurrency int
	// Registry is the full candidate universe; each scenario runs on a
	// deterministic top-N subset.
	Registry *registry.Registry
	// Base is the optimizer input shared by every scenario. Facilities are
	// replaced per scenario.
	Base optimizer.Input
	// Weights blends cost, service, and utilization into the reported
	// ranking score. Selection itself follows the min-cost rule.
	Weights model.Weights
}

func (in Input) validate() error {
	if in.MinNodes < 1 {
		return model.NewConfigurationError("min_nodes", "must be at least 1, got %d", in.MinNodes)
	}
	if in.MaxNodes < in.MinNodes {
		return model.NewConfigurationError("max_nodes", "must be >= min_nodes (%d < %d)", in.MaxNodes, in.MinNodes)
	}
	if in.Registry == nil || in.Registry.Len() == 0 {
		return model.NewConfigurationError("facilities", "candidate registry is empty")
	}
	return nil
}

// Run executes every scenario in [MinNodes, MaxNodes]. Individual scenario
// failures are captured in the scenario's Err field and excluded from
// best-selection; the sweep itself fails only on bad parameters or
// cancellation.
func Run(ctx context.Context, in Input) (*model.SweepResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.MaxNodes > in.Registry.Len() {
		in.MaxNodes = in.Registry.Len()
	}

	n := in.MaxNodes - in.MinNodes + 1
	scenarios := make([]model.ScenarioScore, n)

	g, gctx := errgroup.WithContext(ctx)
	if in.Concurrency > 1 {
		g.SetLimit(in.Concurrency)
	} else {
		g.SetLimit(1)
	}

	for i := 0; i < n; i++ {
		nodes := in.MinNodes + i
		g.Go(func() error {
			// Cancellation is honored between scenarios, never mid-year.
			if err := gctx.Err(); err != nil {
				return eris.Wrapf(err, "sweep: canceled before scenario %d", nodes)
			}
			scenarios[i] = runScenario(gctx, in, nodes)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &model.SweepResult{Scenarios: scenarios}
	BlendScores(res, in.Weights)
	pickBest(res, in.Base.Config.ServiceLevelRequirement)

	zap.L().Info("sweep: complete",
		zap.Int("scenarios", n),
		zap.Int("failed", countFailed(scenarios)),
		zap.Bool("below_service_floor", res.BelowServiceFloor),
	)
	return res, nil
}

func runScenario(ctx context.Context, in Input, nodes int) model.ScenarioScore {
	score := model.ScenarioScore{Nodes: nodes}

	sub := in.Registry.SelectTopN(nodes)
	opt := in.Base
	opt.Facilities = sub.Facilities()
	if opt.Config.MaxFacilities == 0 || opt.Config.MaxFacilities > nodes {
		opt.Config.MaxFacilities = nodes
	}

	result, err := optimizer.Run(ctx, opt)
	if err != nil {
		score.Err = err.Error()
		zap.L().Warn("sweep: scenario failed",
			zap.Int("nodes", nodes),
			zap.Error(err),
		)
		return score
	}

	result.Sanitize()
	score.Result = result
	score.KPIs = model.KPIs{
		TotalNetworkCost:     result.Totals.TotalCost,
		WeightedServiceLevel: result.Totals.WeightedServiceLevel,
		TransportCost:        result.Totals.TransportCost,
		WarehouseCost:        result.Totals.FacilityCost,
		AvgUtilization:       result.Totals.AvgUtilization,
	}
	return score
}

// pickBest selects the cheapest scenario meeting the service floor. When
// none meets it, the highest-service scenario wins and the result is flagged
// rather than silently degraded. Failed scenarios never participate.
func pickBest(res *model.SweepResult, serviceFloor float64) {
	best := -1
	for i := range res.Scenarios {
		s := &res.Scenarios[i]
		if s.Err != "" {
			continue
		}
		if s.KPIs.WeightedServiceLevel < serviceFloor {
			continue
		}
		if best < 0 || s.KPIs.TotalNetworkCost < res.Scenarios[best].KPIs.TotalNetworkCost {
			best = i
		}
	}

	if best < 0 {
		for i := range res.Scenarios {
			s := &res.Scenarios[i]
			if s.Err != "" {
				continue
			}
			if best < 0 || s.KPIs.WeightedServiceLevel > res.Scenarios[best].KPIs.WeightedServiceLevel {
				best = i
			}
		}
		if best >= 0 {
			res.BelowServiceFloor = true
		}
	}

	if best >= 0 {
		res.Best = &res.Scenarios[best]
	}
}

// BlendScores fills each scenario's blended ranking score from the given
// weights: lower cost, higher service, and utilization close to balanced all
// score higher. Cost is normalized against the cheapest successful scenario.
func BlendScores(res *model.SweepResult, w model.Weights) {
	sum := w.Cost + w.ServiceLevel + w.Utilization
	if sum <= 0 {
		return
	}

	minCost := math.Inf(1)
	for _, s := range res.Scenarios {
		if s.Err == "" && s.KPIs.TotalNetworkCost < minCost {
			minCost = s.KPIs.TotalNetworkCost
		}
	}
	if math.IsInf(minCost, 1) {
		return
	}

	for i := range res.Scenarios {
		s := &res.Scenarios[i]
		if s.Err != "" {
			continue
		}
		costScore := 1.0
		if s.KPIs.TotalNetworkCost > 0 {
			costScore = minCost / s.KPIs.TotalNetworkCost
		}
		// Utilization scores best mid-band: fully idle and fully saturated
		// networks both rank low.
		utilScore := 1 - math.Abs(s.KPIs.AvgUtilization-0.75)/0.75
		if utilScore < 0 {
			utilScore = 0
		}
		s.KPIs.BlendedScore = (w.Cost*costScore +
			w.ServiceLevel*s.KPIs.WeightedServiceLevel +
			w.Utilization*utilScore) / sum
	}
}

func countFailed(scenarios []model.ScenarioScore) int {
	n := 0
	for i := range scenarios {
		if scenarios[i].Err != "" {
			n++
		}
	}
	return n
}
