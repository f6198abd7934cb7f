// Package finance derives multi-year financial metrics (savings, ROI,
// payback, NPV) from an optimized network result and a baseline cost
// reference. Pure functions over inputs; no hidden state.
package finance

import (
	"math"

	"github.com/meridian-ops/netplan/internal/model"
)

// Params configures the analysis.
type Params struct {
	// BaselineAnnualCost is the do-nothing network cost per year the
	// optimized plan is compared against.
	BaselineAnnualCost float64
	// DiscountRate is the annual rate applied to each year's net cash flow
	// for NPV, e.g. 0.08 for 8%.
	DiscountRate float64
	// TotalInvestment is the upfront investment recovered by savings. When
	// zero it defaults to the first year's facility cost, the closest proxy
	// for lease signing and build-out outlay.
	TotalInvestment float64
}

// YearFinance is one year's financial view.
type YearFinance struct {
	Year              int     `json:"year"`
	OptimizedCost     float64 `json:"optimized_cost"`
	BaselineCost      float64 `json:"baseline_cost"`
	Savings           float64 `json:"savings"`
	CumulativeSavings float64 `json:"cumulative_savings"`
	DiscountedSavings float64 `json:"discounted_savings"`
}

// Analysis is the full multi-year financial result.
type Analysis struct {
	Years           []YearFinance `json:"years"`
	TotalSavings    float64       `json:"total_savings"`
	TotalInvestment float64       `json:"total_investment"`
	ROIPercentage   float64       `json:"roi_percentage"`
	// PaybackYear is the first year whose cumulative savings cover the
	// investment; zero when the horizon never pays back.
	PaybackYear int     `json:"payback_year,omitempty"`
	NPV         float64 `json:"npv"`
}

// Analyze computes the analysis from the network result. Reproducible from
// result + params alone.
func Analyze(res *model.NetworkResult, p Params) *Analysis {
	a := &Analysis{TotalInvestment: p.TotalInvestment}
	if a.TotalInvestment == 0 && len(res.PerYear) > 0 {
		a.TotalInvestment = res.PerYear[0].Totals.FacilityCost
	}

	var cumulative float64
	for i, y := range res.PerYear {
		savings := p.BaselineAnnualCost - y.Totals.TotalCost
		cumulative += savings

		discounted := savings
		if p.DiscountRate > 0 {
			discounted = savings / math.Pow(1+p.DiscountRate, float64(i+1))
		}

		a.Years = append(a.Years, YearFinance{
			Year:              y.Year,
			OptimizedCost:     y.Totals.TotalCost,
			BaselineCost:      p.BaselineAnnualCost,
			Savings:           savings,
			CumulativeSavings: cumulative,
			DiscountedSavings: discounted,
		})

		a.TotalSavings += savings
		a.NPV += discounted

		if a.PaybackYear == 0 && cumulative >= a.TotalInvestment {
			a.PaybackYear = y.Year
		}
	}

	a.NPV -= a.TotalInvestment

	if a.TotalInvestment > 0 {
		a.ROIPercentage = a.TotalSavings / a.TotalInvestment * 100
	}
	return a
}
