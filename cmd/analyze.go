package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-ops/netplan/internal/finance"
	"github.com/meridian-ops/netplan/internal/model"
	"github.com/meridian-ops/netplan/internal/report"
)

var (
	analyzeInput      string
	analyzeOutput     string
	analyzeBaseline   float64
	analyzeDiscount   float64
	analyzeInvestment float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compute ROI, payback, and NPV from an optimizer result",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(analyzeInput)
		if err != nil {
			return eris.Wrapf(err, "read result %s", analyzeInput)
		}
		var res model.NetworkResult
		if err := json.Unmarshal(data, &res); err != nil {
			return eris.Wrap(err, "decode network result")
		}

		analysis := finance.Analyze(&res, finance.Params{
			BaselineAnnualCost: analyzeBaseline,
			DiscountRate:       analyzeDiscount,
			TotalInvestment:    analyzeInvestment,
		})

		zap.L().Info("financial analysis complete",
			zap.Float64("total_savings", analysis.TotalSavings),
			zap.Float64("roi_pct", analysis.ROIPercentage),
			zap.Int("payback_year", analysis.PaybackYear),
			zap.Float64("npv", analysis.NPV),
		)
		return report.WriteJSON(analyzeOutput, analysis)
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeInput, "input", "i", "result.json", "optimizer result file (JSON)")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "-", "analysis file (JSON), - for stdout")
	analyzeCmd.Flags().Float64Var(&analyzeBaseline, "baseline", 0, "baseline annual network cost to compare against")
	analyzeCmd.Flags().Float64Var(&analyzeDiscount, "discount-rate", 0.08, "annual discount rate for NPV")
	analyzeCmd.Flags().Float64Var(&analyzeInvestment, "investment", 0, "total upfront investment (0 = first-year facility cost)")
	rootCmd.AddCommand(analyzeCmd)
}
