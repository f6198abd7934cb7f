package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-ops/netplan/internal/optimizer"
	"github.com/meridian-ops/netplan/internal/report"
)

var (
	optimizeInput  string
	optimizeOutput string
	optimizeNoSave bool
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Run the rolling-lease optimizer over a payload",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := loadPayload(optimizeInput)
		if err != nil {
			return err
		}

		in, _, err := p.BuildInput(plannerDefaults())
		if err != nil {
			return err
		}

		result, runErr := optimizer.Run(ctx, in)
		if runErr == nil {
			result.Sanitize()
		}

		if !optimizeNoSave {
			if s, serr := openStore(ctx); serr != nil {
				zap.L().Warn("store unavailable, skipping run history", zap.Error(serr))
			} else {
				defer s.Close()
				recordRun(ctx, s, "optimize", result, runErr)
			}
		}

		if runErr != nil {
			return runErr
		}

		zap.L().Info("optimization complete",
			zap.Int("years", len(result.PerYear)),
			zap.Float64("total_cost", result.Totals.TotalCost),
			zap.Float64("service_level", result.Totals.WeightedServiceLevel),
		)
		return report.WriteJSON(optimizeOutput, result)
	},
}

func init() {
	optimizeCmd.Flags().StringVarP(&optimizeInput, "input", "i", "-", "payload file (JSON), - for stdin")
	optimizeCmd.Flags().StringVarP(&optimizeOutput, "output", "o", "-", "result file (JSON), - for stdout")
	optimizeCmd.Flags().BoolVar(&optimizeNoSave, "no-save", false, "skip recording the run in the history store")
	rootCmd.AddCommand(optimizeCmd)
}
