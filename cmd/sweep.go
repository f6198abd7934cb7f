package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-ops/netplan/internal/report"
	"github.com/meridian-ops/netplan/internal/sweep"
)

var (
	sweepInput       string
	sweepOutput      string
	sweepWorkbook    string
	sweepMinNodes    int
	sweepMaxNodes    int
	sweepConcurrency int
	sweepNoSave      bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Sweep candidate network sizes and pick the best configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := loadPayload(sweepInput)
		if err != nil {
			return err
		}

		base, reg, err := p.BuildInput(plannerDefaults())
		if err != nil {
			return err
		}

		concurrency := sweepConcurrency
		if concurrency == 0 {
			concurrency = cfg.Sweep.Concurrency
		}

		result, runErr := sweep.Run(ctx, sweep.Input{
			MinNodes:    sweepMinNodes,
			MaxNodes:    sweepMaxNodes,
			Concurrency: concurrency,
			Registry:    reg,
			Base:        base,
			Weights:     p.Weights(plannerDefaults()),
		})

		if !sweepNoSave {
			if s, serr := openStore(ctx); serr != nil {
				zap.L().Warn("store unavailable, skipping run history", zap.Error(serr))
			} else {
				defer s.Close()
				recordRun(ctx, s, "sweep", result, runErr)
			}
		}

		if runErr != nil {
			return runErr
		}

		if sweepWorkbook != "" {
			if err := report.WriteSweepWorkbook(sweepWorkbook, result); err != nil {
				return err
			}
			zap.L().Info("comparison workbook written", zap.String("path", sweepWorkbook))
		}

		if result.Best != nil {
			zap.L().Info("sweep complete",
				zap.Int("best_nodes", result.Best.Nodes),
				zap.Float64("best_cost", result.Best.KPIs.TotalNetworkCost),
				zap.Float64("best_service_level", result.Best.KPIs.WeightedServiceLevel),
				zap.Bool("below_service_floor", result.BelowServiceFloor),
			)
		}
		return report.WriteJSON(sweepOutput, result)
	},
}

func init() {
	sweepCmd.Flags().StringVarP(&sweepInput, "input", "i", "-", "payload file (JSON), - for stdin")
	sweepCmd.Flags().StringVarP(&sweepOutput, "output", "o", "-", "result file (JSON), - for stdout")
	sweepCmd.Flags().StringVar(&sweepWorkbook, "workbook", "", "write scenario comparison workbook (xlsx) to this path")
	sweepCmd.Flags().IntVar(&sweepMinNodes, "min-nodes", 1, "smallest candidate network size")
	sweepCmd.Flags().IntVar(&sweepMaxNodes, "max-nodes", 5, "largest candidate network size")
	sweepCmd.Flags().IntVar(&sweepConcurrency, "concurrency", 0, "parallel scenario runs (0 = config default)")
	sweepCmd.Flags().BoolVar(&sweepNoSave, "no-save", false, "skip recording the run in the history store")
	rootCmd.AddCommand(sweepCmd)
}
