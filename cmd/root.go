package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-ops/netplan/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "netplan",
	Short: "Multi-year facility network planner",
	Long:  "Optimizes a multi-year rolling-lease facility network: which sites to open, expand, keep, or close each year, minimizing fixed plus transportation cost under lease and service-level constraints.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
