package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meridian-ops/netplan/internal/report"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded optimization runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		runs, err := s.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Printf("%s  %-8s  %-8s  %s\n", r.ID, r.Kind, r.Status, r.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run's stored result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		r, err := s.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if r.Status == "failed" {
			fmt.Printf("run %s failed: %s\n", r.ID, r.Error)
			return nil
		}
		if r.Result == "" {
			fmt.Printf("run %s: %s (no result stored)\n", r.ID, r.Status)
			return nil
		}
		return report.WriteJSON("-", jsonRaw(r.Result))
	},
}

// jsonRaw keeps stored JSON from being double-encoded on output.
type jsonRaw string

func (j jsonRaw) MarshalJSON() ([]byte, error) { return []byte(j), nil }

func init() {
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "max runs to list")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
