package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/canopyai/canopy/evaluation"
)

func newEvalCmd() *cobra.Command {
	var treePath string
	var scenariosPath string

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run scripted evaluation scenarios against a tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scenarios, err := evaluation.LoadScenarios(scenariosPath)
			if err != nil {
				return err
			}

			runner, err := buildRunner(cmd.Context(), treePath)
			if err != nil {
				return err
			}

			harness := evaluation.NewHarness(runner, func(o *evaluation.Options) {
				o.Logger = newLogger()
			})

			results := harness.Run(cmd.Context(), scenarios)

			out := cmd.OutOrStdout()
			totalErrors := 0
			for _, r := range results {
				totalErrors += r.Errors
				fmt.Fprintf(out, "%-24s turns=%d errors=%d total=%s\n",
					r.Scenario, len(r.Turns), r.Errors, r.TotalLatency.Round(time.Millisecond))
				for _, turn := range r.Turns {
					status := "ok"
					if turn.Errored {
						status = "ERROR"
					}
					fmt.Fprintf(out, "  %2d %-5s %-8s %s\n",
						turn.Turn, status, turn.Latency.Round(time.Millisecond), truncate(turn.Input, 60))
				}
			}

			if totalErrors > 0 {
				return fmt.Errorf("%d turn(s) failed", totalErrors)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&treePath, "tree", "t", "tree.yaml", "agent tree definition file")
	cmd.Flags().StringVarP(&scenariosPath, "scenarios", "s", "scenarios.yaml", "scenario definition file")

	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
