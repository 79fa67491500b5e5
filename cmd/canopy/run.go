package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/canopyai/canopy/engine"
)

// progressListener renders live tool and delegation activity on stderr.
type progressListener struct{}

func (progressListener) OnToolStart(agentName, toolName string, _ map[string]any) {
	fmt.Fprintf(os.Stderr, "[%s] calling %s...\n", agentName, toolName)
}

func (progressListener) OnToolEnd(agentName, toolName string, _ any) {
	fmt.Fprintf(os.Stderr, "[%s] %s done\n", agentName, toolName)
}

func (progressListener) OnAgentResponse(agentName, content string) {
	fmt.Fprintf(os.Stderr, "[%s] responded (%d chars)\n", agentName, len(content))
}

func newRunCmd() *cobra.Command {
	var treePath string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Send one message to the root agent of a tree",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var listeners []engine.Listener
			if !quiet {
				listeners = append(listeners, progressListener{})
			}

			runner, err := buildRunner(cmd.Context(), treePath, listeners...)
			if err != nil {
				return err
			}

			out := runner.SendMessage(cmd.Context(), nil, strings.Join(args, " "))
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&treePath, "tree", "t", "tree.yaml", "agent tree definition file")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")

	return cmd
}
