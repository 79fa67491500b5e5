// Command canopy runs an agent tree from the terminal: one-shot prompts
// against a YAML-defined tree, or scripted evaluation scenarios.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
