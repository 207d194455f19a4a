package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootDebug bool

// debugLogf prints debug output when --debug is set.
func debugLogf(format string, args ...interface{}) {
	if rootDebug {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

var rootCmd = &cobra.Command{
	Use:   "baton",
	Short: "Goal orchestration engine",
	Long: `Baton decomposes high-level goals into capability tasks,
schedules them in dependency order, and drives them to completion.

Goals are executed by registered capabilities generating through the
Anthropic API. Parallel phases fan out, divergent outputs are
reconciled, failed tasks retry with backoff, and the combined output
is synthesized and quality-checked at the end.

Core capabilities:
- Decomposes goals into a dependency-ordered execution plan
- Runs independent tasks in parallel phases
- Detects and resolves conflicting capability outputs
- Retries transient failures, adapts tasks to the autonomy mode
- Synthesizes all task results into one deliverable`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(capabilitiesCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(versionCmd)
}
