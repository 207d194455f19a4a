package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/batonkit/baton/internal/state"
)

var (
	cleanupForce     bool
	cleanupDryRun    bool
	cleanupOlderThan time.Duration
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Close out interrupted goals and purge old history",
	Long: `Clean up goal history and stale control signals.

This command:
  - Marks goals interrupted by a previous exit as failed
  - Purges completed and failed goals older than --older-than
  - Removes stale signal files under .baton/signals

Use this after a crash or interrupted run.

Examples:
  baton cleanup                   # Interactive cleanup with confirmation
  baton cleanup --force           # Skip confirmation prompt
  baton cleanup --dry-run         # Show what would be cleaned
  baton cleanup --older-than 168h # Purge history older than a week`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "Skip confirmation prompt")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be cleaned without changing anything")
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 30*24*time.Hour, "Purge terminal goals last updated before this age")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	store, err := openExistingHistory()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	var interrupted []state.InterruptedGoal
	purgeable := 0
	if store != nil {
		rm := state.NewRecoveryManager(store)
		interrupted, err = rm.CheckForInterrupted()
		if err != nil {
			return fmt.Errorf("check interrupted goals: %w", err)
		}

		goals, err := store.ListGoals(nil, 0)
		if err != nil {
			return fmt.Errorf("list goals: %w", err)
		}
		cutoff := time.Now().Add(-cleanupOlderThan)
		for _, g := range goals {
			if g.Status.Terminal() && g.LastUpdated.Before(cutoff) {
				purgeable++
			}
		}
	}

	signals, err := staleSignalFiles()
	if err != nil {
		return err
	}

	if len(interrupted) == 0 && purgeable == 0 && len(signals) == 0 {
		fmt.Println("Nothing to clean up.")
		return nil
	}

	if len(interrupted) > 0 {
		fmt.Printf("Found %d interrupted goal(s):\n", len(interrupted))
		for _, g := range interrupted {
			fmt.Printf("  - %s %q (%s, last updated %s ago)\n",
				shortID(g.GoalID), truncate(g.Title, 40), g.Status,
				formatDuration(time.Since(g.LastUpdated)))
		}
	}
	if purgeable > 0 {
		fmt.Printf("Found %d terminal goal(s) older than %s.\n", purgeable, formatDuration(cleanupOlderThan))
	}
	if len(signals) > 0 {
		fmt.Printf("Found %d stale signal file(s).\n", len(signals))
	}
	fmt.Println()

	if cleanupDryRun {
		fmt.Println("Dry run mode - nothing was changed.")
		return nil
	}

	if !cleanupForce {
		fmt.Print("Proceed with cleanup? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read confirmation: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println("Cleanup cancelled.")
			return nil
		}
	}

	if store != nil {
		if len(interrupted) > 0 {
			rm := state.NewRecoveryManager(store)
			cleaned, err := rm.CleanAll()
			if err != nil {
				return fmt.Errorf("clean interrupted goals: %w", err)
			}
			fmt.Printf("Marked %d interrupted goal(s) as failed.\n", cleaned)
		}
		if purgeable > 0 {
			purged, err := store.PurgeTerminalGoals(cleanupOlderThan)
			if err != nil {
				return fmt.Errorf("purge old goals: %w", err)
			}
			fmt.Printf("Purged %d goal(s) from history.\n", purged)
		}
	}

	for _, path := range signals {
		os.Remove(path)
	}
	if len(signals) > 0 {
		fmt.Printf("Removed %d stale signal file(s).\n", len(signals))
	}

	return nil
}

// staleSignalFiles lists leftover signal files in the project's signals
// directory. Signals are consumed when applied, so anything on disk
// outside a running goal is stale.
func staleSignalFiles() ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	signalsDir := filepath.Join(batonDir(cwd), "signals")
	entries, err := os.ReadDir(signalsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read signals directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, filepath.Join(signalsDir, entry.Name()))
		}
	}
	return files, nil
}
