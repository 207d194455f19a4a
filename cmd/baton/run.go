package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/batonkit/baton/internal/capability/builtin"
	"github.com/batonkit/baton/internal/config"
	"github.com/batonkit/baton/internal/llm"
	"github.com/batonkit/baton/internal/orchestrator"
	"github.com/batonkit/baton/internal/state"
	"github.com/batonkit/baton/pkg/models"
)

var (
	runFile      string
	runMode      string
	runTimeout   time.Duration
	runRetries   int
	runQuality   float64
	runContext   []string
	runNoHistory bool
)

var runCmd = &cobra.Command{
	Use:   "run [goal]",
	Short: "Submit a goal and stream its execution",
	Long: `Submit a goal for autonomous execution and stream events until it
reaches a terminal state.

The goal is decomposed into capability tasks, scheduled into phases by
dependency, and executed. Independent tasks run in parallel. The final
output is synthesized from all task results and quality-checked.

The goal can be given as an argument or loaded from a YAML file:

  baton run "write a launch post for the new search feature"
  baton run -f goal.yaml

Autonomy modes (--mode):
  - autonomous: capabilities execute directly (default)
  - hybrid:     work is prepared and held for approval
  - manual:     work is prepared and held for a manual trigger

While a goal runs, an operator can control it from another terminal by
touching signal files under .baton/signals/ (pause-<id>, resume-<id>,
cancel-<id>), or press Ctrl-C here to cancel it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGoal,
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "Load the goal from a YAML file")
	runCmd.Flags().StringVar(&runMode, "mode", "", "Autonomy mode: manual, hybrid, or autonomous")
	runCmd.Flags().DurationVar(&runTimeout, "task-timeout", 0, "Per-task execution timeout")
	runCmd.Flags().IntVar(&runRetries, "retries", 0, "Max retries per task")
	runCmd.Flags().Float64Var(&runQuality, "quality", 0, "Quality threshold in (0,1]")
	runCmd.Flags().StringArrayVar(&runContext, "context", nil, "Extra context as key=value (repeatable)")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Disable the goal history database")
}

func runGoal(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	goalText, mode, constraints, goalCtx, err := resolveGoalInput(cfg, args)
	if err != nil {
		return err
	}

	client, err := buildClient(cfg)
	if err != nil {
		return err
	}

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		reportInterrupted(store)
	}

	orch, err := buildOrchestrator(client, store, cfg)
	if err != nil {
		return err
	}
	defer orch.Shutdown()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	watcher, err := orchestrator.NewSignalWatcher(batonDir(cwd), orch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: signal watcher unavailable: %v\n", err)
	} else {
		defer watcher.Close()
	}

	started := time.Now()
	goalID, err := orch.SubmitGoal(context.Background(), goalText, goalCtx, mode, &constraints)
	if err != nil {
		// A planning failure still records the goal; show what we know.
		if goalID != "" {
			if goal, getErr := orch.GetGoal(goalID); getErr == nil {
				printSummary(goal, client.Tracker(), time.Since(started))
			}
		}
		return fmt.Errorf("submit goal: %w", err)
	}

	// Ctrl-C cancels the goal; a second Ctrl-C force-exits.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, canceling goal...")
		orch.CancelGoal(goalID)
		<-sigCh
		fmt.Println("Force exit.")
		os.Exit(1)
	}()

	streamEvents(orch, watcher, goalID)

	goal, err := orch.GetGoal(goalID)
	if err != nil {
		return fmt.Errorf("get goal: %w", err)
	}
	printSummary(goal, client.Tracker(), time.Since(started))

	if goal.Status == models.GoalStatusFailed {
		return fmt.Errorf("goal %s failed: %s", shortID(goalID), goal.Error)
	}
	return nil
}

// resolveGoalInput merges the argument or goal file with flags and the
// configured defaults. Precedence: flags, then goal file, then config.
func resolveGoalInput(cfg *config.Config, args []string) (string, models.Mode, models.Constraints, map[string]any, error) {
	mode := cfg.Mode()
	constraints := cfg.Constraints()
	goalCtx := map[string]any{}

	var goalText string
	if runFile != "" {
		gf, err := LoadGoalFile(runFile)
		if err != nil {
			return "", mode, constraints, nil, err
		}
		goalText = gf.Goal
		mode, constraints = gf.ApplyTo(mode, constraints)
		for k, v := range gf.Context {
			goalCtx[k] = v
		}
	}
	if len(args) > 0 {
		if goalText != "" {
			return "", mode, constraints, nil, errors.New("goal given both as argument and via --file")
		}
		goalText = args[0]
	}
	if goalText == "" {
		return "", mode, constraints, nil, errors.New("no goal given: pass it as an argument or via --file")
	}

	if runMode != "" {
		parsed, err := models.ParseMode(runMode)
		if err != nil {
			return "", mode, constraints, nil, err
		}
		mode = parsed
	}
	if runTimeout > 0 {
		constraints.TaskTimeout = runTimeout
	}
	if runRetries > 0 {
		constraints.MaxRetries = runRetries
	}
	if runQuality > 0 {
		constraints.QualityThreshold = runQuality
	}

	for _, pair := range runContext {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return "", mode, constraints, nil, fmt.Errorf("invalid --context %q: want key=value", pair)
		}
		goalCtx[key] = value
	}

	return goalText, mode, constraints, goalCtx, nil
}

// buildClient creates the LLM client from config and environment.
func buildClient(cfg *config.Config) (*llm.Client, error) {
	clientCfg := llm.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		MaxTokens:     int64(cfg.Anthropic.MaxTokens),
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	}
	if !cfg.Anthropic.UseAWSBedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w\n\nSet it with:\n  export ANTHROPIC_API_KEY=sk-ant-...\nor:\n  baton config anthropic.api_key sk-ant-...", err)
		}
		clientCfg.APIKey = key
	}

	client, err := llm.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}

// openHistory opens the project history store, or returns nil when
// history is disabled.
func openHistory(cfg *config.Config) (*state.Store, error) {
	if runNoHistory || !cfg.History.Enabled {
		return nil, nil
	}

	path := cfg.History.Path
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		path = state.ProjectPath(cwd)
	}

	store, err := state.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	return store, nil
}

// reportInterrupted closes out goals a previous process left running.
func reportInterrupted(store *state.Store) {
	rm := state.NewRecoveryManager(store)
	interrupted, err := rm.CheckForInterrupted()
	if err != nil || len(interrupted) == 0 {
		return
	}
	fmt.Printf("%s %d goal(s) from a previous run were interrupted; marking failed.\n",
		color.YellowString("⚠"), len(interrupted))
	if _, err := rm.CleanAll(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cleaning interrupted goals: %v\n", err)
	}
}

// buildOrchestrator assembles the orchestrator with the built-in
// capability set registered.
func buildOrchestrator(client *llm.Client, store *state.Store, cfg *config.Config) (*orchestrator.Orchestrator, error) {
	orchCfg := orchestrator.Config{
		Policy: cfg.Policy(),
		Debug:  rootDebug,
	}
	if store != nil {
		orchCfg.History = store
	}
	orch := orchestrator.New(orchCfg)

	catalog := func() []string { return orch.CapabilityStatus().Available }
	for _, c := range builtin.All(client, catalog) {
		if err := orch.RegisterCapability(c); err != nil {
			return nil, fmt.Errorf("register capability: %w", err)
		}
	}
	return orch, nil
}

// batonDir returns the project-local data directory.
func batonDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".baton")
}

// streamEvents prints orchestrator events until the goal reaches a
// terminal state. Signal files are polled as a watcher fallback.
func streamEvents(orch *orchestrator.Orchestrator, watcher *orchestrator.SignalWatcher, goalID string) {
	events := orch.Events()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			printEvent(ev)
			if ev.GoalID == goalID && terminalEvent(ev.Type) {
				drainEvents(events)
				return
			}
		case <-ticker.C:
			if watcher != nil {
				watcher.Poll()
				if watcher.ShouldStop() {
					fmt.Println("Stop signal received, canceling goal...")
					orch.CancelGoal(goalID)
				}
			}
			if goal, err := orch.GetGoal(goalID); err == nil && goal.Status.Terminal() {
				drainEvents(events)
				return
			}
		}
	}
}

func terminalEvent(t orchestrator.EventType) bool {
	switch t {
	case orchestrator.EventGoalCompleted, orchestrator.EventGoalFailed, orchestrator.EventGoalCanceled:
		return true
	}
	return false
}

// drainEvents prints whatever is already buffered without blocking.
func drainEvents(events <-chan orchestrator.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			printEvent(ev)
		default:
			return
		}
	}
}

// printSummary prints the final state of a goal: synthesized result,
// quality, conflicts, recovery advice, and token usage.
func printSummary(goal *models.Goal, tracker *llm.TokenTracker, elapsed time.Duration) {
	fmt.Println()
	switch goal.Status {
	case models.GoalStatusCompleted:
		fmt.Printf("%s Goal %s completed in %s\n", color.GreenString("✓"), shortID(goal.ID), formatDuration(elapsed))
	case models.GoalStatusFailed:
		fmt.Printf("%s Goal %s failed after %s: %s\n", color.RedString("✗"), shortID(goal.ID), formatDuration(elapsed), goal.Error)
	default:
		fmt.Printf("%s Goal %s is %s\n", color.YellowString("•"), shortID(goal.ID), goal.Status)
	}

	if goal.Result != nil {
		fmt.Printf("\n%s\n\n%s\n", color.New(color.Bold).Sprint("Result"), goal.Result.Content)
		printBullets("Insights", goal.Result.Insights)
		printBullets("Recommendations", goal.Result.Recommendations)
		printBullets("Next steps", goal.Result.NextSteps)
	}

	if goal.Quality != nil {
		status := color.GreenString("passed")
		if !goal.Quality.Passed {
			status = color.YellowString("below threshold")
		}
		fmt.Printf("\nQuality: %.2f (%s)\n", goal.Quality.OverallScore, status)
		for _, issue := range goal.Quality.Issues {
			fmt.Printf("  - %s\n", issue)
		}
	}

	if len(goal.Conflicts) > 0 {
		fmt.Printf("\nConflicts resolved: %d\n", len(goal.Conflicts))
		for _, rec := range goal.Conflicts {
			fmt.Printf("  - %s\n", rec.Description)
		}
	}

	if goal.Recovery != nil {
		fmt.Printf("\nSuggested recovery: %s\n", goal.Recovery.Strategy)
		for _, step := range goal.Recovery.Steps {
			fmt.Printf("  - %s\n", step)
		}
	}

	if tracker != nil {
		input, output := tracker.Total()
		if input+output > 0 {
			fmt.Printf("\nTokens: %s in / %s out across %d call(s), ~$%.2f\n",
				formatNumber(input), formatNumber(output), tracker.Calls(), tracker.Cost())
		}
	}
}

func printBullets(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("\n%s\n", color.New(color.Bold).Sprint(title))
	for _, item := range items {
		fmt.Printf("  - %s\n", item)
	}
}
