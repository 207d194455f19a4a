package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/batonkit/baton/internal/config"
	"github.com/batonkit/baton/internal/state"
	"github.com/batonkit/baton/pkg/models"
)

var (
	statusLimit  int
	statusEvents int
)

var statusCmd = &cobra.Command{
	Use:   "status [goal-id]",
	Short: "Show recorded goals and their outcomes",
	Long: `Display the goal history recorded in this project.

Without arguments, lists recent goals. With a goal id (or unique id
prefix), shows that goal's tasks and event log.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of recent goals to list")
	statusCmd.Flags().IntVar(&statusEvents, "events", 15, "Number of recent events to show per goal")
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := openExistingHistory()
	if err != nil {
		return err
	}
	if store == nil {
		fmt.Println("No goal history found. Run 'baton run <goal>' to start.")
		return nil
	}
	defer store.Close()

	if len(args) == 1 {
		return showGoal(store, args[0])
	}
	return showOverview(store)
}

// openExistingHistory opens the history database if one exists, trying
// the project path first and the global path second. Returns nil when
// neither exists.
func openExistingHistory() (*state.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var candidates []string
	if cfg.History.Path != "" {
		candidates = append(candidates, cfg.History.Path)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		candidates = append(candidates, state.ProjectPath(cwd), state.GlobalPath())
	}

	var path string
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			path = c
			break
		}
	}
	if path == "" {
		return nil, nil
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

func showOverview(store *state.Store) error {
	rm := state.NewRecoveryManager(store)
	interrupted, err := rm.CheckForInterrupted()
	if err != nil {
		return fmt.Errorf("check interrupted goals: %w", err)
	}
	if len(interrupted) > 0 {
		fmt.Printf("%s %d goal(s) were interrupted by a previous exit. Run 'baton cleanup' to close them out.\n\n",
			color.YellowString("⚠"), len(interrupted))
	}

	goals, err := store.ListGoals(nil, statusLimit)
	if err != nil {
		return fmt.Errorf("list goals: %w", err)
	}
	if len(goals) == 0 {
		fmt.Println("No goals recorded yet. Run 'baton run <goal>' to start.")
		return nil
	}

	rows := make([][]string, 0, len(goals))
	for _, g := range goals {
		quality := "-"
		if g.QualityScore != nil {
			quality = fmt.Sprintf("%.2f", *g.QualityScore)
		}
		rows = append(rows, []string{
			shortID(g.ID),
			goalStatusLabel(g.Status),
			strconv.Itoa(int(g.Progress*100)) + "%",
			quality,
			formatDuration(time.Since(g.LastUpdated)) + " ago",
			truncate(g.Title, 44),
		})
	}
	fmt.Println(renderTable([]string{"ID", "STATUS", "PROGRESS", "QUALITY", "UPDATED", "GOAL"}, rows))
	return nil
}

func showGoal(store *state.Store, idOrPrefix string) error {
	rec, err := resolveStoredGoal(store, idOrPrefix)
	if err != nil {
		return err
	}

	fmt.Printf("Goal: %s\n", rec.ID)
	fmt.Printf("  Title: %s\n", rec.Title)
	fmt.Printf("  Mode: %s\n", rec.Mode)
	fmt.Printf("  Status: %s\n", goalStatusLabel(rec.Status))
	fmt.Printf("  Progress: %d%%\n", int(rec.Progress*100))
	if rec.QualityScore != nil {
		fmt.Printf("  Quality: %.2f\n", *rec.QualityScore)
	}
	fmt.Printf("  Updated: %s ago\n", formatDuration(time.Since(rec.LastUpdated)))
	if rec.Error != "" {
		fmt.Printf("  Error: %s\n", rec.Error)
	}
	if rec.Result != nil {
		fmt.Printf("  Result: %s\n", truncate(strings.ReplaceAll(rec.Result.Content, "\n", " "), 72))
	}

	tasks, err := store.ListTasks(rec.ID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) > 0 {
		rows := make([][]string, 0, len(tasks))
		for _, t := range tasks {
			rows = append(rows, []string{
				shortID(t.ID),
				t.Capability,
				taskStatusLabel(t.Status),
				strconv.Itoa(t.RetryCount),
				taskDuration(t),
				truncate(t.Description, 40),
			})
		}
		fmt.Println()
		fmt.Println(renderTable([]string{"TASK", "CAPABILITY", "STATUS", "RETRIES", "TOOK", "DESCRIPTION"}, rows))
	}

	events, err := store.ListEvents(rec.ID, statusEvents)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if len(events) > 0 {
		fmt.Println("\nRecent events:")
		for _, ev := range events {
			fmt.Printf("  %s  %-18s %s\n",
				ev.CreatedAt.Local().Format("15:04:05"), ev.Type, truncate(ev.Message, 56))
		}
	}
	return nil
}

// resolveStoredGoal expands a goal id prefix against the stored goals.
func resolveStoredGoal(store *state.Store, idOrPrefix string) (*state.GoalRecord, error) {
	rec, err := store.GetGoal(idOrPrefix)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}

	goals, err := store.ListGoals(nil, 0)
	if err != nil {
		return nil, err
	}
	var match *state.GoalRecord
	for i := range goals {
		if strings.HasPrefix(goals[i].ID, idOrPrefix) {
			if match != nil {
				return nil, fmt.Errorf("goal id %q is ambiguous", idOrPrefix)
			}
			match = &goals[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("goal %q not found in history", idOrPrefix)
	}
	return match, nil
}

func taskDuration(t state.TaskRecord) string {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return "-"
	}
	return formatDuration(t.CompletedAt.Sub(*t.StartedAt))
}

func goalStatusLabel(s models.GoalStatus) string {
	switch s {
	case models.GoalStatusCompleted:
		return color.GreenString(string(s))
	case models.GoalStatusFailed:
		return color.RedString(string(s))
	case models.GoalStatusExecuting, models.GoalStatusPlanning:
		return color.CyanString(string(s))
	case models.GoalStatusPaused:
		return color.YellowString(string(s))
	}
	return string(s)
}

func taskStatusLabel(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusCompleted:
		return color.GreenString(string(s))
	case models.TaskStatusFailed:
		return color.RedString(string(s))
	case models.TaskStatusInProgress:
		return color.CyanString(string(s))
	}
	return string(s)
}
