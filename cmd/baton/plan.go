package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/batonkit/baton/internal/capability"
	"github.com/batonkit/baton/internal/capability/builtin"
	"github.com/batonkit/baton/internal/config"
	"github.com/batonkit/baton/internal/decompose"
	"github.com/batonkit/baton/internal/llm"
	"github.com/batonkit/baton/pkg/models"
)

var (
	planFile string
	planMode string
)

var planCmd = &cobra.Command{
	Use:   "plan [goal]",
	Short: "Preview the execution plan for a goal without running it",
	Long: `Decompose a goal and show the resulting task list, phase schedule,
and time estimates without executing anything.

With an API key configured, decomposition is delegated to the planning
capability, so the preview is the same plan "baton run" would execute.
Without a key, the deterministic fallback decomposition is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: previewPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planFile, "file", "f", "", "Load the goal from a YAML file")
	planCmd.Flags().StringVar(&planMode, "mode", "", "Autonomy mode: manual, hybrid, or autonomous")
}

func previewPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	mode := cfg.Mode()
	constraints := cfg.Constraints()
	goalCtx := map[string]any{}

	var goalText string
	if planFile != "" {
		gf, err := LoadGoalFile(planFile)
		if err != nil {
			return err
		}
		goalText = gf.Goal
		mode, constraints = gf.ApplyTo(mode, constraints)
		for k, v := range gf.Context {
			goalCtx[k] = v
		}
	}
	if len(args) > 0 {
		if goalText != "" {
			return errors.New("goal given both as argument and via --file")
		}
		goalText = args[0]
	}
	if goalText == "" {
		return errors.New("no goal given: pass it as an argument or via --file")
	}
	if planMode != "" {
		parsed, err := models.ParseMode(planMode)
		if err != nil {
			return err
		}
		mode = parsed
	}

	reg := capability.NewRegistry()
	client, clientErr := buildClient(cfg)
	if clientErr != nil {
		// Without a generator the planning capability cannot run; leaving
		// it unregistered makes the planner fall back to the skeleton.
		fmt.Fprintf(os.Stderr, "%s No API key configured; showing the fallback decomposition.\n\n",
			color.YellowString("⚠"))
		stub := llm.GeneratorFunc(func(ctx context.Context, system, prompt string) (string, error) {
			return "", errors.New("no API key configured")
		})
		for _, c := range builtin.All(stub, reg.Names) {
			if c.Name() == decompose.PlanningCapability {
				continue
			}
			if err := reg.Register(c); err != nil {
				return fmt.Errorf("register capability: %w", err)
			}
		}
	} else {
		for _, c := range builtin.All(client, reg.Names) {
			if err := reg.Register(c); err != nil {
				return fmt.Errorf("register capability: %w", err)
			}
		}
	}

	planner := decompose.NewPlanner(reg)
	planner.SetDebugLog(debugLogf)
	goal, err := planner.PlanGoal(context.Background(), goalText, goalCtx, mode, &constraints)
	if err != nil {
		return fmt.Errorf("plan goal: %w", err)
	}
	printPlan(goal)

	if clientErr == nil {
		if in, out := client.Tracker().Total(); in+out > 0 {
			fmt.Printf("\nPlanning used %s tokens (~$%.2f)\n",
				formatNumber(in+out), client.Tracker().Cost())
		}
	}
	return nil
}

// printPlan renders a planned goal: the task table, the phase schedule,
// the critical path, and the resource allocation hint.
func printPlan(goal *models.Goal) {
	fmt.Printf("Goal: %s\n", goal.Title)
	fmt.Printf("Mode: %s\n", goal.Mode)
	fmt.Printf("Tasks: %d in %d phase(s), estimated %s\n\n",
		len(goal.Tasks), len(goal.Plan.Phases), formatDuration(goal.Plan.EstimatedTotalDuration))

	num := make(map[string]int, len(goal.Tasks))
	for i, t := range goal.Tasks {
		num[t.ID] = i + 1
	}

	taskRows := make([][]string, 0, len(goal.Tasks))
	for i, t := range goal.Tasks {
		deps := "-"
		if len(t.Dependencies) > 0 {
			nums := make([]string, 0, len(t.Dependencies))
			for _, dep := range t.Dependencies {
				nums = append(nums, strconv.Itoa(num[dep]))
			}
			deps = strings.Join(nums, ",")
		}
		taskRows = append(taskRows, []string{
			strconv.Itoa(i + 1),
			t.CapabilityType,
			string(t.Priority),
			formatDuration(t.EstimatedDuration),
			deps,
			truncate(t.Description, 48),
		})
	}
	fmt.Println(renderTable([]string{"#", "CAPABILITY", "PRIORITY", "EST", "DEPS", "DESCRIPTION"}, taskRows))

	phaseRows := make([][]string, 0, len(goal.Plan.Phases))
	for i, ph := range goal.Plan.Phases {
		refs := make([]string, 0, len(ph.TaskIDs))
		for _, id := range ph.TaskIDs {
			refs = append(refs, "#"+strconv.Itoa(num[id]))
		}
		kind := "sequential"
		if ph.Parallel {
			kind = "parallel"
		}
		phaseRows = append(phaseRows, []string{
			strconv.Itoa(i + 1),
			kind,
			formatDuration(ph.EstimatedDuration),
			strings.Join(refs, " "),
		})
	}
	fmt.Println()
	fmt.Println(renderTable([]string{"PHASE", "MODE", "EST", "TASKS"}, phaseRows))

	if len(goal.Plan.CriticalPath) > 0 {
		refs := make([]string, 0, len(goal.Plan.CriticalPath))
		for _, id := range goal.Plan.CriticalPath {
			if n, ok := num[id]; ok {
				refs = append(refs, "#"+strconv.Itoa(n))
			}
		}
		fmt.Printf("\nCritical path: %s\n", strings.Join(refs, " > "))
	}

	if len(goal.Plan.ResourceAllocation) > 0 {
		names := make([]string, 0, len(goal.Plan.ResourceAllocation))
		for name := range goal.Plan.ResourceAllocation {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println("\nResource allocation:")
		for _, name := range names {
			fmt.Printf("  %-12s %4.0f%%\n", name, goal.Plan.ResourceAllocation[name]*100)
		}
	}
}
