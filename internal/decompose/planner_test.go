package decompose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/batonkit/baton/internal/capability"
	"github.com/batonkit/baton/internal/graph"
	"github.com/batonkit/baton/pkg/models"
)

func allModes() []models.Mode {
	return []models.Mode{models.ModeManual, models.ModeHybrid, models.ModeAutonomous}
}

func echoCapability(name string, estimate time.Duration) *capability.Func {
	return &capability.Func{
		CapabilityName: name,
		Modes:          allModes(),
		Estimate:       func(input map[string]any) time.Duration { return estimate },
		Run: func(ctx context.Context, input map[string]any, mode models.Mode) (*models.Result, error) {
			return &models.Result{Content: name + " done"}, nil
		},
	}
}

func planningCapability(modes []models.Mode, response string, err error) *capability.Func {
	return &capability.Func{
		CapabilityName: PlanningCapability,
		Modes:          modes,
		Run: func(ctx context.Context, input map[string]any, mode models.Mode) (*models.Result, error) {
			if err != nil {
				return nil, err
			}
			return &models.Result{Content: response}, nil
		},
	}
}

func newTestPlanner(t *testing.T, caps ...*capability.Func) *Planner {
	t.Helper()
	reg := capability.NewRegistry()
	for _, c := range caps {
		if err := reg.Register(c); err != nil {
			t.Fatalf("Register(%s) error = %v", c.CapabilityName, err)
		}
	}
	return NewPlanner(reg)
}

func skeletonCapabilities() []*capability.Func {
	return []*capability.Func{
		echoCapability("research", 5*time.Minute),
		echoCapability("outline", 2*time.Minute),
		echoCapability("produce", 10*time.Minute),
		echoCapability("refine", 3*time.Minute),
	}
}

func TestPlanGoalFallbackSkeleton(t *testing.T) {
	p := newTestPlanner(t, skeletonCapabilities()...)

	goal, err := p.PlanGoal(context.Background(), "write a launch post", nil, models.ModeAutonomous, nil)
	if err != nil {
		t.Fatalf("PlanGoal() error = %v", err)
	}

	if goal.Status != models.GoalStatusPlanning {
		t.Errorf("Status = %q, want planning", goal.Status)
	}
	if len(goal.Tasks) != 4 {
		t.Fatalf("len(Tasks) = %d, want 4", len(goal.Tasks))
	}

	wantCaps := []string{"research", "outline", "produce", "refine"}
	wantPriorities := []models.TaskPriority{models.PriorityHigh, models.PriorityMedium, models.PriorityHigh, models.PriorityMedium}
	for i, task := range goal.Tasks {
		if task.CapabilityType != wantCaps[i] {
			t.Errorf("task %d capability = %q, want %q", i, task.CapabilityType, wantCaps[i])
		}
		if task.Priority != wantPriorities[i] {
			t.Errorf("task %d priority = %q, want %q", i, task.Priority, wantPriorities[i])
		}
		if i > 0 {
			if len(task.Dependencies) != 1 || task.Dependencies[0] != goal.Tasks[i-1].ID {
				t.Errorf("task %d dependencies = %v, want previous task only", i, task.Dependencies)
			}
		}
		if !strings.Contains(task.Description, "write a launch post") {
			t.Errorf("task %d description = %q, want it to mention the goal", i, task.Description)
		}
	}

	// Estimates come from the capabilities' own estimators.
	if goal.Tasks[0].EstimatedDuration != 5*time.Minute {
		t.Errorf("research estimate = %v, want 5m", goal.Tasks[0].EstimatedDuration)
	}
	if goal.Plan == nil {
		t.Fatal("Plan = nil, want execution plan")
	}
	if len(goal.Plan.Phases) != 4 {
		t.Errorf("len(Phases) = %d, want 4 sequential phases", len(goal.Plan.Phases))
	}
	if want := 20 * time.Minute; goal.Plan.EstimatedTotalDuration != want {
		t.Errorf("EstimatedTotalDuration = %v, want %v", goal.Plan.EstimatedTotalDuration, want)
	}
}

func TestPlanGoalDelegatesToPlanningCapability(t *testing.T) {
	response := `[
  {"name": "a", "capability": "research", "description": "first", "priority": "high", "estimated_minutes": 3},
  {"name": "b", "capability": "research", "description": "second", "priority": "high", "estimated_minutes": 4},
  {"name": "c", "capability": "produce", "description": "join", "depends_on": ["a", "b"], "estimated_minutes": 2}
]`
	caps := append(skeletonCapabilities(), planningCapability(allModes(), response, nil))
	p := newTestPlanner(t, caps...)

	goal, err := p.PlanGoal(context.Background(), "research report", nil, models.ModeAutonomous, nil)
	if err != nil {
		t.Fatalf("PlanGoal() error = %v", err)
	}

	if len(goal.Tasks) != 3 {
		t.Fatalf("len(Tasks) = %d, want 3 from delegation", len(goal.Tasks))
	}
	if len(goal.Plan.Phases) != 2 {
		t.Errorf("len(Phases) = %d, want 2", len(goal.Plan.Phases))
	}
	if !goal.Plan.Phases[0].Parallel {
		t.Error("phase 1 Parallel = false, want true")
	}
	if want := 6 * time.Minute; goal.Plan.EstimatedTotalDuration != want {
		t.Errorf("EstimatedTotalDuration = %v, want %v", goal.Plan.EstimatedTotalDuration, want)
	}
}

func TestPlanGoalSkeletonWhenModeUnsupported(t *testing.T) {
	// The planning capability only serves autonomous goals, so a manual
	// goal falls back to the skeleton.
	caps := append(skeletonCapabilities(),
		planningCapability([]models.Mode{models.ModeAutonomous}, `[{"capability": "research"}]`, nil))
	p := newTestPlanner(t, caps...)

	goal, err := p.PlanGoal(context.Background(), "manual goal", nil, models.ModeManual, nil)
	if err != nil {
		t.Fatalf("PlanGoal() error = %v", err)
	}
	if len(goal.Tasks) != 4 {
		t.Errorf("len(Tasks) = %d, want 4 skeleton tasks", len(goal.Tasks))
	}
}

func TestPlanGoalPlanningCapabilityFailure(t *testing.T) {
	// A broken planning capability fails the goal rather than silently
	// falling back.
	caps := append(skeletonCapabilities(),
		planningCapability(allModes(), "", fmt.Errorf("model unavailable")))
	p := newTestPlanner(t, caps...)

	goal, err := p.PlanGoal(context.Background(), "doomed goal", nil, models.ModeAutonomous, nil)
	if err == nil {
		t.Fatal("PlanGoal() error = nil, want planning error")
	}

	var planErr *PlanningError
	if !errors.As(err, &planErr) {
		t.Fatalf("error = %T, want *PlanningError", err)
	}
	if goal.Status != models.GoalStatusFailed {
		t.Errorf("Status = %q, want failed", goal.Status)
	}
	if goal.Error == "" {
		t.Error("goal.Error is empty, want cause attached")
	}
}

func TestPlanGoalUnknownCapabilityType(t *testing.T) {
	caps := append(skeletonCapabilities(),
		planningCapability(allModes(), `[{"name": "a", "capability": "teleport"}]`, nil))
	p := newTestPlanner(t, caps...)

	goal, err := p.PlanGoal(context.Background(), "goal", nil, models.ModeAutonomous, nil)
	if err == nil {
		t.Fatal("PlanGoal() error = nil, want unknown capability error")
	}
	if !errors.Is(err, capability.ErrUnknownCapability) {
		t.Errorf("errors.Is(err, ErrUnknownCapability) = false, err = %v", err)
	}
	if goal.Status != models.GoalStatusFailed {
		t.Errorf("Status = %q, want failed", goal.Status)
	}
}

func TestPlanGoalCyclicDecomposition(t *testing.T) {
	response := `[
  {"name": "a", "capability": "research", "depends_on": ["b"]},
  {"name": "b", "capability": "produce", "depends_on": ["a"]}
]`
	caps := append(skeletonCapabilities(), planningCapability(allModes(), response, nil))
	p := newTestPlanner(t, caps...)

	goal, err := p.PlanGoal(context.Background(), "cyclic goal", nil, models.ModeAutonomous, nil)
	if err == nil {
		t.Fatal("PlanGoal() error = nil, want cycle error")
	}
	if !errors.Is(err, graph.ErrCycleDetected) {
		t.Errorf("errors.Is(err, ErrCycleDetected) = false, err = %v", err)
	}

	var planErr *PlanningError
	if !errors.As(err, &planErr) {
		t.Fatalf("error = %T, want *PlanningError", err)
	}
	if goal.Status != models.GoalStatusFailed {
		t.Errorf("Status = %q, want failed", goal.Status)
	}
	if goal.Plan != nil {
		t.Error("Plan != nil, want no execution plan for a failed goal")
	}
}

func TestPlanGoalEmptyText(t *testing.T) {
	p := newTestPlanner(t, skeletonCapabilities()...)

	goal, err := p.PlanGoal(context.Background(), "   ", nil, models.ModeAutonomous, nil)
	if err == nil {
		t.Fatal("PlanGoal() error = nil, want error")
	}
	if goal.Status != models.GoalStatusFailed {
		t.Errorf("Status = %q, want failed", goal.Status)
	}
}

func TestPlanGoalInvalidMode(t *testing.T) {
	p := newTestPlanner(t, skeletonCapabilities()...)

	_, err := p.PlanGoal(context.Background(), "goal", nil, models.Mode("rogue"), nil)
	if err == nil {
		t.Fatal("PlanGoal() error = nil, want error")
	}
}

func TestPlanGoalConstraintDefaults(t *testing.T) {
	p := newTestPlanner(t, skeletonCapabilities()...)

	goal, err := p.PlanGoal(context.Background(), "goal", nil, models.ModeAutonomous, nil)
	if err != nil {
		t.Fatalf("PlanGoal() error = %v", err)
	}
	want := models.DefaultConstraints()
	if goal.Constraints != want {
		t.Errorf("Constraints = %+v, want defaults %+v", goal.Constraints, want)
	}

	partial := &models.Constraints{MaxRetries: 1}
	goal, err = p.PlanGoal(context.Background(), "goal", nil, models.ModeAutonomous, partial)
	if err != nil {
		t.Fatalf("PlanGoal() error = %v", err)
	}
	if goal.Constraints.MaxRetries != 1 {
		t.Errorf("MaxRetries = %d, want 1", goal.Constraints.MaxRetries)
	}
	if goal.Constraints.TaskTimeout != want.TaskTimeout {
		t.Errorf("TaskTimeout = %v, want default %v", goal.Constraints.TaskTimeout, want.TaskTimeout)
	}
}

func TestPlanGoalPassesContextToPlanner(t *testing.T) {
	var gotInput map[string]any
	planner := &capability.Func{
		CapabilityName: PlanningCapability,
		Modes:          allModes(),
		Run: func(ctx context.Context, input map[string]any, mode models.Mode) (*models.Result, error) {
			gotInput = input
			return &models.Result{Content: `[{"capability": "research"}]`}, nil
		},
	}
	caps := append(skeletonCapabilities(), planner)
	p := newTestPlanner(t, caps...)

	_, err := p.PlanGoal(context.Background(), "the goal", map[string]any{"audience": "engineers"}, models.ModeAutonomous, nil)
	if err != nil {
		t.Fatalf("PlanGoal() error = %v", err)
	}
	if gotInput["goal"] != "the goal" {
		t.Errorf("input[goal] = %v, want the goal text", gotInput["goal"])
	}
	if gotInput["audience"] != "engineers" {
		t.Errorf("input[audience] = %v, want engineers", gotInput["audience"])
	}
}

func TestPlanGoalRequiredContextKeyMissing(t *testing.T) {
	planner := &capability.Func{
		CapabilityName: PlanningCapability,
		Modes:          allModes(),
		RequiredKeys:   []string{"corpus"},
		Run: func(ctx context.Context, input map[string]any, mode models.Mode) (*models.Result, error) {
			return &models.Result{Content: `[{"capability": "research"}]`}, nil
		},
	}
	caps := append(skeletonCapabilities(), planner)
	p := newTestPlanner(t, caps...)

	goal, err := p.PlanGoal(context.Background(), "goal", nil, models.ModeAutonomous, nil)
	if err == nil {
		t.Fatal("PlanGoal() error = nil, want missing key error")
	}
	if !strings.Contains(err.Error(), "corpus") {
		t.Errorf("error = %q, want it to name the missing key", err)
	}
	if goal.Status != models.GoalStatusFailed {
		t.Errorf("Status = %q, want failed", goal.Status)
	}
}
