// Package decompose turns goal text into a planned goal: a task list
// with dependencies, a validated dependency graph, and an execution
// plan. Decomposition is pluggable. A registered planning capability
// that supports the goal's mode is delegated to and its output repaired
// against the registry; otherwise a fixed four-task skeleton covers
// research, outline, produce, and refine.
package decompose

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/batonkit/baton/internal/capability"
	"github.com/batonkit/baton/internal/graph"
	"github.com/batonkit/baton/internal/plan"
	"github.com/batonkit/baton/pkg/models"
)

// PlanningCapability is the registry name consulted for delegated
// decomposition.
const PlanningCapability = "planning"

// PlanningError reports a goal whose decomposition could not be turned
// into an executable plan. The goal is still created, in failed status
// with this error attached, so the failure is inspectable; it never
// executes.
type PlanningError struct {
	// GoalID is the failed goal's id.
	GoalID string
	// Cause is the underlying decomposition or graph error.
	Cause error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("goal planning failed: %v", e.Cause)
}

func (e *PlanningError) Unwrap() error { return e.Cause }

// fallbackSkeleton is the deterministic decomposition used when no
// planning capability can serve the goal's mode. The steps form a fixed
// dependency chain.
var fallbackSkeleton = []struct {
	capability  string
	description string
	priority    models.TaskPriority
}{
	{"research", "Research background and gather material for: %s", models.PriorityHigh},
	{"outline", "Outline the structure for: %s", models.PriorityMedium},
	{"produce", "Produce the main deliverable for: %s", models.PriorityHigh},
	{"refine", "Refine and polish the deliverable for: %s", models.PriorityMedium},
}

// Planner plans goals end to end: decompose, validate the dependency
// graph, and derive the execution plan.
type Planner struct {
	registry *capability.Registry
	plans    *plan.Planner
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// NewPlanner creates a goal planner resolving capabilities through reg.
func NewPlanner(reg *capability.Registry) *Planner {
	return &Planner{
		registry: reg,
		plans:    plan.NewPlanner(),
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (p *Planner) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		p.debugLog = fn
		p.plans.SetDebugLog(fn)
	}
}

// PlanGoal decomposes goalText into a goal ready for execution. The
// returned goal is always non-nil: on failure it carries failed status
// and the error message, and the error is a *PlanningError wrapping the
// cause. Unregistered capability types and dependency cycles are
// rejected here, not at execution time.
func (p *Planner) PlanGoal(ctx context.Context, goalText string, goalCtx map[string]any, mode models.Mode, constraints *models.Constraints) (*models.Goal, error) {
	now := time.Now()
	goal := &models.Goal{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(goalText),
		Status:      models.GoalStatusPlanning,
		Mode:        mode,
		Context:     goalCtx,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if constraints != nil {
		goal.Constraints = constraints.WithDefaults()
	} else {
		goal.Constraints = models.DefaultConstraints()
	}

	if goal.Title == "" {
		return p.fail(goal, fmt.Errorf("empty goal text"))
	}
	if !mode.Valid() {
		return p.fail(goal, fmt.Errorf("invalid mode %q", mode))
	}

	tasks, err := p.decompose(ctx, goal)
	if err != nil {
		return p.fail(goal, err)
	}
	goal.Tasks = tasks

	for _, task := range tasks {
		resolved, err := p.registry.Resolve(task.CapabilityType)
		if err != nil {
			return p.fail(goal, fmt.Errorf("task %q: %w", task.Description, err))
		}
		if task.EstimatedDuration <= 0 {
			task.EstimatedDuration = resolved.EstimateDuration(goal.Context)
		}
	}

	g := graph.New()
	g.SetDebugLog(p.debugLog)
	if err := g.Build(tasks); err != nil {
		return p.fail(goal, err)
	}

	executionPlan, err := p.plans.Plan(g)
	if err != nil {
		return p.fail(goal, err)
	}
	goal.Plan = executionPlan

	p.debugLog("[decompose] goal %s planned: %d tasks in %d phases",
		shortID(goal.ID), len(tasks), len(executionPlan.Phases))
	return goal, nil
}

// fail marks the goal failed with the planning error attached and
// returns both.
func (p *Planner) fail(goal *models.Goal, cause error) (*models.Goal, error) {
	err := &PlanningError{GoalID: goal.ID, Cause: cause}
	goal.Status = models.GoalStatusFailed
	goal.Error = err.Error()
	goal.LastUpdated = time.Now()
	p.debugLog("[decompose] goal %s failed planning: %v", shortID(goal.ID), cause)
	return goal, err
}

// decompose picks the strategy: delegate when a planning capability is
// registered and supports the goal's mode, else emit the skeleton.
func (p *Planner) decompose(ctx context.Context, goal *models.Goal) ([]*models.Task, error) {
	planner, err := p.registry.Resolve(PlanningCapability)
	if err == nil && capability.SupportsMode(planner, goal.Mode) {
		p.debugLog("[decompose] goal %s delegated to planning capability", shortID(goal.ID))
		return p.delegate(ctx, planner, goal)
	}
	p.debugLog("[decompose] goal %s using fallback skeleton", shortID(goal.ID))
	return p.skeleton(goal), nil
}

// delegate runs the planning capability and parses its response.
// Delegation errors are planning failures, not a trigger for the
// skeleton, so a broken planner is never papered over.
func (p *Planner) delegate(ctx context.Context, planner capability.Capability, goal *models.Goal) ([]*models.Task, error) {
	input := make(map[string]any, len(goal.Context)+1)
	for k, v := range goal.Context {
		input[k] = v
	}
	input["goal"] = goal.Title

	for _, key := range planner.RequiredContextKeys() {
		if _, ok := input[key]; !ok {
			return nil, fmt.Errorf("planning capability requires context key %q", key)
		}
	}
	if !capability.ValidateInput(planner, input) {
		return nil, fmt.Errorf("planning capability rejected input")
	}

	ctx, cancel := context.WithTimeout(ctx, goal.Constraints.TaskTimeout)
	defer cancel()

	result, err := planner.Execute(ctx, input, goal.Mode)
	if err != nil {
		return nil, fmt.Errorf("planning capability: %w", err)
	}
	if result == nil || result.Content == "" {
		return nil, fmt.Errorf("planning capability returned no content")
	}

	tasks, err := ParseTasks(result.Content)
	if err != nil {
		return nil, fmt.Errorf("parse planning response: %w", err)
	}
	return tasks, nil
}

// skeleton emits the fallback decomposition chained through the four
// fixed steps.
func (p *Planner) skeleton(goal *models.Goal) []*models.Task {
	now := time.Now()
	tasks := make([]*models.Task, len(fallbackSkeleton))
	for i, step := range fallbackSkeleton {
		tasks[i] = &models.Task{
			ID:             uuid.New().String(),
			CapabilityType: step.capability,
			Description:    fmt.Sprintf(step.description, goal.Title),
			Priority:       step.priority,
			Status:         models.TaskStatusPending,
			CreatedAt:      now,
		}
		if i > 0 {
			tasks[i].Dependencies = []string{tasks[i-1].ID}
		}
	}
	return tasks
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
