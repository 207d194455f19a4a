// Package plan partitions a goal's dependency graph into ordered phases
// of mutually independent tasks and derives the plan-level estimates:
// critical path, total duration, and per-capability resource allocation.
package plan

import (
	"fmt"
	"time"

	"github.com/batonkit/baton/internal/graph"
	"github.com/batonkit/baton/pkg/models"
)

// Planner computes execution plans from built dependency graphs.
type Planner struct {
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// NewPlanner creates a new planner.
func NewPlanner() *Planner {
	return &Planner{
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (p *Planner) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		p.debugLog = fn
	}
}

// Plan derives the execution plan for a built graph. Walking the
// topological order, each unplaced task opens a new phase and absorbs
// every later unplaced task that is independent of everything already
// in the phase. Dependencies therefore always land in strictly earlier
// phases, and tasks sharing a phase are mutually independent.
func (p *Planner) Plan(g *graph.DependencyGraph) (*models.ExecutionPlan, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	p.debugLog("[plan] building phases from topological order %v", order)

	placed := make(map[string]bool, len(order))
	plan := &models.ExecutionPlan{}

	for _, seed := range order {
		if placed[seed] {
			continue
		}

		phase := models.Phase{
			ID:      fmt.Sprintf("phase-%d", len(plan.Phases)+1),
			TaskIDs: []string{seed},
		}
		placed[seed] = true

		// Absorb every remaining unplaced task independent of the
		// whole phase so far.
		for _, candidate := range order {
			if placed[candidate] {
				continue
			}
			independent := true
			for _, member := range phase.TaskIDs {
				if !g.Independent(candidate, member) {
					independent = false
					break
				}
			}
			if independent {
				phase.TaskIDs = append(phase.TaskIDs, candidate)
				placed[candidate] = true
			}
		}

		phase.Parallel = len(phase.TaskIDs) > 1
		phase.EstimatedDuration = phaseDuration(g, phase)
		p.debugLog("[plan] %s: tasks=%v parallel=%v duration=%s", phase.ID, phase.TaskIDs, phase.Parallel, phase.EstimatedDuration)
		plan.Phases = append(plan.Phases, phase)
	}

	for _, phase := range plan.Phases {
		plan.EstimatedTotalDuration += phase.EstimatedDuration
		plan.CriticalPath = append(plan.CriticalPath, criticalTasks(g, phase)...)
	}
	plan.ResourceAllocation = resourceAllocation(g, order)

	return plan, nil
}

// phaseDuration is max over task estimates for a parallel phase,
// sum for a sequential one.
func phaseDuration(g *graph.DependencyGraph, phase models.Phase) time.Duration {
	var total time.Duration
	var longest time.Duration
	for _, id := range phase.TaskIDs {
		task := g.Task(id)
		if task == nil {
			continue
		}
		total += task.EstimatedDuration
		if task.EstimatedDuration > longest {
			longest = task.EstimatedDuration
		}
	}
	if phase.Parallel {
		return longest
	}
	return total
}

// criticalTasks returns the tasks a phase contributes to the critical
// path: the longest task of a parallel phase, every task of a
// sequential one.
func criticalTasks(g *graph.DependencyGraph, phase models.Phase) []string {
	if !phase.Parallel {
		return append([]string(nil), phase.TaskIDs...)
	}

	longestID := ""
	var longest time.Duration = -1
	for _, id := range phase.TaskIDs {
		task := g.Task(id)
		if task == nil {
			continue
		}
		if task.EstimatedDuration > longest {
			longest = task.EstimatedDuration
			longestID = id
		}
	}
	if longestID == "" {
		return nil
	}
	return []string{longestID}
}

// resourceAllocation assigns each capability type a weight proportional
// to the summed priority weight of the tasks requesting it. The weights
// over all capability types sum to 1 and serve only as a scheduling hint.
func resourceAllocation(g *graph.DependencyGraph, order []string) map[string]float64 {
	if len(order) == 0 {
		return nil
	}

	sums := make(map[string]float64)
	var total float64
	for _, id := range order {
		task := g.Task(id)
		if task == nil {
			continue
		}
		w := task.Priority.Weight()
		sums[task.CapabilityType] += w
		total += w
	}
	if total == 0 {
		return nil
	}

	alloc := make(map[string]float64, len(sums))
	for capType, sum := range sums {
		alloc[capType] = sum / total
	}
	return alloc
}
