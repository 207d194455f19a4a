// Package graph builds dependency graphs over a goal's tasks and
// detects circular dependencies before anything executes.
package graph

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/batonkit/baton/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// CircularDependencyError reports the members of a dependency cycle.
// The cycle slice is closed: the first task ID appears again at the end.
type CircularDependencyError struct {
	// Cycle lists the task IDs forming the cycle, in dependency order.
	Cycle []string
}

// Error implements the error interface.
func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Cycle, " -> "))
}

// Unwrap allows errors.Is(err, ErrCycleDetected).
func (e *CircularDependencyError) Unwrap() error {
	return ErrCycleDetected
}

// DependencyGraph represents a directed acyclic graph of task dependencies.
// Tasks are nodes, and edges represent "blocked by" relationships.
// Node order follows the original task insertion order so traversal
// results are deterministic.
type DependencyGraph struct {
	mu sync.RWMutex
	// order lists task IDs in original insertion order.
	order []string
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// edges maps task ID to IDs of tasks it depends on (is blocked by).
	edges map[string][]string
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:    make(map[string]*models.Task),
		edges:    make(map[string][]string),
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the dependency graph from a slice of tasks.
// It fails on duplicate task IDs, dependencies referencing unknown tasks,
// and circular dependencies (reported as *CircularDependencyError).
func (g *DependencyGraph) Build(tasks []*models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d tasks", len(tasks))

	// First pass: register all tasks as nodes.
	for _, task := range tasks {
		if _, exists := g.nodes[task.ID]; exists {
			return fmt.Errorf("duplicate task id %s", task.ID)
		}
		g.debugLog("[graph.Build] adding task: id=%s capability=%s dependencies=%v", task.ID, task.CapabilityType, task.Dependencies)
		g.order = append(g.order, task.ID)
		g.nodes[task.ID] = task
		g.edges[task.ID] = nil // Initialize edges slice.
	}

	// Second pass: build edges from Dependencies fields.
	for _, task := range tasks {
		for _, depID := range task.Dependencies {
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("task %s depends on unknown task %s", task.ID, depID)
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
		}
	}

	g.debugLog("[graph.Build] final edges map: %v", g.edges)

	if cycle := g.findCycleLocked(); cycle != nil {
		return &CircularDependencyError{Cycle: cycle}
	}

	g.debugLog("[graph.Build] graph built successfully with %d nodes", len(g.nodes))
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.findCycleLocked() != nil
}

// findCycleLocked runs a depth-first search with three-color marking and
// returns the members of the first cycle found, or nil. The caller must
// hold the lock. Roots are visited in insertion order so the reported
// cycle is deterministic.
func (g *DependencyGraph) findCycleLocked() []string {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1 // Mark as in progress.
		path = append(path, id)

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				// Back edge into the gray path: slice out the cycle members.
				start := 0
				for i, p := range path {
					if p == depID {
						start = i
						break
					}
				}
				cycle = append(append([]string{}, path[start:]...), depID)
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
			// color == 2 means already processed, skip.
		}

		colors[id] = 2 // Mark as done.
		path = path[:len(path)-1]
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 {
			if visit(id) {
				return cycle
			}
		}
	}

	return nil
}

// TopologicalOrder returns task IDs in an order where all dependencies
// come before the tasks that depend on them. Tasks with no ordering
// constraint between them keep their original insertion order.
// Returns a *CircularDependencyError if the graph contains a cycle.
func (g *DependencyGraph) TopologicalOrder() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if cycle := g.findCycleLocked(); cycle != nil {
		return nil, &CircularDependencyError{Cycle: cycle}
	}

	placed := make(map[string]bool, len(g.nodes))
	result := make([]string, 0, len(g.nodes))

	// Repeatedly sweep the insertion order, placing every task whose
	// dependencies are already placed. Each sweep emits one dependency
	// layer, so unconstrained tasks come out in insertion order.
	for len(result) < len(g.order) {
		progressed := false
		for _, id := range g.order {
			if placed[id] {
				continue
			}
			ready := true
			for _, depID := range g.edges[id] {
				if !placed[depID] {
					ready = false
					break
				}
			}
			if ready {
				placed[id] = true
				result = append(result, id)
				progressed = true
			}
		}
		if !progressed {
			// Unreachable after the cycle check, kept as a guard.
			return nil, ErrCycleDetected
		}
	}

	return result, nil
}

// Reachable reports whether to is reachable from from by following
// dependency edges, i.e. whether from transitively depends on to.
func (g *DependencyGraph) Reachable(from, to string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if from == to {
		return false
	}

	visited := make(map[string]bool)
	stack := append([]string(nil), g.edges[from]...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == to {
			return true
		}
		if visited[id] {
			continue
		}
		visited[id] = true
		stack = append(stack, g.edges[id]...)
	}
	return false
}

// Independent reports whether neither task is reachable from the other.
// Independent tasks may share a parallel execution phase.
func (g *DependencyGraph) Independent(a, b string) bool {
	return !g.Reachable(a, b) && !g.Reachable(b, a)
}

// Task returns the task for a given ID, or nil if not found.
func (g *DependencyGraph) Task(taskID string) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[taskID]
}

// Size returns the number of tasks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Dependencies returns the IDs of tasks that the given task depends on.
func (g *DependencyGraph) Dependencies(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[taskID]
}

// Dependents returns the IDs of tasks that depend on the given task,
// in insertion order.
func (g *DependencyGraph) Dependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for _, id := range g.order {
		for _, depID := range g.edges[id] {
			if depID == taskID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}
