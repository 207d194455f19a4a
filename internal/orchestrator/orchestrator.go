// Package orchestrator coordinates goal execution end to end: it plans
// submitted goals, drives their execution plans phase by phase through
// registered capabilities, retries failures with backoff, resolves
// conflicts between capability outputs, and synthesizes each goal's
// final result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/batonkit/baton/internal/capability"
	"github.com/batonkit/baton/internal/conflict"
	"github.com/batonkit/baton/internal/decompose"
	"github.com/batonkit/baton/internal/orchestrator/policy"
	"github.com/batonkit/baton/internal/quality"
	"github.com/batonkit/baton/internal/synthesis"
	"github.com/batonkit/baton/pkg/models"
)

// ErrGoalNotFound is returned for operations on unknown goal ids.
var ErrGoalNotFound = errors.New("goal not found")

// ErrStopped is returned when a goal is submitted after Shutdown.
var ErrStopped = errors.New("orchestrator is stopped")

// HistoryStore persists goal lifecycles for later inspection. A nil
// store disables persistence. Store failures are logged, never fatal:
// the in-memory goal state stays authoritative.
type HistoryStore interface {
	SaveGoal(goal *models.Goal) error
	SaveTask(goalID string, task *models.Task) error
	RecordEvent(goalID, eventType, message string) error
}

// Config contains construction options for the Orchestrator.
type Config struct {
	// Registry supplies the capabilities goals execute with. A nil
	// registry is replaced with a fresh empty one.
	Registry *capability.Registry
	// History receives goal, task, and event records. Optional.
	History HistoryStore
	// Policy tunes retry backoff, conflict detection, and the event
	// buffer. Zero-valued fields take defaults.
	Policy policy.Config
	// Debug routes orchestrator debug logging to log.Printf.
	Debug bool
}

// goalRun pairs a goal with its control loop state. The loop goroutine
// is the goal's single writer; done closes when it exits.
type goalRun struct {
	goal   *models.Goal
	cancel context.CancelFunc
	done   chan struct{}
}

// Orchestrator owns all active goals and their control loops. Goal and
// task state is mutated only on each goal's loop goroutine, under the
// orchestrator lock so concurrent readers can snapshot safely.
type Orchestrator struct {
	registry    *capability.Registry
	invoker     *capability.Invoker
	planner     *decompose.Planner
	conflicts   *conflict.Resolver
	qa          *quality.Coordinator
	synthesizer *synthesis.Synthesizer
	recovery    *recoveryManager
	history     HistoryStore
	policy      policy.Config

	// mu protects goals, stopped, eventsClosed, and all goal state.
	mu    sync.RWMutex
	goals map[string]*goalRun
	// cond wakes paused control loops on resume, cancel, and shutdown.
	cond    *sync.Cond
	stopped bool

	events       chan Event
	eventsClosed bool
	// wg tracks running control loops.
	wg sync.WaitGroup

	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates an orchestrator. Register capabilities before submitting
// goals; registration closes while any goal is active.
func New(cfg Config) *Orchestrator {
	reg := cfg.Registry
	if reg == nil {
		reg = capability.NewRegistry()
	}
	pol := cfg.Policy.WithDefaults()

	o := &Orchestrator{
		registry:    reg,
		invoker:     capability.NewInvoker(reg),
		planner:     decompose.NewPlanner(reg),
		conflicts:   conflict.NewResolver(),
		qa:          quality.NewCoordinator(reg),
		synthesizer: synthesis.NewSynthesizer(),
		recovery:    newRecoveryManager(pol.Retry),
		history:     cfg.History,
		policy:      pol,
		goals:       make(map[string]*goalRun),
		events:      make(chan Event, pol.Events.BufferSize),
		debugLog:    func(format string, args ...interface{}) {}, // no-op by default
	}
	o.cond = sync.NewCond(&o.mu)

	if pol.Conflict.DivergenceThreshold != conflict.DefaultDivergenceThreshold {
		o.conflicts.SetRules(conflict.DivergenceRule(pol.Conflict.DivergenceThreshold))
	}
	for name, rank := range pol.Conflict.CapabilityPriorities {
		o.conflicts.SetPriority(name, rank)
	}

	if cfg.Debug {
		o.SetDebugLog(log.Printf)
	}
	return o
}

// SetDebugLog sets the debug logging function and propagates it to the
// orchestrator's components.
func (o *Orchestrator) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn == nil {
		return
	}
	o.debugLog = fn
	o.invoker.SetDebugLog(fn)
	o.planner.SetDebugLog(fn)
	o.conflicts.SetDebugLog(fn)
	o.qa.SetDebugLog(fn)
	o.synthesizer.SetDebugLog(fn)
	o.recovery.debugLog = fn
}

// ConflictResolver exposes the resolver so callers can install rules
// and priority ranks before submitting goals.
func (o *Orchestrator) ConflictResolver() *conflict.Resolver {
	return o.conflicts
}

// SubmitGoal plans goalText and starts executing it. The returned id
// identifies the goal either way: on a planning failure the goal is
// stored in failed status for inspection, the *decompose.PlanningError
// is returned, and nothing executes.
func (o *Orchestrator) SubmitGoal(ctx context.Context, goalText string, goalCtx map[string]any, mode models.Mode, constraints *models.Constraints) (string, error) {
	o.mu.RLock()
	stopped := o.stopped
	o.mu.RUnlock()
	if stopped {
		return "", ErrStopped
	}

	goal, planErr := o.planner.PlanGoal(ctx, goalText, goalCtx, mode, constraints)
	o.emit(Event{Type: EventGoalSubmitted, GoalID: goal.ID, Message: goal.Title})

	if planErr != nil {
		o.mu.Lock()
		o.goals[goal.ID] = &goalRun{goal: goal, done: closedChan()}
		o.mu.Unlock()

		o.emit(Event{Type: EventGoalFailed, GoalID: goal.ID, Error: planErr})
		o.persistGoal(goal)
		return goal.ID, planErr
	}

	runCtx, cancel := context.WithCancel(context.Background())
	run := &goalRun{goal: goal, cancel: cancel, done: make(chan struct{})}

	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		cancel()
		return "", ErrStopped
	}
	goal.Status = models.GoalStatusExecuting
	goal.LastUpdated = time.Now()
	o.goals[goal.ID] = run
	o.mu.Unlock()

	o.emit(Event{
		Type:    EventGoalPlanned,
		GoalID:  goal.ID,
		Message: fmt.Sprintf("%d tasks in %d phases", len(goal.Tasks), len(goal.Plan.Phases)),
	})
	o.persistGoal(goal)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(run.done)
		defer cancel()
		o.runGoal(runCtx, run)
	}()

	return goal.ID, nil
}

// ResolveGoalID expands a goal id prefix, as shown in CLI output, to
// the full id. Exact ids pass through; ambiguous prefixes error.
func (o *Orchestrator) ResolveGoalID(idOrPrefix string) (string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if _, ok := o.goals[idOrPrefix]; ok {
		return idOrPrefix, nil
	}
	var match string
	for id := range o.goals {
		if strings.HasPrefix(id, idOrPrefix) {
			if match != "" {
				return "", fmt.Errorf("goal id %q is ambiguous", idOrPrefix)
			}
			match = id
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrGoalNotFound, idOrPrefix)
	}
	return match, nil
}

// GetGoal returns a snapshot of the goal. Mutating the returned goal
// has no effect on the orchestrator's copy.
func (o *Orchestrator) GetGoal(goalID string) (*models.Goal, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	run, ok := o.goals[goalID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGoalNotFound, goalID)
	}
	return run.goal.Clone(), nil
}

// PauseGoal halts dispatch of further phases. Completed work is kept
// and the in-flight phase drains first. Pausing a goal that is not
// executing is a no-op.
func (o *Orchestrator) PauseGoal(goalID string) error {
	o.mu.Lock()
	run, ok := o.goals[goalID]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrGoalNotFound, goalID)
	}
	if run.goal.Status != models.GoalStatusExecuting {
		o.mu.Unlock()
		return nil
	}
	run.goal.Status = models.GoalStatusPaused
	run.goal.LastUpdated = time.Now()
	o.mu.Unlock()

	o.debugLog("[orchestrator] goal %s paused", shortID(goalID))
	o.emit(Event{Type: EventGoalPaused, GoalID: goalID})
	return nil
}

// ResumeGoal re-enters the scheduler at the first phase that still has
// unfinished tasks. Resuming a goal that is not paused is a no-op.
func (o *Orchestrator) ResumeGoal(goalID string) error {
	o.mu.Lock()
	run, ok := o.goals[goalID]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrGoalNotFound, goalID)
	}
	if run.goal.Status != models.GoalStatusPaused {
		o.mu.Unlock()
		return nil
	}
	run.goal.Status = models.GoalStatusExecuting
	run.goal.LastUpdated = time.Now()
	o.cond.Broadcast()
	o.mu.Unlock()

	o.debugLog("[orchestrator] goal %s resumed", shortID(goalID))
	o.emit(Event{Type: EventGoalResumed, GoalID: goalID})
	return nil
}

// CancelGoal fails the goal and stops all further dispatch. In-flight
// tasks are allowed to finish but their results are discarded.
// Canceling a goal already in a terminal state is a no-op.
func (o *Orchestrator) CancelGoal(goalID string) error {
	o.mu.Lock()
	run, ok := o.goals[goalID]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrGoalNotFound, goalID)
	}
	if run.goal.Status.Terminal() {
		o.mu.Unlock()
		return nil
	}
	run.goal.Status = models.GoalStatusFailed
	run.goal.Error = "canceled"
	run.goal.LastUpdated = time.Now()
	o.cond.Broadcast()
	o.mu.Unlock()

	o.debugLog("[orchestrator] goal %s canceled", shortID(goalID))
	o.emit(Event{Type: EventGoalCanceled, GoalID: goalID})
	o.persistGoal(run.goal)
	return nil
}

// ListActiveGoals returns snapshots of all goals not yet in a terminal
// state, ordered by creation time.
func (o *Orchestrator) ListActiveGoals() []*models.Goal {
	o.mu.RLock()
	var active []*models.Goal
	for _, run := range o.goals {
		if !run.goal.Status.Terminal() {
			active = append(active, run.goal.Clone())
		}
	}
	o.mu.RUnlock()

	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].ID < active[j].ID
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active
}

// RegisterCapability adds a capability to the registry. Registration
// closes while goals are active so running plans never observe the
// registry changing under them.
func (o *Orchestrator) RegisterCapability(c capability.Capability) error {
	o.mu.RLock()
	for _, run := range o.goals {
		if !run.goal.Status.Terminal() {
			o.mu.RUnlock()
			return fmt.Errorf("cannot register capability %q while goals are active", c.Name())
		}
	}
	o.mu.RUnlock()
	return o.registry.Register(c)
}

// CapabilityStatus reports registry totals and per-name availability.
func (o *Orchestrator) CapabilityStatus() capability.Status {
	return o.registry.Status()
}

// Events returns the stream of orchestrator events. The channel closes
// on Shutdown.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// Shutdown cancels every active goal, waits for their control loops to
// exit, clears the goal map, and closes the event stream. Shutdown is
// idempotent.
func (o *Orchestrator) Shutdown() error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return nil
	}
	o.stopped = true
	runs := make([]*goalRun, 0, len(o.goals))
	for _, run := range o.goals {
		if !run.goal.Status.Terminal() {
			run.goal.Status = models.GoalStatusFailed
			run.goal.Error = "orchestrator shutdown"
			run.goal.LastUpdated = time.Now()
		}
		if run.cancel != nil {
			run.cancel()
		}
		runs = append(runs, run)
	}
	o.cond.Broadcast()
	o.mu.Unlock()

	for _, run := range runs {
		<-run.done
	}
	o.wg.Wait()

	o.mu.Lock()
	o.goals = make(map[string]*goalRun)
	o.eventsClosed = true
	close(o.events)
	o.mu.Unlock()

	o.debugLog("[orchestrator] shut down, %d goal(s) cleared", len(runs))
	return nil
}

// emit sends an event without blocking; when the buffer is full the
// event is dropped. The history store receives every event regardless.
// Callers must not hold the orchestrator lock.
func (o *Orchestrator) emit(event Event) {
	event.Timestamp = time.Now()

	o.mu.RLock()
	if !o.eventsClosed {
		select {
		case o.events <- event:
		default:
			// Buffer full, drop rather than stall a control loop.
		}
	}
	o.mu.RUnlock()

	if o.history != nil {
		msg := event.Message
		if event.Error != nil {
			msg = event.Error.Error()
		}
		if err := o.history.RecordEvent(event.GoalID, string(event.Type), msg); err != nil {
			o.debugLog("[orchestrator] history event: %v", err)
		}
	}
}

// persistGoal snapshots the goal into the history store.
func (o *Orchestrator) persistGoal(goal *models.Goal) {
	if o.history == nil {
		return
	}
	o.mu.RLock()
	snapshot := goal.Clone()
	o.mu.RUnlock()
	if err := o.history.SaveGoal(snapshot); err != nil {
		o.debugLog("[orchestrator] history save goal %s: %v", shortID(snapshot.ID), err)
	}
}

// persistTask snapshots one task into the history store.
func (o *Orchestrator) persistTask(goalID string, task *models.Task) {
	if o.history == nil {
		return
	}
	o.mu.RLock()
	snapshot := task.Clone()
	o.mu.RUnlock()
	if err := o.history.SaveTask(goalID, snapshot); err != nil {
		o.debugLog("[orchestrator] history save task %s: %v", shortID(snapshot.ID), err)
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
