package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/batonkit/baton/internal/capability"
	"github.com/batonkit/baton/internal/conflict"
	"github.com/batonkit/baton/pkg/models"
)

// outcome is one task attempt's result, collected at the fan-in point
// of a dispatch round.
type outcome struct {
	task    *models.Task
	result  *models.Result
	err     error
	adapted bool
}

// runGoal drives one goal to a terminal state, phase by phase. It is
// the goal's single writer: every mutation happens on this goroutine
// under the orchestrator lock. The loop blocks at phase boundaries
// while the goal is paused and exits once the goal leaves the
// executing state for any other reason.
func (o *Orchestrator) runGoal(ctx context.Context, run *goalRun) {
	goal := run.goal
	total := len(goal.Plan.Phases)

	for i := 0; i < total; {
		if !o.awaitExecuting(run) {
			o.persistGoal(goal)
			return
		}
		label := fmt.Sprintf("phase %d/%d", i+1, total)

		done, failedTask, err := o.executePhase(ctx, run, goal.Plan.Phases[i], label)
		if failedTask != nil {
			o.failGoal(run, failedTask, err)
			return
		}
		if !done {
			// Paused or canceled mid-phase; the boundary check above
			// decides whether to wait or exit, then the same phase is
			// re-entered for its remaining tasks.
			continue
		}

		o.conflictPass(run)
		o.emit(Event{Type: EventPhaseCompleted, GoalID: goal.ID, Message: label})
		i++
	}

	if !o.awaitExecuting(run) {
		o.persistGoal(goal)
		return
	}
	o.completeGoal(run)
}

// awaitExecuting blocks while the goal is paused and reports whether
// the loop should keep dispatching.
func (o *Orchestrator) awaitExecuting(run *goalRun) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for run.goal.Status == models.GoalStatusPaused {
		o.cond.Wait()
	}
	return run.goal.Status == models.GoalStatusExecuting
}

// stillExecuting is the non-blocking form of awaitExecuting.
func (o *Orchestrator) stillExecuting(run *goalRun) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return run.goal.Status == models.GoalStatusExecuting
}

// executePhase drives the phase's pending tasks to terminal states,
// re-offering retryable failures within the phase. It reports done
// when every task in the phase completed, or the task and error that
// exhausted recovery.
func (o *Orchestrator) executePhase(ctx context.Context, run *goalRun, phase models.Phase, label string) (done bool, failedTask *models.Task, failedErr error) {
	backoffs := make(map[string]backoff.BackOff)

	pending := o.pendingTasks(run, phase)
	if len(pending) > 0 {
		o.emit(Event{
			Type:    EventPhaseStarted,
			GoalID:  run.goal.ID,
			Message: fmt.Sprintf("%s (%d tasks)", label, len(pending)),
		})
	}

	for len(pending) > 0 {
		if !o.stillExecuting(run) {
			return false, nil, nil
		}

		outcomes := o.dispatch(ctx, run, phase, pending)
		retry, failed, err := o.applyOutcomes(run, outcomes)
		if failed != nil {
			return false, failed, err
		}
		if len(retry) > 0 {
			o.recovery.awaitRetry(ctx, backoffs, retry)
		}
		pending = retry
	}

	return len(o.pendingTasks(run, phase)) == 0, nil, nil
}

// pendingTasks returns the phase's tasks still awaiting dispatch.
func (o *Orchestrator) pendingTasks(run *goalRun, phase models.Phase) []*models.Task {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var pending []*models.Task
	for _, id := range phase.TaskIDs {
		if task := run.goal.Task(id); task != nil && task.Status == models.TaskStatusPending {
			pending = append(pending, task)
		}
	}
	return pending
}

// dispatch runs one attempt of each task, concurrently when the phase
// is parallel, and returns the outcomes in task order.
func (o *Orchestrator) dispatch(ctx context.Context, run *goalRun, phase models.Phase, tasks []*models.Task) []outcome {
	outcomes := make([]outcome, len(tasks))
	if phase.Parallel && len(tasks) > 1 {
		var eg errgroup.Group
		for i, task := range tasks {
			eg.Go(func() error {
				outcomes[i] = o.runTask(ctx, run, task)
				return nil
			})
		}
		_ = eg.Wait()
		return outcomes
	}
	for i, task := range tasks {
		outcomes[i] = o.runTask(ctx, run, task)
	}
	return outcomes
}

// runTask executes one task attempt end to end: dependency check, mode
// gating, then invocation through the capability's circuit breaker.
func (o *Orchestrator) runTask(ctx context.Context, run *goalRun, task *models.Task) outcome {
	goal := run.goal

	o.mu.Lock()
	if goal.Status != models.GoalStatusExecuting {
		o.mu.Unlock()
		return outcome{task: task}
	}
	now := time.Now()
	task.Status = models.TaskStatusInProgress
	task.StartedAt = &now
	goal.LastUpdated = now

	// Phase ordering already guarantees dependencies completed in an
	// earlier phase; verify anyway so a scheduling bug surfaces as a
	// failed task instead of a capability run on missing inputs.
	var depErr error
	for _, dep := range task.Dependencies {
		depTask := goal.Task(dep)
		if depTask == nil || depTask.Status != models.TaskStatusCompleted {
			depErr = fmt.Errorf("%w: task %s requires %s", ErrDependencyNotMet, shortID(task.ID), shortID(dep))
			break
		}
	}
	input := taskInput(goal, task)
	mode := goal.Mode
	timeout := goal.Constraints.TaskTimeout
	o.mu.Unlock()

	if depErr != nil {
		return outcome{task: task, err: depErr}
	}

	o.emit(Event{Type: EventTaskStarted, GoalID: goal.ID, TaskID: task.ID, Capability: task.CapabilityType})

	resolved, err := o.registry.Resolve(task.CapabilityType)
	if err != nil {
		return outcome{task: task, err: err}
	}

	if !capability.SupportsMode(resolved, mode) {
		return adaptOutcome(task, mode)
	}

	result, err := o.invoker.Execute(ctx, resolved, input, mode, timeout)
	if err != nil {
		return outcome{task: task, err: err}
	}
	result.TaskID = task.ID
	return outcome{task: task, result: result}
}

// adaptOutcome turns a capability/mode mismatch into the mode's
// adaptation. Manual and hybrid goals complete the task as prepared
// work awaiting a human trigger; autonomous goals have no human to
// hand off to, so the task fails.
func adaptOutcome(task *models.Task, mode models.Mode) outcome {
	switch mode {
	case models.ModeManual:
		return outcome{task: task, adapted: true, result: &models.Result{
			Capability: task.CapabilityType,
			TaskID:     task.ID,
			Content:    fmt.Sprintf("%s: prepared, awaiting manual trigger", task.Description),
			Confidence: 1.0,
			Metadata:   map[string]string{"adapted": "manual_trigger"},
		}}
	case models.ModeHybrid:
		return outcome{task: task, adapted: true, result: &models.Result{
			Capability: task.CapabilityType,
			TaskID:     task.ID,
			Content:    fmt.Sprintf("%s: awaiting approval", task.Description),
			Confidence: 1.0,
			Metadata:   map[string]string{"adapted": "approval_required"},
		}}
	default:
		return outcome{task: task, err: &UnsupportedModeError{Capability: task.CapabilityType, Mode: mode}}
	}
}

// taskInput assembles the capability input: goal context, goal text,
// task description, and the content of completed dependency results
// keyed by capability name. Callers hold the orchestrator lock.
func taskInput(goal *models.Goal, task *models.Task) map[string]any {
	input := make(map[string]any, len(goal.Context)+3)
	for k, v := range goal.Context {
		input[k] = v
	}
	input["goal"] = goal.Title
	input["task"] = task.Description
	if len(task.Dependencies) > 0 {
		upstream := make(map[string]string, len(task.Dependencies))
		for _, dep := range task.Dependencies {
			if depTask := goal.Task(dep); depTask != nil && depTask.Result != nil {
				upstream[depTask.CapabilityType] = depTask.Result.Content
			}
		}
		if len(upstream) > 0 {
			input["upstream"] = upstream
		}
	}
	return input
}

// applyOutcomes folds one dispatch round into goal state and sorts the
// survivors for the next round: retryable failures go back to pending,
// the first exhausted failure stops the phase. Outcomes arriving after
// the goal reached a terminal state are discarded and their tasks
// reverted to pending; a paused goal keeps the work its phase drained.
func (o *Orchestrator) applyOutcomes(run *goalRun, outcomes []outcome) (retry []*models.Task, failedTask *models.Task, failedErr error) {
	o.mu.Lock()
	goal := run.goal

	// Canceled or shut down mid-flight: drop the results and revert
	// the tasks so the final state shows no half-applied work. A
	// paused goal still absorbs the drained phase's outcomes below.
	if goal.Status.Terminal() {
		for _, out := range outcomes {
			if out.task.Status == models.TaskStatusInProgress {
				out.task.Status = models.TaskStatusPending
				out.task.StartedAt = nil
			}
		}
		o.mu.Unlock()
		return nil, nil, nil
	}

	var events []Event
	var dirty []*models.Task
	for _, out := range outcomes {
		task := out.task
		switch {
		case out.err == nil && out.result == nil:
			// Never dispatched; stays pending.
			continue
		case out.err == nil:
			now := time.Now()
			task.Status = models.TaskStatusCompleted
			task.Result = out.result
			task.Error = ""
			task.CompletedAt = &now
			evType := EventTaskCompleted
			if out.adapted {
				evType = EventTaskAdapted
			}
			events = append(events, Event{
				Type:       evType,
				GoalID:     goal.ID,
				TaskID:     task.ID,
				Capability: task.CapabilityType,
				Message:    task.Description,
			})
		default:
			task.Error = out.err.Error()
			if o.recovery.shouldRetry(task, goal.Constraints.MaxRetries, out.err) {
				task.RetryCount++
				task.Status = models.TaskStatusPending
				task.StartedAt = nil
				retry = append(retry, task)
				events = append(events, Event{
					Type:       EventTaskRetrying,
					GoalID:     goal.ID,
					TaskID:     task.ID,
					Capability: task.CapabilityType,
					Message:    fmt.Sprintf("attempt %d/%d", task.RetryCount, goal.Constraints.MaxRetries),
					Error:      out.err,
				})
			} else {
				now := time.Now()
				task.Status = models.TaskStatusFailed
				task.CompletedAt = &now
				if failedTask == nil {
					failedTask = task
					failedErr = out.err
				}
				events = append(events, Event{
					Type:       EventTaskFailed,
					GoalID:     goal.ID,
					TaskID:     task.ID,
					Capability: task.CapabilityType,
					Error:      out.err,
				})
			}
		}
		dirty = append(dirty, task)
	}
	goal.Progress = progressOf(goal)
	goal.LastUpdated = time.Now()
	o.mu.Unlock()

	for _, ev := range events {
		o.emit(ev)
	}
	for _, task := range dirty {
		o.persistTask(goal.ID, task)
	}
	return retry, failedTask, failedErr
}

// conflictPass runs the resolver over every completed result so far
// and appends any conflicts not already recorded on the goal.
func (o *Orchestrator) conflictPass(run *goalRun) {
	o.mu.Lock()
	goal := run.goal
	records := o.conflicts.Resolve(completedResults(goal))
	var fresh []models.ConflictRecord
	if len(records) > 0 {
		before := len(goal.Conflicts)
		goal.Conflicts = conflict.MergeRecords(goal.Conflicts, records)
		fresh = goal.Conflicts[before:]
		goal.LastUpdated = time.Now()
	}
	o.mu.Unlock()

	for _, rec := range fresh {
		o.emit(Event{Type: EventConflictDetected, GoalID: run.goal.ID, Message: rec.Description})
	}
}

// failGoal is the terminal path for exhausted recovery: the recovery
// plan is attached and the goal fails.
func (o *Orchestrator) failGoal(run *goalRun, task *models.Task, cause error) {
	o.mu.Lock()
	goal := run.goal
	if goal.Status.Terminal() {
		o.mu.Unlock()
		return
	}
	goal.Status = models.GoalStatusFailed
	goal.Error = fmt.Sprintf("task %s: %v", shortID(task.ID), cause)
	goal.Recovery = o.recovery.planRecovery(task, cause)
	goal.LastUpdated = time.Now()
	o.mu.Unlock()

	o.debugLog("[orchestrator] goal %s failed on task %s: %v", shortID(goal.ID), shortID(task.ID), cause)
	o.emit(Event{Type: EventGoalFailed, GoalID: goal.ID, TaskID: task.ID, Error: cause})
	o.persistGoal(goal)
}

// completeGoal runs the quality and synthesis passes and finishes the
// goal. A below-threshold quality score is recorded on the goal, not
// treated as a failure.
func (o *Orchestrator) completeGoal(run *goalRun) {
	o.mu.Lock()
	goal := run.goal
	if goal.Status != models.GoalStatusExecuting {
		o.mu.Unlock()
		return
	}
	results := completedResults(goal)
	goal.Quality = o.qa.Validate(results, goal.Constraints.QualityThreshold)
	goal.Result = o.synthesizer.Synthesize(results)
	goal.Progress = progressOf(goal)
	goal.Status = models.GoalStatusCompleted
	goal.LastUpdated = time.Now()
	quality := goal.Quality
	o.mu.Unlock()

	msg := fmt.Sprintf("quality %.2f", quality.OverallScore)
	if !quality.Passed {
		msg += " (below threshold)"
	}
	o.debugLog("[orchestrator] goal %s completed, %s", shortID(goal.ID), msg)
	o.emit(Event{Type: EventGoalCompleted, GoalID: goal.ID, Message: msg})
	o.persistGoal(goal)
}

// completedResults collects completed task results in task order.
// Callers hold the orchestrator lock.
func completedResults(goal *models.Goal) []*models.Result {
	var results []*models.Result
	for _, task := range goal.Tasks {
		if task.Status == models.TaskStatusCompleted && task.Result != nil {
			results = append(results, task.Result)
		}
	}
	return results
}

// progressOf computes completed/total so progress lands exactly on 1.0
// when every task completes. Callers hold the orchestrator lock.
func progressOf(goal *models.Goal) float64 {
	if len(goal.Tasks) == 0 {
		return 0
	}
	completed := 0
	for _, task := range goal.Tasks {
		if task.Status == models.TaskStatusCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(goal.Tasks))
}
