package orchestrator

import (
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventGoalSubmitted indicates a goal was accepted for planning.
	EventGoalSubmitted EventType = "goal_submitted"
	// EventGoalPlanned indicates planning produced an execution plan.
	EventGoalPlanned EventType = "goal_planned"
	// EventPhaseStarted indicates a plan phase began dispatching.
	EventPhaseStarted EventType = "phase_started"
	// EventTaskStarted indicates a task has started execution.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskAdapted indicates a task was completed by mode adaptation
	// instead of execution.
	EventTaskAdapted EventType = "task_adapted"
	// EventTaskRetrying indicates a failed task was re-offered.
	EventTaskRetrying EventType = "task_retrying"
	// EventTaskFailed indicates a task failed with no retries left.
	EventTaskFailed EventType = "task_failed"
	// EventPhaseCompleted indicates every task in a phase reached a
	// terminal state.
	EventPhaseCompleted EventType = "phase_completed"
	// EventConflictDetected indicates capability outputs disagreed and
	// a resolution was applied.
	EventConflictDetected EventType = "conflict_detected"
	// EventGoalCompleted indicates all of a goal's tasks completed.
	EventGoalCompleted EventType = "goal_completed"
	// EventGoalFailed indicates a goal failed terminally.
	EventGoalFailed EventType = "goal_failed"
	// EventGoalPaused indicates a pause request took effect.
	EventGoalPaused EventType = "goal_paused"
	// EventGoalResumed indicates a paused goal resumed executing.
	EventGoalResumed EventType = "goal_resumed"
	// EventGoalCanceled indicates a goal was canceled by the caller.
	EventGoalCanceled EventType = "goal_canceled"
)

// Event is emitted by the orchestrator as goals progress. Events feed
// the CLI output and the optional history store.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// GoalID is the id of the related goal.
	GoalID string
	// TaskID is the id of the related task, if applicable.
	TaskID string
	// Capability names the capability involved, if applicable.
	Capability string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
