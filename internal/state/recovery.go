package state

import (
	"fmt"
	"time"

	"github.com/batonkit/baton/pkg/models"
)

// InterruptedGoal contains information about a goal a previous process
// left unfinished, detected on startup.
type InterruptedGoal struct {
	GoalID      string
	Title       string
	Status      models.GoalStatus
	Progress    float64
	LastUpdated time.Time
}

// RecoveryManager handles detection and cleanup of interrupted goals.
// Live execution state is in-memory, so a goal from a dead process
// cannot be resumed; it can only be recognized and closed out.
type RecoveryManager struct {
	store *Store
}

// NewRecoveryManager creates a new RecoveryManager over the given store.
func NewRecoveryManager(store *Store) *RecoveryManager {
	return &RecoveryManager{store: store}
}

// CheckForInterrupted detects goals left in a non-terminal status on
// startup. The orchestrator runs in a single process, so any stored
// executing or paused goal belongs to a run that died.
func (rm *RecoveryManager) CheckForInterrupted() ([]InterruptedGoal, error) {
	goals, err := rm.store.ListGoals(nil, 0)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}

	var interrupted []InterruptedGoal
	for _, g := range goals {
		if g.Status.Terminal() {
			continue
		}
		interrupted = append(interrupted, InterruptedGoal{
			GoalID:      g.ID,
			Title:       g.Title,
			Status:      g.Status,
			Progress:    g.Progress,
			LastUpdated: g.LastUpdated,
		})
	}
	return interrupted, nil
}

// Clean closes out an interrupted goal: it marks the goal and its
// non-terminal tasks failed and records the interruption as an event.
func (rm *RecoveryManager) Clean(goalID string) error {
	rec, err := rm.store.GetGoal(goalID)
	if err != nil {
		return fmt.Errorf("get goal: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("goal %s not found in history", goalID)
	}
	if rec.Status.Terminal() {
		return nil
	}

	now := formatTime(time.Now())
	if _, err := rm.store.Exec(`
		UPDATE goals SET status = ?, error = ?, last_updated = ?
		WHERE id = ?
	`, string(models.GoalStatusFailed), "interrupted: process exited during execution", now, goalID); err != nil {
		return fmt.Errorf("mark goal interrupted: %w", err)
	}

	if _, err := rm.store.Exec(`
		UPDATE tasks SET status = ?, error = ?
		WHERE goal_id = ? AND status IN (?, ?)
	`, string(models.TaskStatusFailed), "interrupted",
		goalID, string(models.TaskStatusPending), string(models.TaskStatusInProgress)); err != nil {
		return fmt.Errorf("mark tasks interrupted: %w", err)
	}

	return rm.store.RecordEvent(goalID, "goal_failed", "interrupted: process exited during execution")
}

// CleanAll closes out every interrupted goal. Returns the number of
// goals cleaned.
func (rm *RecoveryManager) CleanAll() (int, error) {
	interrupted, err := rm.CheckForInterrupted()
	if err != nil {
		return 0, err
	}
	for _, g := range interrupted {
		if err := rm.Clean(g.GoalID); err != nil {
			return 0, err
		}
	}
	return len(interrupted), nil
}
