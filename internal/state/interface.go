package state

import (
	"io"

	"github.com/batonkit/baton/pkg/models"
)

// GoalStore handles goal-related persistence operations.
type GoalStore interface {
	SaveGoal(goal *models.Goal) error
	GetGoal(id string) (*GoalRecord, error)
	ListGoals(status *models.GoalStatus, limit int) ([]GoalRecord, error)
}

// TaskStore handles task-related persistence operations.
type TaskStore interface {
	SaveTask(goalID string, task *models.Task) error
	ListTasks(goalID string) ([]TaskRecord, error)
}

// EventStore handles event-related persistence operations.
type EventStore interface {
	RecordEvent(goalID, eventType, message string) error
	ListEvents(goalID string, limit int) ([]EventRecord, error)
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// HistoryStore defines the interface for goal history persistence.
// This interface allows callers to work with any history backend
// without depending on the concrete SQLite implementation.
// It composes focused sub-interfaces for better modularity.
type HistoryStore interface {
	io.Closer
	Migrator
	GoalStore
	TaskStore
	EventStore
}

// Compile-time verification that Store implements all interfaces.
var (
	_ HistoryStore = (*Store)(nil)
	_ Migrator     = (*Store)(nil)
	_ GoalStore    = (*Store)(nil)
	_ TaskStore    = (*Store)(nil)
	_ EventStore   = (*Store)(nil)
)
