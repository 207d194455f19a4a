package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/batonkit/baton/pkg/models"
)

// GoalRecord is the stored view of a goal: the row the history keeps,
// not the live object the orchestrator executes.
type GoalRecord struct {
	ID           string                    `json:"id"`
	Title        string                    `json:"title"`
	Mode         models.Mode               `json:"mode"`
	Status       models.GoalStatus         `json:"status"`
	Progress     float64                   `json:"progress"`
	QualityScore *float64                  `json:"quality_score,omitempty"`
	Result       *models.SynthesizedResult `json:"result,omitempty"`
	Error        string                    `json:"error,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
	LastUpdated  time.Time                 `json:"last_updated"`
}

// TaskRecord is the stored view of a task.
type TaskRecord struct {
	ID          string              `json:"id"`
	GoalID      string              `json:"goal_id"`
	Capability  string              `json:"capability"`
	Description string              `json:"description"`
	Priority    models.TaskPriority `json:"priority"`
	Status      models.TaskStatus   `json:"status"`
	RetryCount  int                 `json:"retry_count"`
	Result      *models.Result      `json:"result,omitempty"`
	Error       string              `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

// EventRecord is one stored orchestrator event.
type EventRecord struct {
	ID        int64     `json:"id"`
	GoalID    string    `json:"goal_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Goal operations

// SaveGoal inserts or updates the stored row for a goal. The same goal
// is saved repeatedly as it moves through its lifecycle, so writes are
// upserts keyed on the goal ID.
func (s *Store) SaveGoal(goal *models.Goal) error {
	var qualityScore *float64
	if goal.Quality != nil {
		score := goal.Quality.OverallScore
		qualityScore = &score
	}

	var result *string
	if goal.Result != nil {
		data, err := json.Marshal(goal.Result)
		if err != nil {
			return fmt.Errorf("marshal goal result: %w", err)
		}
		str := string(data)
		result = &str
	}

	_, err := s.Exec(`
		INSERT INTO goals (id, title, mode, status, progress, quality_score, result, error, created_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			mode = excluded.mode,
			status = excluded.status,
			progress = excluded.progress,
			quality_score = excluded.quality_score,
			result = excluded.result,
			error = excluded.error,
			last_updated = excluded.last_updated
	`, goal.ID, goal.Title, string(goal.Mode), string(goal.Status), goal.Progress,
		qualityScore, result, goal.Error, formatTime(goal.CreatedAt), formatTime(goal.LastUpdated))
	if err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	return nil
}

// GetGoal retrieves a stored goal by ID. Returns nil if not found.
func (s *Store) GetGoal(id string) (*GoalRecord, error) {
	row := s.QueryRow(`
		SELECT id, title, mode, status, progress, quality_score, result, error, created_at, last_updated
		FROM goals WHERE id = ?
	`, id)

	rec, err := scanGoal(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return rec, nil
}

// ListGoals lists stored goals newest first, optionally filtered by
// status. A limit of 0 means no limit.
func (s *Store) ListGoals(status *models.GoalStatus, limit int) ([]GoalRecord, error) {
	query := `
		SELECT id, title, mode, status, progress, quality_score, result, error, created_at, last_updated
		FROM goals
	`
	var args []any
	if status != nil {
		query += " WHERE status = ?"
		args = append(args, string(*status))
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []GoalRecord
	for rows.Next() {
		rec, err := scanGoal(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *rec)
	}
	return goals, rows.Err()
}

func scanGoal(scan func(dest ...any) error) (*GoalRecord, error) {
	var rec GoalRecord
	var createdAt, lastUpdated string
	var qualityScore sql.NullFloat64
	var result, errMsg sql.NullString
	err := scan(&rec.ID, &rec.Title, &rec.Mode, &rec.Status, &rec.Progress,
		&qualityScore, &result, &errMsg, &createdAt, &lastUpdated)
	if err != nil {
		return nil, err
	}

	if qualityScore.Valid {
		rec.QualityScore = &qualityScore.Float64
	}
	if result.Valid && result.String != "" {
		var synth models.SynthesizedResult
		if err := json.Unmarshal([]byte(result.String), &synth); err == nil {
			rec.Result = &synth
		}
	}
	if errMsg.Valid {
		rec.Error = errMsg.String
	}
	rec.CreatedAt, _ = parseTime(createdAt)
	rec.LastUpdated, _ = parseTime(lastUpdated)
	return &rec, nil
}

// Task operations

// SaveTask inserts or updates the stored row for a task of a goal.
func (s *Store) SaveTask(goalID string, task *models.Task) error {
	var result *string
	if task.Result != nil {
		data, err := json.Marshal(task.Result)
		if err != nil {
			return fmt.Errorf("marshal task result: %w", err)
		}
		str := string(data)
		result = &str
	}

	var startedAt, completedAt *string
	if task.StartedAt != nil {
		str := formatTime(*task.StartedAt)
		startedAt = &str
	}
	if task.CompletedAt != nil {
		str := formatTime(*task.CompletedAt)
		completedAt = &str
	}

	_, err := s.Exec(`
		INSERT INTO tasks (id, goal_id, capability, description, priority, status, retry_count, result, error, created_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			goal_id = excluded.goal_id,
			capability = excluded.capability,
			description = excluded.description,
			priority = excluded.priority,
			status = excluded.status,
			retry_count = excluded.retry_count,
			result = excluded.result,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`, task.ID, goalID, task.CapabilityType, task.Description, string(task.Priority),
		string(task.Status), task.RetryCount, result, task.Error,
		formatTime(task.CreatedAt), startedAt, completedAt)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// ListTasks lists the stored tasks of a goal in creation order.
func (s *Store) ListTasks(goalID string) ([]TaskRecord, error) {
	rows, err := s.Query(`
		SELECT id, goal_id, capability, description, priority, status, retry_count, result, error, created_at, started_at, completed_at
		FROM tasks WHERE goal_id = ? ORDER BY created_at, id
	`, goalID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []TaskRecord
	for rows.Next() {
		var rec TaskRecord
		var createdAt string
		var startedAt, completedAt sql.NullString
		var description, priority, result, errMsg sql.NullString
		err := rows.Scan(&rec.ID, &rec.GoalID, &rec.Capability, &description, &priority,
			&rec.Status, &rec.RetryCount, &result, &errMsg, &createdAt, &startedAt, &completedAt)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}

		if description.Valid {
			rec.Description = description.String
		}
		if priority.Valid {
			rec.Priority = models.TaskPriority(priority.String)
		}
		if result.Valid && result.String != "" {
			var r models.Result
			if err := json.Unmarshal([]byte(result.String), &r); err == nil {
				rec.Result = &r
			}
		}
		if errMsg.Valid {
			rec.Error = errMsg.String
		}
		rec.CreatedAt, _ = parseTime(createdAt)
		rec.StartedAt = parseNullableTime(startedAt)
		rec.CompletedAt = parseNullableTime(completedAt)
		tasks = append(tasks, rec)
	}
	return tasks, rows.Err()
}

// Event operations

// RecordEvent appends one event to a goal's history.
func (s *Store) RecordEvent(goalID, eventType, message string) error {
	_, err := s.Exec(`
		INSERT INTO events (goal_id, type, message, created_at)
		VALUES (?, ?, ?, ?)
	`, goalID, eventType, message, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// ListEvents lists a goal's events oldest first. A limit of 0 means no
// limit; with a limit, the most recent events are returned.
func (s *Store) ListEvents(goalID string, limit int) ([]EventRecord, error) {
	query := `
		SELECT id, goal_id, type, message, created_at
		FROM events WHERE goal_id = ? ORDER BY id
	`
	args := []any{goalID}
	if limit > 0 {
		query = `
			SELECT id, goal_id, type, message, created_at FROM (
				SELECT id, goal_id, type, message, created_at
				FROM events WHERE goal_id = ? ORDER BY id DESC LIMIT ?
			) ORDER BY id
		`
		args = append(args, limit)
	}

	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var rec EventRecord
		var message sql.NullString
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.GoalID, &rec.Type, &message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if message.Valid {
			rec.Message = message.String
		}
		rec.CreatedAt, _ = parseTime(createdAt)
		events = append(events, rec)
	}
	return events, rows.Err()
}
