package models

import "time"

// GoalStatus represents the current state of a goal.
type GoalStatus string

const (
	// GoalStatusPlanning indicates the goal is being decomposed and planned.
	GoalStatusPlanning GoalStatus = "planning"
	// GoalStatusExecuting indicates the goal's plan is being driven.
	GoalStatusExecuting GoalStatus = "executing"
	// GoalStatusCompleted indicates every task completed.
	GoalStatusCompleted GoalStatus = "completed"
	// GoalStatusPaused indicates execution is suspended awaiting resume.
	GoalStatusPaused GoalStatus = "paused"
	// GoalStatusFailed indicates the goal failed terminally.
	GoalStatusFailed GoalStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s GoalStatus) Valid() bool {
	switch s {
	case GoalStatusPlanning, GoalStatusExecuting, GoalStatusCompleted, GoalStatusPaused, GoalStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a final state for a goal.
func (s GoalStatus) Terminal() bool {
	return s == GoalStatusCompleted || s == GoalStatusFailed
}

// Constraints carries the per-goal execution limits supplied at submission.
type Constraints struct {
	// MaxRetries is the number of failed->pending transitions allowed per task.
	MaxRetries int `json:"max_retries"`
	// TaskTimeout is the hard per-task execution timeout.
	TaskTimeout time.Duration `json:"task_timeout"`
	// QualityThreshold is the minimum overall quality score to pass validation.
	QualityThreshold float64 `json:"quality_threshold"`
}

// DefaultConstraints returns the constraints applied when a caller supplies none.
func DefaultConstraints() Constraints {
	return Constraints{
		MaxRetries:       3,
		TaskTimeout:      10 * time.Minute,
		QualityThreshold: 0.7,
	}
}

// WithDefaults fills any zero-valued field from DefaultConstraints.
func (c Constraints) WithDefaults() Constraints {
	d := DefaultConstraints()
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = d.TaskTimeout
	}
	if c.QualityThreshold <= 0 {
		c.QualityThreshold = d.QualityThreshold
	}
	return c
}

// Goal represents a user-level objective decomposed into tasks.
// A goal owns its tasks exclusively and is the unit of pause and cancellation.
type Goal struct {
	// ID is the unique identifier for this goal.
	ID string `json:"id"`
	// Title is the goal text the caller submitted.
	Title string `json:"title"`
	// Tasks is the ordered decomposition of the goal.
	Tasks []*Task `json:"tasks"`
	// Progress is the completed fraction in [0,1], non-decreasing while executing.
	Progress float64 `json:"progress"`
	// Status is the current state of the goal.
	Status GoalStatus `json:"status"`
	// Mode is the autonomy level the goal runs under.
	Mode Mode `json:"mode"`
	// Context carries the caller-supplied inputs passed to every capability.
	Context map[string]any `json:"context,omitempty"`
	// Constraints are the execution limits for this goal.
	Constraints Constraints `json:"constraints"`
	// Plan is the derived execution plan, recomputed whenever the goal is planned.
	Plan *ExecutionPlan `json:"plan,omitempty"`
	// Conflicts accumulates conflict records detected across phases.
	Conflicts []ConflictRecord `json:"conflicts,omitempty"`
	// Quality is the validation computed after all tasks complete.
	Quality *QualityValidation `json:"quality,omitempty"`
	// Result is the synthesized output of all capability results.
	Result *SynthesizedResult `json:"result,omitempty"`
	// Recovery is the suggested recovery plan if the goal failed.
	Recovery *RecoveryPlan `json:"recovery,omitempty"`
	// Error contains the causing error if the goal failed.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the goal was submitted.
	CreatedAt time.Time `json:"created_at"`
	// LastUpdated is when any goal or task field last changed.
	LastUpdated time.Time `json:"last_updated"`
}

// Task returns the task with the given ID, or nil if not found.
func (g *Goal) Task(id string) *Task {
	for _, t := range g.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Clone returns a deep copy of the goal suitable for handing to callers.
func (g *Goal) Clone() *Goal {
	if g == nil {
		return nil
	}
	c := *g
	c.Tasks = make([]*Task, len(g.Tasks))
	for i, t := range g.Tasks {
		c.Tasks[i] = t.Clone()
	}
	if g.Context != nil {
		c.Context = make(map[string]any, len(g.Context))
		for k, v := range g.Context {
			c.Context[k] = v
		}
	}
	c.Plan = g.Plan.Clone()
	c.Conflicts = append([]ConflictRecord(nil), g.Conflicts...)
	if g.Quality != nil {
		q := *g.Quality
		c.Quality = &q
	}
	if g.Result != nil {
		r := *g.Result
		c.Result = &r
	}
	if g.Recovery != nil {
		r := *g.Recovery
		c.Recovery = &r
	}
	return &c
}
