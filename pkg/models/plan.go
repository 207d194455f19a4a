package models

import "time"

// Phase is a group of mutually independent tasks executed together.
type Phase struct {
	// ID identifies the phase within its plan.
	ID string `json:"id"`
	// TaskIDs lists the tasks placed in this phase, in plan order.
	TaskIDs []string `json:"task_ids"`
	// Parallel indicates whether the phase's tasks run concurrently.
	Parallel bool `json:"parallel"`
	// EstimatedDuration is max over task estimates when parallel, sum otherwise.
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// ExecutionPlan is the derived phase schedule for one goal.
// Plans are recomputed on (re)planning and never mutated in place.
type ExecutionPlan struct {
	// Phases is the ordered list of execution phases.
	Phases []Phase `json:"phases"`
	// CriticalPath is the task sequence that determines total duration:
	// the longest task of each parallel phase, every task of a sequential one.
	CriticalPath []string `json:"critical_path"`
	// EstimatedTotalDuration is the sum of all phase durations.
	EstimatedTotalDuration time.Duration `json:"estimated_total_duration"`
	// ResourceAllocation maps capability type to its priority weight share,
	// a scheduling hint proportional to the summed complexity of its tasks.
	ResourceAllocation map[string]float64 `json:"resource_allocation,omitempty"`
}

// Clone returns a deep copy of the plan.
func (p *ExecutionPlan) Clone() *ExecutionPlan {
	if p == nil {
		return nil
	}
	c := *p
	c.Phases = make([]Phase, len(p.Phases))
	for i, ph := range p.Phases {
		cp := ph
		cp.TaskIDs = append([]string(nil), ph.TaskIDs...)
		c.Phases[i] = cp
	}
	c.CriticalPath = append([]string(nil), p.CriticalPath...)
	if p.ResourceAllocation != nil {
		c.ResourceAllocation = make(map[string]float64, len(p.ResourceAllocation))
		for k, v := range p.ResourceAllocation {
			c.ResourceAllocation[k] = v
		}
	}
	return &c
}

// PhaseFor returns the index of the phase containing the given task, or -1.
func (p *ExecutionPlan) PhaseFor(taskID string) int {
	for i, ph := range p.Phases {
		for _, id := range ph.TaskIDs {
			if id == taskID {
				return i
			}
		}
	}
	return -1
}
