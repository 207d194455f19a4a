package decompose

import (
	"strings"
	"testing"
	"time"

	"github.com/batonkit/baton/pkg/models"
)

func TestParseTasksValid(t *testing.T) {
	response := `Here is the plan:
[
  {"name": "gather", "capability": "research", "description": "Gather sources", "priority": "high", "estimated_minutes": 5},
  {"name": "draft", "capability": "produce", "description": "Write draft", "priority": "critical", "depends_on": ["gather"], "estimated_minutes": 10}
]
Let me know if you need changes.`

	tasks, err := ParseTasks(response)
	if err != nil {
		t.Fatalf("ParseTasks() error = %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(tasks))
	}

	gather := tasks[0]
	if gather.CapabilityType != "research" {
		t.Errorf("CapabilityType = %q, want research", gather.CapabilityType)
	}
	if gather.Priority != models.PriorityHigh {
		t.Errorf("Priority = %q, want high", gather.Priority)
	}
	if gather.EstimatedDuration != 5*time.Minute {
		t.Errorf("EstimatedDuration = %v, want 5m", gather.EstimatedDuration)
	}
	if gather.Status != models.TaskStatusPending {
		t.Errorf("Status = %q, want pending", gather.Status)
	}
	if gather.ID == "" {
		t.Error("ID is empty, want generated id")
	}

	draft := tasks[1]
	if len(draft.Dependencies) != 1 || draft.Dependencies[0] != gather.ID {
		t.Errorf("Dependencies = %v, want [%s]", draft.Dependencies, gather.ID)
	}
	if draft.Priority != models.PriorityCritical {
		t.Errorf("Priority = %q, want critical", draft.Priority)
	}
}

func TestParseTasksRepairsDefaults(t *testing.T) {
	response := `[{"capability": "research"}]`

	tasks, err := ParseTasks(response)
	if err != nil {
		t.Fatalf("ParseTasks() error = %v", err)
	}
	task := tasks[0]
	if task.Description != "task-1" {
		t.Errorf("Description = %q, want fallback task-1", task.Description)
	}
	if task.Priority != models.PriorityMedium {
		t.Errorf("Priority = %q, want medium default", task.Priority)
	}
	if task.EstimatedDuration != 0 {
		t.Errorf("EstimatedDuration = %v, want 0 for later fill", task.EstimatedDuration)
	}
}

func TestParseTasksInvalidPriority(t *testing.T) {
	response := `[{"name": "a", "capability": "research", "priority": "urgent"}]`

	tasks, err := ParseTasks(response)
	if err != nil {
		t.Fatalf("ParseTasks() error = %v", err)
	}
	if tasks[0].Priority != models.PriorityMedium {
		t.Errorf("Priority = %q, want medium for unknown priority", tasks[0].Priority)
	}
}

func TestParseTasksErrors(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantErr  string
	}{
		{"no array", "I could not produce a plan.", "no JSON task array"},
		{"malformed json", `[{"name": }]`, "unmarshal"},
		{"empty list", `[]`, "empty task list"},
		{"unknown dependency", `[{"name": "a", "capability": "research", "depends_on": ["ghost"]}]`, `unknown dependency "ghost"`},
		{"duplicate name", `[{"name": "a", "capability": "research"}, {"name": "a", "capability": "produce"}]`, "duplicate task name"},
		{"missing capability", `[{"name": "a"}]`, "no capability"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTasks(tt.response)
			if err == nil {
				t.Fatal("ParseTasks() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseTasksSelfDependency(t *testing.T) {
	// A task depending on itself parses; the graph build rejects it.
	response := `[{"name": "a", "capability": "research", "depends_on": ["a"]}]`

	tasks, err := ParseTasks(response)
	if err != nil {
		t.Fatalf("ParseTasks() error = %v", err)
	}
	if len(tasks[0].Dependencies) != 1 || tasks[0].Dependencies[0] != tasks[0].ID {
		t.Errorf("Dependencies = %v, want self reference", tasks[0].Dependencies)
	}
}
