package decompose

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/batonkit/baton/pkg/models"
)

// plannedTask is the JSON structure a planning capability returns for a
// single task.
type plannedTask struct {
	Name             string   `json:"name"`
	Capability       string   `json:"capability"`
	Description      string   `json:"description"`
	Priority         string   `json:"priority"`
	DependsOn        []string `json:"depends_on"`
	EstimatedMinutes int      `json:"estimated_minutes"`
}

// ParseTasks parses a planning capability's JSON response into Task
// objects. The response may surround the JSON array with prose; only
// the outermost array is read. Missing names, priorities, and estimates
// are repaired with defaults; dependencies referencing unknown task
// names are an error.
func ParseTasks(response string) ([]*models.Task, error) {
	jsonStart := strings.Index(response, "[")
	jsonEnd := strings.LastIndex(response, "]")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		preview := response
		if len(preview) > 500 {
			preview = preview[:500] + "... (truncated)"
		}
		return nil, fmt.Errorf("no JSON task array found in response (got %d chars): %q", len(response), preview)
	}

	var planned []plannedTask
	if err := json.Unmarshal([]byte(response[jsonStart:jsonEnd+1]), &planned); err != nil {
		return nil, fmt.Errorf("unmarshal task array: %w", err)
	}
	if len(planned) == 0 {
		return nil, fmt.Errorf("empty task list returned")
	}

	nameToID := make(map[string]string, len(planned))
	tasks := make([]*models.Task, len(planned))
	now := time.Now()

	for i, pt := range planned {
		if pt.Capability == "" {
			return nil, fmt.Errorf("task %d has no capability", i+1)
		}
		name := pt.Name
		if name == "" {
			name = fmt.Sprintf("task-%d", i+1)
		}
		if _, exists := nameToID[name]; exists {
			return nil, fmt.Errorf("duplicate task name %q", name)
		}
		id := uuid.New().String()
		nameToID[name] = id

		description := pt.Description
		if description == "" {
			description = name
		}

		priority := models.TaskPriority(strings.ToLower(pt.Priority))
		if !priority.Valid() {
			priority = models.PriorityMedium
		}

		tasks[i] = &models.Task{
			ID:                id,
			CapabilityType:    pt.Capability,
			Description:       description,
			Priority:          priority,
			Status:            models.TaskStatusPending,
			EstimatedDuration: time.Duration(pt.EstimatedMinutes) * time.Minute,
			CreatedAt:         now,
		}
	}

	for i, pt := range planned {
		for _, depName := range pt.DependsOn {
			depID, ok := nameToID[depName]
			if !ok {
				return nil, fmt.Errorf("unknown dependency %q for task %q", depName, pt.Name)
			}
			tasks[i].Dependencies = append(tasks[i].Dependencies, depID)
		}
	}

	return tasks, nil
}
