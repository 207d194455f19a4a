package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/batonkit/baton/internal/capability"
	"github.com/batonkit/baton/internal/decompose"
	"github.com/batonkit/baton/internal/llm"
	"github.com/batonkit/baton/pkg/models"
)

// planningPrompt is the prompt template for goal decomposition.
const planningPrompt = `Break this goal into tasks for the capabilities available below. Each task should be sized for a single capability invocation.

Goal:
%s

Available capabilities:
%s

Return ONLY a JSON array of tasks with this exact structure (no other text):
[
  {
    "name": "short-task-name",
    "capability": "one of the available capability names",
    "description": "What this task should accomplish",
    "priority": "low|medium|high|critical",
    "depends_on": ["name of dependency 1"],
    "estimated_minutes": 5
  }
]

Guidelines:
- Tasks should be as independent as possible to allow parallel execution
- Only add dependencies when truly necessary (task A must complete before task B)
- Use only the capability names listed above
- Use empty array [] for depends_on if there are no dependencies`

const planningSystem = `You plan work for a goal orchestrator that executes tasks through named capabilities.`

// Planning returns the goal decomposition capability. The catalog
// function supplies the capability names tasks may target; the
// planning capability itself is filtered out of its own catalog.
func Planning(gen llm.Generator, catalog func() []string) *capability.Func {
	return &capability.Func{
		CapabilityName: decompose.PlanningCapability,
		Modes:          []models.Mode{models.ModeManual, models.ModeHybrid, models.ModeAutonomous},
		RequiredKeys:   []string{"goal"},
		Estimate: func(input map[string]any) time.Duration {
			return time.Minute
		},
		Run: func(ctx context.Context, input map[string]any, mode models.Mode) (*models.Result, error) {
			goal, _ := input["goal"].(string)

			var names []string
			for _, name := range catalog() {
				if name == decompose.PlanningCapability {
					continue
				}
				names = append(names, name)
			}
			if len(names) == 0 {
				return nil, fmt.Errorf("no capabilities available to plan against")
			}

			prompt := fmt.Sprintf(planningPrompt, goal, strings.Join(names, ", "))
			response, err := gen.Generate(ctx, planningSystem, prompt)
			if err != nil {
				return nil, fmt.Errorf("plan goal: %w", err)
			}
			return &models.Result{
				Capability: decompose.PlanningCapability,
				Content:    response,
				Confidence: 0.9,
			}, nil
		},
	}
}
