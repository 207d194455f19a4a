package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/batonkit/baton/internal/capability"
	"github.com/batonkit/baton/internal/llm"
	"github.com/batonkit/baton/pkg/models"
)

// markerInstructions teaches each stage the line prefixes the result
// parser harvests into structured fields.
const markerInstructions = `Prefix any notable observation with "INSIGHT:", any suggestion with "RECOMMENDATION:", and any follow-up action with "NEXT:", each on its own line.`

const (
	researchSystem = `You are the research stage of a content pipeline. Gather the key facts, background, and source material the goal needs. Be specific and note uncertainty where it exists.

` + markerInstructions

	outlineSystem = `You are the outline stage of a content pipeline. Turn the goal and any research into a clear hierarchical outline of the deliverable.

` + markerInstructions

	produceSystem = `You are the production stage of a content pipeline. Write the full deliverable, following the outline and research provided in the prompt.

` + markerInstructions

	refineSystem = `You are the refinement stage of a content pipeline. Polish the draft for clarity, flow, and correctness without changing its substance.

` + markerInstructions
)

// Research returns the background gathering stage.
func Research(gen llm.Generator) *capability.Func {
	return stage(NameResearch, researchSystem, 5*time.Minute, 0.8, gen)
}

// Outline returns the structuring stage.
func Outline(gen llm.Generator) *capability.Func {
	return stage(NameOutline, outlineSystem, 2*time.Minute, 0.85, gen)
}

// Produce returns the main drafting stage.
func Produce(gen llm.Generator) *capability.Func {
	return stage(NameProduce, produceSystem, 10*time.Minute, 0.75, gen)
}

// Refine returns the polishing stage.
func Refine(gen llm.Generator) *capability.Func {
	return stage(NameRefine, refineSystem, 3*time.Minute, 0.9, gen)
}

// stage builds one content production capability around a system
// prompt, a duration estimate, and the stage's confidence in its own
// output.
func stage(name, system string, estimate time.Duration, confidence float64, gen llm.Generator) *capability.Func {
	return &capability.Func{
		CapabilityName: name,
		Modes:          []models.Mode{models.ModeManual, models.ModeHybrid, models.ModeAutonomous},
		Estimate: func(input map[string]any) time.Duration {
			return estimate
		},
		Run: func(ctx context.Context, input map[string]any, mode models.Mode) (*models.Result, error) {
			response, err := gen.Generate(ctx, system, promptFrom(input))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			result := &models.Result{Capability: name, Confidence: confidence}
			result.Content = harvestMarkers(response, result)
			if result.Content == "" {
				return nil, fmt.Errorf("%s returned no content", name)
			}
			return result, nil
		},
	}
}
