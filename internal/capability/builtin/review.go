package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/batonkit/baton/internal/capability"
	"github.com/batonkit/baton/internal/llm"
	"github.com/batonkit/baton/pkg/models"
)

const (
	styleSystem = `You review writing style: diction, sentence rhythm, and consistency.`
	toneSystem  = `You review tone: register, voice, and fit for the stated audience.`
)

// reviewPrompt asks for a leading numeric score so divergent reviews
// surface as a measurable gap on the shared coherence metric.
const reviewPrompt = `Score the coherence of the work below from 0.0 to 1.0.

%s

Respond with ONLY the numeric score on the first line, then a short critique.`

// Style returns the style review capability. It reports a "coherence"
// metric shared with the tone review, so the two can disagree.
func Style(gen llm.Generator) *capability.Func {
	return review(NameStyle, styleSystem, gen)
}

// Tone returns the tone review capability.
func Tone(gen llm.Generator) *capability.Func {
	return review(NameTone, toneSystem, gen)
}

func review(name, system string, gen llm.Generator) *capability.Func {
	return &capability.Func{
		CapabilityName: name,
		Modes:          []models.Mode{models.ModeManual, models.ModeHybrid, models.ModeAutonomous},
		Estimate: func(input map[string]any) time.Duration {
			return 2 * time.Minute
		},
		Run: func(ctx context.Context, input map[string]any, mode models.Mode) (*models.Result, error) {
			response, err := gen.Generate(ctx, system, fmt.Sprintf(reviewPrompt, promptFrom(input)))
			if err != nil {
				return nil, fmt.Errorf("%s review: %w", name, err)
			}
			score, ok := parseScore(response)
			if !ok {
				return nil, fmt.Errorf("%s review returned no numeric score: %q", name, truncate(response, 120))
			}
			_, critique, _ := strings.Cut(response, "\n")
			return &models.Result{
				Capability: name,
				Content:    strings.TrimSpace(critique),
				Metrics:    map[string]float64{"coherence": score},
				Confidence: 0.85,
			}, nil
		},
		// A review's own quality tracks the coherence it measured.
		Quality: func(result *models.Result) float64 {
			if score, ok := result.Metrics["coherence"]; ok {
				return score
			}
			return capability.DefaultQualityScore
		},
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
