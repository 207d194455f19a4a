// Package synthesis merges per-task capability results into one unified
// outcome for the goal.
package synthesis

import (
	"strings"

	"github.com/batonkit/baton/pkg/models"
)

// Synthesizer combines capability results into a single result.
type Synthesizer struct {
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// NewSynthesizer creates a new synthesizer.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (s *Synthesizer) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		s.debugLog = fn
	}
}

// Synthesize merges results in order: contents are joined into one
// document, insight lists are deduplicated preserving first occurrence,
// and confidence is the mean of all result confidences clamped to [0,1].
func (s *Synthesizer) Synthesize(results []*models.Result) *models.SynthesizedResult {
	merged := &models.SynthesizedResult{}

	var contents []string
	var confidenceSum float64
	var counted int
	seenInsight := make(map[string]bool)
	seenRecommendation := make(map[string]bool)
	seenNextStep := make(map[string]bool)

	for _, result := range results {
		if result == nil {
			continue
		}
		if c := strings.TrimSpace(result.Content); c != "" {
			contents = append(contents, c)
		}
		for _, insight := range result.Insights {
			if insight != "" && !seenInsight[insight] {
				seenInsight[insight] = true
				merged.Insights = append(merged.Insights, insight)
			}
		}
		for _, rec := range result.Recommendations {
			if rec != "" && !seenRecommendation[rec] {
				seenRecommendation[rec] = true
				merged.Recommendations = append(merged.Recommendations, rec)
			}
		}
		for _, step := range result.NextSteps {
			if step != "" && !seenNextStep[step] {
				seenNextStep[step] = true
				merged.NextSteps = append(merged.NextSteps, step)
			}
		}
		confidenceSum += result.Confidence
		counted++
	}

	merged.Content = strings.Join(contents, "\n\n")
	if counted > 0 {
		merged.Confidence = clamp(confidenceSum / float64(counted))
	}

	s.debugLog("[synthesis] merged %d results: %d insights, %d recommendations, %d next steps, confidence %.2f",
		counted, len(merged.Insights), len(merged.Recommendations), len(merged.NextSteps), merged.Confidence)
	return merged
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
