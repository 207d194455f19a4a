package models

import "time"

// Result is the output a capability produces for one task.
type Result struct {
	// Capability names the capability that produced this result.
	Capability string `json:"capability"`
	// TaskID is the task this result belongs to.
	TaskID string `json:"task_id,omitempty"`
	// Content is the primary textual output.
	Content string `json:"content,omitempty"`
	// Metrics holds named numeric scores the capability reported.
	// Two capabilities reporting the same metric key declare an
	// overlapping concern subject to conflict detection.
	Metrics map[string]float64 `json:"metrics,omitempty"`
	// Confidence is the capability's self-reported confidence in [0,1].
	Confidence float64 `json:"confidence"`
	// Insights are notable observations produced alongside the content.
	Insights []string `json:"insights,omitempty"`
	// Recommendations are follow-up suggestions for the caller.
	Recommendations []string `json:"recommendations,omitempty"`
	// NextSteps are concrete actions the caller could take next.
	NextSteps []string `json:"next_steps,omitempty"`
	// Metadata carries auxiliary key/value details such as adaptation markers.
	Metadata map[string]string `json:"metadata,omitempty"`
	// Duration is the wall-clock time the execution took.
	Duration time.Duration `json:"duration,omitempty"`
}

// Clone returns a deep copy of the result.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	c := *r
	if r.Metrics != nil {
		c.Metrics = make(map[string]float64, len(r.Metrics))
		for k, v := range r.Metrics {
			c.Metrics[k] = v
		}
	}
	c.Insights = append([]string(nil), r.Insights...)
	c.Recommendations = append([]string(nil), r.Recommendations...)
	c.NextSteps = append([]string(nil), r.NextSteps...)
	if r.Metadata != nil {
		c.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// SynthesizedResult is the unified output merged from all capability results.
type SynthesizedResult struct {
	// Content is the combined textual output.
	Content string `json:"content"`
	// Insights aggregates deduplicated insights from all results.
	Insights []string `json:"insights,omitempty"`
	// Recommendations aggregates deduplicated recommendations.
	Recommendations []string `json:"recommendations,omitempty"`
	// NextSteps aggregates deduplicated next steps.
	NextSteps []string `json:"next_steps,omitempty"`
	// Confidence is the mean capability confidence, clamped to [0,1].
	Confidence float64 `json:"confidence"`
}

// QualityValidation is the outcome of validating results against quality thresholds.
type QualityValidation struct {
	// OverallScore is the mean of all per-capability scores.
	OverallScore float64 `json:"overall_score"`
	// PerCapabilityScore maps capability name to its quality score.
	PerCapabilityScore map[string]float64 `json:"per_capability_score"`
	// Passed reports whether OverallScore met the goal's quality threshold.
	Passed bool `json:"passed"`
	// Issues lists human-readable problems found during validation.
	Issues []string `json:"issues,omitempty"`
}
