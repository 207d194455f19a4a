package models

// ConflictSeverity grades how serious a detected conflict is.
type ConflictSeverity string

const (
	// SeverityLow marks a minor disagreement safe to auto-resolve.
	SeverityLow ConflictSeverity = "low"
	// SeverityMedium marks a disagreement worth surfacing to the caller.
	SeverityMedium ConflictSeverity = "medium"
	// SeverityHigh marks a disagreement that likely needs human review.
	SeverityHigh ConflictSeverity = "high"
)

// ResolutionStrategy names how a conflict was resolved.
type ResolutionStrategy string

const (
	// ResolutionOverride takes the higher-priority capability's output.
	ResolutionOverride ResolutionStrategy = "override"
	// ResolutionAveraging merges numeric disagreements by taking the mean.
	ResolutionAveraging ResolutionStrategy = "averaging"
	// ResolutionDeferral keeps both outputs flagged for manual review,
	// proceeding with a default fallback value.
	ResolutionDeferral ResolutionStrategy = "deferral"
)

// ConflictResolution records how a single conflict was settled.
type ConflictResolution struct {
	// Strategy is the resolution strategy that was applied.
	Strategy ResolutionStrategy `json:"strategy"`
	// ResolvedValue is the value downstream consumers should use.
	ResolvedValue float64 `json:"resolved_value"`
	// Winner names the capability whose output was taken, for overrides.
	Winner string `json:"winner,omitempty"`
	// Note explains the resolution in human terms.
	Note string `json:"note,omitempty"`
}

// ConflictRecord describes one detected conflict between capability outputs.
// Records are produced and consumed within a single coordination pass.
type ConflictRecord struct {
	// Type identifies the rule that detected the conflict.
	Type string `json:"type"`
	// Severity grades the conflict.
	Severity ConflictSeverity `json:"severity"`
	// InvolvedCapabilities names the capabilities whose outputs disagree.
	InvolvedCapabilities []string `json:"involved_capabilities"`
	// Description is a human-readable account of the disagreement.
	Description string `json:"description"`
	// Metric is the shared metric key the conflict was detected on, if numeric.
	Metric string `json:"metric,omitempty"`
	// Values maps capability name to its reported value for Metric.
	Values map[string]float64 `json:"values,omitempty"`
	// Resolution records how the conflict was settled.
	Resolution *ConflictResolution `json:"resolution,omitempty"`
}
