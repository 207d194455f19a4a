package models

// RecoveryStrategy names the suggested response to an exhausted failure.
type RecoveryStrategy string

const (
	// RecoveryRetry suggests resubmitting the goal unchanged.
	RecoveryRetry RecoveryStrategy = "retry"
	// RecoveryAdapt suggests adjusting inputs or constraints before resubmitting.
	RecoveryAdapt RecoveryStrategy = "adapt"
	// RecoveryEscalate suggests routing the failure to a human.
	RecoveryEscalate RecoveryStrategy = "escalate"
	// RecoveryFallback suggests substituting an alternative capability or plan.
	RecoveryFallback RecoveryStrategy = "fallback"
)

// RecoveryPlan is the suggestion attached to a terminally failed goal.
type RecoveryPlan struct {
	// Strategy is the suggested recovery strategy.
	Strategy RecoveryStrategy `json:"strategy"`
	// Steps lists concrete actions in the order to take them.
	Steps []string `json:"steps"`
	// FallbackOptions lists alternatives when the strategy itself fails.
	FallbackOptions []string `json:"fallback_options,omitempty"`
}
