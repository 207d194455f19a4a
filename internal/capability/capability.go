// Package capability defines the contract pluggable workers satisfy and
// the registry the orchestrator resolves them from.
package capability

import (
	"context"
	"time"

	"github.com/batonkit/baton/pkg/models"
)

// DefaultQualityScore is assumed for capabilities without a QualityCheck.
const DefaultQualityScore = 0.8

// Capability is a named, pluggable worker. Implementations must be
// stateless across invocations: any memory is passed via the input map.
// The contract is immutable once the capability is registered.
type Capability interface {
	// Name returns the unique capability name tasks reference.
	Name() string
	// SupportedModes lists the autonomy modes this capability can run under.
	SupportedModes() []models.Mode
	// RequiredContextKeys lists input keys that must be present to execute.
	RequiredContextKeys() []string
	// EstimateDuration returns the expected execution time for the input.
	// Used as a soft scheduling budget, not a hard timeout.
	EstimateDuration(input map[string]any) time.Duration
	// Execute runs the capability against the input under the given mode.
	Execute(ctx context.Context, input map[string]any, mode models.Mode) (*models.Result, error)
}

// InputValidator is optionally implemented by capabilities that can
// reject inputs before execution. Absent, inputs are assumed valid.
type InputValidator interface {
	ValidateInput(input map[string]any) bool
}

// QualityChecker is optionally implemented by capabilities that can
// score their own results. Absent, DefaultQualityScore is assumed.
type QualityChecker interface {
	QualityCheck(result *models.Result) float64
}

// SupportsMode reports whether the capability declares the given mode.
func SupportsMode(c Capability, mode models.Mode) bool {
	for _, m := range c.SupportedModes() {
		if m == mode {
			return true
		}
	}
	return false
}

// ValidateInput runs the capability's input validation if it has one.
func ValidateInput(c Capability, input map[string]any) bool {
	if v, ok := c.(InputValidator); ok {
		return v.ValidateInput(input)
	}
	return true
}

// QualityScore runs the capability's quality check if it has one,
// falling back to DefaultQualityScore.
func QualityScore(c Capability, result *models.Result) float64 {
	if q, ok := c.(QualityChecker); ok {
		return q.QualityCheck(result)
	}
	return DefaultQualityScore
}

// Func is a Capability built from plain functions. Zero-value optional
// fields fall back to the contract defaults, so tests and built-in
// capabilities can declare only what they need.
type Func struct {
	// CapabilityName is the unique name tasks reference.
	CapabilityName string
	// Modes lists the supported autonomy modes.
	Modes []models.Mode
	// RequiredKeys lists input keys that must be present.
	RequiredKeys []string
	// Estimate computes the duration estimate. Nil means a fixed minute.
	Estimate func(input map[string]any) time.Duration
	// Run executes the capability. Required.
	Run func(ctx context.Context, input map[string]any, mode models.Mode) (*models.Result, error)
	// Validate optionally rejects inputs before execution.
	Validate func(input map[string]any) bool
	// Quality optionally scores a result.
	Quality func(result *models.Result) float64
}

// Name implements Capability.
func (f *Func) Name() string { return f.CapabilityName }

// SupportedModes implements Capability.
func (f *Func) SupportedModes() []models.Mode { return f.Modes }

// RequiredContextKeys implements Capability.
func (f *Func) RequiredContextKeys() []string { return f.RequiredKeys }

// EstimateDuration implements Capability.
func (f *Func) EstimateDuration(input map[string]any) time.Duration {
	if f.Estimate == nil {
		return time.Minute
	}
	return f.Estimate(input)
}

// Execute implements Capability.
func (f *Func) Execute(ctx context.Context, input map[string]any, mode models.Mode) (*models.Result, error) {
	return f.Run(ctx, input, mode)
}

// ValidateInput implements InputValidator.
func (f *Func) ValidateInput(input map[string]any) bool {
	if f.Validate == nil {
		return true
	}
	return f.Validate(input)
}

// QualityCheck implements QualityChecker.
func (f *Func) QualityCheck(result *models.Result) float64 {
	if f.Quality == nil {
		return DefaultQualityScore
	}
	return f.Quality(result)
}
