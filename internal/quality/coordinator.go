// Package quality validates capability results against a goal's quality
// threshold. Capabilities that implement their own quality check score
// their results; the rest receive the baseline default score.
package quality

import (
	"fmt"
	"sort"

	"github.com/batonkit/baton/internal/capability"
	"github.com/batonkit/baton/pkg/models"
)

// Coordinator computes quality validations over a goal's results.
type Coordinator struct {
	registry *capability.Registry
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// NewCoordinator creates a coordinator resolving quality checks
// through reg.
func NewCoordinator(reg *capability.Registry) *Coordinator {
	return &Coordinator{
		registry: reg,
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (c *Coordinator) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		c.debugLog = fn
	}
}

// Validate scores every result through its capability's quality check
// and compares the mean against threshold. A capability with several
// results contributes the mean of its scores. Results whose capability
// cannot be resolved score the baseline default.
func (c *Coordinator) Validate(results []*models.Result, threshold float64) *models.QualityValidation {
	v := &models.QualityValidation{
		PerCapabilityScore: make(map[string]float64),
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, result := range results {
		if result == nil || result.Capability == "" {
			continue
		}
		sums[result.Capability] += c.score(result)
		counts[result.Capability]++
	}

	names := make([]string, 0, len(sums))
	for name := range sums {
		names = append(names, name)
	}
	sort.Strings(names)

	var total float64
	for _, name := range names {
		score := sums[name] / float64(counts[name])
		v.PerCapabilityScore[name] = score
		total += score
		if score < threshold {
			v.Issues = append(v.Issues, fmt.Sprintf("capability %s scored %.2f, below threshold %.2f", name, score, threshold))
		}
	}
	if len(names) > 0 {
		v.OverallScore = total / float64(len(names))
	}
	v.Passed = v.OverallScore >= threshold

	c.debugLog("[quality] overall=%.2f threshold=%.2f passed=%v issues=%d",
		v.OverallScore, threshold, v.Passed, len(v.Issues))
	return v
}

// score runs the owning capability's quality check on one result,
// falling back to the baseline when the capability is unknown.
func (c *Coordinator) score(result *models.Result) float64 {
	if c.registry == nil {
		return capability.DefaultQualityScore
	}
	resolved, err := c.registry.Resolve(result.Capability)
	if err != nil {
		return capability.DefaultQualityScore
	}
	return capability.QualityScore(resolved, result)
}
