// Package policy defines configurable policy parameters for orchestrator
// behavior. This centralizes threshold values and schedules that would
// otherwise be scattered across implementation files, enabling
// configuration and testing.
package policy

import "time"

// Config contains all configurable policy parameters for the
// orchestrator. Zero-valued fields are filled from Default.
type Config struct {
	// Retry controls the backoff schedule between task retry attempts.
	Retry RetryPolicy

	// Conflict controls cross-capability conflict detection.
	Conflict ConflictPolicy

	// Events controls the orchestrator event stream.
	Events EventPolicy
}

// RetryPolicy controls the delay schedule applied between a task's
// failed attempt and its re-offer.
type RetryPolicy struct {
	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration
	// MaxInterval caps the delay between attempts.
	MaxInterval time.Duration
	// Multiplier is the exponential growth factor per attempt.
	Multiplier float64
	// RandomizationFactor jitters each delay. Zero disables jitter.
	RandomizationFactor float64
}

// ConflictPolicy controls conflict detection between capability outputs.
type ConflictPolicy struct {
	// DivergenceThreshold is the score gap on a shared metric beyond
	// which two capabilities are considered in conflict.
	DivergenceThreshold float64
	// CapabilityPriorities ranks capabilities for override resolution.
	// Higher ranks win. Unranked capabilities rank zero.
	CapabilityPriorities map[string]int
}

// EventPolicy controls the orchestrator event stream.
type EventPolicy struct {
	// BufferSize is the event channel capacity. Events are dropped
	// rather than blocking when the buffer is full.
	BufferSize int
}

// Default returns the standard policy configuration.
func Default() Config {
	return Config{
		Retry: RetryPolicy{
			InitialInterval:     100 * time.Millisecond,
			MaxInterval:         5 * time.Second,
			Multiplier:          2.0,
			RandomizationFactor: 0.5,
		},
		Conflict: ConflictPolicy{
			DivergenceThreshold: 0.25,
		},
		Events: EventPolicy{
			BufferSize: 100,
		},
	}
}

// WithDefaults fills any zero-valued field from Default. The
// RandomizationFactor is left as given so callers can disable jitter.
func (c Config) WithDefaults() Config {
	d := Default()
	if c.Retry.InitialInterval <= 0 {
		c.Retry.InitialInterval = d.Retry.InitialInterval
	}
	if c.Retry.MaxInterval <= 0 {
		c.Retry.MaxInterval = d.Retry.MaxInterval
	}
	if c.Retry.Multiplier <= 0 {
		c.Retry.Multiplier = d.Retry.Multiplier
	}
	if c.Conflict.DivergenceThreshold <= 0 {
		c.Conflict.DivergenceThreshold = d.Conflict.DivergenceThreshold
	}
	if c.Events.BufferSize <= 0 {
		c.Events.BufferSize = d.Events.BufferSize
	}
	return c
}
