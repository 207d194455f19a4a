package models

import "fmt"

// Mode is the autonomy level that gates whether a task auto-executes
// or waits for a human checkpoint.
type Mode string

const (
	// ModeManual prepares work but leaves execution to a human trigger.
	ModeManual Mode = "manual"
	// ModeHybrid executes but routes unsupported steps through approval.
	ModeHybrid Mode = "hybrid"
	// ModeAutonomous executes everything without human checkpoints.
	ModeAutonomous Mode = "autonomous"
)

// Valid returns true if the mode is a known value.
func (m Mode) Valid() bool {
	switch m {
	case ModeManual, ModeHybrid, ModeAutonomous:
		return true
	default:
		return false
	}
}

// ParseMode converts a string into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode %q (expected manual, hybrid, or autonomous)", s)
	}
	return m, nil
}
