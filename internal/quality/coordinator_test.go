package quality

import (
	"context"
	"math"
	"testing"

	"github.com/batonkit/baton/internal/capability"
	"github.com/batonkit/baton/pkg/models"
)

func newRegistry(t *testing.T, caps ...*capability.Func) *capability.Registry {
	t.Helper()
	reg := capability.NewRegistry()
	for _, c := range caps {
		if c.Run == nil {
			c.Run = func(ctx context.Context, input map[string]any, mode models.Mode) (*models.Result, error) {
				return &models.Result{}, nil
			}
		}
		if err := reg.Register(c); err != nil {
			t.Fatalf("Register(%s) error = %v", c.CapabilityName, err)
		}
	}
	return reg
}

func TestValidateMixedCheckers(t *testing.T) {
	reg := newRegistry(t,
		&capability.Func{
			CapabilityName: "scored",
			Modes:          []models.Mode{models.ModeAutonomous},
			Quality:        func(result *models.Result) float64 { return 0.6 },
		},
		&capability.Func{
			CapabilityName: "plain",
			Modes:          []models.Mode{models.ModeAutonomous},
		},
	)

	v := NewCoordinator(reg).Validate([]*models.Result{
		{Capability: "scored"},
		{Capability: "plain"},
	}, 0.7)

	// The unchecked capability scores the 0.8 baseline.
	if got := v.PerCapabilityScore["plain"]; got != capability.DefaultQualityScore {
		t.Errorf("PerCapabilityScore[plain] = %v, want %v", got, capability.DefaultQualityScore)
	}
	if got := v.PerCapabilityScore["scored"]; got != 0.6 {
		t.Errorf("PerCapabilityScore[scored] = %v, want 0.6", got)
	}
	if want := 0.7; math.Abs(v.OverallScore-want) > 1e-9 {
		t.Errorf("OverallScore = %v, want %v", v.OverallScore, want)
	}
	// Meeting the threshold exactly passes.
	if !v.Passed {
		t.Error("Passed = false, want true at threshold")
	}
	if len(v.Issues) != 1 {
		t.Errorf("len(Issues) = %d, want 1 for the below-threshold capability", len(v.Issues))
	}
}

func TestValidateBelowThreshold(t *testing.T) {
	reg := newRegistry(t,
		&capability.Func{
			CapabilityName: "style",
			Modes:          []models.Mode{models.ModeAutonomous},
			Quality:        func(result *models.Result) float64 { return 0.4 },
		},
		&capability.Func{
			CapabilityName: "tone",
			Modes:          []models.Mode{models.ModeAutonomous},
			Quality:        func(result *models.Result) float64 { return 0.5 },
		},
	)

	v := NewCoordinator(reg).Validate([]*models.Result{
		{Capability: "style"},
		{Capability: "tone"},
	}, 0.7)

	if v.Passed {
		t.Error("Passed = true, want false")
	}
	if want := 0.45; math.Abs(v.OverallScore-want) > 1e-9 {
		t.Errorf("OverallScore = %v, want %v", v.OverallScore, want)
	}
	if len(v.Issues) != 2 {
		t.Errorf("len(Issues) = %d, want 2", len(v.Issues))
	}
}

func TestValidateUnknownCapability(t *testing.T) {
	reg := newRegistry(t)

	v := NewCoordinator(reg).Validate([]*models.Result{
		{Capability: "ghost"},
	}, 0.7)

	if got := v.PerCapabilityScore["ghost"]; got != capability.DefaultQualityScore {
		t.Errorf("PerCapabilityScore[ghost] = %v, want baseline %v", got, capability.DefaultQualityScore)
	}
	if !v.Passed {
		t.Error("Passed = false, want true at baseline score")
	}
}

func TestValidateAveragesRepeatedCapability(t *testing.T) {
	reg := newRegistry(t,
		&capability.Func{
			CapabilityName: "research",
			Modes:          []models.Mode{models.ModeAutonomous},
			Quality:        func(result *models.Result) float64 { return result.Confidence },
		},
	)

	v := NewCoordinator(reg).Validate([]*models.Result{
		{Capability: "research", Confidence: 0.6},
		{Capability: "research", Confidence: 1.0},
	}, 0.7)

	if want := 0.8; math.Abs(v.PerCapabilityScore["research"]-want) > 1e-9 {
		t.Errorf("PerCapabilityScore[research] = %v, want %v", v.PerCapabilityScore["research"], want)
	}
	if want := 0.8; math.Abs(v.OverallScore-want) > 1e-9 {
		t.Errorf("OverallScore = %v, want %v", v.OverallScore, want)
	}
}

func TestValidateNoResults(t *testing.T) {
	v := NewCoordinator(newRegistry(t)).Validate(nil, 0.7)

	if v.OverallScore != 0 {
		t.Errorf("OverallScore = %v, want 0", v.OverallScore)
	}
	if v.Passed {
		t.Error("Passed = true, want false with no results")
	}
}
