package conflict

import (
	"math"
	"testing"

	"github.com/batonkit/baton/pkg/models"
)

func result(capability string, metrics map[string]float64) *models.Result {
	return &models.Result{
		Capability: capability,
		Metrics:    metrics,
		Confidence: 0.9,
	}
}

func TestResolveDivergentScores(t *testing.T) {
	style := result("style", map[string]float64{"coherence": 0.9})
	tone := result("tone", map[string]float64{"coherence": 0.4})

	records := NewResolver().Resolve([]*models.Result{style, tone})

	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.Type != "metric_divergence" {
		t.Errorf("Type = %q, want metric_divergence", rec.Type)
	}
	if len(rec.InvolvedCapabilities) != 2 || rec.InvolvedCapabilities[0] != "style" || rec.InvolvedCapabilities[1] != "tone" {
		t.Errorf("InvolvedCapabilities = %v, want [style tone]", rec.InvolvedCapabilities)
	}
	if rec.Metric != "coherence" {
		t.Errorf("Metric = %q, want coherence", rec.Metric)
	}
	if rec.Resolution == nil {
		t.Fatal("Resolution = nil, want averaging resolution")
	}
	if rec.Resolution.Strategy != models.ResolutionAveraging {
		t.Errorf("Strategy = %q, want averaging", rec.Resolution.Strategy)
	}
	if got, want := rec.Resolution.ResolvedValue, 0.65; math.Abs(got-want) > 1e-9 {
		t.Errorf("ResolvedValue = %v, want %v", got, want)
	}

	// Both results carry the settled value afterwards.
	if got := style.Metrics["coherence"]; math.Abs(got-0.65) > 1e-9 {
		t.Errorf("style coherence after resolve = %v, want 0.65", got)
	}
	if got := tone.Metrics["coherence"]; math.Abs(got-0.65) > 1e-9 {
		t.Errorf("tone coherence after resolve = %v, want 0.65", got)
	}
}

func TestResolveWithinThreshold(t *testing.T) {
	style := result("style", map[string]float64{"coherence": 0.8})
	tone := result("tone", map[string]float64{"coherence": 0.7})

	records := NewResolver().Resolve([]*models.Result{style, tone})

	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}
	if got := style.Metrics["coherence"]; got != 0.8 {
		t.Errorf("style coherence = %v, want unchanged 0.8", got)
	}
}

func TestResolveNoSharedMetrics(t *testing.T) {
	a := result("style", map[string]float64{"coherence": 0.9})
	b := result("tone", map[string]float64{"formality": 0.1})

	if records := NewResolver().Resolve([]*models.Result{a, b}); len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}
}

func TestResolveSkipsSameCapability(t *testing.T) {
	a := result("style", map[string]float64{"coherence": 0.9})
	b := result("style", map[string]float64{"coherence": 0.1})

	if records := NewResolver().Resolve([]*models.Result{a, b}); len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}
}

func TestResolveOverride(t *testing.T) {
	r := NewResolver()
	r.SetRules(Rule{
		Type:     "metric_divergence",
		Severity: models.SeverityHigh,
		Strategy: models.ResolutionOverride,
		Detect:   DivergenceRule(DefaultDivergenceThreshold).Detect,
	})
	r.SetPriority("style", 2)
	r.SetPriority("tone", 1)

	style := result("style", map[string]float64{"coherence": 0.9})
	tone := result("tone", map[string]float64{"coherence": 0.3})

	records := r.Resolve([]*models.Result{style, tone})

	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	res := records[0].Resolution
	if res.Strategy != models.ResolutionOverride {
		t.Errorf("Strategy = %q, want override", res.Strategy)
	}
	if res.Winner != "style" {
		t.Errorf("Winner = %q, want style", res.Winner)
	}
	if res.ResolvedValue != 0.9 {
		t.Errorf("ResolvedValue = %v, want 0.9", res.ResolvedValue)
	}
	if got := tone.Metrics["coherence"]; got != 0.9 {
		t.Errorf("tone coherence after override = %v, want 0.9", got)
	}
}

func TestResolveOverrideEqualRanks(t *testing.T) {
	r := NewResolver()
	r.SetRules(Rule{
		Type:     "metric_divergence",
		Severity: models.SeverityHigh,
		Strategy: models.ResolutionOverride,
		Detect:   DivergenceRule(DefaultDivergenceThreshold).Detect,
	})

	style := result("style", map[string]float64{"coherence": 0.9})
	tone := result("tone", map[string]float64{"coherence": 0.3})

	records := r.Resolve([]*models.Result{style, tone})

	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	res := records[0].Resolution
	if res.Strategy != models.ResolutionAveraging {
		t.Errorf("Strategy = %q, want averaging fallback", res.Strategy)
	}
	if got, want := res.ResolvedValue, 0.6; math.Abs(got-want) > 1e-9 {
		t.Errorf("ResolvedValue = %v, want %v", got, want)
	}
}

func TestResolveDeferralKeepsValues(t *testing.T) {
	r := NewResolver()
	r.SetRules(Rule{
		Type:     "needs_review",
		Severity: models.SeverityHigh,
		Strategy: models.ResolutionDeferral,
		Detect:   DivergenceRule(DefaultDivergenceThreshold).Detect,
	})

	style := result("style", map[string]float64{"coherence": 0.9})
	tone := result("tone", map[string]float64{"coherence": 0.3})

	records := r.Resolve([]*models.Result{style, tone})

	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	res := records[0].Resolution
	if res.Strategy != models.ResolutionDeferral {
		t.Errorf("Strategy = %q, want deferral", res.Strategy)
	}
	if got, want := res.ResolvedValue, 0.6; math.Abs(got-want) > 1e-9 {
		t.Errorf("ResolvedValue = %v, want fallback mean %v", got, want)
	}
	if got := style.Metrics["coherence"]; got != 0.9 {
		t.Errorf("style coherence after deferral = %v, want unchanged 0.9", got)
	}
	if got := tone.Metrics["coherence"]; got != 0.3 {
		t.Errorf("tone coherence after deferral = %v, want unchanged 0.3", got)
	}
}

func TestResolveSecondPassIdempotent(t *testing.T) {
	style := result("style", map[string]float64{"coherence": 0.9})
	tone := result("tone", map[string]float64{"coherence": 0.4})

	r := NewResolver()
	if records := r.Resolve([]*models.Result{style, tone}); len(records) != 1 {
		t.Fatalf("first pass records = %d, want 1", len(records))
	}
	// The averaged values agree now, so a rerun detects nothing.
	if records := r.Resolve([]*models.Result{style, tone}); len(records) != 0 {
		t.Errorf("second pass records = %d, want 0", len(records))
	}
}

func TestResolveCustomRule(t *testing.T) {
	r := NewResolver()
	r.AddRule(Rule{
		Type:     "low_confidence_pair",
		Severity: models.SeverityLow,
		Strategy: models.ResolutionDeferral,
		Detect: func(metric string, a, b *models.Result) (bool, string) {
			if a.Confidence < 0.5 && b.Confidence < 0.5 {
				return true, "both capabilities report low confidence"
			}
			return false, ""
		},
	})

	a := result("style", map[string]float64{"coherence": 0.8})
	b := result("tone", map[string]float64{"coherence": 0.75})
	a.Confidence = 0.2
	b.Confidence = 0.3

	records := r.Resolve([]*models.Result{a, b})

	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].Type != "low_confidence_pair" {
		t.Errorf("Type = %q, want low_confidence_pair", records[0].Type)
	}
}

func TestMergeRecords(t *testing.T) {
	rec := func(typ, metric string, caps ...string) models.ConflictRecord {
		return models.ConflictRecord{Type: typ, Metric: metric, InvolvedCapabilities: caps}
	}

	existing := []models.ConflictRecord{rec("metric_divergence", "coherence", "style", "tone")}
	latest := []models.ConflictRecord{
		rec("metric_divergence", "coherence", "tone", "style"), // same pair, reversed order
		rec("metric_divergence", "clarity", "style", "tone"),
	}

	merged := MergeRecords(existing, latest)

	if len(merged) != 2 {
		t.Fatalf("len(merged) = %d, want 2", len(merged))
	}
	if merged[1].Metric != "clarity" {
		t.Errorf("merged[1].Metric = %q, want clarity", merged[1].Metric)
	}
}
