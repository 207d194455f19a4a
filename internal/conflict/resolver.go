// Package conflict detects and settles disagreements between capability
// outputs. Detection runs a pluggable table of pairwise rules over every
// pair of results sharing a metric key; each triggered rule yields a
// ConflictRecord with a resolution applied under that rule's strategy.
// Resolution never blocks the pipeline: every strategy, including
// deferral, produces a concrete value downstream consumers can use.
package conflict

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/batonkit/baton/pkg/models"
)

// DefaultDivergenceThreshold is the gap between two capabilities' scores
// for the same metric beyond which the default rule reports a conflict.
const DefaultDivergenceThreshold = 0.25

// Rule is one pairwise conflict check, consulted for every pair of
// results that share a metric key.
type Rule struct {
	// Type labels the conflict records this rule produces.
	Type string
	// Severity grades conflicts detected by this rule.
	Severity models.ConflictSeverity
	// Strategy selects how detected conflicts are settled.
	Strategy models.ResolutionStrategy
	// Detect reports whether results a and b conflict on the shared
	// metric key, with a human-readable description when they do.
	Detect func(metric string, a, b *models.Result) (bool, string)
}

// DivergenceRule reports a conflict when two capabilities score the
// same metric more than threshold apart, settled by averaging.
func DivergenceRule(threshold float64) Rule {
	return Rule{
		Type:     "metric_divergence",
		Severity: models.SeverityMedium,
		Strategy: models.ResolutionAveraging,
		Detect: func(metric string, a, b *models.Result) (bool, string) {
			gap := math.Abs(a.Metrics[metric] - b.Metrics[metric])
			if gap <= threshold {
				return false, ""
			}
			return true, fmt.Sprintf("%s and %s disagree on %q (%.2f vs %.2f)",
				a.Capability, b.Capability, metric, a.Metrics[metric], b.Metrics[metric])
		},
	}
}

// Resolver holds the rule table and capability priority ranks. A new
// resolver starts with the divergence rule at the default threshold;
// rules and ranks are set up before execution starts, not during it.
type Resolver struct {
	mu         sync.RWMutex
	rules      []Rule
	priorities map[string]int
	debugLog   func(format string, args ...interface{})
}

// NewResolver creates a resolver with the default rule table.
func NewResolver() *Resolver {
	return &Resolver{
		rules:      []Rule{DivergenceRule(DefaultDivergenceThreshold)},
		priorities: make(map[string]int),
		debugLog:   func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (r *Resolver) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		r.debugLog = fn
	}
}

// AddRule appends a rule to the table.
func (r *Resolver) AddRule(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule)
}

// SetRules replaces the rule table.
func (r *Resolver) SetRules(rules ...Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append([]Rule(nil), rules...)
}

// SetPriority ranks a capability for override resolution. Higher ranks
// win; capabilities without a rank default to zero.
func (r *Resolver) SetPriority(capability string, rank int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.priorities[capability] = rank
}

// Resolve runs every rule over every pair of results sharing a metric
// key and returns the conflicts found with resolutions applied.
// Averaging and override rewrite the affected metric on both results so
// later passes and synthesis see the settled value; deferral leaves
// both values in place, flagged for review.
func (r *Resolver) Resolve(results []*models.Result) []models.ConflictRecord {
	r.mu.RLock()
	rules := append([]Rule(nil), r.rules...)
	r.mu.RUnlock()

	var records []models.ConflictRecord
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			a, b := results[i], results[j]
			if a == nil || b == nil || a.Capability == b.Capability {
				continue
			}
			for _, metric := range sharedMetrics(a, b) {
				for _, rule := range rules {
					hit, desc := rule.Detect(metric, a, b)
					if !hit {
						continue
					}
					rec := models.ConflictRecord{
						Type:                 rule.Type,
						Severity:             rule.Severity,
						InvolvedCapabilities: []string{a.Capability, b.Capability},
						Description:          desc,
						Metric:               metric,
						Values: map[string]float64{
							a.Capability: a.Metrics[metric],
							b.Capability: b.Metrics[metric],
						},
					}
					rec.Resolution = r.settle(rule.Strategy, metric, a, b)
					r.debugLog("[conflict] %s on %q between %s and %s resolved by %s",
						rule.Type, metric, a.Capability, b.Capability, rec.Resolution.Strategy)
					records = append(records, rec)
				}
			}
		}
	}
	return records
}

// settle applies one resolution strategy to a detected conflict and
// returns the record of what was done.
func (r *Resolver) settle(strategy models.ResolutionStrategy, metric string, a, b *models.Result) *models.ConflictResolution {
	va, vb := a.Metrics[metric], b.Metrics[metric]
	mean := (va + vb) / 2

	switch strategy {
	case models.ResolutionOverride:
		ra, rb := r.rank(a.Capability), r.rank(b.Capability)
		if ra == rb {
			// No rank separates the pair; settle by averaging instead.
			a.Metrics[metric] = mean
			b.Metrics[metric] = mean
			return &models.ConflictResolution{
				Strategy:      models.ResolutionAveraging,
				ResolvedValue: mean,
				Note:          "equal priority, averaged",
			}
		}
		winner, value := a.Capability, va
		if rb > ra {
			winner, value = b.Capability, vb
		}
		a.Metrics[metric] = value
		b.Metrics[metric] = value
		return &models.ConflictResolution{
			Strategy:      models.ResolutionOverride,
			ResolvedValue: value,
			Winner:        winner,
			Note:          fmt.Sprintf("%s outranks on %q", winner, metric),
		}

	case models.ResolutionDeferral:
		return &models.ConflictResolution{
			Strategy:      models.ResolutionDeferral,
			ResolvedValue: mean,
			Note:          "flagged for manual review, proceeding with the mean",
		}

	default:
		a.Metrics[metric] = mean
		b.Metrics[metric] = mean
		return &models.ConflictResolution{
			Strategy:      models.ResolutionAveraging,
			ResolvedValue: mean,
		}
	}
}

func (r *Resolver) rank(capability string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.priorities[capability]
}

// sharedMetrics returns the metric keys present in both results, sorted
// for deterministic rule application.
func sharedMetrics(a, b *models.Result) []string {
	if len(a.Metrics) == 0 || len(b.Metrics) == 0 {
		return nil
	}
	var shared []string
	for k := range a.Metrics {
		if _, ok := b.Metrics[k]; ok {
			shared = append(shared, k)
		}
	}
	sort.Strings(shared)
	return shared
}

// MergeRecords appends the latest pass's records to existing, skipping
// conflicts already on record for the same rule, metric, and pair.
// Deferred conflicts re-detect on every pass since their values stay
// apart; merging keeps the accumulated record list duplicate-free.
func MergeRecords(existing, latest []models.ConflictRecord) []models.ConflictRecord {
	seen := make(map[string]bool, len(existing))
	for _, rec := range existing {
		seen[recordKey(rec)] = true
	}
	merged := existing
	for _, rec := range latest {
		if key := recordKey(rec); !seen[key] {
			seen[key] = true
			merged = append(merged, rec)
		}
	}
	return merged
}

func recordKey(rec models.ConflictRecord) string {
	names := append([]string(nil), rec.InvolvedCapabilities...)
	sort.Strings(names)
	return rec.Type + "|" + rec.Metric + "|" + strings.Join(names, ",")
}
