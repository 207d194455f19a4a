// Package builtin provides the stock capability set: goal planning,
// the four content production stages, and the review capabilities.
// All of them generate through a shared llm.Generator.
package builtin

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/batonkit/baton/internal/capability"
	"github.com/batonkit/baton/internal/llm"
	"github.com/batonkit/baton/pkg/models"
)

// Capability names for the content and review stages.
const (
	NameResearch = "research"
	NameOutline  = "outline"
	NameProduce  = "produce"
	NameRefine   = "refine"
	NameStyle    = "style"
	NameTone     = "tone"
)

// All returns the full built-in set ready for registration. The
// catalog function supplies the registered capability names the
// planner may target, typically Registry.Names.
func All(gen llm.Generator, catalog func() []string) []*capability.Func {
	return []*capability.Func{
		Planning(gen, catalog),
		Research(gen),
		Outline(gen),
		Produce(gen),
		Refine(gen),
		Style(gen),
		Tone(gen),
	}
}

// promptFrom renders the capability input into a prompt: the goal, the
// task at hand, upstream results, and any extra context the caller
// supplied at submission.
func promptFrom(input map[string]any) string {
	var b strings.Builder
	if goal, ok := input["goal"].(string); ok && goal != "" {
		fmt.Fprintf(&b, "Goal: %s\n", goal)
	}
	if task, ok := input["task"].(string); ok && task != "" {
		fmt.Fprintf(&b, "Task: %s\n", task)
	}

	extras := extraContext(input)
	if len(extras) > 0 {
		b.WriteString("\nContext:\n")
		for _, key := range extras {
			fmt.Fprintf(&b, "- %s: %v\n", key, input[key])
		}
	}

	if upstream, ok := input["upstream"].(map[string]string); ok && len(upstream) > 0 {
		b.WriteString("\nWork completed so far:\n")
		names := make([]string, 0, len(upstream))
		for name := range upstream {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "\n## %s\n%s\n", name, upstream[name])
		}
	}
	return b.String()
}

// extraContext returns the caller-supplied input keys in sorted order,
// excluding the keys the orchestrator injects.
func extraContext(input map[string]any) []string {
	var keys []string
	for key := range input {
		switch key {
		case "goal", "task", "upstream":
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// harvestMarkers strips INSIGHT:, RECOMMENDATION:, and NEXT: lines
// from a response into the result's structured fields and returns the
// remaining content.
func harvestMarkers(response string, result *models.Result) string {
	var content []string
	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		switch {
		case strings.HasPrefix(upper, "INSIGHT:"):
			if v := strings.TrimSpace(trimmed[len("INSIGHT:"):]); v != "" {
				result.Insights = append(result.Insights, v)
			}
		case strings.HasPrefix(upper, "RECOMMENDATION:"):
			if v := strings.TrimSpace(trimmed[len("RECOMMENDATION:"):]); v != "" {
				result.Recommendations = append(result.Recommendations, v)
			}
		case strings.HasPrefix(upper, "NEXT:"):
			if v := strings.TrimSpace(trimmed[len("NEXT:"):]); v != "" {
				result.NextSteps = append(result.NextSteps, v)
			}
		default:
			content = append(content, line)
		}
	}
	return strings.TrimSpace(strings.Join(content, "\n"))
}

// parseScore extracts the leading numeric score from a review
// response, clamped to [0,1]. The bool reports whether a number was
// found at all.
func parseScore(response string) (float64, bool) {
	fields := strings.Fields(response)
	if len(fields) == 0 {
		return 0, false
	}
	score, err := strconv.ParseFloat(strings.TrimRight(fields[0], ".,:;"), 64)
	if err != nil {
		return 0, false
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, true
}
