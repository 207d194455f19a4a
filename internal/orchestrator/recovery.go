package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/batonkit/baton/internal/capability"
	"github.com/batonkit/baton/internal/orchestrator/policy"
	"github.com/batonkit/baton/pkg/models"
)

// ErrDependencyNotMet reports a task dispatched before all of its
// dependencies completed. The defensive phase check produces it; the
// failure is never retried since a rerun inside the same phase cannot
// change the dependency's state.
var ErrDependencyNotMet = errors.New("dependency not completed")

// UnsupportedModeError reports a task whose capability cannot run under
// the goal's autonomy mode and no adaptation applies.
type UnsupportedModeError struct {
	// Capability names the capability that rejected the mode.
	Capability string
	// Mode is the goal's autonomy mode.
	Mode models.Mode
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("capability %s does not support %s mode", e.Capability, e.Mode)
}

// recoveryManager decides whether failed tasks are re-offered and
// builds recovery plans once retries are exhausted.
type recoveryManager struct {
	policy policy.RetryPolicy
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

func newRecoveryManager(p policy.RetryPolicy) *recoveryManager {
	return &recoveryManager{
		policy:   p,
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// shouldRetry reports whether a failed task gets another attempt.
// Deterministic failures are not retried regardless of the budget.
func (m *recoveryManager) shouldRetry(task *models.Task, maxRetries int, err error) bool {
	if task.RetryCount >= maxRetries {
		return false
	}
	var modeErr *UnsupportedModeError
	if errors.As(err, &modeErr) {
		return false
	}
	if errors.Is(err, capability.ErrInvalidInput) || errors.Is(err, ErrDependencyNotMet) {
		return false
	}
	return true
}

// newBackoff builds the retry delay schedule for one task. Retries are
// bounded by count, so the elapsed-time cutoff is disabled.
func (m *recoveryManager) newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.policy.InitialInterval
	b.RandomizationFactor = m.policy.RandomizationFactor
	b.Multiplier = m.policy.Multiplier
	b.MaxInterval = m.policy.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// awaitRetry sleeps the longest pending backoff delay among the
// re-offered tasks before the phase dispatches them again. Each task
// keeps its own schedule in backoffs, seeded on first retry. Returns
// early when ctx ends.
func (m *recoveryManager) awaitRetry(ctx context.Context, backoffs map[string]backoff.BackOff, tasks []*models.Task) {
	var delay time.Duration
	for _, task := range tasks {
		b, ok := backoffs[task.ID]
		if !ok {
			b = m.newBackoff()
			backoffs[task.ID] = b
		}
		if d := b.NextBackOff(); d != backoff.Stop && d > delay {
			delay = d
		}
	}
	if delay <= 0 {
		return
	}
	m.debugLog("[recovery] re-offering %d task(s) after %s", len(tasks), delay)
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// planRecovery maps the task's final error to a recovery strategy:
// timeouts suggest a retry, rejected inputs suggest adapting the goal,
// unavailable capabilities suggest a fallback, and everything else is
// escalated to a human.
func (m *recoveryManager) planRecovery(task *models.Task, err error) *models.RecoveryPlan {
	var modeErr *UnsupportedModeError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &models.RecoveryPlan{
			Strategy: models.RecoveryRetry,
			Steps: []string{
				fmt.Sprintf("task %s timed out; re-submit the goal", shortID(task.ID)),
				"consider a longer task timeout in the goal constraints",
			},
			FallbackOptions: []string{
				"split the task into smaller steps",
				"run the goal in manual mode and trigger steps individually",
			},
		}
	case errors.Is(err, capability.ErrInvalidInput):
		return &models.RecoveryPlan{
			Strategy: models.RecoveryAdapt,
			Steps: []string{
				fmt.Sprintf("capability %s rejected its input", task.CapabilityType),
				"supply the missing or corrected context keys and re-submit",
			},
			FallbackOptions: []string{"remove the task from the goal", "use a different capability"},
		}
	case errors.As(err, &modeErr):
		return &models.RecoveryPlan{
			Strategy: models.RecoveryEscalate,
			Steps: []string{
				fmt.Sprintf("capability %s cannot run under %s mode", modeErr.Capability, modeErr.Mode),
				"re-submit the goal under a mode the capability supports",
			},
			FallbackOptions: []string{"register a mode-compatible capability under the same name"},
		}
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &models.RecoveryPlan{
			Strategy: models.RecoveryFallback,
			Steps: []string{
				fmt.Sprintf("capability %s is unavailable (circuit open)", task.CapabilityType),
				"wait for the capability to recover, then re-submit",
			},
			FallbackOptions: []string{"substitute an equivalent capability", "reduce concurrent load"},
		}
	default:
		return &models.RecoveryPlan{
			Strategy: models.RecoveryEscalate,
			Steps: []string{
				fmt.Sprintf("task %s failed %d times: %v", shortID(task.ID), task.RetryCount+1, err),
				"review the capability logs and re-submit once fixed",
			},
			FallbackOptions: []string{"remove or replace the failing task"},
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
