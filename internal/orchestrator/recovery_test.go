package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/batonkit/baton/internal/capability"
	"github.com/batonkit/baton/internal/orchestrator/policy"
	"github.com/batonkit/baton/pkg/models"
)

func TestShouldRetry(t *testing.T) {
	m := newRecoveryManager(policy.Default().Retry)

	tests := []struct {
		name       string
		retryCount int
		maxRetries int
		err        error
		want       bool
	}{
		{"transient error within budget", 0, 3, errors.New("boom"), true},
		{"last allowed retry", 2, 3, errors.New("boom"), true},
		{"budget exhausted", 3, 3, errors.New("boom"), false},
		{"timeout retries", 1, 3, context.DeadlineExceeded, true},
		{"open breaker retries", 0, 3, gobreaker.ErrOpenState, true},
		{"unsupported mode never retries", 0, 3, &UnsupportedModeError{Capability: "research", Mode: models.ModeAutonomous}, false},
		{"invalid input never retries", 0, 3, capability.ErrInvalidInput, false},
		{"wrapped invalid input never retries", 0, 3, fmt.Errorf("execute: %w", capability.ErrInvalidInput), false},
		{"unmet dependency never retries", 0, 3, ErrDependencyNotMet, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &models.Task{ID: "t1", RetryCount: tt.retryCount}
			if got := m.shouldRetry(task, tt.maxRetries, tt.err); got != tt.want {
				t.Errorf("shouldRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlanRecoveryStrategies(t *testing.T) {
	m := newRecoveryManager(policy.Default().Retry)
	task := &models.Task{ID: "abcdef123456", CapabilityType: "research", RetryCount: 3}

	tests := []struct {
		name string
		err  error
		want models.RecoveryStrategy
	}{
		{"timeout suggests retry", context.DeadlineExceeded, models.RecoveryRetry},
		{"wrapped timeout suggests retry", fmt.Errorf("execute: %w", context.DeadlineExceeded), models.RecoveryRetry},
		{"invalid input suggests adapting", capability.ErrInvalidInput, models.RecoveryAdapt},
		{"unsupported mode escalates", &UnsupportedModeError{Capability: "research", Mode: models.ModeAutonomous}, models.RecoveryEscalate},
		{"open breaker suggests fallback", gobreaker.ErrOpenState, models.RecoveryFallback},
		{"shed load suggests fallback", gobreaker.ErrTooManyRequests, models.RecoveryFallback},
		{"unknown errors escalate", errors.New("boom"), models.RecoveryEscalate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := m.planRecovery(task, tt.err)
			if plan.Strategy != tt.want {
				t.Errorf("Strategy = %s, want %s", plan.Strategy, tt.want)
			}
			if len(plan.Steps) == 0 {
				t.Error("recovery plan has no steps")
			}
			if len(plan.FallbackOptions) == 0 {
				t.Error("recovery plan has no fallback options")
			}
		})
	}
}

func TestAwaitRetrySeedsPerTaskSchedules(t *testing.T) {
	m := newRecoveryManager(policy.RetryPolicy{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	})
	backoffs := make(map[string]backoff.BackOff)
	tasks := []*models.Task{{ID: "a"}, {ID: "b"}}

	m.awaitRetry(context.Background(), backoffs, tasks)
	if len(backoffs) != 2 {
		t.Fatalf("len(backoffs) = %d, want one schedule per task", len(backoffs))
	}

	// Schedules persist across rounds rather than restarting.
	m.awaitRetry(context.Background(), backoffs, tasks[:1])
	if len(backoffs) != 2 {
		t.Errorf("len(backoffs) = %d after second round, want 2", len(backoffs))
	}
}

func TestAwaitRetryHonorsContext(t *testing.T) {
	m := newRecoveryManager(policy.RetryPolicy{
		InitialInterval: time.Hour,
		MaxInterval:     time.Hour,
		Multiplier:      2,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	m.awaitRetry(ctx, make(map[string]backoff.BackOff), []*models.Task{{ID: "a"}})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("awaitRetry blocked %s with a canceled context", elapsed)
	}
}

func TestUnsupportedModeErrorMessage(t *testing.T) {
	err := &UnsupportedModeError{Capability: "research", Mode: models.ModeAutonomous}
	want := "capability research does not support autonomous mode"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
