package capability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/batonkit/baton/pkg/models"
)

// ErrInvalidInput indicates a capability rejected its input before execution.
var ErrInvalidInput = errors.New("capability input validation failed")

// Invoker executes capabilities behind a per-capability circuit breaker
// and a hard per-invocation timeout. A tripped breaker fails invocations
// fast; the failure feeds the caller's retry path like any other.
type Invoker struct {
	registry *Registry

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker

	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// NewInvoker creates an invoker over the given registry.
func NewInvoker(reg *Registry) *Invoker {
	return &Invoker{
		registry: reg,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (inv *Invoker) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		inv.debugLog = fn
	}
}

// breaker returns the circuit breaker for the given capability,
// creating it on first use.
func (inv *Invoker) breaker(name string) *gobreaker.CircuitBreaker {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if cb, ok := inv.breakers[name]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3, // Allow 3 test requests in half-open state
		Interval:    0, // Don't clear counts automatically
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			inv.debugLog("[invoker] circuit breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Cancellation and timeouts are not capability health signals.
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})

	inv.breakers[name] = cb
	return cb
}

// Execute runs one capability invocation: required-key and input
// validation, then the capability's Execute under the breaker and the
// given hard timeout. The returned result is stamped with the
// capability name and wall-clock duration.
func (inv *Invoker) Execute(ctx context.Context, c Capability, input map[string]any, mode models.Mode, timeout time.Duration) (*models.Result, error) {
	name := c.Name()

	for _, key := range c.RequiredContextKeys() {
		if _, ok := input[key]; !ok {
			return nil, fmt.Errorf("%w: capability %s requires context key %q", ErrInvalidInput, name, key)
		}
	}
	if !ValidateInput(c, input) {
		return nil, fmt.Errorf("%w: capability %s rejected input", ErrInvalidInput, name)
	}

	execCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	inv.registry.markActive(name)
	defer inv.registry.markIdle(name)

	start := time.Now()
	out, err := inv.breaker(name).Execute(func() (interface{}, error) {
		return c.Execute(execCtx, input, mode)
	})
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("capability %s unavailable: %w", name, err)
		}
		if execCtx.Err() != nil && errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("capability %s timed out after %s: %w", name, timeout, context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("capability %s: %w", name, err)
	}

	result, _ := out.(*models.Result)
	if result == nil {
		return nil, fmt.Errorf("capability %s returned no result", name)
	}
	if result.Capability == "" {
		result.Capability = name
	}
	if result.Duration == 0 {
		result.Duration = elapsed
	}
	inv.debugLog("[invoker] %s completed in %s (confidence=%.2f)", name, elapsed, result.Confidence)
	return result, nil
}
