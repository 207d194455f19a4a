package capability

import (
	"errors"
	"fmt"
	"sync"

	"github.com/batonkit/baton/pkg/models"
)

// ErrDuplicateCapability indicates a register call reused an existing name.
var ErrDuplicateCapability = errors.New("capability already registered")

// ErrUnknownCapability indicates a lookup for an unregistered name.
var ErrUnknownCapability = errors.New("unknown capability")

// Status summarizes the registry for callers.
type Status struct {
	// Total is the number of registered capabilities.
	Total int `json:"total"`
	// Active is the number of capabilities currently executing at least one task.
	Active int `json:"active"`
	// Available lists registered capability names in registration order.
	Available []string `json:"available"`
}

// Registry holds named capabilities and their declared contracts.
// Capabilities are registered before goals are submitted; plans referencing
// unregistered names are rejected at planning time, never at execution time.
type Registry struct {
	mu sync.RWMutex
	// order lists capability names in registration order.
	order []string
	// caps maps capability name to its implementation.
	caps map[string]Capability
	// inflight counts executions in progress per capability.
	inflight map[string]int
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{
		caps:     make(map[string]Capability),
		inflight: make(map[string]int),
	}
}

// Register adds a capability under its name.
// Fails with ErrDuplicateCapability if the name is already taken.
func (r *Registry) Register(c Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if name == "" {
		return fmt.Errorf("capability has no name")
	}
	if _, exists := r.caps[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCapability, name)
	}
	r.order = append(r.order, name)
	r.caps[name] = c
	return nil
}

// Resolve returns the capability registered under the given name.
// Fails with ErrUnknownCapability if absent.
func (r *Registry) Resolve(capabilityType string) (Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.caps[capabilityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, capabilityType)
	}
	return c, nil
}

// SupportedModes returns the declared modes for a capability.
// Pure lookup with no side effects.
func (r *Registry) SupportedModes(capabilityType string) ([]models.Mode, error) {
	c, err := r.Resolve(capabilityType)
	if err != nil {
		return nil, err
	}
	return c.SupportedModes(), nil
}

// Names returns registered capability names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caps)
}

// markActive records that an execution started for the capability.
func (r *Registry) markActive(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight[name]++
}

// markIdle records that an execution finished for the capability.
func (r *Registry) markIdle(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inflight[name] > 0 {
		r.inflight[name]--
	}
}

// Status reports registry totals and the names available for planning.
func (r *Registry) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := 0
	for _, n := range r.inflight {
		if n > 0 {
			active++
		}
	}
	return Status{
		Total:     len(r.caps),
		Active:    active,
		Available: append([]string(nil), r.order...),
	}
}
