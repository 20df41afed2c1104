// Package breaker implements a per-domain circuit breaker registry used to
// isolate misbehaving sources from the rest of a crawl run.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by callers when a domain's circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the state of one domain's circuit.
type State int

const (
	// StateClosed allows requests.
	StateClosed State = iota
	// StateOpen blocks requests until the cooldown elapses.
	StateOpen
	// StateHalfOpen allows trial requests after the cooldown.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config controls breaker thresholds shared by all domains in a registry.
type Config struct {
	// FailureThreshold is the failure count that opens a closed circuit.
	FailureThreshold int
	// SuccessThreshold is the success count that closes a half-open circuit.
	SuccessThreshold int
	// Cooldown is how long an open circuit blocks before going half-open.
	Cooldown time.Duration
	// OnStateChange is invoked outside locks with the domain and new state.
	OnStateChange func(domain string, from, to State)
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns thresholds suitable for third-party job boards.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 4,
		SuccessThreshold: 1,
		Cooldown:         45 * time.Second,
	}
}

type circuit struct {
	state        State
	failureCount int
	successCount int
	openedAt     time.Time
}

// Registry tracks one circuit per domain. Process-lifetime only; breakers
// re-learn after a restart.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	circuits map[string]*circuit
}

// NewRegistry builds a Registry, filling in defaults for zero config values.
func NewRegistry(cfg Config) *Registry {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 4
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 45 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		cfg:      cfg,
		circuits: make(map[string]*circuit),
	}
}

// CanRequest reports whether the domain may be fetched. When an open
// circuit's cooldown has elapsed it transitions to half-open and the request
// is allowed as a trial.
func (r *Registry) CanRequest(domain string) bool {
	r.mu.Lock()
	c := r.get(domain)
	if c.state == StateOpen {
		if r.cfg.Now().Sub(c.openedAt) >= r.cfg.Cooldown {
			notify := r.transition(domain, c, StateHalfOpen)
			r.mu.Unlock()
			notify()
			return true
		}
		r.mu.Unlock()
		return false
	}
	r.mu.Unlock()
	return true
}

// RecordSuccess notes a successful fetch against the domain.
func (r *Registry) RecordSuccess(domain string) {
	r.mu.Lock()
	c := r.get(domain)
	notify := func() {}
	switch c.state {
	case StateClosed:
		c.failureCount = 0
	case StateHalfOpen:
		c.successCount++
		if c.successCount >= r.cfg.SuccessThreshold {
			notify = r.transition(domain, c, StateClosed)
		}
	case StateOpen:
		// Success while open means the caller raced a transition; ignore.
	}
	r.mu.Unlock()
	notify()
}

// RecordFailure notes a failed fetch against the domain. A closed circuit
// opens at the failure threshold; any half-open failure reopens immediately
// and restarts the cooldown clock.
func (r *Registry) RecordFailure(domain string) {
	r.mu.Lock()
	c := r.get(domain)
	notify := func() {}
	switch c.state {
	case StateClosed:
		c.failureCount++
		if c.failureCount >= r.cfg.FailureThreshold {
			notify = r.transition(domain, c, StateOpen)
		}
	case StateHalfOpen:
		notify = r.transition(domain, c, StateOpen)
	case StateOpen:
		c.openedAt = r.cfg.Now()
	}
	r.mu.Unlock()
	notify()
}

// State returns the current state for a domain.
func (r *Registry) State(domain string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(domain).state
}

// Snapshot returns the current state of every tracked domain.
func (r *Registry) Snapshot() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]State, len(r.circuits))
	for domain, c := range r.circuits {
		out[domain] = c.state
	}
	return out
}

// get returns the circuit for domain, creating a closed one if absent.
// Callers must hold r.mu.
func (r *Registry) get(domain string) *circuit {
	c, ok := r.circuits[domain]
	if !ok {
		c = &circuit{state: StateClosed}
		r.circuits[domain] = c
	}
	return c
}

// transition moves the circuit to a new state and returns the deferred
// OnStateChange callback. Callers must hold r.mu.
func (r *Registry) transition(domain string, c *circuit, to State) func() {
	from := c.state
	if from == to {
		return func() {}
	}
	c.state = to
	switch to {
	case StateClosed:
		c.failureCount = 0
		c.successCount = 0
	case StateOpen:
		c.failureCount = 0
		c.successCount = 0
		c.openedAt = r.cfg.Now()
	case StateHalfOpen:
		c.successCount = 0
	}
	if r.cfg.OnStateChange == nil {
		return func() {}
	}
	cb := r.cfg.OnStateChange
	return func() { cb(domain, from, to) }
}
