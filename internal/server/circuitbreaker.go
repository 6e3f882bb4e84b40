// circuitbreaker.go - Circuit breaker guarding calls to Postgres and MinIO.
//
// After maxFailures consecutive failures the breaker opens and rejects
// calls for the cooldown; then a single probe call decides whether it
// closes again.
package server

import (
	"errors"
	"sync"
	"time"
)

// CircuitState is the breaker state.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
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

// ErrCircuitOpen is returned without calling fn while the breaker is open
// or while the half-open probe is in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker wraps calls to one dependency.
type CircuitBreaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu            sync.Mutex
	state         CircuitState
	failures      int
	openedAt      time.Time
	probeInFlight bool

	successes int64
	errors    int64
	rejected  int64
}

// CircuitBreakerStats is exposed on /admin/stats.
type CircuitBreakerStats struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Failures  int    `json:"consecutive_failures"`
	Successes int64  `json:"successes_total"`
	Errors    int64  `json:"errors_total"`
	Rejected  int64  `json:"rejected_total"`
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(name string, maxFailures int, cooldown time.Duration) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Execute runs fn unless the breaker is open. A panic in fn counts as a
// failure and is re-raised.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.before()
	if err != nil {
		return err
	}

	finished := false
	defer func() {
		if !finished {
			cb.after(probe, errCallPanicked)
		}
	}()

	err = fn()
	finished = true
	cb.after(probe, err)
	return err
}

var errCallPanicked = errors.New("call panicked")

// before admits a call. probe is true for the single call allowed through
// while half-open; only that call may close or reopen the breaker.
func (cb *CircuitBreaker) before() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			cb.rejected++
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		Info("circuit_breaker_half_open", map[string]any{"breaker": cb.name})
		fallthrough
	case StateHalfOpen:
		if cb.probeInFlight {
			cb.rejected++
			return false, ErrCircuitOpen
		}
		cb.probeInFlight = true
		return true, nil
	}
	return false, nil
}

func (cb *CircuitBreaker) after(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		cb.probeInFlight = false
	}

	if err == nil {
		cb.successes++
		cb.failures = 0
		if probe {
			cb.state = StateClosed
			Info("circuit_breaker_closed", map[string]any{"breaker": cb.name})
		}
		return
	}

	cb.errors++
	cb.failures++
	// Calls admitted before the breaker opened cannot move it out of
	// open or half-open.
	if probe || (cb.state == StateClosed && cb.failures >= cb.maxFailures) {
		Warn("circuit_breaker_opened", map[string]any{
			"breaker":  cb.name,
			"failures": cb.failures,
			"cooldown": cb.cooldown.String(),
		})
		cb.state = StateOpen
		cb.openedAt = cb.now()
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns counters for reporting.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		Name:      cb.name,
		State:     cb.state.String(),
		Failures:  cb.failures,
		Successes: cb.successes,
		Errors:    cb.errors,
		Rejected:  cb.rejected,
	}
}
