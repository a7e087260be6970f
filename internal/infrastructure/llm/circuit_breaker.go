package llm

import (
	"sync"
	"time"
)

// BreakerState is one state of a CircuitBreaker's three-state machine.
type BreakerState int

const (
	StateClosed   BreakerState = iota // calls flow through normally
	StateOpen                         // short-circuiting straight to the fallback parser
	StateHalfOpen                     // probing whether the provider has recovered
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker guards one model provider: after consecutive failures
// it trips open and the orchestrator's model loop should fall back to
// the local fallback parser immediately instead of paying a call's
// worth of latency on a provider that's down.
type CircuitBreaker struct {
	mu sync.RWMutex

	state        BreakerState
	failures     int
	probeSuccess int
	trippedAt    time.Time

	failureThreshold int
	probesToClose    int
	cooldown         time.Duration
}

// NewCircuitBreaker builds a breaker that opens after failureThreshold
// consecutive failures and probes again after cooldown elapses.
func NewCircuitBreaker(failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		probesToClose:    1,
		cooldown:         cooldown,
	}
}

// Allow reports whether a call should be attempted. An open breaker
// whose cooldown has passed moves itself to half-open here; a
// half-open breaker lets every call through and does not limit
// concurrent probes. The caller's RecordSuccess/RecordFailure settles
// the result.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(cb.trippedAt) < cb.cooldown {
			return false
		}
		cb.state = StateHalfOpen
		cb.probeSuccess = 0
		return true
	default:
		return false
	}
}

// RecordSuccess clears the failure streak and, in half-open, counts
// toward closing the circuit again.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.probeSuccess++
		if cb.probeSuccess >= cb.probesToClose {
			cb.state = StateClosed
		}
	}
}

// RecordFailure counts a failure, re-opening immediately from
// half-open or tripping open once the threshold is reached from closed.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.trippedAt = time.Now()

	if cb.state == StateHalfOpen {
		cb.state = StateOpen
		return
	}
	if cb.failures >= cb.failureThreshold {
		cb.state = StateOpen
	}
}

// State reports the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset forces the breaker back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.probeSuccess = 0
}
