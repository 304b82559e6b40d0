package circuitbreaker

import (
	"log"
	"sync"
	"time"

	"github.com/atomiclaunch/bundler/pkg/metrics"
)

// State represents the position of the breaker state machine
type State int

const (
	// Closed allows all calls through
	Closed State = iota
	// Open rejects calls until the recovery timeout elapses
	Open
	// HalfOpen allows a trial call through to probe recovery
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker implements the circuit breaker pattern as a three-state
// machine. All state transitions happen behind a single mutex so concurrent
// callers observe a consistent failureCount/state pair.
type CircuitBreaker struct {
	failThreshold    int
	recoveryTimeout  time.Duration
	monitoringPeriod time.Duration

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time
	failureWindow   []time.Time
}

// NewCircuitBreaker creates a new circuit breaker in the Closed state
func NewCircuitBreaker(threshold int, recoveryTimeout, monitoringPeriod time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failThreshold:    threshold,
		recoveryTimeout:  recoveryTimeout,
		monitoringPeriod: monitoringPeriod,
		state:            Closed,
	}
}

// CanExecute reports whether a new attempt may start. When the breaker is Open
// and the recovery timeout has elapsed, the check itself moves the breaker to
// HalfOpen and lets a single trial call proceed. The breaker does not limit
// concurrency of trial calls; that discipline belongs to the executor.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case Closed:
		return true
	case Open:
		if time.Since(cb.lastFailureTime) >= cb.recoveryTimeout {
			log.Printf("Circuit breaker: recovery timeout elapsed, moving to half-open")
			cb.setState(HalfOpen)
			return true
		}
		return false
	case HalfOpen:
		return true
	default:
		return false
	}
}

// OnSuccess closes the breaker unconditionally and clears the failure history.
// A success during HalfOpen is what completes recovery.
func (cb *CircuitBreaker) OnSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != Closed {
		log.Printf("Circuit breaker: success recorded, closing circuit")
	}
	cb.setState(Closed)
	cb.failureCount = 0
	cb.failureWindow = nil
}

// OnFailure records a failure, prunes window entries older than the monitoring
// period, and opens the circuit once the failure threshold is reached.
func (cb *CircuitBreaker) OnFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	cb.failureCount++
	cb.failureWindow = append(cb.failureWindow, now)
	cb.pruneWindow(now)

	if cb.failureCount >= cb.failThreshold {
		if cb.state != Open {
			log.Printf("Circuit breaker tripped after %d failures: %v", cb.failureCount, err)
		}
		cb.setState(Open)
		cb.lastFailureTime = now
	}
}

// pruneWindow drops failure timestamps that fell out of the monitoring period.
// Caller must hold the mutex.
func (cb *CircuitBreaker) pruneWindow(now time.Time) {
	cutoff := now.Add(-cb.monitoringPeriod)
	kept := cb.failureWindow[:0]
	for _, ts := range cb.failureWindow {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	cb.failureWindow = kept
}

// Reset manually closes the circuit breaker
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(Closed)
	cb.failureCount = 0
	cb.failureWindow = nil
}

// setState updates the state and the exported gauge. Caller must hold the mutex.
func (cb *CircuitBreaker) setState(state State) {
	cb.state = state
	metrics.CircuitBreakerState.Set(float64(state))
}

// GetState returns the current state and failure bookkeeping of the breaker
func (cb *CircuitBreaker) GetState() (state State, failureCount int, lastFailure time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state, cb.failureCount, cb.lastFailureTime
}

// WindowSize returns the number of failures currently inside the monitoring period
func (cb *CircuitBreaker) WindowSize() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.pruneWindow(time.Now())
	return len(cb.failureWindow)
}
