// Package circuitbreaker short-circuits calls to an upstream that keeps failing.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrOpen is returned by Allow while the circuit is open
var ErrOpen = errors.New("circuit breaker open")

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, calls fail fast
	StateHalfOpen              // Probing whether the upstream recovered
)

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

// Thresholds defines the limits that will trigger the circuit breaker
type Thresholds struct {
	// Consecutive failures that open the circuit
	MaxConsecutiveFailures int `json:"max_consecutive_failures"`
}

// CircuitBreaker tracks consecutive upstream failures for one upstream.
type CircuitBreaker struct {
	name       string
	thresholds Thresholds

	mu       sync.RWMutex
	state    State
	lastTrip time.Time
	failures int

	// Successful calls in HalfOpen needed to close again
	successCount     int
	successThreshold int

	resetDelay     time.Duration
	onTripCallback func(name, reason string)
	now            func() time.Time
}

// New creates a new CircuitBreaker for the named upstream
func New(name string, t Thresholds) *CircuitBreaker {
	if t.MaxConsecutiveFailures <= 0 {
		t.MaxConsecutiveFailures = 1
	}
	return &CircuitBreaker{
		name:             name,
		thresholds:       t,
		state:            StateClosed,
		resetDelay:       30 * time.Second,
		successThreshold: 1,
		now:              time.Now,
	}
}

// WithResetDelay sets how long the circuit stays open before probing
func (cb *CircuitBreaker) WithResetDelay(delay time.Duration) *CircuitBreaker {
	cb.resetDelay = delay
	return cb
}

// WithSuccessThreshold sets the number of successful probes needed to close the circuit
func (cb *CircuitBreaker) WithSuccessThreshold(threshold int) *CircuitBreaker {
	cb.successThreshold = threshold
	return cb
}

// WithTripCallback sets a callback function that is called when the circuit trips
func (cb *CircuitBreaker) WithTripCallback(callback func(name, reason string)) *CircuitBreaker {
	cb.onTripCallback = callback
	return cb
}

// Name returns the upstream this breaker guards
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Allow reports whether a call may proceed. An open circuit whose reset
// delay has elapsed moves to half-open and lets the call through.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}
	if cb.now().Sub(cb.lastTrip) < cb.resetDelay {
		return ErrOpen
	}
	cb.state = StateHalfOpen
	cb.successCount = 0
	logrus.WithField("upstream", cb.name).Info("Circuit breaker half-open: probing upstream")
	return nil
}

// RecordSuccess notes a successful upstream call
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = StateClosed
			cb.successCount = 0
			logrus.WithField("upstream", cb.name).Info("Circuit breaker closed: upstream recovered")
		}
	}
}

// RecordFailure notes a failed upstream call and trips the circuit when
// the failure threshold is reached or a half-open probe fails.
func (cb *CircuitBreaker) RecordFailure(reason string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.thresholds.MaxConsecutiveFailures {
		cb.trip(reason)
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset forcibly resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.successCount = 0
	logrus.WithField("upstream", cb.name).Info("Circuit breaker manually reset to closed state")
}

// trip opens the circuit. Callers hold the lock.
func (cb *CircuitBreaker) trip(reason string) {
	cb.state = StateOpen
	cb.lastTrip = cb.now()
	cb.failures = 0
	logrus.WithFields(logrus.Fields{
		"upstream": cb.name,
		"reason":   reason,
	}).Warn("Circuit breaker tripped")

	if cb.onTripCallback != nil {
		go cb.onTripCallback(cb.name, reason)
	}
}
