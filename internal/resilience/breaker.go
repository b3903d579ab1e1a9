// Package resilience provides reliability patterns for remote API calls.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker opens after maxFailures consecutive failures and rejects calls
// until timeout elapses. It then lets a single trial call through; the trial's
// outcome closes or reopens the circuit.
type Breaker struct {
	mu            sync.Mutex
	state         state
	trialInFlight bool
	failures      int
	maxFailures   int
	timeout       time.Duration
	openedAt      time.Time
	// counts decides whether an error is a failure of the remote side.
	// Errors it rejects pass through without touching the failure count.
	counts func(error) bool
	now    func() time.Time // for testing
}

// NewBreaker creates a circuit breaker. Every non-nil error counts as a failure.
func NewBreaker(maxFailures int, timeout time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		timeout:     timeout,
		counts:      func(err error) bool { return err != nil },
		now:         time.Now,
	}
}

// CountOnly restricts which errors count as failures. Client errors such
// as a revoked token should not open the circuit for everyone else.
func (b *Breaker) CountOnly(fn func(error) bool) *Breaker {
	b.mu.Lock()
	b.counts = fn
	b.mu.Unlock()
	return b
}

// Execute runs fn if the circuit allows it.
// Returns ErrCircuitOpen if the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	trial, ok := b.allowRequest()
	if !ok {
		return ErrCircuitOpen
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if trial {
		b.trialInFlight = false
	}

	if err != nil && b.counts(err) {
		b.onFailure()
		return err
	}
	if err == nil || b.state == stateHalfOpen {
		b.onSuccess()
	}
	return err
}

// State reports "closed", "open" or "half-open".
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateOpen && b.now().Sub(b.openedAt) >= b.timeout {
		return stateHalfOpen.String()
	}
	return b.state.String()
}

func (b *Breaker) allowRequest() (trial, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return false, true
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.timeout {
			return false, false
		}
		b.state = stateHalfOpen
		b.trialInFlight = true
		return true, true
	case stateHalfOpen:
		if b.trialInFlight {
			return false, false
		}
		b.trialInFlight = true
		return true, true
	}
	return false, false
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure() {
	b.failures++
	if b.state == stateHalfOpen || b.failures >= b.maxFailures {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess() {
	b.failures = 0
	b.state = stateClosed
}
