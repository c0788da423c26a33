package utils

import (
	"errors"
	"sync"
	"time"
)

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

var ErrBreakerOpen = errors.New("circuit breaker is open")

// CircuitBreaker trips after consecutive failures and recovers through a
// half-open probe once the cooldown passes. It guards outbound calls whose
// failures must never propagate into queue state.
type CircuitBreaker struct {
	name        string
	maxFailures uint32
	cooldown    time.Duration

	mutex    sync.Mutex
	state    BreakerState
	failures uint32
	openedAt time.Time
}

func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:        name,
		maxFailures: 5,
		cooldown:    30 * time.Second,
		state:       BreakerClosed,
	}
}

func (cb *CircuitBreaker) Execute(req func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := req()
	cb.afterRequest(err == nil)
	return err
}

func (cb *CircuitBreaker) State() BreakerState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == BreakerOpen {
		if time.Since(cb.openedAt) < cb.cooldown {
			return ErrBreakerOpen
		}
		cb.state = BreakerHalfOpen
	}

	return nil
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if success {
		cb.state = BreakerClosed
		cb.failures = 0
		return
	}

	cb.failures++
	if cb.state == BreakerHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = BreakerOpen
		cb.openedAt = time.Now()
	}
}
