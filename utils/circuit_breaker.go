package utils

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrBreakerOpen = errors.New("circuit breaker is open")

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

// CircuitBreaker guards calls to the payment gateway. After enough
// consecutive failures it opens and rejects calls until the cooldown
// elapses, then lets a single probe through half-open.
type CircuitBreaker struct {
	name         string
	maxFailures  uint32
	cooldown     time.Duration
	mutex        sync.Mutex
	state        BreakerState
	failures     uint32
	openedAt     time.Time
	halfOpenBusy bool
}

func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:        name,
		maxFailures: 5,
		cooldown:    30 * time.Second,
		state:       BreakerClosed,
	}
}

func (cb *CircuitBreaker) Execute(ctx context.Context, req func() (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := cb.allow(); err != nil {
		return nil, err
	}

	result, err := req()
	cb.record(err == nil)
	return result, err
}

func (cb *CircuitBreaker) State() BreakerState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case BreakerOpen:
		if time.Since(cb.openedAt) < cb.cooldown {
			return ErrBreakerOpen
		}
		cb.state = BreakerHalfOpen
		cb.halfOpenBusy = true
		return nil
	case BreakerHalfOpen:
		if cb.halfOpenBusy {
			return ErrBreakerOpen
		}
		cb.halfOpenBusy = true
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == BreakerHalfOpen {
		cb.halfOpenBusy = false
		if success {
			cb.state = BreakerClosed
			cb.failures = 0
		} else {
			cb.state = BreakerOpen
			cb.openedAt = time.Now()
		}
		return
	}

	if success {
		cb.failures = 0
		return
	}

	cb.failures++
	if cb.failures >= cb.maxFailures {
		cb.state = BreakerOpen
		cb.openedAt = time.Now()
	}
}
