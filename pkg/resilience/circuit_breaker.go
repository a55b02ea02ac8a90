package resilience

import (
	"sync"
	"time"

	"github.com/voxnav/voxnav/pkg/errorsx"
)

// CircuitBreaker blocks collaborator calls after repeated transient failures,
// giving the backing service room to recover.
type CircuitBreaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	openUntil time.Time
	cooldown  time.Duration
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown}
}

func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !time.Now().Before(c.openUntil)
}

func (c *CircuitBreaker) OnSuccess() {
	c.mu.Lock()
	c.failures = 0
	c.openUntil = time.Time{}
	c.mu.Unlock()
}

// OnError counts transient failures only; a fatal error says nothing about
// the service's health.
func (c *CircuitBreaker) OnError(err error) {
	if !errorsx.Transient(err) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= c.threshold {
		c.openUntil = time.Now().Add(c.cooldown)
	}
}

// ErrOpen is returned by Guard when the breaker refuses the call.
func ErrOpen() error {
	return errorsx.New("circuit open, service cooling down", errorsx.ReasonCircuitOpen)
}

// Guard wraps fn with the breaker's admission check and outcome bookkeeping.
func (c *CircuitBreaker) Guard(fn func() error) error {
	if !c.Allow() {
		return ErrOpen()
	}
	err := fn()
	if err != nil {
		c.OnError(err)
		return err
	}
	c.OnSuccess()
	return nil
}
