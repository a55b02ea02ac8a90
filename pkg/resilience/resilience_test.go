package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxnav/voxnav/pkg/errorsx"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	p := NewRetryPolicy(2, time.Millisecond)
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	p := NewRetryPolicy(5, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := p.Do(ctx, func() error {
		calls++
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls > 2 {
		t.Fatalf("kept retrying after cancel: %d calls", calls)
	}
}

func TestCircuitBreakerOpensOnTransientFailures(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Hour)
	transient := errorsx.New("503", errorsx.ReasonClassifyUnavailable)

	_ = cb.Guard(func() error { return transient })
	if !cb.Allow() {
		t.Fatalf("breaker open too early")
	}
	_ = cb.Guard(func() error { return transient })
	if cb.Allow() {
		t.Fatalf("breaker should be open after threshold")
	}

	err := cb.Guard(func() error { return nil })
	if errorsx.Reason(err) != errorsx.ReasonCircuitOpen {
		t.Fatalf("expected circuit_open, got %v", err)
	}
}

func TestCircuitBreakerIgnoresFatalErrors(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour)
	_ = cb.Guard(func() error { return errorsx.New("bad", errorsx.ReasonSchemaNotFound) })
	if !cb.Allow() {
		t.Fatalf("fatal errors must not open the breaker")
	}
}
