package dialog

import (
	"sync"
	"testing"

	"github.com/voxnav/voxnav/pkg/slots"
)

type captureListener struct {
	mu     sync.Mutex
	events []StateChange
}

func (c *captureListener) OnStateChange(event StateChange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureListener) Events() []StateChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]StateChange, len(c.events))
	copy(out, c.events)
	return out
}

func TestTransitionTable(t *testing.T) {
	valid := []struct{ from, to State }{
		{StateIdle, StateCollecting},
		{StateIdle, StateComplete},
		{StateCollecting, StateCollecting},
		{StateCollecting, StateComplete},
		{StateCollecting, StateIdle},
		{StateComplete, StateIdle},
	}
	for _, tc := range valid {
		if !transitionValid(tc.from, tc.to) {
			t.Fatalf("%s -> %s should be valid", tc.from, tc.to)
		}
	}
	invalid := []struct{ from, to State }{
		{StateIdle, StateIdle},
		{StateComplete, StateCollecting},
		{StateComplete, StateComplete},
	}
	for _, tc := range invalid {
		if transitionValid(tc.from, tc.to) {
			t.Fatalf("%s -> %s should be invalid", tc.from, tc.to)
		}
	}
}

func TestStateChangeEvents(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	cap := &captureListener{}
	o.AddListener(cap)
	sess := NewSession("u1")

	_, _ = o.ProcessTurn(sess, bookingTurn(map[string]RawSlot{
		"source":      {Value: "Delhi", Confidence: 0.9},
		"destination": {Value: "Mumbai", Confidence: 0.9},
		"date":        {Value: "tomorrow", Confidence: 0.9},
	}))

	events := cap.Events()
	if len(events) != 2 {
		t.Fatalf("expected idle->complete->idle, got %d events", len(events))
	}
	if events[0].FromState != StateIdle || events[0].ToState != StateComplete {
		t.Fatalf("first event %s -> %s", events[0].FromState, events[0].ToState)
	}
	if events[1].FromState != StateComplete || events[1].ToState != StateIdle {
		t.Fatalf("second event %s -> %s", events[1].FromState, events[1].ToState)
	}
	if events[0].UserID != "u1" {
		t.Fatalf("event user id %q", events[0].UserID)
	}
}

func TestSessionClone(t *testing.T) {
	sess := NewSession("u1")
	sess.ActiveIntent = "BOOKING"

	cp := sess.Clone()
	cp.Slots["source"] = slots.Value{Kind: slots.KindString, Text: "Delhi"}
	if _, ok := sess.Slots["source"]; ok {
		t.Fatalf("clone shares the slot map")
	}
}
