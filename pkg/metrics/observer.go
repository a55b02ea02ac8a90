package metrics

import "time"

// Event is one measurement from the turn pipeline. Value carries a duration in
// milliseconds for *_ms events and a plain count otherwise.
type Event struct {
	Name    string
	Time    time.Time
	UserID  string
	TraceID string
	Value   float64
	Tags    map[string]string
}

// Event names emitted by the engine.
const (
	EventTurnCompleted  = "turn_completed"
	EventTurnFailed     = "turn_failed"
	EventTranscribeMS   = "transcribe_ms"
	EventClassifyMS     = "classify_ms"
	EventExtractMS      = "extract_ms"
	EventSlotsFilled    = "slots_filled"
	EventSessionExpired = "session_expired"
)

type Observer interface {
	RecordEvent(ev Event)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(Event) {}
