package observers

import (
	"log/slog"
	"sync"

	"github.com/voxnav/voxnav/pkg/metrics"
)

// TurnLatencyObserver gathers the per-stage timings of one turn and logs a
// single summary line when the turn finishes. Stages arrive as separate
// events keyed by trace ID.
type TurnLatencyObserver struct {
	mu     sync.Mutex
	traces map[string]*turnTrace
	log    *slog.Logger
}

type turnTrace struct {
	userID       string
	transcribeMS float64
	classifyMS   float64
	extractMS    float64
}

func NewTurnLatencyObserver(log *slog.Logger) *TurnLatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &TurnLatencyObserver{traces: make(map[string]*turnTrace), log: log}
}

func (o *TurnLatencyObserver) RecordEvent(ev metrics.Event) {
	if ev.TraceID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	t := o.traces[ev.TraceID]
	if t == nil {
		t = &turnTrace{}
		o.traces[ev.TraceID] = t
	}
	if t.userID == "" {
		t.userID = ev.UserID
	}
	switch ev.Name {
	case metrics.EventTranscribeMS:
		t.transcribeMS = ev.Value
	case metrics.EventClassifyMS:
		t.classifyMS = ev.Value
	case metrics.EventExtractMS:
		t.extractMS = ev.Value
	case metrics.EventTurnCompleted, metrics.EventTurnFailed:
		o.log.Info("turn latency",
			"trace_id", ev.TraceID,
			"user_id", t.userID,
			"transcribe_ms", t.transcribeMS,
			"classify_ms", t.classifyMS,
			"extract_ms", t.extractMS,
			"total_ms", ev.Value,
			"outcome", ev.Tags["outcome"],
		)
		delete(o.traces, ev.TraceID)
	}
}
