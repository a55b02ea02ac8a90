package dialog

import (
	"time"

	"github.com/voxnav/voxnav/pkg/lang"
	"github.com/voxnav/voxnav/pkg/slots"
)

// Session is the per-user dialogue state spanning multiple turns. It is plain
// data: only the orchestrator mutates it, under the store's per-user lock.
type Session struct {
	UserID          string                 `json:"user_id"`
	ActiveIntent    string                 `json:"active_intent"`
	ActiveSubIntent string                 `json:"active_sub_intent"`
	Slots           map[string]slots.Value `json:"slots"`
	Language        lang.Tag               `json:"language"`
	LanguageConf    float64                `json:"language_conf"`
	TurnCount       int                    `json:"turn_count"`
	LastUpdated     time.Time              `json:"last_updated"`
}

func NewSession(userID string) *Session {
	return &Session{
		UserID:   userID,
		Slots:    make(map[string]slots.Value),
		Language: lang.TagUnknown,
	}
}

// State derives the conceptual dialogue state. A session at rest is never in
// StateComplete; completion collapses back to idle within the turn.
func (s *Session) State() State {
	if s.ActiveIntent == "" {
		return StateIdle
	}
	return StateCollecting
}

// Clone returns a deep copy, used by the store to guarantee all-or-nothing
// turn commits.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Slots = make(map[string]slots.Value, len(s.Slots))
	for k, v := range s.Slots {
		cp.Slots[k] = v
	}
	return &cp
}

// SlotTexts flattens the canonical slot texts, for replies and logging.
func (s *Session) SlotTexts() map[string]string {
	out := make(map[string]string, len(s.Slots))
	for k, v := range s.Slots {
		out[k] = v.Text
	}
	return out
}
