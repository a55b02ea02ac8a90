package dialog

import (
	"sort"
	"sync"
	"time"

	"github.com/voxnav/voxnav/pkg/lang"
	"github.com/voxnav/voxnav/pkg/schema"
	"github.com/voxnav/voxnav/pkg/slots"
)

// RawSlot is one extracted slot value before validation.
type RawSlot struct {
	Value      string
	Confidence float64
}

// TurnInput is everything the collaborators produced for one turn.
type TurnInput struct {
	Intent     string
	SubIntent  string
	Confidence float64
	Slots      map[string]RawSlot
	Language   lang.Detection
}

type Config struct {
	// SwitchThreshold is the classifier confidence a differing intent must
	// exceed to displace an active dialogue. Zero means the default of 0.75.
	SwitchThreshold float64
	// LanguageMargin is how much a new language detection must beat the
	// session's stored confidence by before the sticky tag is overridden.
	// Zero means the default of 0.15.
	LanguageMargin float64
	// CarryOver names slots allowed to seed a subsequent intent after a
	// completion or switch. Empty disables carry-over.
	CarryOver []string
	// Clock is injectable for tests. Nil means time.Now.
	Clock func() time.Time
}

func (c Config) withDefaults() Config {
	if c.SwitchThreshold <= 0 {
		c.SwitchThreshold = 0.75
	}
	if c.LanguageMargin <= 0 {
		c.LanguageMargin = 0.15
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Orchestrator merges one turn at a time into a session and decides what
// happens next. ProcessTurn is pure in-memory work; callers hold the per-user
// session lock around it and must discard the session on error.
type Orchestrator struct {
	registry *schema.Registry
	cfg      Config

	mu        sync.Mutex
	listeners []StateListener
}

func NewOrchestrator(registry *schema.Registry, cfg Config) *Orchestrator {
	return &Orchestrator{registry: registry, cfg: cfg.withDefaults()}
}

// AddListener registers a listener for dialogue state change events.
func (o *Orchestrator) AddListener(l StateListener) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, l)
}

// ProcessTurn runs intent reconciliation, slot merge, the completion check and
// the session bookkeeping for one turn. On a non-nil error the session copy
// must not be committed; it may have been partially modified.
func (o *Orchestrator) ProcessTurn(sess *Session, in TurnInput) (TurnResult, error) {
	now := o.cfg.Clock()
	from := sess.State()
	turnIndex := sess.TurnCount + 1

	effLang, effConf, langChanged := o.reconcileLanguage(sess, in.Language)

	// Intent reconciliation.
	var dropped []string
	switched := false
	if sess.ActiveIntent == "" {
		if in.Intent == "" || in.Intent == schema.IntentUnknown {
			return TurnResult{
				Outcome:  OutcomeRejected,
				Reason:   "could not map the request to a known action",
				Language: effLang,
			}, nil
		}
		sch, err := o.registry.Lookup(in.Intent, in.SubIntent)
		if err != nil {
			return TurnResult{Outcome: OutcomeRejected, Reason: "unsupported request type", Language: effLang}, err
		}
		sess.ActiveIntent = in.Intent
		sess.ActiveSubIntent = in.SubIntent
		pruneToSchema(sess, sch)
	} else if in.Intent != "" && in.Intent != schema.IntentUnknown &&
		(in.Intent != sess.ActiveIntent || in.SubIntent != sess.ActiveSubIntent) &&
		in.Confidence > o.cfg.SwitchThreshold {
		newSch, err := o.registry.Lookup(in.Intent, in.SubIntent)
		if err != nil {
			return TurnResult{Outcome: OutcomeRejected, Reason: "unsupported request type", Language: effLang}, err
		}
		switched = true
		dropped = switchSchema(sess, newSch, o.cfg.CarryOver)
		sess.ActiveIntent = in.Intent
		sess.ActiveSubIntent = in.SubIntent
	}
	// A differing intent below the threshold is classifier noise: keep
	// collecting for the original intent.

	sch, err := o.registry.Lookup(sess.ActiveIntent, sess.ActiveSubIntent)
	if err != nil {
		return TurnResult{Outcome: OutcomeRejected, Reason: "unsupported request type", Language: effLang}, err
	}

	// Slot merge.
	var invalid []string
	for name, rs := range in.Slots {
		field, ok := sch.Field(name)
		if !ok {
			continue // not applicable to this flow
		}
		v, err := slots.Parse(field.Kind, rs.Value, slots.ParseOptions{Choices: field.Choices, Now: now})
		if err != nil {
			invalid = append(invalid, name)
			continue
		}
		if old, exists := sess.Slots[name]; exists && !langChanged {
			// Asymmetric overwrite: a lower-confidence re-extraction never
			// erases an established value. A language switch invalidates
			// stale script-dependent extractions and lifts the gate.
			if rs.Confidence < old.Confidence {
				continue
			}
			// Replaying the identical extraction is a no-op.
			if rs.Confidence == old.Confidence && v.Text == old.Text {
				continue
			}
		}
		v.Confidence = rs.Confidence
		v.Turn = turnIndex
		v.Source = slots.SourceExtracted
		sess.Slots[name] = v
	}
	sort.Strings(invalid)

	// Completion check.
	var missing []string
	for _, name := range sch.RequiredNames() {
		if _, ok := sess.Slots[name]; !ok {
			missing = append(missing, name)
		}
	}

	res := TurnResult{
		Intent:    sess.ActiveIntent,
		SubIntent: sess.ActiveSubIntent,
		Missing:   missing,
		Dropped:   dropped,
		Invalid:   invalid,
		Language:  effLang,
		TurnIndex: turnIndex,
	}

	var to State
	if len(missing) == 0 {
		res.Outcome = OutcomeComplete
		res.Slots = snapshotSlots(sess)
		resetToIdle(sess, o.cfg.CarryOver)
		to = StateComplete
	} else {
		res.Outcome = OutcomeNeedsMoreInfo
		res.Slots = snapshotSlots(sess)
		to = StateCollecting
	}
	if switched {
		res.Outcome = OutcomeIntentSwitch
	}

	if !transitionValid(from, to) {
		return TurnResult{}, &InvalidTransitionError{From: from, To: to}
	}

	sess.TurnCount = turnIndex
	sess.LastUpdated = now
	sess.Language = effLang
	sess.LanguageConf = effConf

	o.notify(sess.UserID, from, to, now, string(res.Outcome))
	if to == StateComplete {
		o.notify(sess.UserID, StateComplete, StateIdle, now, "fill finished")
	}
	return res, nil
}

// reconcileLanguage applies the sticky-with-override rule and reports whether
// the effective tag differs from the stored one.
func (o *Orchestrator) reconcileLanguage(sess *Session, det lang.Detection) (lang.Tag, float64, bool) {
	prev, prevConf := sess.Language, sess.LanguageConf
	if !det.Tag.Valid() {
		return prev, prevConf, false
	}
	if prev == "" || prev == lang.TagUnknown {
		return det.Tag, det.Confidence, false
	}
	if det.Tag == prev {
		if det.Confidence > prevConf {
			return prev, det.Confidence, false
		}
		return prev, prevConf, false
	}
	if det.Confidence > prevConf+o.cfg.LanguageMargin {
		return det.Tag, det.Confidence, true
	}
	return prev, prevConf, false
}

// switchSchema drops slots incompatible with the new schema and returns their
// names sorted. Same-name slots survive only when the kinds still agree;
// carry-over slots are re-marked as carried.
func switchSchema(sess *Session, newSch schema.Schema, carryOver []string) []string {
	var dropped []string
	for name, v := range sess.Slots {
		field, ok := newSch.Field(name)
		if ok && field.Kind == v.Kind {
			if inList(carryOver, name) {
				v.Source = slots.SourceCarried
				sess.Slots[name] = v
			}
			continue
		}
		dropped = append(dropped, name)
		delete(sess.Slots, name)
	}
	sort.Strings(dropped)
	return dropped
}

// pruneToSchema silently discards carried slots the adopted schema cannot use.
func pruneToSchema(sess *Session, sch schema.Schema) {
	for name, v := range sess.Slots {
		field, ok := sch.Field(name)
		if !ok || field.Kind != v.Kind {
			delete(sess.Slots, name)
		}
	}
}

// resetToIdle clears the active intent after a completion. Only slots named by
// the carry-over policy outlive the fill.
func resetToIdle(sess *Session, carryOver []string) {
	retained := make(map[string]slots.Value)
	for _, name := range carryOver {
		if v, ok := sess.Slots[name]; ok {
			v.Source = slots.SourceCarried
			retained[name] = v
		}
	}
	sess.ActiveIntent = ""
	sess.ActiveSubIntent = ""
	sess.Slots = retained
}

func snapshotSlots(sess *Session) map[string]slots.Value {
	out := make(map[string]slots.Value, len(sess.Slots))
	for k, v := range sess.Slots {
		out[k] = v
	}
	return out
}

func inList(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

func (o *Orchestrator) notify(userID string, from, to State, at time.Time, reason string) {
	o.mu.Lock()
	listeners := make([]StateListener, len(o.listeners))
	copy(listeners, o.listeners)
	o.mu.Unlock()

	event := StateChange{UserID: userID, FromState: from, ToState: to, Timestamp: at, Reason: reason}
	for _, l := range listeners {
		l.OnStateChange(event)
	}
}
