package dialog

import (
	"reflect"
	"testing"
	"time"

	"github.com/voxnav/voxnav/pkg/errorsx"
	"github.com/voxnav/voxnav/pkg/lang"
	"github.com/voxnav/voxnav/pkg/schema"
	"github.com/voxnav/voxnav/pkg/slots"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	reg, err := schema.DefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return testNow }
	}
	return NewOrchestrator(reg, cfg)
}

func en(conf float64) lang.Detection {
	return lang.Detection{Tag: lang.TagEnglish, Script: "latin", Confidence: conf}
}

func bookingTurn(slotVals map[string]RawSlot) TurnInput {
	return TurnInput{
		Intent:     schema.IntentBooking,
		SubIntent:  "train_ticket",
		Confidence: 0.97,
		Slots:      slotVals,
		Language:   en(0.8),
	}
}

func TestTwoTurnBookingCompletion(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	sess := NewSession("u1")

	res, err := o.ProcessTurn(sess, bookingTurn(map[string]RawSlot{
		"source":      {Value: "Delhi", Confidence: 0.9},
		"destination": {Value: "Mumbai", Confidence: 0.9},
	}))
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if res.Outcome != OutcomeNeedsMoreInfo {
		t.Fatalf("turn 1 outcome = %s", res.Outcome)
	}
	if len(res.Missing) != 1 || res.Missing[0] != "date" {
		t.Fatalf("turn 1 missing = %v", res.Missing)
	}
	if sess.State() != StateCollecting {
		t.Fatalf("session should be collecting")
	}

	res, err = o.ProcessTurn(sess, bookingTurn(map[string]RawSlot{
		"date": {Value: "tomorrow", Confidence: 0.85},
	}))
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if res.Outcome != OutcomeComplete {
		t.Fatalf("turn 2 outcome = %s", res.Outcome)
	}
	if res.Slots["source"].Text != "Delhi" || res.Slots["destination"].Text != "Mumbai" {
		t.Fatalf("completed slots lost values: %+v", res.Slots)
	}
	if res.Slots["date"].Text != "2026-03-11" {
		t.Fatalf("relative date not resolved: %q", res.Slots["date"].Text)
	}
	if sess.State() != StateIdle {
		t.Fatalf("session should reset to idle after completion")
	}
	if len(sess.Slots) != 0 {
		t.Fatalf("completed slots must not be retained: %v", sess.Slots)
	}
	if sess.TurnCount != 2 {
		t.Fatalf("turn count = %d", sess.TurnCount)
	}
}

func TestIntentSwitchDropsIncompatibleSlots(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	sess := NewSession("u1")

	_, err := o.ProcessTurn(sess, bookingTurn(map[string]RawSlot{
		"source": {Value: "Delhi", Confidence: 0.9},
	}))
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}

	res, err := o.ProcessTurn(sess, TurnInput{
		Intent:     schema.IntentCancel,
		Confidence: 0.95,
		Language:   en(0.8),
	})
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if res.Outcome != OutcomeIntentSwitch {
		t.Fatalf("outcome = %s, want intent_switch", res.Outcome)
	}
	if len(res.Dropped) != 1 || res.Dropped[0] != "source" {
		t.Fatalf("dropped = %v, want [source]", res.Dropped)
	}
	if !res.Filled() {
		t.Fatalf("switch into single-turn intent should be filled")
	}
	if sess.State() != StateIdle {
		t.Fatalf("cancel flow should leave the session idle")
	}
}

func TestIntentSwitchRetainsCompatibleSlot(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	sess := NewSession("u1")

	_, err := o.ProcessTurn(sess, bookingTurn(map[string]RawSlot{
		"source":      {Value: "Delhi", Confidence: 0.9},
		"destination": {Value: "Mumbai", Confidence: 0.9},
	}))
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}

	// Flight uses the same source/destination/date names and kinds.
	res, err := o.ProcessTurn(sess, TurnInput{
		Intent:     schema.IntentBooking,
		SubIntent:  "flight",
		Confidence: 0.96,
		Language:   en(0.8),
	})
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if res.Outcome != OutcomeIntentSwitch {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if len(res.Dropped) != 0 {
		t.Fatalf("compatible slots dropped: %v", res.Dropped)
	}
	if sess.Slots["source"].Text != "Delhi" {
		t.Fatalf("source lost on switch")
	}
	if len(res.Missing) != 1 || res.Missing[0] != "date" {
		t.Fatalf("missing = %v", res.Missing)
	}
}

func TestLowConfidenceIntentIsNoise(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	sess := NewSession("u1")

	_, _ = o.ProcessTurn(sess, bookingTurn(map[string]RawSlot{
		"source": {Value: "Delhi", Confidence: 0.9},
	}))

	res, err := o.ProcessTurn(sess, TurnInput{
		Intent:     schema.IntentSearch,
		SubIntent:  "weather",
		Confidence: 0.5,
		Slots:      map[string]RawSlot{"destination": {Value: "Mumbai", Confidence: 0.8}},
		Language:   en(0.8),
	})
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if res.Outcome != OutcomeNeedsMoreInfo {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if res.Intent != schema.IntentBooking || res.SubIntent != "train_ticket" {
		t.Fatalf("active intent displaced by noise: %s/%s", res.Intent, res.SubIntent)
	}
	if sess.Slots["destination"].Text != "Mumbai" {
		t.Fatalf("slot from noisy turn should still merge into the active schema")
	}
}

func TestInvalidSlotValueDroppedNotFatal(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	sess := NewSession("u1")

	res, err := o.ProcessTurn(sess, bookingTurn(map[string]RawSlot{
		"source":      {Value: "Delhi", Confidence: 0.9},
		"destination": {Value: "Mumbai", Confidence: 0.9},
		"date":        {Value: "xyz", Confidence: 0.9},
	}))
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if res.Outcome != OutcomeNeedsMoreInfo {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if len(res.Missing) != 1 || res.Missing[0] != "date" {
		t.Fatalf("date should still be missing, got %v", res.Missing)
	}
	if len(res.Invalid) != 1 || res.Invalid[0] != "date" {
		t.Fatalf("invalid = %v", res.Invalid)
	}
}

func TestUnknownSlotNamesDiscarded(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	sess := NewSession("u1")

	_, err := o.ProcessTurn(sess, bookingTurn(map[string]RawSlot{
		"source":    {Value: "Delhi", Confidence: 0.9},
		"spaceship": {Value: "Apollo", Confidence: 0.99},
	}))
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if _, ok := sess.Slots["spaceship"]; ok {
		t.Fatalf("slot outside the schema must be discarded")
	}
}

func TestIdempotentReplay(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	sess := NewSession("u1")

	in := bookingTurn(map[string]RawSlot{
		"source": {Value: "Delhi", Confidence: 0.9},
	})
	if _, err := o.ProcessTurn(sess, in); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	before := make(map[string]slots.Value, len(sess.Slots))
	for k, v := range sess.Slots {
		before[k] = v
	}

	if _, err := o.ProcessTurn(sess, in); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !reflect.DeepEqual(before, sess.Slots) {
		t.Fatalf("replay changed slots: %+v vs %+v", before, sess.Slots)
	}
}

func TestConfidenceGatedOverwrite(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	sess := NewSession("u1")

	_, _ = o.ProcessTurn(sess, bookingTurn(map[string]RawSlot{
		"source": {Value: "Delhi", Confidence: 0.9},
	}))

	// Lower confidence: keep the established value.
	_, _ = o.ProcessTurn(sess, bookingTurn(map[string]RawSlot{
		"source": {Value: "Dehradun", Confidence: 0.4},
	}))
	if sess.Slots["source"].Text != "Delhi" {
		t.Fatalf("low-confidence extraction overwrote source: %q", sess.Slots["source"].Text)
	}

	// Higher confidence: deliberate restatement wins.
	_, _ = o.ProcessTurn(sess, bookingTurn(map[string]RawSlot{
		"source": {Value: "Chennai", Confidence: 0.95},
	}))
	if sess.Slots["source"].Text != "Chennai" {
		t.Fatalf("high-confidence restatement ignored: %q", sess.Slots["source"].Text)
	}
}

func TestLanguageSwitchLiftsOverwriteGate(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	sess := NewSession("u1")

	_, _ = o.ProcessTurn(sess, bookingTurn(map[string]RawSlot{
		"source": {Value: "Delhi", Confidence: 0.9},
	}))

	in := bookingTurn(map[string]RawSlot{
		"source": {Value: "दिल्ली", Confidence: 0.5},
	})
	in.Language = lang.Detection{Tag: lang.TagHindi, Script: "devanagari", Confidence: 0.99}
	if _, err := o.ProcessTurn(sess, in); err != nil {
		t.Fatalf("turn: %v", err)
	}
	if sess.Slots["source"].Text != "दिल्ली" {
		t.Fatalf("language switch should invalidate the stale extraction, got %q", sess.Slots["source"].Text)
	}
	if sess.Language != lang.TagHindi {
		t.Fatalf("session language not overridden: %s", sess.Language)
	}
}

func TestLanguageStickyWithinMargin(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	sess := NewSession("u1")

	in := bookingTurn(nil)
	in.Language = lang.Detection{Tag: lang.TagHinglish, Confidence: 0.8}
	_, _ = o.ProcessTurn(sess, in)

	// A marginally stronger English detection must not flip the session.
	in = bookingTurn(nil)
	in.Language = en(0.85)
	_, _ = o.ProcessTurn(sess, in)
	if sess.Language != lang.TagHinglish {
		t.Fatalf("language oscillated inside the margin: %s", sess.Language)
	}
}

func TestMissingOrderFollowsSchema(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	sess := NewSession("u1")

	// Extraction arrives destination-first; missing must still follow the
	// declared required order.
	res, err := o.ProcessTurn(sess, bookingTurn(map[string]RawSlot{
		"destination": {Value: "Mumbai", Confidence: 0.9},
	}))
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	want := []string{"source", "date"}
	if !reflect.DeepEqual(res.Missing, want) {
		t.Fatalf("missing = %v, want %v", res.Missing, want)
	}
}

func TestMonotonicCompletion(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	sess := NewSession("u1")

	_, _ = o.ProcessTurn(sess, bookingTurn(map[string]RawSlot{
		"source":      {Value: "Delhi", Confidence: 0.9},
		"destination": {Value: "Mumbai", Confidence: 0.9},
		"date":        {Value: "tomorrow", Confidence: 0.9},
	}))

	// The fill completed; an unrelated follow-up starts from idle.
	res, err := o.ProcessTurn(sess, TurnInput{
		Intent:     schema.IntentSearch,
		SubIntent:  "weather",
		Confidence: 0.9,
		Slots:      map[string]RawSlot{"location": {Value: "Pune", Confidence: 0.9}},
		Language:   en(0.8),
	})
	if err != nil {
		t.Fatalf("follow-up: %v", err)
	}
	if res.Outcome != OutcomeComplete {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if len(res.Slots) != 1 || res.Slots["location"].Text != "Pune" {
		t.Fatalf("slot bleed into new intent: %+v", res.Slots)
	}
}

func TestCarryOverSeedsNextIntent(t *testing.T) {
	o := newTestOrchestrator(t, Config{CarryOver: []string{"destination"}})
	sess := NewSession("u1")

	_, _ = o.ProcessTurn(sess, bookingTurn(map[string]RawSlot{
		"source":      {Value: "Delhi", Confidence: 0.9},
		"destination": {Value: "Mumbai", Confidence: 0.9},
		"date":        {Value: "tomorrow", Confidence: 0.9},
	}))
	if v, ok := sess.Slots["destination"]; !ok || v.Source != slots.SourceCarried {
		t.Fatalf("destination should be carried after completion: %+v", sess.Slots)
	}

	res, err := o.ProcessTurn(sess, TurnInput{
		Intent:     schema.IntentBooking,
		SubIntent:  "flight",
		Confidence: 0.95,
		Slots:      map[string]RawSlot{"source": {Value: "Delhi", Confidence: 0.9}},
		Language:   en(0.8),
	})
	if err != nil {
		t.Fatalf("follow-up: %v", err)
	}
	if res.Slots["destination"].Text != "Mumbai" {
		t.Fatalf("carried slot did not seed the new intent: %+v", res.Slots)
	}
	if !reflect.DeepEqual(res.Missing, []string{"date"}) {
		t.Fatalf("missing = %v", res.Missing)
	}
}

func TestRejectedUnknownIntentWhileIdle(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	sess := NewSession("u1")

	res, err := o.ProcessTurn(sess, TurnInput{Intent: schema.IntentUnknown, Confidence: 0.3, Language: en(0.8)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeRejected {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if sess.TurnCount != 0 || sess.State() != StateIdle {
		t.Fatalf("rejected turn mutated the session")
	}
}

func TestSchemaNotFoundLeavesSessionUntouched(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	sess := NewSession("u1")

	res, err := o.ProcessTurn(sess, TurnInput{Intent: "PAYMENT", SubIntent: "upi", Confidence: 0.9, Language: en(0.8)})
	if err == nil {
		t.Fatalf("expected schema_not_found")
	}
	if errorsx.Reason(err) != errorsx.ReasonSchemaNotFound {
		t.Fatalf("reason = %v", errorsx.Reason(err))
	}
	if res.Outcome != OutcomeRejected {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if sess.ActiveIntent != "" || sess.TurnCount != 0 {
		t.Fatalf("fatal turn mutated the session: %+v", sess)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	s1 := NewSession("u1")
	s2 := NewSession("u2")

	_, _ = o.ProcessTurn(s1, bookingTurn(map[string]RawSlot{
		"source": {Value: "Delhi", Confidence: 0.9},
	}))
	_, _ = o.ProcessTurn(s2, bookingTurn(map[string]RawSlot{
		"source": {Value: "Kolkata", Confidence: 0.9},
	}))

	if s1.Slots["source"].Text != "Delhi" || s2.Slots["source"].Text != "Kolkata" {
		t.Fatalf("slot bleed between users: %q / %q", s1.Slots["source"].Text, s2.Slots["source"].Text)
	}
}
