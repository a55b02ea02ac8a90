package dialog

import (
	"github.com/voxnav/voxnav/pkg/lang"
	"github.com/voxnav/voxnav/pkg/slots"
)

// Outcome tags the variant of a TurnResult.
type Outcome string

const (
	// OutcomeComplete: every required slot is filled; Slots holds the final
	// mapping and the session has been reset to idle.
	OutcomeComplete Outcome = "complete"
	// OutcomeNeedsMoreInfo: Missing lists unfilled required slots in the
	// schema's declared order.
	OutcomeNeedsMoreInfo Outcome = "needs_more_info"
	// OutcomeIntentSwitch: the active intent changed mid-dialogue. Dropped
	// names the slots discarded; Missing reflects the new schema.
	OutcomeIntentSwitch Outcome = "intent_switch"
	// OutcomeRejected: the turn could not be mapped to any flow.
	OutcomeRejected Outcome = "rejected"
)

// TurnResult is the outcome of one orchestration step.
type TurnResult struct {
	Outcome   Outcome
	Intent    string
	SubIntent string

	// Slots is the final mapping for Complete, or the known slots otherwise.
	Slots map[string]slots.Value

	// Missing lists unfilled required slots in declared order.
	Missing []string

	// Dropped names slots discarded by an intent switch.
	Dropped []string

	// Invalid names extracted slots that failed validation this turn and
	// were not merged.
	Invalid []string

	// Reason explains a rejection.
	Reason string

	Language  lang.Tag
	TurnIndex int
}

// Filled reports whether the result carries a completed slot mapping. An
// intent switch into a single-turn flow completes immediately.
func (r TurnResult) Filled() bool {
	if r.Outcome == OutcomeComplete {
		return true
	}
	return r.Outcome == OutcomeIntentSwitch && len(r.Missing) == 0
}
