package slots

// Kind is the value type of a slot. Keeping the set small and closed makes
// invalid_slot_value a precise, testable condition.
type Kind string

const (
	KindString Kind = "string"
	KindDate   Kind = "date"
	KindNumber Kind = "number"
	KindChoice Kind = "choice"
)

// Source records how a slot value entered the session.
type Source string

const (
	SourceExtracted Source = "extracted"
	SourceConfirmed Source = "confirmed"
	SourceCarried   Source = "carried"
)

// Value is one filled slot. Text always holds the canonical form (dates as
// YYYY-MM-DD); Number is set only for KindNumber.
type Value struct {
	Kind       Kind    `json:"kind"`
	Text       string  `json:"text"`
	Number     float64 `json:"number,omitempty"`
	Confidence float64 `json:"confidence"`
	Turn       int     `json:"turn"`
	Source     Source  `json:"source"`
}
