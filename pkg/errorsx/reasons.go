package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonSchemaNotFound    ReasonCode = "schema_not_found"
	ReasonInvalidSlotValue  ReasonCode = "invalid_slot_value"
	ReasonInvalidTransition ReasonCode = "invalid_transition"

	ReasonClassifyUnavailable ReasonCode = "classify_unavailable"
	ReasonExtractUnavailable  ReasonCode = "extract_unavailable"
	ReasonTranscribeFailed    ReasonCode = "transcribe_failed"
	ReasonComposeFailed       ReasonCode = "compose_failed"

	ReasonSessionClosed ReasonCode = "session_closed"

	ReasonLLMGenerate  ReasonCode = "llm_generate"
	ReasonLLMRateLimit ReasonCode = "llm_rate_limit"
	ReasonCircuitOpen  ReasonCode = "circuit_open"

	ReasonTransportSend ReasonCode = "transport_send"
)

// transientReasons mark per-turn failures the caller may retry with the same
// input. Session state is guaranteed untouched when one of these surfaces.
var transientReasons = map[ReasonCode]struct{}{
	ReasonClassifyUnavailable: {},
	ReasonExtractUnavailable:  {},
	ReasonTranscribeFailed:    {},
	ReasonLLMGenerate:         {},
	ReasonLLMRateLimit:        {},
	ReasonCircuitOpen:         {},
}

// Transient reports whether err carries a retryable reason code.
func Transient(err error) bool {
	_, ok := transientReasons[Reason(err)]
	return ok
}
