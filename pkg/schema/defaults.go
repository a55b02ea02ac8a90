package schema

import "github.com/voxnav/voxnav/pkg/slots"

// Intent names produced by the classifier.
const (
	IntentBooking     = "BOOKING"
	IntentSearch      = "SEARCH"
	IntentNavigation  = "NAVIGATION"
	IntentFormFill    = "FORM_FILL"
	IntentGeneralInfo = "GENERAL_INFO"
	IntentCancel      = "CANCEL"
	IntentHelp        = "HELP"
	IntentUnknown     = "UNKNOWN"
)

func str(name string) Field  { return Field{Name: name, Kind: slots.KindString} }
func date(name string) Field { return Field{Name: name, Kind: slots.KindDate} }
func num(name string) Field  { return Field{Name: name, Kind: slots.KindNumber} }

// DefaultSchemas returns the built-in slot contracts for the supported
// booking and search flows, plus intent-wide single-turn entries for
// everything that completes without collecting slots.
func DefaultSchemas() []Schema {
	return []Schema{
		{
			Intent:    IntentBooking,
			SubIntent: "train_ticket",
			Required:  []Field{str("source"), str("destination"), date("date")},
			Optional: []Field{
				{Name: "class", Kind: slots.KindChoice, Choices: []string{"Sleeper", "AC", "General"}},
				num("passengers"), str("time_preference"), str("quota"),
			},
		},
		{
			Intent:    IntentBooking,
			SubIntent: "flight",
			Required:  []Field{str("source"), str("destination"), date("date")},
			Optional:  []Field{date("return_date"), num("passengers"), str("class"), str("airline_preference")},
		},
		{
			Intent:    IntentBooking,
			SubIntent: "hotel",
			Required:  []Field{str("location"), date("checkin_date"), date("checkout_date")},
			Optional:  []Field{num("guests"), num("rooms"), str("room_type"), str("budget"), str("amenities")},
		},
		{
			Intent:    IntentBooking,
			SubIntent: "cab",
			Required:  []Field{str("pickup"), str("drop")},
			Optional:  []Field{str("time"), str("cab_type")},
		},
		{
			Intent:    IntentBooking,
			SubIntent: "food_order",
			Required:  []Field{str("item")},
			Optional:  []Field{str("platform"), num("quantity")},
		},
		{
			Intent:    IntentSearch,
			SubIntent: "weather",
			Required:  []Field{str("location")},
			Optional:  []Field{date("date")},
		},
		{
			Intent:    IntentSearch,
			SubIntent: "product",
			Required:  []Field{str("query")},
			Optional:  []Field{str("platform"), str("price_range"), str("brand")},
		},
		// Intent-wide fallback for free-text searches.
		{
			Intent:   IntentSearch,
			Required: []Field{str("query")},
		},

		// Single-turn intents: no required slots, complete immediately.
		{Intent: IntentNavigation, Optional: []Field{str("target"), str("direction")}},
		{Intent: IntentFormFill, Optional: []Field{str("field"), str("value")}},
		{Intent: IntentGeneralInfo},
		{Intent: IntentCancel},
		{Intent: IntentHelp},
	}
}

// DefaultRegistry builds the registry of DefaultSchemas plus any overlays.
// Overlay entries replace a default with the same (intent, sub-intent) pair.
func DefaultRegistry(overlays ...Schema) (*Registry, error) {
	merged := DefaultSchemas()
	for _, o := range overlays {
		replaced := false
		for i, d := range merged {
			if d.Intent == o.Intent && d.SubIntent == o.SubIntent {
				merged[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, o)
		}
	}
	return NewRegistry(merged...)
}
