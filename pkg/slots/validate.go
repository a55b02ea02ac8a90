package slots

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/voxnav/voxnav/pkg/errorsx"
)

// ParseOptions carries context a validator may need.
type ParseOptions struct {
	Choices []string  // allowed values for KindChoice
	Now     time.Time // reference for relative dates; zero means time.Now
}

// relativeDays maps the closed set of relative date words the assistant
// understands, in English, romanized Hindi and Devanagari.
var relativeDays = map[string]int{
	"today": 0, "aaj": 0, "आज": 0,
	"tomorrow": 1, "kal": 1, "कल": 1,
	"day after tomorrow": 2, "parso": 2, "परसों": 2,
}

// Parse validates raw against kind and returns the canonical Value. The
// returned error always carries the invalid_slot_value reason so callers can
// drop the slot and continue the turn.
func Parse(kind Kind, raw string, opts ParseOptions) (Value, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "null") {
		return Value{}, errorsx.New("empty slot value", errorsx.ReasonInvalidSlotValue)
	}

	switch kind {
	case KindString:
		return Value{Kind: kind, Text: raw}, nil

	case KindNumber:
		n, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			return Value{}, errorsx.New(fmt.Sprintf("%q is not a number", raw), errorsx.ReasonInvalidSlotValue)
		}
		return Value{Kind: kind, Text: raw, Number: n}, nil

	case KindChoice:
		for _, c := range opts.Choices {
			if strings.EqualFold(c, raw) {
				return Value{Kind: kind, Text: c}, nil
			}
		}
		return Value{}, errorsx.New(fmt.Sprintf("%q is not one of %v", raw, opts.Choices), errorsx.ReasonInvalidSlotValue)

	case KindDate:
		text, err := canonicalDate(raw, opts.Now)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: kind, Text: text}, nil
	}

	return Value{}, errorsx.New(fmt.Sprintf("unknown slot kind %q", kind), errorsx.ReasonInvalidSlotValue)
}

func canonicalDate(raw string, now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now()
	}
	lower := strings.ToLower(raw)

	if days, ok := relativeDays[lower]; ok {
		return now.AddDate(0, 0, days).Format("2006-01-02"), nil
	}
	if strings.Contains(lower, "next week") {
		return now.AddDate(0, 0, 7).Format("2006-01-02"), nil
	}

	for _, layout := range []string{"2006-01-02", "02/01/2006", "02-01-2006", "2 January 2006", "January 2, 2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", errorsx.New(fmt.Sprintf("%q is not a date", raw), errorsx.ReasonInvalidSlotValue)
}
