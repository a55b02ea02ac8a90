package configutil

import (
	"errors"
	"sort"
	"strings"
)

// Schema lists the keys a vendor settings map may carry. Matching is case,
// underscore, and hyphen insensitive, same as DecodeSettings.
type Schema struct {
	Required     []string
	Optional     []string
	AllowUnknown bool
}

// ValidateSettings reports required keys that are absent or blank and, unless
// the schema allows them, keys it does not recognize. Offending keys are
// listed sorted so the error text is stable.
func ValidateSettings(input map[string]any, s Schema) error {
	required := make(map[string]string, len(s.Required))
	for _, k := range s.Required {
		required[normalizeKey(k)] = k
	}
	known := make(map[string]struct{}, len(s.Required)+len(s.Optional))
	for nk := range required {
		known[nk] = struct{}{}
	}
	for _, k := range s.Optional {
		known[normalizeKey(k)] = struct{}{}
	}

	var missing, unknown []string
	seen := make(map[string]bool, len(input))
	for k, v := range input {
		nk := normalizeKey(k)
		seen[nk] = true
		if _, ok := known[nk]; !ok && !s.AllowUnknown {
			unknown = append(unknown, k)
		}
		if orig, ok := required[nk]; ok && isBlank(v) {
			missing = append(missing, orig)
		}
	}
	for nk, orig := range required {
		if !seen[nk] {
			missing = append(missing, orig)
		}
	}

	if len(missing) == 0 && len(unknown) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(unknown)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		parts = append(parts, "unknown: "+strings.Join(unknown, ", "))
	}
	return errors.New(strings.Join(parts, "; "))
}

func isBlank(v any) bool {
	s, ok := v.(string)
	if !ok {
		return v == nil
	}
	return strings.TrimSpace(s) == ""
}
