package normalize

import (
	"strings"
	"unicode"
)

// Utterance is the cleaned form of one raw input, ready for language
// identification and classification.
type Utterance struct {
	Raw   string
	Text  string
	Latin bool // true when every letter is Latin script
}

type Config struct {
	// Replacements maps spoken phrases to canonical domain terms, matched
	// case-insensitively against Latin text.
	Replacements map[string]string
}

// Normalizer cleans transcribed or typed text before the rest of the turn
// pipeline sees it. It is stateless and safe for concurrent use.
type Normalizer struct {
	replacements map[string]string
}

func New(cfg Config) *Normalizer {
	return &Normalizer{replacements: cfg.Replacements}
}

func (n *Normalizer) Normalize(raw string) Utterance {
	text := strings.Join(strings.Fields(raw), " ")
	latin := isLatin(text)
	if latin {
		text = strings.ToLower(text)
	}
	for from, to := range n.replacements {
		if from == "" {
			continue
		}
		if latin {
			text = strings.ReplaceAll(text, strings.ToLower(from), to)
		} else {
			text = strings.ReplaceAll(text, from, to)
		}
	}
	return Utterance{Raw: raw, Text: text, Latin: latin}
}

func isLatin(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return false
		}
	}
	return true
}
