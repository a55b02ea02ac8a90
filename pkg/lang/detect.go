package lang

import (
	"strings"
	"unicode"
)

type scriptRange struct {
	name string
	tag  Tag
	lo   rune
	hi   rune
}

// Native script blocks checked in order. Devanagari covers both Hindi and
// Marathi; without further signal the detector reports Hindi.
var scriptRanges = []scriptRange{
	{"devanagari", TagHindi, 0x0900, 0x097F},
	{"bengali", TagBengali, 0x0980, 0x09FF},
	{"gurmukhi", TagPunjabi, 0x0A00, 0x0A7F},
	{"gujarati", TagGujarati, 0x0A80, 0x0AFF},
	{"oriya", TagOdia, 0x0B00, 0x0B7F},
	{"tamil", TagTamil, 0x0B80, 0x0BFF},
	{"telugu", TagTelugu, 0x0C00, 0x0C7F},
	{"kannada", TagKannada, 0x0C80, 0x0CFF},
	{"malayalam", TagMalayalam, 0x0D00, 0x0D7F},
	{"arabic", TagUrdu, 0x0600, 0x06FF},
}

// Romanized-Hindi marker words. Two or more hits in Latin text flips the
// detection from English to the mixed/romanized tag.
var hinglishMarkers = map[string]struct{}{
	"hai": {}, "hain": {}, "nahi": {}, "nahin": {}, "kya": {}, "kyun": {},
	"karo": {}, "karna": {}, "karni": {}, "kar": {}, "karta": {}, "karti": {},
	"mujhe": {}, "mera": {}, "meri": {}, "aap": {}, "aapki": {}, "aapko": {},
	"chahiye": {}, "batao": {}, "bolo": {}, "dikhao": {}, "kholo": {},
	"kab": {}, "kahan": {}, "kaise": {}, "kitna": {}, "kitne": {},
	"se": {}, "mein": {}, "wala": {}, "wali": {}, "bhi": {}, "toh": {},
	"theek": {}, "thik": {}, "accha": {}, "acha": {}, "haan": {},
	"aaj": {}, "kal": {}, "parso": {}, "abhi": {}, "jaana": {}, "jao": {},
	"mangao": {}, "dhundo": {}, "liye": {}, "pe": {}, "par": {},
}

// ScriptDetector is the built-in deterministic language identifier. It counts
// native-script code points first and falls back to a romanized-marker lexicon
// for Latin text.
type ScriptDetector struct {
	// MinScriptRatio is the fraction of non-space runes that must belong to a
	// native script block before it wins. Zero means the default of 0.3.
	MinScriptRatio float64
}

func NewScriptDetector() *ScriptDetector {
	return &ScriptDetector{MinScriptRatio: 0.3}
}

func (d *ScriptDetector) Detect(text string) Detection {
	text = strings.TrimSpace(text)
	if text == "" {
		return Detection{Tag: TagUnknown, Script: "latin", Confidence: 0}
	}
	minRatio := d.MinScriptRatio
	if minRatio <= 0 {
		minRatio = 0.3
	}

	counts := make([]int, len(scriptRanges))
	total := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		for i, sr := range scriptRanges {
			if r >= sr.lo && r <= sr.hi {
				counts[i]++
				break
			}
		}
	}
	if total == 0 {
		return Detection{Tag: TagUnknown, Script: "latin", Confidence: 0}
	}

	// Walk the blocks in declaration order so an exact tie between two
	// scripts always resolves to the same one.
	best, bestCount := -1, 0
	for i, c := range counts {
		if c > bestCount {
			best, bestCount = i, c
		}
	}
	if best >= 0 {
		ratio := float64(bestCount) / float64(total)
		if ratio > minRatio {
			conf := ratio * 1.5
			if conf > 1 {
				conf = 1
			}
			sr := scriptRanges[best]
			return Detection{Tag: sr.tag, Script: sr.name, Confidence: conf}
		}
	}

	// Latin text: decide English vs romanized Hindi by marker density.
	words := strings.Fields(strings.ToLower(text))
	hits := 0
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'")
		if _, ok := hinglishMarkers[w]; ok {
			hits++
		}
	}
	if hits >= 2 || (len(words) > 0 && float64(hits)/float64(len(words)) > 0.25) {
		conf := 0.6 + 0.1*float64(hits)
		if conf > 0.95 {
			conf = 0.95
		}
		return Detection{Tag: TagHinglish, Script: "latin", Confidence: conf}
	}
	return Detection{Tag: TagEnglish, Script: "latin", Confidence: 0.8}
}

var _ Detector = (*ScriptDetector)(nil)
