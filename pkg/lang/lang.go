package lang

// Tag identifies a supported language. The set is fixed: collaborators that
// report anything else are mapped to TagUnknown by Parse.
type Tag string

const (
	TagEnglish   Tag = "en"
	TagHindi     Tag = "hi"
	TagHinglish  Tag = "hinglish"
	TagBengali   Tag = "bn"
	TagTamil     Tag = "ta"
	TagTelugu    Tag = "te"
	TagMarathi   Tag = "mr"
	TagGujarati  Tag = "gu"
	TagKannada   Tag = "kn"
	TagMalayalam Tag = "ml"
	TagPunjabi   Tag = "pa"
	TagOdia      Tag = "or"
	TagUrdu      Tag = "ur"
	TagUnknown   Tag = "unknown"
)

var all = map[Tag]struct{}{
	TagEnglish: {}, TagHindi: {}, TagHinglish: {}, TagBengali: {},
	TagTamil: {}, TagTelugu: {}, TagMarathi: {}, TagGujarati: {},
	TagKannada: {}, TagMalayalam: {}, TagPunjabi: {}, TagOdia: {}, TagUrdu: {},
}

func (t Tag) Valid() bool {
	_, ok := all[t]
	return ok
}

// Romanized reports whether the tag denotes regional-language text written in
// Latin script rather than its native script.
func (t Tag) Romanized() bool { return t == TagHinglish }

func (t Tag) String() string { return string(t) }

// Parse maps a free-form tag from an external collaborator onto the fixed set.
func Parse(s string) Tag {
	switch Tag(s) {
	case TagEnglish, TagHindi, TagHinglish, TagBengali, TagTamil, TagTelugu,
		TagMarathi, TagGujarati, TagKannada, TagMalayalam, TagPunjabi, TagOdia, TagUrdu:
		return Tag(s)
	}
	switch s {
	case "hindi":
		return TagHindi
	case "english":
		return TagEnglish
	}
	return TagUnknown
}

// Detection is one language identification outcome.
type Detection struct {
	Tag        Tag
	Script     string
	Confidence float64
}

// Detector identifies the language of normalized text. Implementations must be
// deterministic for identical input.
type Detector interface {
	Detect(text string) Detection
}
