package prompt

import (
	"fmt"
	"strings"

	"github.com/voxnav/voxnav/pkg/dialog"
	"github.com/voxnav/voxnav/pkg/lang"
)

// Composer turns a merge outcome into the next thing the assistant says. All
// lookups fall back through slot-specific, language-generic, and English
// templates, so composition never fails outright.
type Composer struct {
	questions map[string]map[lang.Tag]string
	generic   map[lang.Tag]string
}

// NewComposer builds a composer preloaded with the stock question set. Extra
// question maps overlay the stock ones slot by slot.
func NewComposer(overlays ...map[string]map[lang.Tag]string) *Composer {
	c := &Composer{
		questions: defaultQuestions(),
		generic: map[lang.Tag]string{
			lang.TagEnglish:  "Please tell me the %s.",
			lang.TagHindi:    "कृपया %s बताइए।",
			lang.TagHinglish: "Please %s batao.",
		},
	}
	for _, overlay := range overlays {
		for slot, byLang := range overlay {
			if c.questions[slot] == nil {
				c.questions[slot] = map[lang.Tag]string{}
			}
			for tag, q := range byLang {
				c.questions[slot][tag] = q
			}
		}
	}
	return c
}

// Question returns the prompt asking for one slot in the given language.
func (c *Composer) Question(slot string, tag lang.Tag) string {
	if byLang, ok := c.questions[slot]; ok {
		if q, ok := byLang[tag]; ok {
			return q
		}
		if tag == lang.TagHinglish {
			if q, ok := byLang[lang.TagEnglish]; ok {
				return q
			}
		}
		if q, ok := byLang[lang.TagEnglish]; ok {
			return q
		}
	}
	g, ok := c.generic[tag]
	if !ok {
		g = c.generic[lang.TagEnglish]
	}
	return fmt.Sprintf(g, strings.ReplaceAll(slot, "_", " "))
}

// Compose produces the user-facing reply for a finished turn. The first
// missing slot in schema order drives the question, matching what the merge
// step reported.
func (c *Composer) Compose(res dialog.TurnResult) string {
	switch res.Outcome {
	case dialog.OutcomeNeedsMoreInfo:
		if len(res.Missing) > 0 {
			return c.Question(res.Missing[0], res.Language)
		}
		return c.clarify(res.Language)
	case dialog.OutcomeComplete:
		return c.confirm(res)
	case dialog.OutcomeIntentSwitch:
		if len(res.Missing) > 0 {
			return c.Question(res.Missing[0], res.Language)
		}
		return c.confirm(res)
	default:
		return c.clarify(res.Language)
	}
}

func (c *Composer) confirm(res dialog.TurnResult) string {
	task := strings.ReplaceAll(res.SubIntent, "_", " ")
	if task == "" {
		task = strings.ToLower(res.Intent)
	}
	switch res.Language {
	case lang.TagHindi:
		return fmt.Sprintf("ठीक है, आपका %s अनुरोध पूरा हो गया।", task)
	case lang.TagHinglish:
		return fmt.Sprintf("Done! Aapka %s request complete ho gaya.", task)
	default:
		return fmt.Sprintf("All set, your %s request is complete.", task)
	}
}

func (c *Composer) clarify(tag lang.Tag) string {
	switch tag {
	case lang.TagHindi:
		return "माफ़ कीजिए, मैं समझ नहीं पाया। कृपया दोबारा कहिए।"
	case lang.TagHinglish:
		return "Sorry, samajh nahi aaya. Dobara boliye?"
	default:
		return "Sorry, I didn't catch that. Could you rephrase?"
	}
}

// Retry is the reply for a turn that failed transiently and left no trace.
func (c *Composer) Retry(tag lang.Tag) string {
	switch tag {
	case lang.TagHindi:
		return "क्षमा कीजिए, थोड़ी दिक्कत आ गई। कृपया फिर से कहिए।"
	case lang.TagHinglish:
		return "Sorry, thodi problem ho gayi. Please phir se boliye."
	default:
		return "Sorry, something went wrong on my side. Please say that again."
	}
}

// Help describes what the assistant can do.
func (c *Composer) Help(tag lang.Tag) string {
	switch tag {
	case lang.TagHindi:
		return "मैं टिकट बुकिंग, होटल, कैब, खाना ऑर्डर और मौसम जैसी जानकारी में मदद कर सकता हूँ।"
	case lang.TagHinglish:
		return "Main ticket booking, hotel, cab, food order aur weather jaisi cheezon mein madad kar sakta hoon."
	default:
		return "I can help you book trains, flights, hotels, and cabs, order food, or look things up like the weather."
	}
}

// Cancelled acknowledges an abandoned task.
func (c *Composer) Cancelled(tag lang.Tag) string {
	switch tag {
	case lang.TagHindi:
		return "ठीक है, मैंने यह काम रद्द कर दिया।"
	case lang.TagHinglish:
		return "Theek hai, maine yeh task cancel kar diya."
	default:
		return "Okay, I've cancelled that."
	}
}

func defaultQuestions() map[string]map[lang.Tag]string {
	return map[string]map[lang.Tag]string{
		"source": {
			lang.TagEnglish:  "Where are you travelling from?",
			lang.TagHindi:    "आप कहाँ से यात्रा कर रहे हैं?",
			lang.TagHinglish: "Aap kahan se travel kar rahe hain?",
		},
		"destination": {
			lang.TagEnglish:  "Where do you want to go?",
			lang.TagHindi:    "आप कहाँ जाना चाहते हैं?",
			lang.TagHinglish: "Aapko kahan jaana hai?",
		},
		"date": {
			lang.TagEnglish:  "What date do you want to travel?",
			lang.TagHindi:    "आप किस तारीख़ को यात्रा करना चाहते हैं?",
			lang.TagHinglish: "Kis date ko jaana hai?",
		},
		"class": {
			lang.TagEnglish:  "Which class would you like: Sleeper, AC, or General?",
			lang.TagHindi:    "कौन सी श्रेणी चाहिए: स्लीपर, एसी या जनरल?",
			lang.TagHinglish: "Kaunsi class chahiye: Sleeper, AC ya General?",
		},
		"location": {
			lang.TagEnglish:  "Which city or area?",
			lang.TagHindi:    "कौन सा शहर या इलाक़ा?",
			lang.TagHinglish: "Kaunsa city ya area?",
		},
		"checkin_date": {
			lang.TagEnglish:  "What is your check-in date?",
			lang.TagHindi:    "चेक-इन की तारीख़ क्या है?",
			lang.TagHinglish: "Check-in date kya hai?",
		},
		"checkout_date": {
			lang.TagEnglish:  "What is your check-out date?",
			lang.TagHindi:    "चेक-आउट की तारीख़ क्या है?",
			lang.TagHinglish: "Check-out date kya hai?",
		},
		"pickup": {
			lang.TagEnglish:  "Where should the cab pick you up?",
			lang.TagHindi:    "कैब आपको कहाँ से लेगी?",
			lang.TagHinglish: "Cab kahan se pickup kare?",
		},
		"drop": {
			lang.TagEnglish:  "Where should the cab drop you?",
			lang.TagHindi:    "कैब आपको कहाँ छोड़े?",
			lang.TagHinglish: "Cab kahan drop kare?",
		},
		"item": {
			lang.TagEnglish:  "What would you like to order?",
			lang.TagHindi:    "आप क्या ऑर्डर करना चाहेंगे?",
			lang.TagHinglish: "Kya order karna hai?",
		},
		"query": {
			lang.TagEnglish:  "What would you like to search for?",
			lang.TagHindi:    "आप क्या खोजना चाहते हैं?",
			lang.TagHinglish: "Kya search karna hai?",
		},
	}
}
