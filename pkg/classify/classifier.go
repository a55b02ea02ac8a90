package classify

import (
	"context"

	"github.com/voxnav/voxnav/pkg/lang"
)

// Result is one intent classification.
type Result struct {
	Intent     string
	SubIntent  string
	Confidence float64
	// Entities are slot-like values the classifier spotted in passing. They
	// rank below dedicated extraction results.
	Entities map[string]string
}

// Classifier maps an utterance to an intent. Implementations talk to an
// external service and may fail transiently; the classify_unavailable reason
// marks a turn the caller can retry unchanged.
type Classifier interface {
	Classify(ctx context.Context, text string, language lang.Tag) (Result, error)
}
