package extract

import (
	"context"

	"github.com/voxnav/voxnav/pkg/lang"
	"github.com/voxnav/voxnav/pkg/schema"
)

// Candidate is one raw slot value proposed for an utterance, before any
// validation or merge decision.
type Candidate struct {
	Value      string
	Confidence float64
}

// Request carries everything the extractor needs: the utterance, the schema
// whose fields it should look for, and the slots already filled so the model
// does not re-ask for them.
type Request struct {
	Text     string
	Language lang.Tag
	Schema   *schema.Schema
	Known    map[string]string
}

// Extractor pulls slot candidates out of an utterance. Implementations talk to
// an external service; failures surface as extract_unavailable and leave the
// turn replayable.
type Extractor interface {
	Extract(ctx context.Context, req Request) (map[string]Candidate, error)
}
