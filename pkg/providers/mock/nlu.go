package mock

import (
	"context"
	"sync"

	"github.com/voxnav/voxnav/pkg/classify"
	"github.com/voxnav/voxnav/pkg/extract"
	"github.com/voxnav/voxnav/pkg/lang"
)

// Classifier replays scripted classifications in order. The last result
// repeats once the script runs out.
type Classifier struct {
	Results []classify.Result
	Err     error

	mu    sync.Mutex
	calls int
}

func (c *Classifier) Classify(_ context.Context, _ string, _ lang.Tag) (classify.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return classify.Result{}, c.Err
	}
	if len(c.Results) == 0 {
		return classify.Result{Intent: "UNKNOWN", Entities: map[string]string{}}, nil
	}
	i := c.calls
	if i >= len(c.Results) {
		i = len(c.Results) - 1
	}
	c.calls++
	return c.Results[i], nil
}

var _ classify.Classifier = (*Classifier)(nil)

// Extractor replays scripted candidate maps in order.
type Extractor struct {
	Results []map[string]extract.Candidate
	Err     error

	mu    sync.Mutex
	calls int
	// Requests records what the engine asked for.
	Requests []extract.Request
}

func (e *Extractor) Extract(_ context.Context, req extract.Request) (map[string]extract.Candidate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Requests = append(e.Requests, req)
	if e.Err != nil {
		return nil, e.Err
	}
	if len(e.Results) == 0 {
		return map[string]extract.Candidate{}, nil
	}
	i := e.calls
	if i >= len(e.Results) {
		i = len(e.Results) - 1
	}
	e.calls++
	return e.Results[i], nil
}

var _ extract.Extractor = (*Extractor)(nil)
