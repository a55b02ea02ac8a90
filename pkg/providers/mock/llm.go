package mock

import (
	"context"
	"sync"

	"github.com/voxnav/voxnav/pkg/llm"
)

type LLMConfig struct {
	// Replies are returned in order; the last one repeats once exhausted.
	Replies []string
	// Err, when set, fails every call.
	Err error
}

// LLMAdapter is a scripted chat model for tests and offline demos.
type LLMAdapter struct {
	cfg   LLMConfig
	mu    sync.Mutex
	calls int
	// Inputs records every generation request for assertions.
	Inputs []llm.Context
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if len(cfg.Replies) == 0 {
		cfg.Replies = []string{"{}"}
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Generate(_ context.Context, input llm.Context) (llm.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Inputs = append(a.Inputs, input)
	if a.cfg.Err != nil {
		return llm.Response{}, a.cfg.Err
	}
	i := a.calls
	if i >= len(a.cfg.Replies) {
		i = len(a.cfg.Replies) - 1
	}
	a.calls++
	return llm.Response{Text: a.cfg.Replies[i], FinishReason: "stop"}, nil
}

// Calls reports how many generations ran.
func (a *LLMAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}
