package llm

import "context"

// Message is one chat message in provider-neutral form.
type Message struct {
	Role    string
	Content string
}

// Context is the input to one generation call.
type Context struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
}

// Adapter is the minimal boundary to a chat-completion model. The dialogue
// core only ever needs single-shot JSON-out calls.
type Adapter interface {
	Generate(ctx context.Context, input Context) (Response, error)
	Name() string
}
