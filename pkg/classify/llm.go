package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/voxnav/voxnav/pkg/errorsx"
	"github.com/voxnav/voxnav/pkg/lang"
	"github.com/voxnav/voxnav/pkg/llm"
	"github.com/voxnav/voxnav/pkg/resilience"
)

const classifySystemPrompt = `You are an intent classifier for a multilingual voice assistant.
Users speak English, Hindi, Hinglish, or other Indian languages.

Classify the user message into exactly one intent:
- BOOKING: reserving train tickets, flights, hotels, cabs, or ordering food
- SEARCH: looking up weather, products, or general queries with a target
- NAVIGATION: asking to open a screen, page, or app section
- FORM_FILL: dictating values into a form
- GENERAL_INFO: factual questions with no app action
- CANCEL: abandoning the current task
- HELP: asking what the assistant can do
- UNKNOWN: none of the above

Also pick a sub_intent when one applies (train_ticket, flight, hotel, cab,
food_order, weather, product) and pull out any obvious entities.

Examples:
"book a train from delhi to mumbai" -> {"intent":"BOOKING","sub_intent":"train_ticket","confidence":0.95,"entities":{"source":"delhi","destination":"mumbai"}}
"mujhe kal ka mausam batao" -> {"intent":"SEARCH","sub_intent":"weather","confidence":0.9,"entities":{"date":"kal"}}
"cancel karo" -> {"intent":"CANCEL","sub_intent":"","confidence":0.95,"entities":{}}
"settings kholo" -> {"intent":"NAVIGATION","sub_intent":"","confidence":0.9,"entities":{"target":"settings"}}

Reply with ONLY a JSON object:
{"intent":"...","sub_intent":"...","confidence":0.0,"entities":{}}`

// LLMClassifier classifies utterances with a chat model behind retry and a
// circuit breaker. Every failure mode surfaces as classify_unavailable so the
// caller knows the turn left no trace and can be replayed.
type LLMClassifier struct {
	adapter llm.Adapter
	retry   resilience.RetryPolicy
	breaker *resilience.CircuitBreaker
	timeout time.Duration
	logger  *slog.Logger
}

type LLMClassifierOption func(*LLMClassifier)

func WithRetry(p resilience.RetryPolicy) LLMClassifierOption {
	return func(c *LLMClassifier) { c.retry = p }
}

func WithBreaker(b *resilience.CircuitBreaker) LLMClassifierOption {
	return func(c *LLMClassifier) { c.breaker = b }
}

func WithTimeout(d time.Duration) LLMClassifierOption {
	return func(c *LLMClassifier) { c.timeout = d }
}

func WithLogger(l *slog.Logger) LLMClassifierOption {
	return func(c *LLMClassifier) { c.logger = l }
}

func NewLLMClassifier(adapter llm.Adapter, opts ...LLMClassifierOption) *LLMClassifier {
	c := &LLMClassifier{
		adapter: adapter,
		retry:   resilience.NewRetryPolicy(2, 200*time.Millisecond),
		breaker: resilience.NewCircuitBreaker(3, 30*time.Second),
		timeout: 10 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type classifyReply struct {
	Intent     string            `json:"intent"`
	SubIntent  string            `json:"sub_intent"`
	Confidence float64           `json:"confidence"`
	Entities   map[string]string `json:"entities"`
}

func (c *LLMClassifier) Classify(ctx context.Context, text string, language lang.Tag) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	user := text
	if language != lang.TagUnknown {
		user = fmt.Sprintf("[language: %s] %s", language, text)
	}
	input := llm.Context{
		Messages: []llm.Message{
			{Role: "system", Content: classifySystemPrompt},
			{Role: "user", Content: user},
		},
		Temperature: 0.1,
		MaxTokens:   256,
	}

	var reply classifyReply
	err := c.retry.Do(ctx, func() error {
		return c.breaker.Guard(func() error {
			resp, err := c.adapter.Generate(ctx, input)
			if err != nil {
				return errorsx.Wrap(err, "classify: model call failed", errorsx.ReasonClassifyUnavailable)
			}
			cleaned := llm.CleanJSON(resp.Text)
			if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
				c.logger.Warn("classifier returned malformed JSON", "model", c.adapter.Name(), "error", err)
				return errorsx.Wrap(err, "classify: malformed model reply", errorsx.ReasonClassifyUnavailable)
			}
			return nil
		})
	})
	if err != nil {
		if errorsx.Reason(err) == errorsx.ReasonUnknown {
			err = errorsx.Wrap(err, "classify: gave up", errorsx.ReasonClassifyUnavailable)
		}
		return Result{}, err
	}

	reply.Intent = strings.ToUpper(strings.TrimSpace(reply.Intent))
	if reply.Intent == "" {
		reply.Intent = "UNKNOWN"
	}
	if reply.Confidence < 0 {
		reply.Confidence = 0
	}
	if reply.Confidence > 1 {
		reply.Confidence = 1
	}
	if reply.Entities == nil {
		reply.Entities = map[string]string{}
	}
	return Result{
		Intent:     reply.Intent,
		SubIntent:  strings.ToLower(strings.TrimSpace(reply.SubIntent)),
		Confidence: reply.Confidence,
		Entities:   reply.Entities,
	}, nil
}
