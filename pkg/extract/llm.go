package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/voxnav/voxnav/pkg/errorsx"
	"github.com/voxnav/voxnav/pkg/llm"
	"github.com/voxnav/voxnav/pkg/resilience"
)

const extractSystemPrompt = `You extract structured slot values from user messages for a
multilingual voice assistant. Users mix English, Hindi, and Hinglish freely.

Rules:
- Only report slots you are confident about. Omit a slot rather than guess.
- Keep values in the user's own words. Do not translate or normalize dates.
- Relative dates like "kal", "aaj", "parso", "tomorrow" are valid values.
- Reply with ONLY a JSON object mapping slot names to
  {"value":"...","confidence":0.0}.

Example, slots [source destination date]:
"delhi se mumbai kal" -> {"source":{"value":"delhi","confidence":0.95},"destination":{"value":"mumbai","confidence":0.95},"date":{"value":"kal","confidence":0.9}}`

// LLMExtractor asks a chat model for slot candidates. It shares the retry and
// breaker discipline of the classifier and reports extract_unavailable on any
// failure so no half-read reply ever reaches the merge step.
type LLMExtractor struct {
	adapter llm.Adapter
	retry   resilience.RetryPolicy
	breaker *resilience.CircuitBreaker
	timeout time.Duration
	logger  *slog.Logger
}

type LLMExtractorOption func(*LLMExtractor)

func WithRetry(p resilience.RetryPolicy) LLMExtractorOption {
	return func(e *LLMExtractor) { e.retry = p }
}

func WithBreaker(b *resilience.CircuitBreaker) LLMExtractorOption {
	return func(e *LLMExtractor) { e.breaker = b }
}

func WithTimeout(d time.Duration) LLMExtractorOption {
	return func(e *LLMExtractor) { e.timeout = d }
}

func WithLogger(l *slog.Logger) LLMExtractorOption {
	return func(e *LLMExtractor) { e.logger = l }
}

func NewLLMExtractor(adapter llm.Adapter, opts ...LLMExtractorOption) *LLMExtractor {
	e := &LLMExtractor{
		adapter: adapter,
		retry:   resilience.NewRetryPolicy(2, 200*time.Millisecond),
		breaker: resilience.NewCircuitBreaker(3, 30*time.Second),
		timeout: 10 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type candidateReply struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

func (e *LLMExtractor) Extract(ctx context.Context, req Request) (map[string]Candidate, error) {
	if req.Schema == nil || len(req.Schema.Required)+len(req.Schema.Optional) == 0 {
		return map[string]Candidate{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	input := llm.Context{
		Messages: []llm.Message{
			{Role: "system", Content: extractSystemPrompt},
			{Role: "user", Content: e.userPrompt(req)},
		},
		Temperature: 0.1,
		MaxTokens:   512,
	}

	var parsed map[string]json.RawMessage
	err := e.retry.Do(ctx, func() error {
		return e.breaker.Guard(func() error {
			resp, err := e.adapter.Generate(ctx, input)
			if err != nil {
				return errorsx.Wrap(err, "extract: model call failed", errorsx.ReasonExtractUnavailable)
			}
			cleaned := llm.CleanJSON(resp.Text)
			if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
				e.logger.Warn("extractor returned malformed JSON", "model", e.adapter.Name(), "error", err)
				return errorsx.Wrap(err, "extract: malformed model reply", errorsx.ReasonExtractUnavailable)
			}
			return nil
		})
	})
	if err != nil {
		if errorsx.Reason(err) == errorsx.ReasonUnknown {
			err = errorsx.Wrap(err, "extract: gave up", errorsx.ReasonExtractUnavailable)
		}
		return nil, err
	}

	out := make(map[string]Candidate, len(parsed))
	for name, raw := range parsed {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		var c candidateReply
		if err := json.Unmarshal(raw, &c); err != nil {
			// Some models flatten to plain strings. Accept those at a
			// conservative default confidence.
			var s string
			if err2 := json.Unmarshal(raw, &s); err2 != nil {
				continue
			}
			c = candidateReply{Value: s, Confidence: 0.8}
		}
		c.Value = strings.TrimSpace(c.Value)
		if c.Value == "" || strings.EqualFold(c.Value, "null") {
			continue
		}
		if c.Confidence <= 0 {
			c.Confidence = 0.8
		}
		if c.Confidence > 1 {
			c.Confidence = 1
		}
		out[name] = Candidate{Value: c.Value, Confidence: c.Confidence}
	}
	return out, nil
}

func (e *LLMExtractor) userPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Intent: %s", req.Schema.Intent)
	if req.Schema.SubIntent != "" {
		fmt.Fprintf(&b, "/%s", req.Schema.SubIntent)
	}
	b.WriteString("\nSlots:")
	for _, f := range req.Schema.Required {
		fmt.Fprintf(&b, " %s(%s)", f.Name, f.Kind)
	}
	for _, f := range req.Schema.Optional {
		fmt.Fprintf(&b, " %s(%s)", f.Name, f.Kind)
	}
	if len(req.Known) > 0 {
		b.WriteString("\nAlready filled:")
		for _, name := range req.Schema.RequiredNames() {
			if v, ok := req.Known[name]; ok {
				fmt.Fprintf(&b, " %s=%q", name, v)
			}
		}
	}
	if req.Language.Valid() {
		fmt.Fprintf(&b, "\nLanguage: %s", req.Language)
	}
	fmt.Fprintf(&b, "\nMessage: %s", req.Text)
	return b.String()
}
