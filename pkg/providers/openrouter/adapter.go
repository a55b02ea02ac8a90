package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voxnav/voxnav/pkg/errorsx"
	"github.com/voxnav/voxnav/pkg/llm"
)

// Adapter talks to the OpenRouter chat-completions API. OpenRouter fronts many
// models behind one OpenAI-shaped endpoint, so the wire format below is the
// standard chat completion schema.
type Adapter struct {
	APIKey  string
	Model   string
	BaseURL string
	// Referer and Title feed OpenRouter's attribution headers. Optional.
	Referer string
	Title   string
	Client  *http.Client
}

func NewAdapter(apiKey, model string) *Adapter {
	return &Adapter{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://openrouter.ai/api/v1",
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *Adapter) Name() string { return "openrouter" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (a *Adapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	body, err := a.buildRequest(input)
	if err != nil {
		return llm.Response{}, errorsx.Wrap(err, "openrouter: encode request", errorsx.ReasonLLMGenerate)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/chat/completions", body)
	if err != nil {
		return llm.Response{}, errorsx.Wrap(err, "openrouter: build request", errorsx.ReasonLLMGenerate)
	}
	a.applyHeaders(req)
	resp, err := a.client().Do(req)
	if err != nil {
		return llm.Response{}, errorsx.Wrap(err, "openrouter: request failed", errorsx.ReasonLLMGenerate)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(resp.Body)
		return llm.Response{}, errorsx.New(fmt.Sprintf("openrouter: rate limited: %s", msg), errorsx.ReasonLLMRateLimit)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return llm.Response{}, errorsx.New(fmt.Sprintf("openrouter: status %d: %s", resp.StatusCode, msg), errorsx.ReasonLLMGenerate)
	}
	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return llm.Response{}, errorsx.Wrap(err, "openrouter: decode response", errorsx.ReasonLLMGenerate)
	}
	if len(payload.Choices) == 0 {
		return llm.Response{}, errorsx.New("openrouter: empty choices", errorsx.ReasonLLMGenerate)
	}
	first := payload.Choices[0]
	return llm.Response{
		Text:         first.Message.Content,
		FinishReason: first.FinishReason,
		Usage: llm.Usage{
			PromptTokens:     payload.Usage.PromptTokens,
			CompletionTokens: payload.Usage.CompletionTokens,
			TotalTokens:      payload.Usage.TotalTokens,
		},
	}, nil
}

func (a *Adapter) buildRequest(input llm.Context) (*bytes.Buffer, error) {
	req := chatRequest{
		Model:       a.Model,
		Temperature: input.Temperature,
		MaxTokens:   input.MaxTokens,
	}
	for _, m := range input.Messages {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(b), nil
}

func (a *Adapter) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.APIKey)
	if a.Referer != "" {
		req.Header.Set("HTTP-Referer", a.Referer)
	}
	if a.Title != "" {
		req.Header.Set("X-Title", a.Title)
	}
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}
