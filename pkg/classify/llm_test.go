package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxnav/voxnav/pkg/errorsx"
	"github.com/voxnav/voxnav/pkg/lang"
	"github.com/voxnav/voxnav/pkg/llm"
	"github.com/voxnav/voxnav/pkg/resilience"
)

type scriptedAdapter struct {
	replies []string
	errs    []error
	calls   int
}

func (s *scriptedAdapter) Generate(_ context.Context, _ llm.Context) (llm.Response, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return llm.Response{}, s.errs[i]
	}
	if i < len(s.replies) {
		return llm.Response{Text: s.replies[i]}, nil
	}
	return llm.Response{Text: s.replies[len(s.replies)-1]}, nil
}

func (s *scriptedAdapter) Name() string { return "scripted" }

func TestClassifyParsesFencedReply(t *testing.T) {
	ad := &scriptedAdapter{replies: []string{
		"```json\n{\"intent\":\"booking\",\"sub_intent\":\"Train_Ticket\",\"confidence\":0.92,\"entities\":{\"source\":\"delhi\"}}\n```",
	}}
	c := NewLLMClassifier(ad)

	got, err := c.Classify(context.Background(), "book a train from delhi", lang.TagEnglish)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Intent != "BOOKING" || got.SubIntent != "train_ticket" {
		t.Fatalf("got %q/%q", got.Intent, got.SubIntent)
	}
	if got.Confidence != 0.92 {
		t.Fatalf("confidence = %v", got.Confidence)
	}
	if got.Entities["source"] != "delhi" {
		t.Fatalf("entities = %v", got.Entities)
	}
}

func TestClassifyRetriesTransientFailure(t *testing.T) {
	ad := &scriptedAdapter{
		errs:    []error{errors.New("503"), nil},
		replies: []string{"", `{"intent":"HELP","confidence":0.9}`},
	}
	c := NewLLMClassifier(ad, WithRetry(resilience.NewRetryPolicy(2, time.Millisecond)))

	got, err := c.Classify(context.Background(), "help", lang.TagEnglish)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Intent != "HELP" {
		t.Fatalf("intent = %q", got.Intent)
	}
	if ad.calls != 2 {
		t.Fatalf("calls = %d", ad.calls)
	}
}

func TestClassifyUnavailableAfterExhaustion(t *testing.T) {
	ad := &scriptedAdapter{errs: []error{errors.New("down"), errors.New("down")}}
	c := NewLLMClassifier(ad, WithRetry(resilience.NewRetryPolicy(1, time.Millisecond)))

	_, err := c.Classify(context.Background(), "hi", lang.TagEnglish)
	if errorsx.Reason(err) != errorsx.ReasonClassifyUnavailable {
		t.Fatalf("expected classify_unavailable, got %v", err)
	}
	if !errorsx.Transient(err) {
		t.Fatalf("classify_unavailable must be transient")
	}
}

func TestClassifyMalformedReplyIsUnavailable(t *testing.T) {
	ad := &scriptedAdapter{replies: []string{"sorry, I cannot do that"}}
	c := NewLLMClassifier(ad, WithRetry(resilience.NewRetryPolicy(0, time.Millisecond)))

	_, err := c.Classify(context.Background(), "hi", lang.TagEnglish)
	if errorsx.Reason(err) != errorsx.ReasonClassifyUnavailable {
		t.Fatalf("expected classify_unavailable, got %v", err)
	}
}

func TestClassifyDefaultsEmptyIntentToUnknown(t *testing.T) {
	ad := &scriptedAdapter{replies: []string{`{"intent":"","confidence":0.2}`}}
	c := NewLLMClassifier(ad)

	got, err := c.Classify(context.Background(), "mmm", lang.TagUnknown)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Intent != "UNKNOWN" {
		t.Fatalf("intent = %q", got.Intent)
	}
	if got.Entities == nil {
		t.Fatalf("entities must never be nil")
	}
}
