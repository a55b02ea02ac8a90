package mock

import (
	"context"
	"io"

	"github.com/voxnav/voxnav/pkg/lang"
	"github.com/voxnav/voxnav/pkg/stt"
)

type STTConfig struct {
	Transcript string
	Confidence float64
	Language   lang.Tag
	Err        error
}

// Transcriber returns a fixed transcript regardless of the audio payload.
type Transcriber struct {
	cfg   STTConfig
	Calls int
}

func NewTranscriber(cfg STTConfig) *Transcriber {
	if cfg.Transcript == "" && cfg.Err == nil {
		cfg.Transcript = "mock transcript"
	}
	if cfg.Confidence == 0 {
		cfg.Confidence = 0.95
	}
	if cfg.Language == "" {
		cfg.Language = lang.TagEnglish
	}
	return &Transcriber{cfg: cfg}
}

func (t *Transcriber) Name() string { return "mock_stt" }

func (t *Transcriber) Transcribe(_ context.Context, audio io.Reader, _ stt.Options) (stt.Result, error) {
	t.Calls++
	if audio != nil {
		_, _ = io.Copy(io.Discard, audio)
	}
	if t.cfg.Err != nil {
		return stt.Result{}, t.cfg.Err
	}
	return stt.Result{
		Text:       t.cfg.Transcript,
		Confidence: t.cfg.Confidence,
		Language:   t.cfg.Language,
	}, nil
}

var _ stt.Transcriber = (*Transcriber)(nil)
