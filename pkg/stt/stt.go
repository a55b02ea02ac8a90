package stt

import (
	"context"
	"io"

	"github.com/voxnav/voxnav/pkg/lang"
)

// Result is one finished transcription.
type Result struct {
	Text       string
	Confidence float64
	Language   lang.Tag
}

// Options tune a single transcription call.
type Options struct {
	// MIMEType of the audio payload, e.g. "audio/wav".
	MIMEType string
	// LanguageHint narrows the recognizer when the caller already knows the
	// session language. TagUnknown means autodetect.
	LanguageHint lang.Tag
}

// Transcriber converts one audio payload into text. Failures surface as
// transcribe_failed; the turn is dropped and the session untouched.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, opts Options) (Result, error)
	Name() string
}
