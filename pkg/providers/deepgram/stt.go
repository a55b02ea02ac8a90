package deepgram

import (
	"context"
	"io"
	"log/slog"

	listenv1rest "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/voxnav/voxnav/pkg/errorsx"
	"github.com/voxnav/voxnav/pkg/lang"
	"github.com/voxnav/voxnav/pkg/stt"
)

type Config struct {
	APIKey string
	// Model defaults to nova-2, which handles Hindi and code-switched speech.
	Model       string
	SmartFormat bool
}

// Transcriber sends prerecorded audio to Deepgram's listen API. One call per
// turn; there is no streaming session to manage.
type Transcriber struct {
	cfg    Config
	rest   *listenv1rest.Client
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Transcriber {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := client.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	return &Transcriber{cfg: cfg, rest: listenv1rest.New(c), logger: logger}
}

func (t *Transcriber) Name() string { return "deepgram" }

func (t *Transcriber) Transcribe(ctx context.Context, audio io.Reader, opts stt.Options) (stt.Result, error) {
	tOpts := &interfaces.PreRecordedTranscriptionOptions{
		Model:       t.cfg.Model,
		SmartFormat: t.cfg.SmartFormat,
	}
	if opts.LanguageHint.Valid() && !opts.LanguageHint.Romanized() {
		tOpts.Language = opts.LanguageHint.String()
	} else {
		tOpts.DetectLanguage = true
	}

	res, err := t.rest.FromStream(ctx, audio, tOpts)
	if err != nil {
		t.logger.Error("transcription request failed", "model", t.cfg.Model, "error", err)
		return stt.Result{}, errorsx.Wrap(err, "deepgram: transcription failed", errorsx.ReasonTranscribeFailed)
	}
	if len(res.Results.Channels) == 0 || len(res.Results.Channels[0].Alternatives) == 0 {
		return stt.Result{}, errorsx.New("deepgram: empty transcription result", errorsx.ReasonTranscribeFailed)
	}
	ch := res.Results.Channels[0]
	alt := ch.Alternatives[0]

	out := stt.Result{
		Text:       alt.Transcript,
		Confidence: alt.Confidence,
		Language:   lang.Parse(ch.DetectedLanguage),
	}
	if out.Language == lang.TagUnknown && opts.LanguageHint.Valid() {
		out.Language = opts.LanguageHint
	}
	t.logger.Debug("transcription done",
		"model", t.cfg.Model,
		"confidence", out.Confidence,
		"language", out.Language.String())
	return out, nil
}

var _ stt.Transcriber = (*Transcriber)(nil)
