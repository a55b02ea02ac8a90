package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voxnav/voxnav/pkg/classify"
	"github.com/voxnav/voxnav/pkg/dialog"
	"github.com/voxnav/voxnav/pkg/errorsx"
	"github.com/voxnav/voxnav/pkg/extract"
	"github.com/voxnav/voxnav/pkg/lang"
	"github.com/voxnav/voxnav/pkg/metrics"
	"github.com/voxnav/voxnav/pkg/normalize"
	"github.com/voxnav/voxnav/pkg/prompt"
	"github.com/voxnav/voxnav/pkg/schema"
	"github.com/voxnav/voxnav/pkg/session"
	"github.com/voxnav/voxnav/pkg/stt"
)

// TurnRequest is one user turn, spoken or typed. Exactly one of Text or Audio
// should be set; Audio wins when both are.
type TurnRequest struct {
	UserID    string `json:"user_id"`
	Text      string `json:"text,omitempty"`
	Audio     []byte `json:"audio,omitempty"`
	AudioMIME string `json:"audio_mime,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// Reply is what the assistant says back plus the machine-readable turn state.
type Reply struct {
	TraceID    string            `json:"trace_id"`
	UserID     string            `json:"user_id"`
	Text       string            `json:"text"`
	Outcome    dialog.Outcome    `json:"outcome"`
	Intent     string            `json:"intent,omitempty"`
	SubIntent  string            `json:"sub_intent,omitempty"`
	Slots      map[string]string `json:"slots,omitempty"`
	Missing    []string          `json:"missing,omitempty"`
	Language   lang.Tag          `json:"language"`
	TurnIndex  int               `json:"turn_index"`
	Transcript string            `json:"transcript,omitempty"`
}

// Options wires the engine's collaborators. Classifier and Extractor are
// required; everything else has a sensible default.
type Options struct {
	Registry    *schema.Registry
	Store       *session.Store
	Classifier  classify.Classifier
	Extractor   extract.Extractor
	Transcriber stt.Transcriber
	Detector    lang.Detector
	Normalizer  *normalize.Normalizer
	Composer    *prompt.Composer
	Observer    metrics.Observer
	Logger      *slog.Logger

	Dialogue        dialog.Config
	DefaultLanguage lang.Tag
}

// Engine drives one complete turn: transcription, normalization, language
// identification, classification, extraction, the session merge, and reply
// composition. Collaborator calls run outside the per-user session lock; only
// the in-memory merge happens inside it.
type Engine struct {
	registry    *schema.Registry
	orch        *dialog.Orchestrator
	store       *session.Store
	classifier  classify.Classifier
	extractor   extract.Extractor
	transcriber stt.Transcriber
	detector    lang.Detector
	normalizer  *normalize.Normalizer
	composer    *prompt.Composer
	observer    metrics.Observer
	logger      *slog.Logger

	switchThreshold float64
	defaultLang     lang.Tag
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Classifier == nil {
		return nil, fmt.Errorf("assistant: classifier is required")
	}
	if opts.Extractor == nil {
		return nil, fmt.Errorf("assistant: extractor is required")
	}
	if opts.Registry == nil {
		reg, err := schema.DefaultRegistry()
		if err != nil {
			return nil, err
		}
		opts.Registry = reg
	}
	if opts.Store == nil {
		opts.Store = session.NewStore()
	}
	if opts.Detector == nil {
		opts.Detector = lang.NewScriptDetector()
	}
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.New(normalize.Config{})
	}
	if opts.Composer == nil {
		opts.Composer = prompt.NewComposer()
	}
	if opts.Observer == nil {
		opts.Observer = metrics.NoopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = lang.TagEnglish
	}
	threshold := opts.Dialogue.SwitchThreshold
	if threshold <= 0 {
		threshold = 0.75
	}
	return &Engine{
		registry:        opts.Registry,
		orch:            dialog.NewOrchestrator(opts.Registry, opts.Dialogue),
		store:           opts.Store,
		classifier:      opts.Classifier,
		extractor:       opts.Extractor,
		transcriber:     opts.Transcriber,
		detector:        opts.Detector,
		normalizer:      opts.Normalizer,
		composer:        opts.Composer,
		observer:        opts.Observer,
		logger:          opts.Logger,
		switchThreshold: threshold,
		defaultLang:     opts.DefaultLanguage,
	}, nil
}

// Orchestrator exposes the dialogue core for listener registration.
func (e *Engine) Orchestrator() *dialog.Orchestrator { return e.orch }

// Store exposes the session store for lifecycle management.
func (e *Engine) Store() *session.Store { return e.store }

// HandleTurn processes one turn end to end. The returned Reply is always
// usable as the assistant's answer; a non-nil error additionally reports what
// went wrong. Transient errors leave the session exactly as it was.
func (e *Engine) HandleTurn(ctx context.Context, req TurnRequest) (Reply, error) {
	started := time.Now()
	traceID := req.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}
	log := e.logger.With("trace_id", traceID, "user_id", req.UserID)

	reply := Reply{TraceID: traceID, UserID: req.UserID, Language: e.replyLanguage(req.UserID)}
	if req.UserID == "" {
		reply.Outcome = dialog.OutcomeRejected
		reply.Text = e.composer.Compose(dialog.TurnResult{Outcome: dialog.OutcomeRejected, Language: reply.Language})
		return reply, fmt.Errorf("assistant: user id is required")
	}

	text := req.Text
	if len(req.Audio) > 0 {
		transcript, err := e.transcribe(ctx, req, reply.Language, log)
		if err != nil {
			reply.Outcome = dialog.OutcomeRejected
			reply.Text = e.composer.Retry(reply.Language)
			e.recordFailure(traceID, req.UserID, err, started)
			return reply, err
		}
		text = transcript
		reply.Transcript = transcript
	}

	utt := e.normalizer.Normalize(text)
	if utt.Text == "" {
		reply.Outcome = dialog.OutcomeRejected
		reply.Text = e.composer.Compose(dialog.TurnResult{Outcome: dialog.OutcomeRejected, Language: reply.Language})
		return reply, nil
	}

	det := e.detector.Detect(utt.Text)
	hintLang := det.Tag
	if !hintLang.Valid() {
		hintLang = reply.Language
	}

	// Classification and extraction run before the session lock is taken.
	clsStart := time.Now()
	cls, err := e.classifier.Classify(ctx, utt.Text, hintLang)
	if err != nil {
		reply.Outcome = dialog.OutcomeRejected
		reply.Text = e.composer.Retry(hintLang)
		reply.Language = hintLang
		e.recordFailure(traceID, req.UserID, err, started)
		return reply, err
	}
	e.record(metrics.Event{
		Name: metrics.EventClassifyMS, Time: time.Now(), UserID: req.UserID, TraceID: traceID,
		Value: float64(time.Since(clsStart).Milliseconds()),
	})

	candidates, err := e.extractCandidates(ctx, req.UserID, utt.Text, hintLang, cls, traceID)
	if err != nil {
		reply.Outcome = dialog.OutcomeRejected
		reply.Text = e.composer.Retry(hintLang)
		reply.Language = hintLang
		e.recordFailure(traceID, req.UserID, err, started)
		return reply, err
	}

	input := dialog.TurnInput{
		Intent:     cls.Intent,
		SubIntent:  cls.SubIntent,
		Confidence: cls.Confidence,
		Slots:      candidates,
		Language:   det,
	}

	var res dialog.TurnResult
	_, err = e.store.Update(ctx, req.UserID, func(sess *dialog.Session) error {
		var perr error
		res, perr = e.orch.ProcessTurn(sess, input)
		return perr
	})
	if err != nil {
		if errorsx.Reason(err) == errorsx.ReasonSchemaNotFound {
			reply.Outcome = dialog.OutcomeRejected
			reply.Language = res.Language
			reply.Text = e.composer.Compose(res)
			log.Warn("turn rejected", "intent", cls.Intent, "sub_intent", cls.SubIntent, "error", err)
			return reply, err
		}
		reply.Outcome = dialog.OutcomeRejected
		reply.Text = e.composer.Retry(hintLang)
		reply.Language = hintLang
		e.recordFailure(traceID, req.UserID, err, started)
		return reply, err
	}

	reply.Outcome = res.Outcome
	reply.Intent = res.Intent
	reply.SubIntent = res.SubIntent
	reply.Missing = res.Missing
	reply.Language = res.Language
	reply.TurnIndex = res.TurnIndex
	reply.Slots = make(map[string]string, len(res.Slots))
	for name, v := range res.Slots {
		reply.Slots[name] = v.Text
	}
	reply.Text = e.composeReply(res)

	log.Info("turn processed",
		"outcome", string(res.Outcome),
		"intent", res.Intent,
		"sub_intent", res.SubIntent,
		"missing", len(res.Missing),
		"invalid", len(res.Invalid),
		"language", res.Language.String(),
	)
	e.record(metrics.Event{
		Name: metrics.EventTurnCompleted, Time: time.Now(), UserID: req.UserID, TraceID: traceID,
		Value: float64(time.Since(started).Milliseconds()),
		Tags: map[string]string{
			"outcome":  string(res.Outcome),
			"intent":   res.Intent,
			"language": res.Language.String(),
		},
	})
	if res.Outcome == dialog.OutcomeComplete {
		e.record(metrics.Event{
			Name: metrics.EventSlotsFilled, Time: time.Now(), UserID: req.UserID, TraceID: traceID,
			Value: float64(len(res.Slots)),
			Tags:  map[string]string{"intent": res.Intent, "sub_intent": res.SubIntent},
		})
	}
	return reply, nil
}

func (e *Engine) transcribe(ctx context.Context, req TurnRequest, hint lang.Tag, log *slog.Logger) (string, error) {
	if e.transcriber == nil {
		return "", errorsx.New("no transcriber configured", errorsx.ReasonTranscribeFailed)
	}
	start := time.Now()
	res, err := e.transcriber.Transcribe(ctx, bytes.NewReader(req.Audio), stt.Options{
		MIMEType:     req.AudioMIME,
		LanguageHint: hint,
	})
	if err != nil {
		if errorsx.Reason(err) == errorsx.ReasonUnknown {
			err = errorsx.Wrap(err, "transcription failed", errorsx.ReasonTranscribeFailed)
		}
		return "", err
	}
	e.record(metrics.Event{
		Name: metrics.EventTranscribeMS, Time: time.Now(), UserID: req.UserID, TraceID: req.TraceID,
		Value: float64(time.Since(start).Milliseconds()),
	})
	log.Debug("audio transcribed", "confidence", res.Confidence, "language", res.Language.String())
	return res.Text, nil
}

// extractCandidates picks the schema the extractor should target and merges
// classifier entities underneath the extractor's output.
func (e *Engine) extractCandidates(ctx context.Context, userID, text string, hint lang.Tag, cls classify.Result, traceID string) (map[string]dialog.RawSlot, error) {
	sch, known := e.extractionTarget(userID, cls)
	candidates := make(map[string]dialog.RawSlot)
	for name, value := range cls.Entities {
		if value == "" {
			continue
		}
		conf := cls.Confidence * 0.9
		if conf <= 0 {
			conf = 0.5
		}
		candidates[name] = dialog.RawSlot{Value: value, Confidence: conf}
	}
	if sch == nil {
		return candidates, nil
	}

	start := time.Now()
	extracted, err := e.extractor.Extract(ctx, extract.Request{
		Text:     text,
		Language: hint,
		Schema:   sch,
		Known:    known,
	})
	if err != nil {
		return nil, err
	}
	e.record(metrics.Event{
		Name: metrics.EventExtractMS, Time: time.Now(), UserID: userID, TraceID: traceID,
		Value: float64(time.Since(start).Milliseconds()),
	})
	for name, c := range extracted {
		candidates[name] = dialog.RawSlot{Value: c.Value, Confidence: c.Confidence}
	}
	return candidates, nil
}

// extractionTarget resolves which schema governs extraction this turn: the
// classified one when it would take over, otherwise the session's active one.
func (e *Engine) extractionTarget(userID string, cls classify.Result) (*schema.Schema, map[string]string) {
	var active *dialog.Session
	if sess, ok := e.store.Peek(userID); ok && sess.ActiveIntent != "" {
		active = sess
	}

	useClassified := cls.Intent != "" && cls.Intent != schema.IntentUnknown
	if active != nil {
		differs := cls.Intent != active.ActiveIntent || cls.SubIntent != active.ActiveSubIntent
		if differs && cls.Confidence <= e.switchThreshold {
			useClassified = false
		}
	}

	if useClassified {
		if sch, err := e.registry.Lookup(cls.Intent, cls.SubIntent); err == nil {
			known := map[string]string{}
			if active != nil && cls.Intent == active.ActiveIntent && cls.SubIntent == active.ActiveSubIntent {
				known = active.SlotTexts()
			}
			return &sch, known
		}
	}
	if active != nil {
		if sch, err := e.registry.Lookup(active.ActiveIntent, active.ActiveSubIntent); err == nil {
			return &sch, active.SlotTexts()
		}
	}
	return nil, nil
}

func (e *Engine) composeReply(res dialog.TurnResult) string {
	if res.Outcome == dialog.OutcomeComplete || res.Outcome == dialog.OutcomeIntentSwitch {
		switch res.Intent {
		case schema.IntentHelp:
			return e.composer.Help(res.Language)
		case schema.IntentCancel:
			return e.composer.Cancelled(res.Language)
		}
	}
	return e.composer.Compose(res)
}

func (e *Engine) replyLanguage(userID string) lang.Tag {
	if sess, ok := e.store.Peek(userID); ok && sess.Language.Valid() {
		return sess.Language
	}
	return e.defaultLang
}

func (e *Engine) record(ev metrics.Event) {
	e.observer.RecordEvent(ev)
}

func (e *Engine) recordFailure(traceID, userID string, err error, started time.Time) {
	reason := string(errorsx.Reason(err))
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		reason = "cancelled"
	}
	e.record(metrics.Event{
		Name: metrics.EventTurnFailed, Time: time.Now(), UserID: userID, TraceID: traceID,
		Value: float64(time.Since(started).Milliseconds()),
		Tags:  map[string]string{"reason": reason},
	})
}
