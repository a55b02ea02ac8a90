package assistant

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/voxnav/voxnav/pkg/classify"
	"github.com/voxnav/voxnav/pkg/configutil"
	"github.com/voxnav/voxnav/pkg/dialog"
	"github.com/voxnav/voxnav/pkg/extract"
	"github.com/voxnav/voxnav/pkg/lang"
	"github.com/voxnav/voxnav/pkg/llm"
	"github.com/voxnav/voxnav/pkg/logging"
	"github.com/voxnav/voxnav/pkg/metrics"
	"github.com/voxnav/voxnav/pkg/normalize"
	"github.com/voxnav/voxnav/pkg/observers"
	"github.com/voxnav/voxnav/pkg/providers/deepgram"
	"github.com/voxnav/voxnav/pkg/providers/mock"
	"github.com/voxnav/voxnav/pkg/providers/openrouter"
	"github.com/voxnav/voxnav/pkg/schema"
	"github.com/voxnav/voxnav/pkg/session"
	"github.com/voxnav/voxnav/pkg/stt"
)

type openRouterSettings struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
	Referer string `mapstructure:"referer"`
	Title   string `mapstructure:"title"`
}

type mockLLMSettings struct {
	Replies []string `mapstructure:"replies"`
}

type deepgramSettings struct {
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	SmartFormat bool   `mapstructure:"smart_format"`
}

type mockSTTSettings struct {
	Transcript string  `mapstructure:"transcript"`
	Confidence float64 `mapstructure:"confidence"`
	Language   string  `mapstructure:"language"`
}

// BuildEngine assembles a ready-to-serve engine from a loaded config.
func BuildEngine(cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	}

	registry, err := schema.DefaultRegistry(cfg.Schemas...)
	if err != nil {
		return nil, fmt.Errorf("build schema registry: %w", err)
	}

	adapter, err := buildLLM(cfg.Vendors.LLM)
	if err != nil {
		return nil, err
	}
	transcriber, err := buildSTT(cfg.Vendors.STT, logger)
	if err != nil {
		return nil, err
	}

	store := session.NewStore()
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store.SetSnapshotter(session.NewRedisSnapshotter(client, ""), cfg.Redis.TTL())
	}

	observer, err := buildObserver(cfg.Observability, logger)
	if err != nil {
		return nil, err
	}

	classifier := classify.NewLLMClassifier(adapter, classify.WithLogger(logging.NewComponentLogger(logger, "classifier")))
	extractor := extract.NewLLMExtractor(adapter, extract.WithLogger(logging.NewComponentLogger(logger, "extractor")))

	return NewEngine(Options{
		Registry:    registry,
		Store:       store,
		Classifier:  classifier,
		Extractor:   extractor,
		Transcriber: transcriber,
		Normalizer:  normalize.New(normalize.Config{Replacements: cfg.Replacements}),
		Observer:    observer,
		Logger:      logging.NewComponentLogger(logger, "engine"),
		Dialogue: dialog.Config{
			SwitchThreshold: cfg.Dialogue.SwitchThreshold,
			LanguageMargin:  cfg.Dialogue.LanguageMargin,
			CarryOver:       cfg.Dialogue.CarryOver,
		},
		DefaultLanguage: lang.Parse(cfg.Dialogue.DefaultLanguage),
	})
}

func buildLLM(cfg VendorConfig) (llm.Adapter, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openrouter":
		if err := configutil.ValidateSettings(cfg.Settings, configutil.Schema{
			Required: []string{"api_key", "model"},
			Optional: []string{"base_url", "referer", "title"},
		}); err != nil {
			return nil, fmt.Errorf("vendors.llm: %w", err)
		}
		var s openRouterSettings
		if err := configutil.DecodeSettings(cfg.Settings, &s); err != nil {
			return nil, fmt.Errorf("vendors.llm: %w", err)
		}
		a := openrouter.NewAdapter(s.APIKey, s.Model)
		if s.BaseURL != "" {
			a.BaseURL = s.BaseURL
		}
		a.Referer = s.Referer
		a.Title = s.Title
		return a, nil
	case "mock":
		var s mockLLMSettings
		if err := configutil.DecodeSettings(cfg.Settings, &s); err != nil {
			return nil, fmt.Errorf("vendors.llm: %w", err)
		}
		return mock.NewLLMAdapter(mock.LLMConfig{Replies: s.Replies}), nil
	default:
		return nil, fmt.Errorf("vendors.llm.provider %q is not supported", cfg.Provider)
	}
}

func buildSTT(cfg VendorConfig, logger *slog.Logger) (stt.Transcriber, error) {
	switch strings.ToLower(cfg.Provider) {
	case "":
		return nil, nil // text-only deployment
	case "deepgram":
		if err := configutil.ValidateSettings(cfg.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "smart_format"},
		}); err != nil {
			return nil, fmt.Errorf("vendors.stt: %w", err)
		}
		var s deepgramSettings
		if err := configutil.DecodeSettings(cfg.Settings, &s); err != nil {
			return nil, fmt.Errorf("vendors.stt: %w", err)
		}
		return deepgram.New(deepgram.Config{
			APIKey:      s.APIKey,
			Model:       s.Model,
			SmartFormat: s.SmartFormat,
		}, logging.NewComponentLogger(logger, "deepgram_stt")), nil
	case "mock":
		var s mockSTTSettings
		if err := configutil.DecodeSettings(cfg.Settings, &s); err != nil {
			return nil, fmt.Errorf("vendors.stt: %w", err)
		}
		return mock.NewTranscriber(mock.STTConfig{
			Transcript: s.Transcript,
			Confidence: s.Confidence,
			Language:   lang.Parse(s.Language),
		}), nil
	default:
		return nil, fmt.Errorf("vendors.stt.provider %q is not supported", cfg.Provider)
	}
}

func buildObserver(cfg ObservabilityConfig, logger *slog.Logger) (metrics.Observer, error) {
	var list []metrics.Observer
	if cfg.LogEvents {
		list = append(list, observers.NewLoggerObserver(logging.NewComponentLogger(logger, "metrics")))
	}
	list = append(list, observers.NewTurnLatencyObserver(logging.NewComponentLogger(logger, "latency")))
	if cfg.JSONLPath != "" {
		f, err := os.OpenFile(cfg.JSONLPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("observability.jsonl_path: %w", err)
		}
		list = append(list, metrics.NewJSONLObserver(f))
	}

	var obs metrics.Observer = observers.NewMultiObserver(list...)
	if cfg.SampleRate > 0 && cfg.SampleRate < 1 {
		obs = metrics.NewSamplingObserver(obs, cfg.SampleRate)
	}
	return metrics.NewAsyncObserver(obs, 512), nil
}
