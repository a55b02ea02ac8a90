package assistant

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/voxnav/voxnav/pkg/configutil"
	"github.com/voxnav/voxnav/pkg/schema"
)

type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	Dialogue      DialogueConfig      `mapstructure:"dialogue"`
	Session       SessionConfig       `mapstructure:"session"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Transport     TransportConfig     `mapstructure:"transport"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Observability ObservabilityConfig `mapstructure:"observability"`

	// Schemas overlays or extends the built-in slot contracts.
	Schemas []schema.Schema `mapstructure:"schemas"`
	// Replacements feed the text normalizer.
	Replacements map[string]string `mapstructure:"replacements"`
}

type DialogueConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	SwitchThreshold float64  `mapstructure:"switch_threshold"`
	LanguageMargin  float64  `mapstructure:"language_margin"`
	CarryOver       []string `mapstructure:"carry_over"`
}

type SessionConfig struct {
	TTLMinutes   int `mapstructure:"ttl_minutes"`
	SweepSeconds int `mapstructure:"sweep_seconds"`
}

func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

func (c SessionConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepSeconds) * time.Second
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	LLM VendorConfig `mapstructure:"llm"`
	STT VendorConfig `mapstructure:"stt"`
}

type TransportConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type RedisConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLMinutes int    `mapstructure:"ttl_minutes"`
}

func (c RedisConfig) TTL() time.Duration {
	if c.TTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.TTLMinutes) * time.Minute
}

type ObservabilityConfig struct {
	JSONLPath  string  `mapstructure:"jsonl_path"`
	SampleRate float64 `mapstructure:"sample_rate"`
	LogEvents  bool    `mapstructure:"log_events"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("dialogue.default_language", "en")
	v.SetDefault("dialogue.switch_threshold", 0.75)
	v.SetDefault("dialogue.language_margin", 0.15)
	v.SetDefault("session.ttl_minutes", 15)
	v.SetDefault("session.sweep_seconds", 60)
	v.SetDefault("vendors.llm.provider", "mock")
	v.SetDefault("vendors.stt.provider", "")
	v.SetDefault("transport.provider", "http")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl_minutes", 30)
	v.SetDefault("observability.sample_rate", 1.0)
	v.SetDefault("observability.log_events", false)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Transport.Settings = expandSettings(cfg.Transport.Settings)
	cfg.Redis.Addr = os.ExpandEnv(cfg.Redis.Addr)
	cfg.Redis.Password = os.ExpandEnv(cfg.Redis.Password)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := configutil.RequireString(c.Vendors.LLM.Provider, "vendors.llm.provider"); err != nil {
		return err
	}
	if err := configutil.RequireString(c.Transport.Provider, "transport.provider"); err != nil {
		return err
	}
	switch strings.ToLower(c.Transport.Provider) {
	case "http", "websocket":
	default:
		return fmt.Errorf("transport.provider %q is not supported", c.Transport.Provider)
	}
	if c.Dialogue.SwitchThreshold < 0 || c.Dialogue.SwitchThreshold > 1 {
		return fmt.Errorf("dialogue.switch_threshold must be within [0, 1]")
	}
	if c.Dialogue.LanguageMargin < 0 || c.Dialogue.LanguageMargin > 1 {
		return fmt.Errorf("dialogue.language_margin must be within [0, 1]")
	}
	if c.Session.TTLMinutes <= 0 {
		return fmt.Errorf("session.ttl_minutes must be positive")
	}
	if c.Redis.Enabled {
		if err := configutil.RequireString(c.Redis.Addr, "redis.addr"); err != nil {
			return err
		}
	}
	return nil
}

// expandSettings resolves ${ENV_VAR} references in string settings so API
// keys never live in the config file itself.
func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	out := make(map[string]any, len(settings))
	for k, val := range settings {
		if s, ok := val.(string); ok {
			out[k] = os.ExpandEnv(s)
		} else {
			out[k] = val
		}
	}
	return out
}
