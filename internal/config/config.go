package config

import (
	"errors"
	"fmt"
	"time"

	"tierd/internal/classifier"
	"tierd/internal/confidence"
	"tierd/internal/router"
	"tierd/pkg/types"
)

// Config holds runtime parameters for the daemon. Durations are whole
// seconds so the three file formats read alike.
type Config struct {
	Server     ServerConfig      `json:"server" yaml:"server" toml:"server"`
	Logging    LoggingConfig     `json:"logging" yaml:"logging" toml:"logging"`
	Backend    BackendConfig     `json:"backend" yaml:"backend" toml:"backend"`
	Resource   ResourceConfig    `json:"resource" yaml:"resource" toml:"resource"`
	Router     RouterConfig      `json:"router" yaml:"router" toml:"router"`
	Tiers      TiersConfig       `json:"tiers" yaml:"tiers" toml:"tiers"`
	Session    SessionConfig     `json:"session" yaml:"session" toml:"session"`
	Confidence confidence.Config `json:"confidence" yaml:"confidence" toml:"confidence"`
	Redis      RedisConfig       `json:"redis" yaml:"redis" toml:"redis"`
}

type ServerConfig struct {
	Addr               string     `json:"addr" yaml:"addr" toml:"addr"`
	MaxBodyBytes       int64      `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	InferTimeoutSec    int        `json:"infer_timeout_sec" yaml:"infer_timeout_sec" toml:"infer_timeout_sec"`
	ShutdownTimeoutSec int        `json:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec" toml:"shutdown_timeout_sec"`
	RateLimitRPS       float64    `json:"rate_limit_rps" yaml:"rate_limit_rps" toml:"rate_limit_rps"`
	RateLimitBurst     int        `json:"rate_limit_burst" yaml:"rate_limit_burst" toml:"rate_limit_burst"`
	Swagger            bool       `json:"swagger" yaml:"swagger" toml:"swagger"`
	CORS               CORSConfig `json:"cors" yaml:"cors" toml:"cors"`
}

type CORSConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

type LoggingConfig struct {
	// Level is a zerolog level name.
	Level string `json:"level" yaml:"level" toml:"level"`
	// Format is json or console.
	Format string `json:"format" yaml:"format" toml:"format"`
	// File, when set, receives logs through a rotating writer.
	File       string `json:"file" yaml:"file" toml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress" toml:"compress"`
	// HTTPLevel is the default per-request log level (off, error, info, debug).
	HTTPLevel string `json:"http_level" yaml:"http_level" toml:"http_level"`
}

type BackendConfig struct {
	// Kind is ollama or openai (llama-server and other OpenAI-compatible servers).
	Kind              string  `json:"kind" yaml:"kind" toml:"kind"`
	BaseURL           string  `json:"base_url" yaml:"base_url" toml:"base_url"`
	APIKey            string  `json:"api_key" yaml:"api_key" toml:"api_key"`
	ConnectTimeoutSec int     `json:"connect_timeout_sec" yaml:"connect_timeout_sec" toml:"connect_timeout_sec"`
	UnloadTimeoutSec  int     `json:"unload_timeout_sec" yaml:"unload_timeout_sec" toml:"unload_timeout_sec"`
	Temperature       float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP              float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	MaxTokens         int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	SystemPrompt      string  `json:"system_prompt" yaml:"system_prompt" toml:"system_prompt"`
}

type ResourceConfig struct {
	// Monitor is none, nvidia or static.
	Monitor     string `json:"monitor" yaml:"monitor" toml:"monitor"`
	DeviceIndex int    `json:"device_index" yaml:"device_index" toml:"device_index"`
	NvidiaSMI   string `json:"nvidia_smi" yaml:"nvidia_smi" toml:"nvidia_smi"`
	TimeoutSec  int    `json:"timeout_sec" yaml:"timeout_sec" toml:"timeout_sec"`
	// Static capacity, used with monitor=static.
	StaticLabel   string `json:"static_label" yaml:"static_label" toml:"static_label"`
	StaticTotalMB int    `json:"static_total_mb" yaml:"static_total_mb" toml:"static_total_mb"`
	StaticUsedMB  int    `json:"static_used_mb" yaml:"static_used_mb" toml:"static_used_mb"`
	// WarningThreshold is the used ratio above which a switch-up is refused.
	WarningThreshold float64 `json:"warning_threshold" yaml:"warning_threshold" toml:"warning_threshold"`
}

type RouterConfig struct {
	IdleIntervalSec int               `json:"idle_interval_sec" yaml:"idle_interval_sec" toml:"idle_interval_sec"`
	Classifier      classifier.Config `json:"classifier" yaml:"classifier" toml:"classifier"`
}

// TiersConfig holds one profile per tier.
type TiersConfig struct {
	Light       TierConfig `json:"light" yaml:"light" toml:"light"`
	Specialized TierConfig `json:"specialized" yaml:"specialized" toml:"specialized"`
	Heavy       TierConfig `json:"heavy" yaml:"heavy" toml:"heavy"`
}

func (tc TiersConfig) byTier() map[types.Tier]TierConfig {
	return map[types.Tier]TierConfig{
		types.TierLight:       tc.Light,
		types.TierSpecialized: tc.Specialized,
		types.TierHeavy:       tc.Heavy,
	}
}

// TierConfig mirrors types.TierProfile with file-format tags.
type TierConfig struct {
	ModelID              string `json:"model_id" yaml:"model_id" toml:"model_id"`
	EstimatedMB          int    `json:"estimated_mb" yaml:"estimated_mb" toml:"estimated_mb"`
	InvocationTimeoutSec int    `json:"invocation_timeout_sec" yaml:"invocation_timeout_sec" toml:"invocation_timeout_sec"`
	IdleUnloadSec        int    `json:"idle_unload_sec" yaml:"idle_unload_sec" toml:"idle_unload_sec"`
	Description          string `json:"description" yaml:"description" toml:"description"`
}

type SessionConfig struct {
	// Store is memory or sqlite.
	Store              string `json:"store" yaml:"store" toml:"store"`
	Path               string `json:"path" yaml:"path" toml:"path"`
	MaxTurns           int    `json:"max_turns" yaml:"max_turns" toml:"max_turns"`
	MaxTags            int    `json:"max_tags" yaml:"max_tags" toml:"max_tags"`
	TimeoutSec         int    `json:"timeout_sec" yaml:"timeout_sec" toml:"timeout_sec"`
	MaxContextWords    int    `json:"max_context_words" yaml:"max_context_words" toml:"max_context_words"`
	ContextTurns       int    `json:"context_turns" yaml:"context_turns" toml:"context_turns"`
	AnswerPreview      int    `json:"answer_preview" yaml:"answer_preview" toml:"answer_preview"`
	CleanupIntervalSec int    `json:"cleanup_interval_sec" yaml:"cleanup_interval_sec" toml:"cleanup_interval_sec"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	Password string `json:"password" yaml:"password" toml:"password"`
	DB       int    `json:"db" yaml:"db" toml:"db"`
	Stream   string `json:"stream" yaml:"stream" toml:"stream"`
	MaxLen   int64  `json:"max_len" yaml:"max_len" toml:"max_len"`
	// QueueSize bounds events waiting for Redis; overflow is dropped.
	QueueSize int `json:"queue_size" yaml:"queue_size" toml:"queue_size"`
}

// Default returns the documented defaults.
func Default() Config {
	p := types.DefaultTierProfiles()
	tiers := TiersConfig{
		Light:       TierConfig(p[types.TierLight]),
		Specialized: TierConfig(p[types.TierSpecialized]),
		Heavy:       TierConfig(p[types.TierHeavy]),
	}
	return Config{
		Server: ServerConfig{
			Addr:               ":8080",
			MaxBodyBytes:       1 << 20,
			ShutdownTimeoutSec: 10,
			CORS: CORSConfig{
				Origins: []string{"*"},
				Methods: []string{"GET", "POST", "DELETE", "OPTIONS"},
				Headers: []string{"Content-Type", "X-Log-Level"},
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
			HTTPLevel:  "info",
		},
		Backend: BackendConfig{
			Kind:              "ollama",
			BaseURL:           "http://localhost:11434",
			ConnectTimeoutSec: 5,
			UnloadTimeoutSec:  10,
			Temperature:       0.7,
			TopP:              0.9,
			MaxTokens:         1000,
		},
		Resource: ResourceConfig{
			Monitor:          "nvidia",
			NvidiaSMI:        "nvidia-smi",
			TimeoutSec:       10,
			WarningThreshold: 0.8,
		},
		Router:     RouterConfig{IdleIntervalSec: 60},
		Tiers:      tiers,
		Session:    SessionConfig{Store: "memory", Path: "~/.local/share/tierd/sessions.db", MaxTurns: 20, MaxTags: 10, TimeoutSec: 3600, MaxContextWords: 2000, ContextTurns: 5, AnswerPreview: 200, CleanupIntervalSec: 300},
		Confidence: confidence.Config{EscalateThreshold: 0.5, HighThreshold: 0.8, Weights: confidence.DefaultWeights()},
		Redis:      RedisConfig{Addr: "localhost:6379", Stream: "tierd:events"},
	}
}

// Profiles converts the tier table into router profiles.
func (c Config) Profiles() map[types.Tier]types.TierProfile {
	out := make(map[types.Tier]types.TierProfile, 3)
	for t, tc := range c.Tiers.byTier() {
		out[t] = types.TierProfile(tc)
	}
	return out
}

// Validate checks the merged configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is empty"))
	}
	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, errors.New("server.rate_limit_rps must not be negative"))
	}
	if !oneOf(c.Logging.Format, "json", "console") {
		errs = append(errs, fmt.Errorf("logging.format %q: want json or console", c.Logging.Format))
	}
	if !oneOf(c.Backend.Kind, "ollama", "openai", "llama-server", "llama_server") {
		errs = append(errs, fmt.Errorf("backend.kind %q: want ollama or openai", c.Backend.Kind))
	}
	switch c.Resource.Monitor {
	case "none", "nvidia":
	case "static":
		if c.Resource.StaticTotalMB <= 0 {
			errs = append(errs, errors.New("resource.static_total_mb must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("resource.monitor %q: want none, nvidia or static", c.Resource.Monitor))
	}
	if w := c.Resource.WarningThreshold; w <= 0 || w > 1 {
		errs = append(errs, fmt.Errorf("resource.warning_threshold %v: want (0,1]", w))
	}
	if !oneOf(c.Session.Store, "memory", "sqlite") {
		errs = append(errs, fmt.Errorf("session.store %q: want memory or sqlite", c.Session.Store))
	}
	if c.Session.Store == "sqlite" && c.Session.Path == "" {
		errs = append(errs, errors.New("session.path is required for the sqlite store"))
	}
	cc := c.Confidence
	if cc.EscalateThreshold <= 0 || cc.HighThreshold > 1 || cc.EscalateThreshold >= cc.HighThreshold {
		errs = append(errs, fmt.Errorf("confidence thresholds %v/%v: want 0 < escalate < high <= 1", cc.EscalateThreshold, cc.HighThreshold))
	}
	cl := c.Router.Classifier
	if cl.HeavyThreshold != 0 && cl.SpecializedThreshold != 0 && cl.SpecializedThreshold >= cl.HeavyThreshold {
		errs = append(errs, errors.New("router.classifier: specialized_threshold must be below heavy_threshold"))
	}
	if err := router.ValidateProfiles(c.Profiles()); err != nil {
		errs = append(errs, err)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	return errors.Join(errs...)
}

// Seconds converts a whole-second setting.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func oneOf(s string, allowed ...string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
