// Package config assembles the runtime configuration from the config file,
// environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/aistudio/internal/cache"
	"github.com/dgnsrekt/aistudio/internal/llm"
	"github.com/dgnsrekt/aistudio/internal/pipeline"
	"github.com/dgnsrekt/aistudio/internal/speech"
	"github.com/dgnsrekt/aistudio/internal/story"
)

// AppName is used for the config file name, env prefix and data paths.
const AppName = "aistudio"

// Credentials are read from the environment only and never written to disk.
type Credentials struct {
	Google   string `env:"GOOGLE_API_KEY"`
	Grok     string `env:"GROK_API_KEY"`
	OpenAI   string `env:"OPENAI_API_KEY"`
	GenAIPro string `env:"GENAIPRO_API_KEY"`
}

type OutputConfig struct {
	Dir           string `mapstructure:"dir"`
	Naming        string `mapstructure:"naming"`
	StripMarkdown bool   `mapstructure:"strip_markdown"`
}

type LLMConfig struct {
	DefaultModel      string        `mapstructure:"default_model"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
	GeminiBaseURL     string        `mapstructure:"gemini_base_url"`
	OpenAIBaseURL     string        `mapstructure:"openai_base_url"`
	GrokBaseURL       string        `mapstructure:"grok_base_url"`
}

type StoryConfig struct {
	MaxParts        int           `mapstructure:"max_parts"`
	EndToken        string        `mapstructure:"end_token"`
	ContinueMessage string        `mapstructure:"continue_message"`
	Delay           time.Duration `mapstructure:"delay"`
}

type EdgeConfig struct {
	Binary string `mapstructure:"binary"`
	Rate   string `mapstructure:"rate"`
}

type GTTSConfig struct {
	Binary            string `mapstructure:"binary"`
	Slow              bool   `mapstructure:"slow"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

type PiperConfig struct {
	Binary    string `mapstructure:"binary"`
	ModelsDir string `mapstructure:"models_dir"`
}

type OpenAISpeechConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type GenAIProConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollAttempts int           `mapstructure:"poll_attempts"`
}

type SpeechConfig struct {
	DefaultVoice string             `mapstructure:"default_voice"`
	Attempts     int                `mapstructure:"attempts"`
	RetryDelay   time.Duration      `mapstructure:"retry_delay"`
	Timeout      time.Duration      `mapstructure:"timeout"`
	Edge         EdgeConfig         `mapstructure:"edge"`
	GTTS         GTTSConfig         `mapstructure:"gtts"`
	Piper        PiperConfig        `mapstructure:"piper"`
	OpenAI       OpenAISpeechConfig `mapstructure:"openai"`
	GenAIPro     GenAIProConfig     `mapstructure:"genaipro"`
}

type CacheConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Dir              string        `mapstructure:"dir"`
	MemoryEntries    int           `mapstructure:"memory_entries"`
	MemoryMaxItemMB  int           `mapstructure:"memory_max_item_mb"`
	DiskCapacityMB   int           `mapstructure:"disk_capacity_mb"`
	CompressionLevel int           `mapstructure:"compression_level"`
	TTL              time.Duration `mapstructure:"ttl"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
}

type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	HistorySize int    `mapstructure:"history_size"`
}

// Config is built once at startup and passed to every component.
type Config struct {
	Debug   bool         `mapstructure:"debug"`
	DataDir string       `mapstructure:"data_dir"`
	Output  OutputConfig `mapstructure:"output"`
	LLM     LLMConfig    `mapstructure:"llm"`
	Story   StoryConfig  `mapstructure:"story"`
	Speech  SpeechConfig `mapstructure:"speech"`
	Cache   CacheConfig  `mapstructure:"cache"`
	Server  ServerConfig `mapstructure:"server"`

	Credentials Credentials `mapstructure:"-"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("data_dir", "")

	v.SetDefault("output.dir", "")
	v.SetDefault("output.naming", string(pipeline.NamingFolder))
	v.SetDefault("output.strip_markdown", true)

	v.SetDefault("llm.default_model", llm.DefaultModel)
	v.SetDefault("llm.requests_per_minute", 30)
	v.SetDefault("llm.timeout", "5m")
	v.SetDefault("llm.gemini_base_url", llm.DefaultGeminiBaseURL)
	v.SetDefault("llm.openai_base_url", llm.DefaultOpenAIBaseURL)
	v.SetDefault("llm.grok_base_url", llm.DefaultGrokBaseURL)

	v.SetDefault("story.max_parts", story.DefaultMaxParts)
	v.SetDefault("story.end_token", story.DefaultEndToken)
	v.SetDefault("story.continue_message", story.DefaultContinueMessage)
	v.SetDefault("story.delay", story.DefaultDelay.String())

	v.SetDefault("speech.default_voice", speech.DefaultVoiceLabel)
	v.SetDefault("speech.attempts", speech.DefaultAttempts)
	v.SetDefault("speech.retry_delay", speech.DefaultRetryDelay.String())
	v.SetDefault("speech.timeout", "2m")
	v.SetDefault("speech.edge.binary", "edge-tts")
	v.SetDefault("speech.edge.rate", "")
	v.SetDefault("speech.gtts.binary", "gtts-cli")
	v.SetDefault("speech.gtts.slow", false)
	v.SetDefault("speech.gtts.requests_per_minute", 50)
	v.SetDefault("speech.piper.binary", "piper")
	v.SetDefault("speech.piper.models_dir", "")
	v.SetDefault("speech.openai.base_url", speech.DefaultOpenAIBaseURL)
	v.SetDefault("speech.openai.model", speech.DefaultOpenAIModel)
	v.SetDefault("speech.genaipro.base_url", speech.DefaultGenAIProBaseURL)
	v.SetDefault("speech.genaipro.poll_interval", "2s")
	v.SetDefault("speech.genaipro.poll_attempts", 600)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.memory_entries", 32)
	v.SetDefault("cache.memory_max_item_mb", 10)
	v.SetDefault("cache.disk_capacity_mb", 500)
	v.SetDefault("cache.compression_level", 3)
	v.SetDefault("cache.ttl", "168h")
	v.SetDefault("cache.cleanup_interval", "1h")

	v.SetDefault("server.addr", "127.0.0.1:5000")
	v.SetDefault("server.history_size", 500)
}

// Load decodes v into a Config, reads credentials from the environment,
// expands paths and validates the result.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	creds, err := env.ParseAs[Credentials]()
	if err != nil {
		return cfg, fmt.Errorf("read credentials: %w", err)
	}
	cfg.Credentials = creds

	if err := cfg.resolvePaths(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) resolvePaths() error {
	var err error
	if c.DataDir == "" {
		if c.DataDir, err = defaultDataDir(); err != nil {
			return err
		}
	}
	if c.DataDir, err = homedir.Expand(c.DataDir); err != nil {
		return fmt.Errorf("expand data_dir: %w", err)
	}

	if c.Output.Dir == "" {
		if c.Output.Dir, err = os.Getwd(); err != nil {
			return fmt.Errorf("resolve output dir: %w", err)
		}
	}
	if c.Output.Dir, err = homedir.Expand(c.Output.Dir); err != nil {
		return fmt.Errorf("expand output.dir: %w", err)
	}

	if c.Cache.Dir == "" {
		c.Cache.Dir = filepath.Join(c.DataDir, "cache")
	}
	if c.Cache.Dir, err = homedir.Expand(c.Cache.Dir); err != nil {
		return fmt.Errorf("expand cache.dir: %w", err)
	}
	if c.Speech.Piper.ModelsDir, err = homedir.Expand(c.Speech.Piper.ModelsDir); err != nil {
		return fmt.Errorf("expand speech.piper.models_dir: %w", err)
	}
	return nil
}

func defaultDataDir() (string, error) {
	if d := os.Getenv("AISTUDIO_DATA_HOME"); d != "" {
		return d, nil
	}
	dirs, err := gap.NewScope(gap.User, AppName).DataDirs()
	if err != nil || len(dirs) == 0 {
		return "", fmt.Errorf("find data directory: %w", errors.Join(err, errors.New("no data directory")))
	}
	return dirs[0], nil
}

// Validate rejects values the components cannot work with.
func (c Config) Validate() error {
	var errs []error
	if _, err := pipeline.ParseNaming(c.Output.Naming); err != nil {
		errs = append(errs, fmt.Errorf("output.naming: %w", err))
	}
	if c.Story.MaxParts < 1 || c.Story.MaxParts > 1000 {
		errs = append(errs, fmt.Errorf("story.max_parts must be between 1 and 1000, got %d", c.Story.MaxParts))
	}
	if strings.TrimSpace(c.Story.EndToken) == "" {
		errs = append(errs, errors.New("story.end_token must not be empty"))
	}
	if c.Story.Delay < 0 {
		errs = append(errs, fmt.Errorf("story.delay must not be negative, got %s", c.Story.Delay))
	}
	if c.Speech.Attempts < 1 || c.Speech.Attempts > 10 {
		errs = append(errs, fmt.Errorf("speech.attempts must be between 1 and 10, got %d", c.Speech.Attempts))
	}
	if c.Speech.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("speech.retry_delay must not be negative, got %s", c.Speech.RetryDelay))
	}
	if c.Speech.GenAIPro.PollAttempts < 1 {
		errs = append(errs, fmt.Errorf("speech.genaipro.poll_attempts must be positive, got %d", c.Speech.GenAIPro.PollAttempts))
	}
	if c.LLM.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("llm.requests_per_minute must not be negative, got %d", c.LLM.RequestsPerMinute))
	}
	if c.Cache.CompressionLevel < 0 || c.Cache.CompressionLevel > 22 {
		errs = append(errs, fmt.Errorf("cache.compression_level must be between 0 and 22, got %d", c.Cache.CompressionLevel))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	return errors.Join(errs...)
}

// SettingsPath is where the remembered UI choices live.
func (c Config) SettingsPath() string { return filepath.Join(c.DataDir, "settings.json") }

// DeadLetterPath is where failed jobs are recorded.
func (c Config) DeadLetterPath() string { return filepath.Join(c.DataDir, "failed.jsonl") }

// RouterConfig returns the LLM router settings.
func (c Config) RouterConfig(logger *log.Logger) llm.RouterConfig {
	return llm.RouterConfig{
		Credentials: llm.Credentials{
			Google: c.Credentials.Google,
			Grok:   c.Credentials.Grok,
			OpenAI: c.Credentials.OpenAI,
		},
		GeminiBaseURL:     c.LLM.GeminiBaseURL,
		OpenAIBaseURL:     c.LLM.OpenAIBaseURL,
		GrokBaseURL:       c.LLM.GrokBaseURL,
		RequestsPerMinute: c.LLM.RequestsPerMinute,
		Timeout:           c.LLM.Timeout,
		Logger:            logger,
	}
}

// SpeechConfig returns the speech registry settings. The cache is attached
// by the caller.
func (c Config) SpeechConfig(logger *log.Logger) speech.Config {
	return speech.Config{
		OpenAIKey:             c.Credentials.OpenAI,
		OpenAIBaseURL:         c.Speech.OpenAI.BaseURL,
		OpenAIModel:           c.Speech.OpenAI.Model,
		GenAIProKey:           c.Credentials.GenAIPro,
		GenAIProBaseURL:       c.Speech.GenAIPro.BaseURL,
		GenAIProPollInterval:  c.Speech.GenAIPro.PollInterval,
		GenAIProPollAttempts:  c.Speech.GenAIPro.PollAttempts,
		EdgeBinary:            c.Speech.Edge.Binary,
		EdgeRate:              c.Speech.Edge.Rate,
		GTTSBinary:            c.Speech.GTTS.Binary,
		GTTSSlow:              c.Speech.GTTS.Slow,
		GTTSRequestsPerMinute: c.Speech.GTTS.RequestsPerMinute,
		PiperBinary:           c.Speech.Piper.Binary,
		PiperModelsDir:        c.Speech.Piper.ModelsDir,
		Timeout:               c.Speech.Timeout,
		Attempts:              c.Speech.Attempts,
		RetryDelay:            c.Speech.RetryDelay,
		Logger:                logger,
	}
}

// PipelineConfig returns the pipeline settings with a story loop built from
// the story section.
func (c Config) PipelineConfig() pipeline.Config {
	loop := story.NewLoop()
	loop.MaxParts = c.Story.MaxParts
	loop.EndToken = c.Story.EndToken
	loop.ContinueMessage = c.Story.ContinueMessage
	loop.Delay = c.Story.Delay

	naming, _ := pipeline.ParseNaming(c.Output.Naming)
	return pipeline.Config{
		OutputDir:     c.Output.Dir,
		Naming:        naming,
		DefaultModel:  c.LLM.DefaultModel,
		DefaultVoice:  c.Speech.DefaultVoice,
		StripMarkdown: c.Output.StripMarkdown,
		Loop:          loop,
	}
}

// CacheConfig returns the audio cache settings.
func (c Config) CacheConfig() cache.Config {
	cc := cache.DefaultConfig()
	cc.DiskPath = c.Cache.Dir
	cc.MemoryEntries = c.Cache.MemoryEntries
	cc.MemoryMaxItem = int64(c.Cache.MemoryMaxItemMB) << 20
	cc.DiskCapacity = int64(c.Cache.DiskCapacityMB) << 20
	cc.CompressionLevel = c.Cache.CompressionLevel
	cc.TTL = c.Cache.TTL
	cc.CleanupInterval = c.Cache.CleanupInterval
	return cc
}
