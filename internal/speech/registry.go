package speech

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/aistudio/internal/cache"
	"github.com/dgnsrekt/aistudio/internal/clock"
)

// Registry maps provider names to synthesizers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Synthesizer
}

// NewRegistry creates a registry holding providers.
func NewRegistry(providers ...Synthesizer) *Registry {
	r := &Registry{providers: make(map[string]Synthesizer)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider under its Name.
func (r *Registry) Register(s Synthesizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[strings.ToLower(s.Name())] = s
}

// Get returns the provider with the given name.
func (r *Registry) Get(name string) (Synthesizer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownProvider, name, strings.Join(r.names(), ", "))
	}
	return s, nil
}

// names returns the registered provider names, sorted. Callers hold mu.
func (r *Registry) names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Speak synthesizes text with voice's provider. Empty text is rejected
// before any provider is called.
func (r *Registry) Speak(ctx context.Context, text string, voice Voice) (*Audio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	s, err := r.Get(voice.Provider)
	if err != nil {
		return nil, err
	}
	return s.Synthesize(ctx, text, voice.ID)
}

// Config selects and configures the providers built by Build.
type Config struct {
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	GenAIProKey          string
	GenAIProBaseURL      string
	GenAIProPollInterval time.Duration
	GenAIProPollAttempts int

	EdgeBinary string
	EdgeRate   string

	GTTSBinary            string
	GTTSSlow              bool
	GTTSRequestsPerMinute int

	PiperBinary    string
	PiperModelsDir string

	Timeout    time.Duration
	Attempts   int
	RetryDelay time.Duration

	// Cache is optional. When set, clips are reused across jobs.
	Cache  cache.Cache
	Clock  clock.Clock
	Logger *log.Logger
}

// Build creates a registry with the edge, openai, gtts, piper and genaipro
// providers,
// each wrapped with retries and, if configured, the cache. It also returns
// the GenAIPro provider so callers can fetch its voice list.
func Build(cfg Config) (*Registry, *GenAIProProvider) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("speech")
	}

	genai := NewGenAIProProvider(GenAIProConfig{
		APIKey:       cfg.GenAIProKey,
		BaseURL:      cfg.GenAIProBaseURL,
		PollInterval: cfg.GenAIProPollInterval,
		PollAttempts: cfg.GenAIProPollAttempts,
		Timeout:      cfg.Timeout,
		Clock:        cfg.Clock,
		Logger:       logger.WithPrefix("genaipro"),
	})
	providers := []Synthesizer{
		NewEdgeProvider(EdgeConfig{Binary: cfg.EdgeBinary, Rate: cfg.EdgeRate, Timeout: cfg.Timeout}),
		NewOpenAIProvider(OpenAIConfig{APIKey: cfg.OpenAIKey, APIBase: cfg.OpenAIBaseURL, Model: cfg.OpenAIModel, Timeout: cfg.Timeout}),
		NewGTTSProvider(GTTSConfig{Binary: cfg.GTTSBinary, Slow: cfg.GTTSSlow, RequestsPerMinute: cfg.GTTSRequestsPerMinute, Timeout: cfg.Timeout}),
		NewPiperProvider(PiperConfig{Binary: cfg.PiperBinary, ModelsDir: cfg.PiperModelsDir, Timeout: cfg.Timeout}),
		genai,
	}

	r := NewRegistry()
	for _, p := range providers {
		var s Synthesizer = &Retrying{
			Next:     p,
			Attempts: cfg.Attempts,
			Delay:    cfg.RetryDelay,
			Clock:    cfg.Clock,
			Logger:   logger,
		}
		if cfg.Cache != nil {
			s = &Cached{Next: s, Cache: cfg.Cache, Logger: logger}
		}
		r.Register(s)
	}
	return r, genai
}
