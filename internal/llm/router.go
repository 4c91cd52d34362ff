package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultModel is used when a job names no model.
const DefaultModel = "gemini-2.5-flash"

// Display labels accepted in place of model identifiers.
var modelAliases = map[string]string{
	"gemini 2.5 pro":   "gemini-2.5-pro",
	"gemini 2.5 flash": "gemini-2.5-flash",
	"gemini 2.0 flash": "gemini-2.0-flash",
	"gemini":           "gemini-2.0-flash",
	"grok":             "grok-2-latest",
	"grok 2":           "grok-2-latest",
}

// ResolveModel maps a display label or identifier to a model identifier.
func ResolveModel(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return DefaultModel
	}
	if id, ok := modelAliases[strings.ToLower(trimmed)]; ok {
		return id
	}
	return trimmed
}

// ModelLabels returns the labels offered in model pickers.
func ModelLabels() []string {
	return []string{"Gemini 2.5 Pro", "Gemini 2.5 Flash", "Grok 2"}
}

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderGrok   = "grok"
)

// ProviderFor returns the provider serving model.
func ProviderFor(model string) string {
	m := strings.ToLower(ResolveModel(model))
	switch {
	case strings.Contains(m, "grok"):
		return ProviderGrok
	case strings.HasPrefix(m, "gpt") || strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4"):
		return ProviderOpenAI
	default:
		return ProviderGemini
	}
}

// Credentials holds the API keys for each provider.
type Credentials struct {
	Google string
	Grok   string
	OpenAI string
}

// RouterConfig configures a Router.
type RouterConfig struct {
	Credentials Credentials

	GeminiBaseURL string
	OpenAIBaseURL string
	GrokBaseURL   string

	RequestsPerMinute int
	Timeout           time.Duration
	Logger            *log.Logger
}

// Router builds clients by model name.
type Router struct {
	cfg RouterConfig
}

// NewRouter creates a router.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{cfg: cfg}
}

// For returns a client for model. It returns an error wrapping
// ErrMissingCredential if the provider has no API key.
func (r *Router) For(model string) (Client, error) {
	id := ResolveModel(model)
	provider := ProviderFor(id)

	opts := Options{
		Model:             id,
		RequestsPerMinute: r.cfg.RequestsPerMinute,
		Timeout:           r.cfg.Timeout,
		Logger:            r.cfg.Logger,
	}
	if opts.Logger != nil {
		opts.Logger = opts.Logger.WithPrefix(provider)
	}

	switch provider {
	case ProviderGrok:
		opts.APIKey, opts.BaseURL = r.cfg.Credentials.Grok, r.cfg.GrokBaseURL
	case ProviderOpenAI:
		opts.APIKey, opts.BaseURL = r.cfg.Credentials.OpenAI, r.cfg.OpenAIBaseURL
	default:
		opts.APIKey, opts.BaseURL = r.cfg.Credentials.Google, r.cfg.GeminiBaseURL
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s (model %s): %w", provider, id, ErrMissingCredential)
	}

	switch provider {
	case ProviderGrok:
		return NewGrokClient(opts), nil
	case ProviderOpenAI:
		return NewOpenAIClient(opts), nil
	default:
		return NewGeminiClient(opts), nil
	}
}
