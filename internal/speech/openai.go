package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAI speech defaults.
const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "tts-1"
)

// OpenAIProvider synthesizes speech with the OpenAI audio/speech API.
type OpenAIProvider struct {
	apiKey  string
	apiBase string
	model   string
	http    *http.Client
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey  string
	APIBase string
	Model   string
	Timeout time.Duration
}

// NewOpenAIProvider creates an OpenAI provider. The default model is tts-1.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:  cfg.APIKey,
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		model:   cfg.Model,
	}
	if p.apiBase == "" {
		p.apiBase = DefaultOpenAIBaseURL
	}
	if p.model == "" {
		p.model = DefaultOpenAIModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	p.http = &http.Client{Timeout: timeout}
	return p
}

// Name returns "openai".
func (p *OpenAIProvider) Name() string { return "openai" }

// Synthesize posts text to {apiBase}/audio/speech and returns the MP3 body.
func (p *OpenAIProvider) Synthesize(ctx context.Context, text, voiceID string) (*Audio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if p.apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingCredential)
	}
	if voiceID == "" {
		voiceID = "alloy"
	}

	body, err := json.Marshal(map[string]any{
		"model":           p.model,
		"input":           text,
		"voice":           voiceID,
		"response_format": "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal openai tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create openai tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Code: ErrorCodeTransport, Provider: p.Name(), Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &Error{Code: ErrorCodeStatus, Provider: p.Name(), Status: resp.StatusCode, Message: strings.TrimSpace(string(errBody))}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Code: ErrorCodeTransport, Provider: p.Name(), Message: "read response", Cause: err}
	}
	if len(audio) == 0 {
		return nil, &Error{Code: ErrorCodeEngine, Provider: p.Name(), Cause: ErrEmptyAudio}
	}
	return mp3(audio), nil
}
