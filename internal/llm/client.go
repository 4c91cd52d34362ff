package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// Client generates text from a prompt.
type Client interface {
	// Name returns the provider name.
	Name() string
	// Model returns the model identifier sent to the provider.
	Model() string
	// Generate sends a single prompt without history.
	Generate(ctx context.Context, prompt string) (string, error)
	// StartChat opens a conversation whose turns are remembered.
	StartChat() Chat
}

// Chat is a conversation with a provider. Each Send includes all prior turns.
type Chat interface {
	Send(ctx context.Context, msg string) (string, error)
	History() []Message
}

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options configures a provider client.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	// RequestsPerMinute paces outgoing requests. Zero disables pacing.
	RequestsPerMinute int
	Timeout           time.Duration
	HTTPClient        *http.Client
	Logger            *log.Logger
}

// transport holds what every provider client shares.
type transport struct {
	name    string
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

func newTransport(name, defaultBase, defaultModel string, opts Options) transport {
	t := transport{
		name:    name,
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		model:   opts.Model,
		http:    opts.HTTPClient,
		logger:  opts.Logger,
	}
	if t.baseURL == "" {
		t.baseURL = defaultBase
	}
	if t.model == "" {
		t.model = defaultModel
	}
	if t.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		t.http = &http.Client{Timeout: timeout}
	}
	if t.logger == nil {
		t.logger = log.Default().WithPrefix(name)
	}
	if opts.RequestsPerMinute > 0 {
		t.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	return t
}

// postJSON sends body as JSON and decodes a 200 response into out.
func (t *transport) postJSON(ctx context.Context, url string, headers map[string]string, body, out any) error {
	if t.apiKey == "" {
		return fmt.Errorf("%s: %w", t.name, ErrMissingCredential)
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", t.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", t.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := t.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &Error{Code: ErrorCodeTransport, Provider: t.name, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Code: ErrorCodeTransport, Provider: t.name, Message: "read response", Cause: err}
	}
	t.logger.Debug("LLM request", "model", t.model, "status", resp.StatusCode, "bytes", len(raw), "took", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return &Error{Code: ErrorCodeStatus, Provider: t.name, Status: resp.StatusCode, Message: snippet(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Code: ErrorCodeDecode, Provider: t.name, Cause: err}
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}

// history is the shared Chat bookkeeping. A failed turn is not remembered.
type history struct {
	messages []Message
}

func (h *history) History() []Message {
	return append([]Message(nil), h.messages...)
}

func (h *history) exchange(ctx context.Context, msg string, send func(context.Context, []Message) (string, error)) (string, error) {
	turn := append(h.History(), Message{Role: RoleUser, Content: msg})
	reply, err := send(ctx, turn)
	if err != nil {
		return "", err
	}
	h.messages = append(turn, Message{Role: RoleAssistant, Content: reply})
	return reply, nil
}

// emptyReply wraps ErrEmptyResponse with the provider name and a reason.
func emptyReply(provider, reason string) error {
	if reason == "" {
		return fmt.Errorf("%s: %w", provider, ErrEmptyResponse)
	}
	return fmt.Errorf("%s: %w (%s)", provider, ErrEmptyResponse, reason)
}
