package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestGeminiGenerateSendsSafetySettings(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1beta/models/gemini-2.5-pro:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "secret" {
			t.Errorf("missing api key header")
		}
		if r.URL.RawQuery != "" {
			t.Errorf("query = %q, want none", r.URL.RawQuery)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":" Hello "},{"text":"world"}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(Options{APIKey: "secret", BaseURL: srv.URL, Model: "gemini-2.5-pro"})
	out, err := c.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Hello world" {
		t.Errorf("got %q", out)
	}
	if len(got.SafetySettings) != 4 {
		t.Fatalf("safety settings = %d, want 4", len(got.SafetySettings))
	}
	for _, s := range got.SafetySettings {
		if s.Threshold != "BLOCK_NONE" {
			t.Errorf("%s threshold = %s", s.Category, s.Threshold)
		}
	}
}

func TestGeminiTransportErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewGeminiClient(Options{APIKey: "SECRET-KEY-123", BaseURL: base})
	_, err := c.Generate(context.Background(), "hi")
	var lerr *Error
	if !errors.As(err, &lerr) || lerr.Code != ErrorCodeTransport {
		t.Fatalf("error = %v, want transport error", err)
	}
	if strings.Contains(err.Error(), "SECRET-KEY-123") {
		t.Errorf("error text leaks the API key: %v", err)
	}
}

func TestGeminiPromptBlockedCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	_, err := NewGeminiClient(Options{APIKey: "k", BaseURL: srv.URL}).Generate(context.Background(), "x")
	var lerr *Error
	if !errors.As(err, &lerr) || lerr.Code != ErrorCodeBlocked || !IsFallback(err) {
		t.Fatalf("error = %v, want blocked fallback", err)
	}
}

func TestGeminiBlockedIsEmptyResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"prompt blocked", `{"promptFeedback":{"blockReason":"SAFETY"}}`},
		{"no candidates", `{"candidates":[]}`},
		{"empty text", `{"candidates":[{"content":{"parts":[{"text":"  "}]},"finishReason":"SAFETY"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewGeminiClient(Options{APIKey: "k", BaseURL: srv.URL})
			_, err := c.Generate(context.Background(), "x")
			if !errors.Is(err, ErrEmptyResponse) {
				t.Errorf("error = %v, want ErrEmptyResponse", err)
			}
			if !IsFallback(err) {
				t.Error("expected fallback error")
			}
		})
	}
}

func TestGeminiChatKeepsHistory(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		var req geminiRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if want := int(n)*2 - 1; len(req.Contents) != want {
			t.Errorf("call %d: contents = %d, want %d", n, len(req.Contents), want)
		}
		if n == 2 && req.Contents[1].Role != "model" {
			t.Errorf("second turn role = %q, want model", req.Contents[1].Role)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"part"}]}}]}`))
	}))
	defer srv.Close()

	chat := NewGeminiClient(Options{APIKey: "k", BaseURL: srv.URL}).StartChat()
	for i := 0; i < 3; i++ {
		if _, err := chat.Send(context.Background(), "Continue"); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}
	if h := chat.History(); len(h) != 6 {
		t.Errorf("history = %d, want 6", len(h))
	}
}

func TestOpenAIClientBearerAndSystemPrompt(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer xai" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"A story."}}]}`))
	}))
	defer srv.Close()

	c := NewGrokClient(Options{APIKey: "xai", BaseURL: srv.URL})
	out, err := c.Generate(context.Background(), "write")
	if err != nil {
		t.Fatal(err)
	}
	if out != "A story." {
		t.Errorf("got %q", out)
	}
	if got.Model != "grok-2-latest" {
		t.Errorf("model = %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != RoleSystem || got.Messages[0].Content != grokSystemPrompt {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(Options{APIKey: "k", BaseURL: srv.URL}).Generate(context.Background(), "x")
	var lerr *Error
	if !errors.As(err, &lerr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if lerr.Code != ErrorCodeStatus || lerr.Status != http.StatusServiceUnavailable {
		t.Errorf("unexpected error %+v", lerr)
	}
	if IsFallback(err) {
		t.Error("status error must not be a fallback")
	}
}

func TestMissingKeyFailsBeforeRequest(t *testing.T) {
	var hit atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit.Store(true)
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(Options{BaseURL: srv.URL}).Generate(context.Background(), "x")
	if !errors.Is(err, ErrMissingCredential) {
		t.Errorf("error = %v", err)
	}
	if hit.Load() {
		t.Error("request sent without a key")
	}
}

func TestRouterFor(t *testing.T) {
	r := NewRouter(RouterConfig{Credentials: Credentials{Google: "g", Grok: "x"}})

	tests := []struct {
		model    string
		provider string
		id       string
		wantErr  error
	}{
		{"", ProviderGemini, DefaultModel, nil},
		{"Gemini 2.5 Pro", ProviderGemini, "gemini-2.5-pro", nil},
		{"grok-2-latest", ProviderGrok, "grok-2-latest", nil},
		{"gpt-4o", ProviderOpenAI, "", ErrMissingCredential},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			c, err := r.For(tt.model)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if c.Name() != tt.provider || c.Model() != tt.id {
				t.Errorf("got %s/%s, want %s/%s", c.Name(), c.Model(), tt.provider, tt.id)
			}
		})
	}
}

func TestResolveModel(t *testing.T) {
	if got := ResolveModel("  gemini 2.5 flash "); got != "gemini-2.5-flash" {
		t.Errorf("got %q", got)
	}
	if got := ResolveModel("custom-model"); got != "custom-model" {
		t.Errorf("got %q", got)
	}
}
