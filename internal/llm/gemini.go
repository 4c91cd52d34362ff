package llm

import (
	"context"
	"net/url"
	"strings"
)

// DefaultGeminiBaseURL is the public Generative Language API endpoint.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// Harm categories sent with every request. All are set to BLOCK_NONE so
// creative prompts are not refused.
var geminiHarmCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// GeminiClient talks to the generateContent REST API.
type GeminiClient struct {
	transport
}

// NewGeminiClient creates a Gemini client. The default model is gemini-2.5-flash.
func NewGeminiClient(opts Options) *GeminiClient {
	return &GeminiClient{transport: newTransport("gemini", DefaultGeminiBaseURL, "gemini-2.5-flash", opts)}
}

// Name returns "gemini".
func (c *GeminiClient) Name() string { return c.name }

// Model returns the model identifier.
func (c *GeminiClient) Model() string { return c.model }

// Generate sends a single prompt.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.send(ctx, []Message{{Role: RoleUser, Content: prompt}})
}

// StartChat opens a conversation.
func (c *GeminiClient) StartChat() Chat {
	return &geminiChat{client: c}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiRequest struct {
	Contents          []geminiContent       `json:"contents"`
	SystemInstruction *geminiContent        `json:"systemInstruction,omitempty"`
	SafetySettings    []geminiSafetySetting `json:"safetySettings"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (c *GeminiClient) send(ctx context.Context, msgs []Message) (string, error) {
	req := geminiRequest{SafetySettings: make([]geminiSafetySetting, 0, len(geminiHarmCategories))}
	for _, cat := range geminiHarmCategories {
		req.SafetySettings = append(req.SafetySettings, geminiSafetySetting{Category: cat, Threshold: "BLOCK_NONE"})
	}
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
		case RoleAssistant:
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}

	// The key travels in a header so transport errors, which quote the
	// URL, never carry it.
	endpoint := c.baseURL + "/v1beta/models/" + url.PathEscape(c.model) + ":generateContent"
	headers := map[string]string{"x-goog-api-key": c.apiKey}

	var resp geminiResponse
	if err := c.postJSON(ctx, endpoint, headers, req, &resp); err != nil {
		return "", err
	}

	if resp.PromptFeedback.BlockReason != "" {
		return "", &Error{Code: ErrorCodeBlocked, Provider: c.name, Message: resp.PromptFeedback.BlockReason, Cause: ErrEmptyResponse}
	}
	if len(resp.Candidates) == 0 {
		return "", emptyReply(c.name, "no candidates")
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", emptyReply(c.name, strings.ToLower(cand.FinishReason))
	}
	return text, nil
}

type geminiChat struct {
	history
	client *GeminiClient
}

func (g *geminiChat) Send(ctx context.Context, msg string) (string, error) {
	return g.exchange(ctx, msg, g.client.send)
}
