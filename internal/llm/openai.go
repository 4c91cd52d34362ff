package llm

import (
	"context"
	"strings"
)

const (
	// DefaultOpenAIBaseURL is the OpenAI API endpoint.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultGrokBaseURL is the xAI API endpoint, which speaks the same
	// chat-completions protocol.
	DefaultGrokBaseURL = "https://api.x.ai/v1"

	grokSystemPrompt = "You are a creative assistant."
)

// OpenAIClient talks to a chat-completions compatible API.
type OpenAIClient struct {
	transport
	system string
}

// NewOpenAIClient creates a client for OpenAI. The default model is gpt-4o-mini.
func NewOpenAIClient(opts Options) *OpenAIClient {
	return &OpenAIClient{transport: newTransport("openai", DefaultOpenAIBaseURL, "gpt-4o-mini", opts)}
}

// NewGrokClient creates a client for xAI's Grok models.
func NewGrokClient(opts Options) *OpenAIClient {
	return &OpenAIClient{
		transport: newTransport("grok", DefaultGrokBaseURL, "grok-2-latest", opts),
		system:    grokSystemPrompt,
	}
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string { return c.name }

// Model returns the model identifier.
func (c *OpenAIClient) Model() string { return c.model }

// Generate sends a single prompt.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.send(ctx, []Message{{Role: RoleUser, Content: prompt}})
}

// StartChat opens a conversation.
func (c *OpenAIClient) StartChat() Chat {
	return &openAIChat{client: c}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

func (c *OpenAIClient) send(ctx context.Context, msgs []Message) (string, error) {
	req := chatRequest{Model: c.model}
	if c.system != "" {
		req.Messages = append(req.Messages, Message{Role: RoleSystem, Content: c.system})
	}
	req.Messages = append(req.Messages, msgs...)

	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	var resp chatResponse
	if err := c.postJSON(ctx, c.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", emptyReply(c.name, "no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", emptyReply(c.name, resp.Choices[0].FinishReason)
	}
	return text, nil
}

type openAIChat struct {
	history
	client *OpenAIClient
}

func (o *openAIChat) Send(ctx context.Context, msg string) (string, error) {
	return o.exchange(ctx, msg, o.client.send)
}
