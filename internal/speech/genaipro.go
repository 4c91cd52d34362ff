package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/aistudio/internal/clock"
)

// DefaultGenAIProBaseURL is the GenAIPro API endpoint.
const DefaultGenAIProBaseURL = "https://genaipro.vn/api/v1"

// GenAIPro limits and task defaults.
const (
	genAIProMaxInput = 10000
	genAIProModel    = "eleven_multilingual_v2"
)

// GenAIProProvider synthesizes speech with GenAIPro's asynchronous task API:
// a task is created, polled until it reports a result URL, and the audio is
// downloaded from that URL.
type GenAIProProvider struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	pollAttempts int
	http         *http.Client
	clock        clock.Clock
	logger       *log.Logger
}

// GenAIProConfig configures the GenAIPro provider.
type GenAIProConfig struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	PollAttempts int
	Timeout      time.Duration
	Clock        clock.Clock
	Logger       *log.Logger
}

// NewGenAIProProvider creates a GenAIPro provider. It polls every 2s up to
// 600 times unless configured otherwise.
func NewGenAIProProvider(cfg GenAIProConfig) *GenAIProProvider {
	p := &GenAIProProvider{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		pollInterval: cfg.PollInterval,
		pollAttempts: cfg.PollAttempts,
		clock:        clock.OrReal(cfg.Clock),
		logger:       cfg.Logger,
	}
	if p.baseURL == "" {
		p.baseURL = DefaultGenAIProBaseURL
	}
	if p.pollInterval <= 0 {
		p.pollInterval = 2 * time.Second
	}
	if p.pollAttempts <= 0 {
		p.pollAttempts = 600
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	p.http = &http.Client{Timeout: timeout}
	if p.logger == nil {
		p.logger = log.Default().WithPrefix("genaipro")
	}
	return p
}

// Name returns "genaipro".
func (p *GenAIProProvider) Name() string { return "genaipro" }

type genAIProTaskRequest struct {
	Input   string  `json:"input"`
	VoiceID string  `json:"voice_id"`
	ModelID string  `json:"model_id"`
	Speed   float64 `json:"speed"`
	Style   float64 `json:"style"`
}

type genAIProTask struct {
	TaskID string `json:"task_id"`
	Status string `json:"status,omitempty"`
	Result string `json:"result,omitempty"`
}

// Synthesize creates a task, waits for it, and downloads the result.
// Input longer than 10000 characters is truncated.
func (p *GenAIProProvider) Synthesize(ctx context.Context, text, voiceID string) (*Audio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if p.apiKey == "" {
		return nil, fmt.Errorf("genaipro: %w", ErrMissingCredential)
	}

	taskID, err := p.createTask(ctx, truncateRunes(text, genAIProMaxInput), voiceID)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Task created", "task", taskID)

	resultURL, err := p.waitForResult(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return p.download(ctx, resultURL)
}

func (p *GenAIProProvider) createTask(ctx context.Context, text, voiceID string) (string, error) {
	body, err := json.Marshal(genAIProTaskRequest{
		Input:   text,
		VoiceID: voiceID,
		ModelID: genAIProModel,
		Speed:   1,
		Style:   0.5,
	})
	if err != nil {
		return "", fmt.Errorf("marshal genaipro task: %w", err)
	}

	var task genAIProTask
	if err := p.doJSON(ctx, http.MethodPost, p.baseURL+"/labs/task", bytes.NewReader(body), &task); err != nil {
		return "", err
	}
	if task.TaskID == "" {
		return "", &Error{Code: ErrorCodeEngine, Provider: p.Name(), Message: "task id missing from response"}
	}
	return task.TaskID, nil
}

// waitForResult polls the task until it has a result URL. Failed polls
// count as attempts but do not end the wait.
func (p *GenAIProProvider) waitForResult(ctx context.Context, taskID string) (string, error) {
	checkURL := p.baseURL + "/labs/task/" + url.PathEscape(taskID)
	for i := 0; i < p.pollAttempts; i++ {
		if err := p.clock.Sleep(ctx, p.pollInterval); err != nil {
			return "", err
		}

		var task genAIProTask
		err := p.doJSON(ctx, http.MethodGet, checkURL, nil, &task)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			p.logger.Debug("Poll failed", "task", taskID, "attempt", i+1, "error", err)
			continue
		}
		if task.Result != "" {
			return task.Result, nil
		}
	}
	return "", &Error{Code: ErrorCodeTimeout, Provider: p.Name(), Message: "task " + taskID, Cause: ErrTimeout}
}

func (p *GenAIProProvider) download(ctx context.Context, resultURL string) (*Audio, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create genaipro download request: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Code: ErrorCodeTransport, Provider: p.Name(), Message: "download", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Code: ErrorCodeStatus, Provider: p.Name(), Status: resp.StatusCode, Message: "download"}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Code: ErrorCodeTransport, Provider: p.Name(), Message: "download", Cause: err}
	}
	if len(data) == 0 {
		return nil, &Error{Code: ErrorCodeEngine, Provider: p.Name(), Cause: ErrEmptyAudio}
	}
	return mp3(data), nil
}

// GenAIProVoice is an entry of the GenAIPro voice list.
type GenAIProVoice struct {
	Name    string `json:"name"`
	VoiceID string `json:"voice_id"`
}

// Voices fetches the first page of voices available to the account.
func (p *GenAIProProvider) Voices(ctx context.Context) ([]GenAIProVoice, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("genaipro: %w", ErrMissingCredential)
	}
	var resp struct {
		Voices []GenAIProVoice `json:"voices"`
	}
	if err := p.doJSON(ctx, http.MethodGet, p.baseURL+"/labs/voices?page_size=100", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Voices, nil
}

func (p *GenAIProProvider) doJSON(ctx context.Context, method, endpoint string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create genaipro request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Code: ErrorCodeTransport, Provider: p.Name(), Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Code: ErrorCodeTransport, Provider: p.Name(), Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &Error{Code: ErrorCodeStatus, Provider: p.Name(), Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Code: ErrorCodeEngine, Provider: p.Name(), Message: "decode response", Cause: err}
	}
	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
