package speech

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// GTTSProvider speaks through Google Translate's voice using gtts-cli
// (pip install gtts). The voice ID is a language code such as "en".
type GTTSProvider struct {
	binary  string
	slow    bool
	timeout time.Duration
	limiter *rate.Limiter
}

// GTTSConfig configures the gTTS provider.
type GTTSConfig struct {
	Binary string
	Slow   bool
	// RequestsPerMinute throttles calls so Google does not block us.
	RequestsPerMinute int
	Timeout           time.Duration
}

// NewGTTSProvider creates a gTTS provider.
func NewGTTSProvider(cfg GTTSConfig) *GTTSProvider {
	p := &GTTSProvider{binary: cfg.Binary, slow: cfg.Slow, timeout: cfg.Timeout}
	if p.binary == "" {
		p.binary = "gtts-cli"
	}
	if p.timeout <= 0 {
		p.timeout = 10 * time.Minute
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 50
	}
	p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	return p
}

// Name returns "gtts".
func (p *GTTSProvider) Name() string { return "gtts" }

// Synthesize runs gtts-cli and reads the MP3 it writes.
func (p *GTTSProvider) Synthesize(ctx context.Context, text, voiceID string) (*Audio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if voiceID == "" {
		voiceID = "en"
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	args := []string{"-l", voiceID}
	if p.slow {
		args = append(args, "--slow")
	}
	data, err := runFileTool(ctx, p.Name(), p.binary, p.timeout, text, "mp3", func(in, out string) []string {
		return append(args, "--file", in, "--output", out)
	})
	if err != nil {
		return nil, err
	}
	return mp3(data), nil
}

// PiperProvider runs the offline piper engine. The voice ID is a model
// file name, resolved against the models directory when it is not a path.
type PiperProvider struct {
	binary    string
	modelsDir string
	timeout   time.Duration
}

// PiperConfig configures the Piper provider.
type PiperConfig struct {
	Binary    string
	ModelsDir string
	Timeout   time.Duration
}

// NewPiperProvider creates a Piper provider.
func NewPiperProvider(cfg PiperConfig) *PiperProvider {
	p := &PiperProvider{binary: cfg.Binary, modelsDir: cfg.ModelsDir, timeout: cfg.Timeout}
	if p.binary == "" {
		p.binary = "piper"
	}
	if p.timeout <= 0 {
		p.timeout = 10 * time.Minute
	}
	return p
}

// Name returns "piper".
func (p *PiperProvider) Name() string { return "piper" }

// Model returns the model path for voiceID.
func (p *PiperProvider) Model(voiceID string) string {
	model := voiceID
	if filepath.Ext(model) == "" {
		model += ".onnx"
	}
	if !filepath.IsAbs(model) && p.modelsDir != "" {
		model = filepath.Join(p.modelsDir, model)
	}
	return model
}

// Synthesize pipes text into piper and reads the WAV it writes.
func (p *PiperProvider) Synthesize(ctx context.Context, text, voiceID string) (*Audio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if voiceID == "" {
		return nil, &Error{Code: ErrorCodeEngine, Provider: p.Name(), Message: "no model selected", Cause: ErrUnknownVoice}
	}
	model := p.Model(voiceID)
	if _, err := os.Stat(model); err != nil {
		return nil, &Error{Code: ErrorCodeEngine, Provider: p.Name(), Message: "model not found", Cause: err}
	}

	data, err := runFileTool(ctx, p.Name(), p.binary, p.timeout, text, "wav", func(in, out string) []string {
		return []string{"--model", model, "--input_file", in, "--output_file", out}
	})
	if err != nil {
		return nil, err
	}
	return &Audio{Data: data, Extension: "wav", MimeType: "audio/wav"}, nil
}

// runFileTool writes text to a temp file, runs binary with the args built
// from the input and output paths, and returns the output file contents.
func runFileTool(ctx context.Context, provider, binary string, timeout time.Duration, text, ext string, argv func(in, out string) []string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "aistudio-"+provider+"-")
	if err != nil {
		return nil, fmt.Errorf("create %s workspace: %w", provider, err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	id := uuid.NewString()
	in := filepath.Join(dir, id+".txt")
	out := filepath.Join(dir, id+"."+ext)
	if err := os.WriteFile(in, []byte(text), 0o600); err != nil {
		return nil, fmt.Errorf("write %s input: %w", provider, err)
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, binary, argv(in, out)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if cmdCtx.Err() != nil {
			return nil, &Error{Code: ErrorCodeTimeout, Provider: provider, Cause: ErrTimeout}
		}
		return nil, &Error{Code: ErrorCodeEngine, Provider: provider, Message: strings.TrimSpace(string(output)), Cause: err}
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, &Error{Code: ErrorCodeEngine, Provider: provider, Message: "read output", Cause: err}
	}
	if len(data) == 0 {
		return nil, &Error{Code: ErrorCodeEngine, Provider: provider, Cause: ErrEmptyAudio}
	}
	return data, nil
}
