package speech

import (
	"context"
	"strings"
	"time"
)

// EdgeProvider synthesizes speech with Microsoft Edge's free voices through
// the edge-tts command line tool (pip install edge-tts).
type EdgeProvider struct {
	binary  string
	rate    string
	timeout time.Duration
}

// EdgeConfig configures the Edge provider.
type EdgeConfig struct {
	// Binary is the edge-tts executable. Defaults to "edge-tts" on PATH.
	Binary string
	// Rate is passed as --rate, e.g. "+10%" or "-10%".
	Rate    string
	Timeout time.Duration
}

// NewEdgeProvider creates an Edge provider.
func NewEdgeProvider(cfg EdgeConfig) *EdgeProvider {
	p := &EdgeProvider{binary: cfg.Binary, rate: cfg.Rate, timeout: cfg.Timeout}
	if p.binary == "" {
		p.binary = "edge-tts"
	}
	if p.timeout <= 0 {
		p.timeout = 10 * time.Minute
	}
	return p
}

// Name returns "edge".
func (p *EdgeProvider) Name() string { return "edge" }

// Synthesize runs edge-tts and reads the MP3 it writes.
func (p *EdgeProvider) Synthesize(ctx context.Context, text, voiceID string) (*Audio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if voiceID == "" {
		voiceID = "en-US-ChristopherNeural"
	}

	// Long stories exceed argv limits, so the text goes through a file.
	audio, err := runFileTool(ctx, p.Name(), p.binary, p.timeout, text, "mp3", func(in, out string) []string {
		args := []string{"--voice", voiceID, "--file", in, "--write-media", out}
		if p.rate != "" {
			// Joined so a negative rate is not read as a flag.
			args = append(args, "--rate="+p.rate)
		}
		return args
	})
	if err != nil {
		return nil, err
	}
	return mp3(audio), nil
}
