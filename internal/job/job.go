// Package job defines the unit of work submitted to the generation queue.
package job

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mode selects how the source text is turned into the text that is spoken.
type Mode int

const (
	// ModeRewrite sends the source text through a single LLM rewrite.
	ModeRewrite Mode = iota
	// ModeStoryLoop treats the source text as a prompt and keeps asking the
	// LLM for the next part until it signals the end.
	ModeStoryLoop
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeRewrite:
		return "rewrite"
	case ModeStoryLoop:
		return "story"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name as accepted on the command line and over HTTP.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rewrite", "one-shot":
		return ModeRewrite, nil
	case "story", "loop", "storyloop", "story-loop":
		return ModeStoryLoop, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

var (
	// ErrEmptySource is returned when a job has no source text or prompt.
	ErrEmptySource = errors.New("source text is empty")

	// ErrUnknownMode is returned for an unrecognised mode name.
	ErrUnknownMode = errors.New("unknown job mode")
)

// Job is one user request to transform text and synthesize audio from it.
// It is treated as immutable once submitted. OutputDir overrides the
// configured output directory when set; PromptStyle names the rewrite
// prompt framing and is empty for the default.
type Job struct {
	ID          string    `json:"id"`
	Mode        Mode      `json:"mode"`
	SourceText  string    `json:"sourceText"`
	Instruction string    `json:"instruction,omitempty"`
	TargetName  string    `json:"targetName"`
	Model       string    `json:"model,omitempty"`
	Voice       string    `json:"voice,omitempty"`
	OutputDir   string    `json:"outputDir,omitempty"`
	PromptStyle string    `json:"promptStyle,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Options carries the optional fields for New.
type Options struct {
	Instruction string
	Model       string
	Voice       string
	OutputDir   string
	PromptStyle string
	Now         func() time.Time
}

// New builds a validated job with a fresh ID. Source text and instruction
// are trimmed of surrounding whitespace.
func New(mode Mode, source, target string, opts Options) (Job, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	j := Job{
		ID:          uuid.NewString(),
		Mode:        mode,
		SourceText:  strings.TrimSpace(source),
		Instruction: strings.TrimSpace(opts.Instruction),
		TargetName:  strings.TrimSpace(target),
		Model:       opts.Model,
		Voice:       opts.Voice,
		OutputDir:   strings.TrimSpace(opts.OutputDir),
		PromptStyle: opts.PromptStyle,
		SubmittedAt: now(),
	}
	if err := j.Validate(); err != nil {
		return Job{}, err
	}
	return j, nil
}

// Validate checks the submission invariants.
func (j Job) Validate() error {
	if strings.TrimSpace(j.SourceText) == "" {
		return ErrEmptySource
	}
	if j.Mode != ModeRewrite && j.Mode != ModeStoryLoop {
		return fmt.Errorf("%w: %d", ErrUnknownMode, int(j.Mode))
	}
	return nil
}

// ShortID returns the first eight characters of the ID for display.
func (j Job) ShortID() string {
	if len(j.ID) > 8 {
		return j.ID[:8]
	}
	return j.ID
}

// Result describes the artifacts produced for a successfully processed job.
type Result struct {
	Folder     string `json:"folder,omitempty"`
	TextPath   string `json:"textPath,omitempty"`
	AudioPath  string `json:"audioPath"`
	AudioBytes int64  `json:"audioBytes"`
	Parts      int    `json:"parts,omitempty"`
	// FellBack is set when the LLM step was skipped and the source text
	// was spoken as-is.
	FellBack bool `json:"fellBack,omitempty"`
}
