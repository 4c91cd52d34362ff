package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/aistudio/internal/clock"
	"github.com/dgnsrekt/aistudio/internal/job"
	"github.com/dgnsrekt/aistudio/internal/llm"
	"github.com/dgnsrekt/aistudio/internal/speech"
	"github.com/dgnsrekt/aistudio/internal/story"
	"github.com/dustin/go-humanize"
)

// Models returns an LLM client for a model name. llm.Router implements it.
type Models interface {
	For(model string) (llm.Client, error)
}

// Speaker synthesizes text with a voice. speech.Registry implements it.
type Speaker interface {
	Speak(ctx context.Context, text string, voice speech.Voice) (*speech.Audio, error)
}

// Voices resolves a voice name. speech.Catalog implements it.
type Voices interface {
	Resolve(query string) (speech.Voice, error)
}

// Config controls output and defaults for jobs that leave fields empty.
type Config struct {
	OutputDir string
	Naming    Naming

	DefaultModel string
	DefaultVoice string

	// StripMarkdown converts model markdown to plain text before synthesis.
	// The text file always keeps the original.
	StripMarkdown bool

	// Loop is the story loop template. Its OnPart is set per job.
	Loop story.Loop
}

// Pipeline runs jobs. It holds no per-job state and is only ever invoked
// by a single worker.
type Pipeline struct {
	cfg     Config
	models  Models
	speaker Speaker
	voices  Voices
	clock   clock.Clock
	logger  *log.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for output timestamps and the story loop.
func WithClock(c clock.Clock) Option { return func(p *Pipeline) { p.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// New creates a pipeline.
func New(cfg Config, models Models, speaker Speaker, voices Voices, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, models: models, speaker: speaker, voices: voices}
	for _, opt := range opts {
		opt(p)
	}
	p.clock = clock.OrReal(p.clock)
	if p.logger == nil {
		p.logger = log.Default().WithPrefix("pipeline")
	}
	if p.cfg.Naming == "" {
		p.cfg.Naming = NamingFolder
	}
	if p.cfg.OutputDir == "" {
		p.cfg.OutputDir = "."
	}
	return p
}

// Run processes j. report receives status lines and may be nil.
func (p *Pipeline) Run(ctx context.Context, j job.Job, report func(string)) (job.Result, error) {
	if report == nil {
		report = func(string) {}
	}

	if err := j.Validate(); err != nil {
		return job.Result{}, stageErr(StageValidate, j.ID, err)
	}

	voiceName := firstNonEmpty(j.Voice, p.cfg.DefaultVoice)
	voice, err := p.voices.Resolve(voiceName)
	if err != nil {
		return job.Result{}, stageErr(StageVoice, j.ID, err)
	}

	text, parts, fellBack, err := p.produceText(ctx, j, report)
	if err != nil {
		return job.Result{}, stageErr(StageText, j.ID, err)
	}

	out, err := planLayout(firstNonEmpty(j.OutputDir, p.cfg.OutputDir), p.cfg.Naming, j.TargetName, j.ID, p.clock.Now())
	if err != nil {
		return job.Result{}, stageErr(StageOutput, j.ID, err)
	}
	if err := os.WriteFile(out.TextPath, []byte(text), 0o644); err != nil {
		return job.Result{}, stageErr(StageOutput, j.ID, fmt.Errorf("write text: %w", err))
	}

	spoken := text
	if p.cfg.StripMarkdown {
		spoken = story.StripMarkdown(text)
	}
	if strings.TrimSpace(spoken) == "" {
		return job.Result{}, stageErr(StageSpeech, j.ID, speech.ErrEmptyText)
	}

	report(fmt.Sprintf("synthesizing %s of text with %s", humanize.Bytes(uint64(len(spoken))), voice.Label))
	audio, err := p.speaker.Speak(ctx, spoken, voice)
	if err != nil {
		return job.Result{}, stageErr(StageSpeech, j.ID, err)
	}

	audioPath := out.audioPath(audio.Extension)
	if err := os.WriteFile(audioPath, audio.Data, 0o644); err != nil {
		return job.Result{}, stageErr(StageOutput, j.ID, fmt.Errorf("write audio: %w", err))
	}
	report(fmt.Sprintf("saved %s (%s)", audioPath, humanize.Bytes(uint64(len(audio.Data)))))

	return job.Result{
		Folder:     out.Folder,
		TextPath:   out.TextPath,
		AudioPath:  audioPath,
		AudioBytes: int64(len(audio.Data)),
		Parts:      parts,
		FellBack:   fellBack,
	}, nil
}

// produceText returns the text to speak. Missing credentials and empty
// model output fall back to the source text. A story that fails after at
// least one part keeps the parts it has.
func (p *Pipeline) produceText(ctx context.Context, j job.Job, report func(string)) (string, int, bool, error) {
	model := llm.ResolveModel(firstNonEmpty(j.Model, p.cfg.DefaultModel))

	client, err := p.models.For(model)
	if err != nil {
		if llm.IsFallback(err) {
			return p.fallback(j, report, err)
		}
		return "", 0, false, err
	}

	switch j.Mode {
	case job.ModeStoryLoop:
		loop := p.cfg.Loop
		if loop.Clock == nil {
			loop.Clock = p.clock
		}
		loop.OnPart = func(n int, part string) {
			report(fmt.Sprintf("part %d received (%s)", n, humanize.Bytes(uint64(len(part)))))
		}
		report(fmt.Sprintf("writing story with %s", client.Model()))

		st, err := loop.Run(ctx, client.StartChat(), j.SourceText)
		switch {
		case err == nil:
		case llm.IsFallback(err):
			return p.fallback(j, report, err)
		case st.Parts > 0 && strings.TrimSpace(st.Text) != "":
			report(fmt.Sprintf("story stopped after part %d: %v", st.Parts, err))
			p.logger.Warn("Story loop interrupted", "job", j.ShortID(), "parts", st.Parts, "error", err)
		default:
			return "", 0, false, err
		}
		if strings.TrimSpace(st.Text) == "" {
			return p.fallback(j, report, llm.ErrEmptyResponse)
		}
		return st.Text, st.Parts, false, nil

	default:
		report(fmt.Sprintf("rewriting with %s", client.Model()))
		out, err := story.Rewrite(ctx, client, j.SourceText, j.Instruction, story.PromptStyle(j.PromptStyle))
		if err != nil {
			if llm.IsFallback(err) {
				return p.fallback(j, report, err)
			}
			return "", 0, false, err
		}
		return out, 1, false, nil
	}
}

func (p *Pipeline) fallback(j job.Job, report func(string), reason error) (string, int, bool, error) {
	msg := "model returned no text, using the original text"
	if errors.Is(reason, llm.ErrMissingCredential) {
		msg = "no API key, using the original text"
	}
	report(msg)
	p.logger.Warn("LLM fallback", "job", j.ShortID(), "reason", reason)
	return j.SourceText, 0, true, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
