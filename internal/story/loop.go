package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/aistudio/internal/clock"
	"github.com/dgnsrekt/aistudio/internal/llm"
)

// Loop defaults.
const (
	DefaultMaxParts        = 40
	DefaultContinueMessage = "Continue"
	DefaultDelay           = time.Second
)

// Loop asks a chat for successive parts of a story until the model emits
// the end token or MaxParts parts have been received.
type Loop struct {
	MaxParts        int
	EndToken        string
	Boilerplate     []string
	ContinueMessage string
	// Delay is waited before each continuation request.
	Delay time.Duration
	Clock clock.Clock
	// OnPart is called after each part with its 1-based number and cleaned text.
	OnPart func(n int, text string)
}

// Story is the accumulated output of a loop.
type Story struct {
	Text  string
	Parts int
	// Ended is true if the model emitted the end token.
	Ended bool
}

// NewLoop returns a loop with the default settings.
func NewLoop() Loop {
	return Loop{
		MaxParts:        DefaultMaxParts,
		EndToken:        DefaultEndToken,
		Boilerplate:     DefaultBoilerplate,
		ContinueMessage: DefaultContinueMessage,
		Delay:           DefaultDelay,
	}
}

func (l Loop) withDefaults() Loop {
	if l.MaxParts <= 0 {
		l.MaxParts = DefaultMaxParts
	}
	if l.EndToken == "" {
		l.EndToken = DefaultEndToken
	}
	if l.Boilerplate == nil {
		l.Boilerplate = DefaultBoilerplate
	}
	if l.ContinueMessage == "" {
		l.ContinueMessage = DefaultContinueMessage
	}
	if l.Delay < 0 {
		l.Delay = 0
	}
	l.Clock = clock.OrReal(l.Clock)
	return l
}

// Run sends prompt to chat and keeps requesting continuations.
//
// An empty reply to the first message returns llm.ErrEmptyResponse so the
// caller can fall back to the prompt. An empty reply to a later message
// ends the story with the parts received so far. Any other error is
// returned along with the partial story.
func (l Loop) Run(ctx context.Context, chat llm.Chat, prompt string) (Story, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Story{}, ErrEmptyInput
	}
	if chat == nil {
		return Story{}, llm.ErrMissingCredential
	}
	l = l.withDefaults()

	var (
		acc strings.Builder
		st  Story
		msg = prompt
	)
	for st.Parts < l.MaxParts {
		reply, err := chat.Send(ctx, msg)
		if err != nil {
			if errors.Is(err, llm.ErrEmptyResponse) && st.Parts > 0 {
				break
			}
			st.Text = acc.String()
			return st, fmt.Errorf("story part %d: %w", st.Parts+1, err)
		}

		cleaned, ended := Clean(reply, l.EndToken, l.Boilerplate)
		if cleaned == "" && !ended && st.Parts == 0 {
			return st, fmt.Errorf("story part 1: %w", llm.ErrEmptyResponse)
		}
		if cleaned == "" && !ended {
			break
		}

		st.Parts++
		if cleaned != "" {
			acc.WriteString(cleaned)
			acc.WriteString("\n")
		}
		if l.OnPart != nil {
			l.OnPart(st.Parts, cleaned)
		}

		if ended {
			st.Ended = true
			break
		}
		if st.Parts >= l.MaxParts {
			break
		}
		if err := l.Clock.Sleep(ctx, l.Delay); err != nil {
			st.Text = acc.String()
			return st, err
		}
		msg = l.ContinueMessage
	}

	st.Text = acc.String()
	return st, nil
}
