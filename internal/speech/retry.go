package speech

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/aistudio/internal/clock"
)

// Retry defaults.
const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 2 * time.Second
)

// Retrying retries a Synthesizer a fixed number of times with a fixed
// delay between attempts.
type Retrying struct {
	Next     Synthesizer
	Attempts int
	Delay    time.Duration
	Clock    clock.Clock
	Logger   *log.Logger
}

// NewRetrying wraps next with the default budget.
func NewRetrying(next Synthesizer) *Retrying {
	return &Retrying{Next: next, Attempts: DefaultAttempts, Delay: DefaultRetryDelay}
}

// Name returns the wrapped provider's name.
func (r *Retrying) Name() string { return r.Next.Name() }

// Synthesize calls the wrapped provider until it succeeds, returns a
// non-retryable error, or the attempts are used up.
func (r *Retrying) Synthesize(ctx context.Context, text, voiceID string) (*Audio, error) {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	clk := clock.OrReal(r.Clock)
	logger := r.Logger
	if logger == nil {
		logger = log.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := clk.Sleep(ctx, r.Delay); err != nil {
				return nil, err
			}
		}

		audio, err := r.Next.Synthesize(ctx, text, voiceID)
		if err == nil {
			return audio, nil
		}
		lastErr = err
		if !Retryable(err) {
			return nil, err
		}
		logger.Warn("Synthesis attempt failed", "provider", r.Next.Name(), "attempt", attempt, "of", attempts, "error", err)
	}
	return nil, lastErr
}
