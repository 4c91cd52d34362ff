package speech

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/aistudio/internal/clock"
)

// flakySynth fails the first failures calls with err, then succeeds.
type flakySynth struct {
	failures int
	err      error
	calls    int
}

func (f *flakySynth) Name() string { return "flaky" }

func (f *flakySynth) Synthesize(_ context.Context, text, _ string) (*Audio, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return mp3([]byte("audio:" + text)), nil
}

func newTestRetrying(next Synthesizer, fake *clock.Fake) *Retrying {
	return &Retrying{
		Next:     next,
		Attempts: 3,
		Delay:    2 * time.Second,
		Clock:    fake,
		Logger:   log.New(io.Discard),
	}
}

func TestRetrying_FailsTwiceThenSucceeds(t *testing.T) {
	fake := clock.NewFake(time.Now())
	next := &flakySynth{failures: 2, err: &Error{Code: ErrorCodeTransport, Provider: "flaky"}}
	r := newTestRetrying(next, fake)

	audio, err := r.Synthesize(context.Background(), "hello", "v")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio.Data) != "audio:hello" {
		t.Errorf("data = %q", audio.Data)
	}
	if next.calls != 3 {
		t.Errorf("calls = %d, want 3", next.calls)
	}
	sleeps := fake.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 2*time.Second || sleeps[1] != 2*time.Second {
		t.Errorf("sleeps = %v", sleeps)
	}
}

func TestRetrying_GivesUpAfterBudget(t *testing.T) {
	boom := &Error{Code: ErrorCodeStatus, Provider: "flaky", Status: 503}
	next := &flakySynth{failures: 10, err: boom}
	r := newTestRetrying(next, clock.NewFake(time.Now()))

	_, err := r.Synthesize(context.Background(), "hello", "v")
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v", err)
	}
	if next.calls != 3 {
		t.Errorf("calls = %d, want 3", next.calls)
	}
}

func TestRetrying_DoesNotRetryPermanentErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"empty text", ErrEmptyText},
		{"missing key", ErrMissingCredential},
		{"cancelled", context.Canceled},
		{"bad request", &Error{Code: ErrorCodeStatus, Status: 400}},
		{"timeout", &Error{Code: ErrorCodeTimeout, Provider: "flaky", Cause: ErrTimeout}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &flakySynth{failures: 10, err: tt.err}
			r := newTestRetrying(next, clock.NewFake(time.Now()))
			if _, err := r.Synthesize(context.Background(), "x", "v"); !errors.Is(err, tt.err) {
				t.Errorf("error = %v", err)
			}
			if next.calls != 1 {
				t.Errorf("calls = %d, want 1", next.calls)
			}
		})
	}
}
