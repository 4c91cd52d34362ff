package speech

import (
	"context"
	"errors"
	"fmt"
)

// Synthesizer turns text into audio with a provider-specific voice.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text, voiceID string) (*Audio, error)
}

// Audio is a synthesized clip.
type Audio struct {
	Data      []byte
	Extension string // without dot, e.g. "mp3"
	MimeType  string
}

// Common speech errors
var (
	// ErrEmptyText is returned before any provider call when there is
	// nothing to speak.
	ErrEmptyText = errors.New("text to synthesize is empty")

	// ErrMissingCredential indicates the provider has no API key.
	ErrMissingCredential = errors.New("missing TTS credential")

	// ErrTimeout indicates a provider task did not finish in time.
	ErrTimeout = errors.New("speech synthesis timed out")

	// ErrUnknownProvider indicates a voice names a provider that is not registered.
	ErrUnknownProvider = errors.New("unknown TTS provider")

	// ErrEmptyAudio indicates the provider returned no audio bytes.
	ErrEmptyAudio = errors.New("provider returned empty audio")
)

// ErrorCode identifies the kind of provider failure.
type ErrorCode string

const (
	ErrorCodeTransport ErrorCode = "TRANSPORT"
	ErrorCodeStatus    ErrorCode = "HTTP_STATUS"
	ErrorCodeEngine    ErrorCode = "ENGINE_FAILURE"
	ErrorCodeTimeout   ErrorCode = "TIMEOUT"
)

// Error is a provider failure with context.
type Error struct {
	Code     ErrorCode
	Provider string
	Status   int
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s", e.Provider, e.Code)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (%d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether another attempt could succeed. Empty text,
// missing credentials, unknown providers, an exhausted polling or command
// timeout and context cancellation are never retried; everything else is
// treated as a transport failure.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrEmptyText),
		errors.Is(err, ErrMissingCredential),
		errors.Is(err, ErrUnknownProvider),
		errors.Is(err, ErrTimeout),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	var serr *Error
	if errors.As(err, &serr) && serr.Code == ErrorCodeStatus {
		return serr.Status == 429 || serr.Status >= 500
	}
	return true
}

func mp3(data []byte) *Audio {
	return &Audio{Data: data, Extension: "mp3", MimeType: "audio/mpeg"}
}
