package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential indicates no API key is configured for the provider.
	ErrMissingCredential = errors.New("missing API credential")

	// ErrEmptyResponse indicates the provider returned no usable text,
	// including responses withheld by a safety filter.
	ErrEmptyResponse = errors.New("empty LLM response")
)

// ErrorCode identifies the kind of provider failure.
type ErrorCode string

const (
	ErrorCodeTransport ErrorCode = "TRANSPORT"
	ErrorCodeStatus    ErrorCode = "HTTP_STATUS"
	ErrorCodeDecode    ErrorCode = "DECODE"
	ErrorCodeBlocked   ErrorCode = "BLOCKED"
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

// IsFallback reports whether err should make the caller skip the LLM step
// and use the source text unchanged.
func IsFallback(err error) bool {
	return errors.Is(err, ErrMissingCredential) || errors.Is(err, ErrEmptyResponse)
}
