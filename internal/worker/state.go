package worker

import (
	"time"

	"github.com/dgnsrekt/aistudio/internal/job"
)

// Status is the logical state of the worker loop.
type Status int

const (
	// StatusIdle means no job is in flight.
	StatusIdle Status = iota
	// StatusProcessing means exactly one job is in flight.
	StatusProcessing
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is a snapshot of the worker. Processing is true iff Current is set.
type State struct {
	Status     Status    `json:"status"`
	Processing bool      `json:"processing"`
	Current    *job.Job  `json:"current,omitempty"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
	QueueDepth int       `json:"queueDepth"`
	Processed  int64     `json:"processed"`
	Failed     int64     `json:"failed"`
}
