package worker

import (
	"sync"
	"time"

	"github.com/dgnsrekt/aistudio/internal/job"
)

// EventType classifies messages emitted by the worker.
type EventType string

const (
	EventQueued    EventType = "queued"
	EventStarted   EventType = "started"
	EventProgress  EventType = "progress"
	EventSucceeded EventType = "succeeded"
	EventFailed    EventType = "failed"
	EventIdle      EventType = "idle"
)

// Terminal reports whether the event ends a job's lifecycle.
func (t EventType) Terminal() bool {
	return t == EventSucceeded || t == EventFailed
}

// Event is a sequenced status message.
type Event struct {
	Seq        int64       `json:"seq"`
	Time       time.Time   `json:"time"`
	Type       EventType   `json:"type"`
	JobID      string      `json:"jobId,omitempty"`
	TargetName string      `json:"targetName,omitempty"`
	Message    string      `json:"message,omitempty"`
	Error      string      `json:"error,omitempty"`
	Result     *job.Result `json:"result,omitempty"`
	QueueDepth int         `json:"queueDepth"`
}

// Hub fans events out to subscribers and keeps a bounded history for
// clients that poll instead of subscribing.
type Hub struct {
	mu         sync.RWMutex
	nextSeq    int64
	maxHistory int
	history    []Event
	subs       map[int]chan Event
	nextSubID  int
	dropped    int64
	now        func() time.Time
}

// NewHub creates a hub that remembers up to maxHistory events.
func NewHub(maxHistory int) *Hub {
	if maxHistory <= 0 {
		maxHistory = 500
	}
	return &Hub{
		maxHistory: maxHistory,
		history:    make([]Event, 0, maxHistory),
		subs:       make(map[int]chan Event),
		now:        time.Now,
	}
}

// Publish assigns a sequence number and timestamp and delivers the event.
// Delivery never blocks: a subscriber whose buffer is full misses the event.
func (h *Hub) Publish(e Event) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextSeq++
	e.Seq = h.nextSeq
	if e.Time.IsZero() {
		e.Time = h.now()
	}

	h.history = append(h.history, e)
	if len(h.history) > h.maxHistory {
		trim := len(h.history) - h.maxHistory
		h.history = append([]Event(nil), h.history[trim:]...)
	}

	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.dropped++
		}
	}
	return e
}

// Subscribe registers a subscriber with the given buffer size. The returned
// cancel function unregisters it and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.nextSubID
	h.nextSubID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Since returns remembered events with sequence strictly greater than seq.
func (h *Hub) Since(seq int64) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Event, 0, len(h.history))
	for _, e := range h.history {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (h *Hub) Dropped() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}
