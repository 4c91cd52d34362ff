package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/aistudio/internal/job"
	"github.com/dgnsrekt/aistudio/internal/worker"
)

func TestJobStatusIgnoresReplayedEvents(t *testing.T) {
	var s jobStatus
	ev := worker.Event{Seq: 3, Type: worker.EventFailed, JobID: "x", Error: "boom"}
	s.apply(ev)
	s.apply(ev)
	if len(s.recent) != 1 {
		t.Errorf("recent = %d, want 1", len(s.recent))
	}
}

func TestJobStatusKeepsLatestFive(t *testing.T) {
	var s jobStatus
	for i := 1; i <= 8; i++ {
		s.apply(worker.Event{Seq: int64(i), Type: worker.EventSucceeded, TargetName: string(rune('a' + i)),
			Result: &job.Result{AudioPath: "x.mp3"}})
	}
	if len(s.recent) != maxRecent {
		t.Fatalf("recent = %d", len(s.recent))
	}
	if s.recent[0].Target != string(rune('a'+8)) {
		t.Errorf("newest = %q", s.recent[0].Target)
	}
}

func TestJobStatusCompact(t *testing.T) {
	var s jobStatus
	if got := s.compact(); got != "ready" {
		t.Errorf("idle = %q", got)
	}
	s.apply(worker.Event{Seq: 1, Type: worker.EventStarted, TargetName: ""})
	s.apply(worker.Event{Seq: 2, Type: worker.EventProgress, Message: "part 3", QueueDepth: 2})
	if got := s.compact(); got != "audio: part 3 · 2 queued" {
		t.Errorf("busy = %q", got)
	}
	s.apply(worker.Event{Seq: 3, Type: worker.EventFailed, Error: "no audio"})
	if got := s.compact(); !strings.HasPrefix(got, "failed: no audio") {
		t.Errorf("failed = %q", got)
	}
}

func TestRecentViewMarksFallback(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var s jobStatus
	s.apply(worker.Event{Seq: 1, Type: worker.EventSucceeded, TargetName: "plain", Time: now.Add(-time.Minute),
		Result: &job.Result{AudioPath: "/o/plain.mp3", AudioBytes: 1000, FellBack: true}})
	v := s.recentView(120, now)
	if !strings.Contains(v, "plain.mp3") || !strings.Contains(v, "source text") || !strings.Contains(v, "ago") {
		t.Errorf("view = %q", v)
	}
}
