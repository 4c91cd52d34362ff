package worker

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgnsrekt/aistudio/internal/job"
)

func TestFileDeadLettersMissingFileIsEmpty(t *testing.T) {
	d := NewFileDeadLetters(filepath.Join(t.TempDir(), "none", "failed.jsonl"))
	got, err := d.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestFileDeadLettersRecordAndTake(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "failed.jsonl")
	d := NewFileDeadLetters(path)

	a := job.Job{ID: "a", SourceText: "first", Mode: job.ModeStoryLoop}
	b := job.Job{ID: "b", SourceText: "second"}
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, j := range []job.Job{a, b} {
		if err := d.Record(Failure{Job: j, Error: "boom", FailedAt: at}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	all, err := d.List()
	if err != nil || len(all) != 2 {
		t.Fatalf("List = %v, %v", all, err)
	}
	if all[0].Job.Mode != job.ModeStoryLoop {
		t.Errorf("mode not preserved: %v", all[0].Job.Mode)
	}

	got, err := d.Take("a")
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if got.Job.SourceText != "first" {
		t.Errorf("took %+v", got)
	}

	if _, err := d.Take("a"); !errors.Is(err, ErrFailureNotFound) {
		t.Errorf("second Take error = %v", err)
	}

	rest, _ := d.List()
	if len(rest) != 1 || rest[0].Job.ID != "b" {
		t.Errorf("remaining = %+v", rest)
	}
}

func TestFileDeadLettersSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.jsonl")
	content := "{not json}\n" + `{"job":{"id":"ok","mode":"rewrite","sourceText":"x","targetName":"","submittedAt":"2025-01-01T00:00:00Z"},"error":"e","failedAt":"2025-01-01T00:00:00Z"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := NewFileDeadLetters(path).List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Job.ID != "ok" {
		t.Errorf("got %+v", got)
	}
}
