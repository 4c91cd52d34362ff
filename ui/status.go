package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/aistudio/internal/worker"
)

const maxRecent = 5

// recentJob is a finished job shown in the results list.
type recentJob struct {
	ID       string
	Target   string
	Audio    string
	Text     string
	Bytes    int64
	Err      string
	FellBack bool
	Finished time.Time
}

// jobStatus folds worker events into what the status line and results
// list show.
type jobStatus struct {
	processing bool
	current    string // target name of the job in flight
	message    string
	queueDepth int
	lastSeq    int64
	recent     []recentJob
}

// apply updates the status from one event. Events already seen are
// ignored so that replayed history does not double count.
func (s *jobStatus) apply(e worker.Event) {
	if e.Seq != 0 && e.Seq <= s.lastSeq {
		return
	}
	s.lastSeq = e.Seq
	s.queueDepth = e.QueueDepth

	switch e.Type {
	case worker.EventQueued:
		if !s.processing {
			s.message = e.Message
		}
	case worker.EventStarted:
		s.processing = true
		s.current = displayName(e.TargetName)
		s.message = "starting"
	case worker.EventProgress:
		s.message = e.Message
	case worker.EventSucceeded:
		s.processing = false
		r := recentJob{ID: e.JobID, Target: displayName(e.TargetName), Finished: e.Time}
		if e.Result != nil {
			r.Audio = e.Result.AudioPath
			r.Text = e.Result.TextPath
			r.Bytes = e.Result.AudioBytes
			r.FellBack = e.Result.FellBack
		}
		s.push(r)
		s.message = "saved " + filepath.Base(r.Audio)
	case worker.EventFailed:
		s.processing = false
		s.push(recentJob{ID: e.JobID, Target: displayName(e.TargetName), Err: e.Error, Finished: e.Time})
		s.message = "failed: " + e.Error
	case worker.EventIdle:
		s.processing = false
		s.current = ""
	}
}

func (s *jobStatus) push(r recentJob) {
	s.recent = append([]recentJob{r}, s.recent...)
	if len(s.recent) > maxRecent {
		s.recent = s.recent[:maxRecent]
	}
}

// lastText returns the text file of the most recent successful job.
func (s *jobStatus) lastText() string {
	for _, r := range s.recent {
		if r.Err == "" && r.Text != "" {
			return r.Text
		}
	}
	return ""
}

// compact returns the one-line status for the status bar.
func (s *jobStatus) compact() string {
	var b strings.Builder
	if s.processing {
		fmt.Fprintf(&b, "%s: %s", s.current, s.message)
	} else if s.message != "" {
		b.WriteString(s.message)
	} else {
		b.WriteString("ready")
	}
	if s.queueDepth > 0 {
		fmt.Fprintf(&b, " · %d queued", s.queueDepth)
	}
	return b.String()
}

// recentView lists finished jobs, newest first, fitting width.
func (s *jobStatus) recentView(width int, now time.Time) string {
	if len(s.recent) == 0 {
		return faintStyle.Render("No jobs finished yet.")
	}
	nameWidth := 0
	for _, r := range s.recent {
		nameWidth = max(nameWidth, runewidth.StringWidth(r.Target))
	}
	nameWidth = min(nameWidth, 24)

	lines := make([]string, 0, len(s.recent))
	for _, r := range s.recent {
		name := runewidth.FillRight(runewidth.Truncate(r.Target, nameWidth, ellipsis), nameWidth)
		when := humanize.RelTime(r.Finished, now, "ago", "from now")

		var line string
		if r.Err != "" {
			line = errStyle.Render("✗ ") + name + "  " + r.Err
		} else {
			detail := filepath.Base(r.Audio) + " " + humanize.Bytes(uint64(max(r.Bytes, 0))) //nolint:gosec
			if r.FellBack {
				detail += " (source text)"
			}
			line = okStyle.Render("✓ ") + name + "  " + detail
		}
		line = truncate.StringWithTail(line, uint(max(0, width-len(when)-2)), ellipsis) //nolint:gosec
		lines = append(lines, line+"  "+faintStyle.Render(when))
	}
	return strings.Join(lines, "\n")
}

func displayName(target string) string {
	if strings.TrimSpace(target) == "" {
		return "audio"
	}
	return target
}
