package ui

import (
	"errors"
	"fmt"
	"os"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/aistudio/internal/job"
	"github.com/dgnsrekt/aistudio/internal/settings"
	"github.com/dgnsrekt/aistudio/internal/worker"
)

// Submitter accepts jobs. worker.Worker implements it.
type Submitter interface {
	Submit(j job.Job) error
	State() worker.State
}

// EventSource streams worker events. worker.Hub implements it.
type EventSource interface {
	Subscribe(buffer int) (<-chan worker.Event, func())
}

// SettingsSaver remembers the form choices. settings.Store implements it.
type SettingsSaver interface {
	Update(fn func(*settings.Settings)) (settings.Settings, error)
}

// SettingsChangedMsg tells the studio the settings file was edited outside
// the program.
type SettingsChangedMsg settings.Settings

type (
	errMsg          struct{ err error }
	eventMsg        worker.Event
	eventsClosedMsg struct{}
	submittedMsg    struct {
		job job.Job
		err error
	}
	clipboardMsg struct {
		text string
		err  error
	}
	previewRenderedMsg      string
	statusMessageTimeoutMsg struct{}
)

func (e errMsg) Error() string { return e.err.Error() }

// waitForEvent delivers the next worker event as a message.
func waitForEvent(ch <-chan worker.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(e)
	}
}

// submitCmd enqueues j and remembers the choices that produced it. A
// failure to save settings is logged; the job is still queued.
func submitCmd(sub Submitter, saver SettingsSaver, j job.Job) tea.Cmd {
	return func() tea.Msg {
		if err := sub.Submit(j); err != nil {
			return submittedMsg{job: j, err: err}
		}
		if saver != nil {
			if _, err := saver.Update(func(st *settings.Settings) {
				st.Mode = j.Mode.String()
				st.Model = j.Model
				st.Voice = j.Voice
				st.Instruction = j.Instruction
				st.LastFilename = j.TargetName
			}); err != nil {
				log.Warn("Could not save settings", "error", err)
			}
		}
		return submittedMsg{job: j}
	}
}

func pasteCmd() tea.Msg {
	s, err := clipboard.ReadAll()
	return clipboardMsg{text: s, err: err}
}

// renderPreviewCmd renders a text file for the preview pane.
func renderPreviewCmd(cfg Config, path string, width int) tea.Cmd {
	return func() tea.Msg {
		if path == "" {
			return errMsg{errors.New("no story to preview yet")}
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return errMsg{fmt.Errorf("unable to read %s: %w", path, err)}
		}
		out, err := glamourRender(cfg, string(b), width)
		if err != nil {
			log.Error("error rendering with Glamour", "error", err)
			return errMsg{err}
		}
		return previewRenderedMsg(out)
	}
}
