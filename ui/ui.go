// Package ui provides the interactive studio: a form for submitting jobs
// and a live view of the queue.
package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/aistudio/internal/job"
	"github.com/dgnsrekt/aistudio/internal/worker"
)

const (
	statusMessageTimeout = time.Second * 3
	ellipsis             = "…"
)

// state is the top-level application state.
type state int

const (
	stateForm state = iota
	statePreview
)

func (s state) String() string {
	return map[state]string{
		stateForm:    "showing form",
		statePreview: "showing preview",
	}[s]
}

type model struct {
	cfg    Config
	sub    Submitter
	saver  SettingsSaver
	source EventSource

	events       <-chan worker.Event
	cancelEvents func()

	width  int
	height int
	state  state

	mode        job.Mode
	focus       field
	name        textinput.Model
	instruction textinput.Model
	text        textarea.Model
	models      chooser
	voices      chooser

	spinner spinner.Model
	status  jobStatus
	preview viewport.Model

	statusMessage      string
	statusIsError      bool
	statusMessageTimer *time.Timer
	showHelp           bool

	now func() time.Time
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, sub Submitter, source EventSource, saver SettingsSaver) *tea.Program {
	log.Debug("Starting studio", "glamour", cfg.GlamourEnabled, "voices", len(cfg.Voices))

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	m := newModel(cfg, sub, source, saver)
	return tea.NewProgram(m, opts...)
}

func newModel(cfg Config, sub Submitter, source EventSource, saver SettingsSaver) *model {
	cfg.GlamourStyle = resolveStyle(cfg.GlamourStyle)

	name := textinput.New()
	name.Prompt = ""
	name.Placeholder = "audio"
	name.CharLimit = 100
	name.SetValue(cfg.LastFilename)

	instruction := textinput.New()
	instruction.Prompt = ""
	instruction.Placeholder = "Rewrite this text."
	instruction.SetValue(cfg.Instruction)

	text := textarea.New()
	text.Placeholder = "Paste or type the source text (ctrl+p pastes the clipboard)"
	text.ShowLineNumbers = false
	text.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(fuchsia)

	mode := job.ModeStoryLoop
	if parsed, err := job.ParseMode(cfg.Mode); err == nil && cfg.Mode != "" {
		mode = parsed
	}

	m := &model{
		cfg:         cfg,
		sub:         sub,
		saver:       saver,
		source:      source,
		mode:        mode,
		focus:       fieldText,
		name:        name,
		instruction: instruction,
		text:        text,
		models:      newChooser(cfg.Models, cfg.Model),
		voices:      newChooser(cfg.Voices, cfg.Voice),
		spinner:     sp,
		preview:     viewport.New(0, 0),
		now:         time.Now,
	}
	if source != nil {
		m.events, m.cancelEvents = source.Subscribe(64)
	}
	if sub != nil {
		st := sub.State()
		m.status.queueDepth = st.QueueDepth
		m.status.processing = st.Processing
		if st.Current != nil {
			m.status.current = displayName(st.Current.TargetName)
			m.status.message = "in progress"
		}
	}
	m.text.Focus()
	return m
}

func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.spinner.Tick}
	if m.events != nil {
		cmds = append(cmds, waitForEvent(m.events))
	}
	return tea.Batch(cmds...)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.setSize()

	case eventMsg:
		m.status.apply(worker.Event(msg))
		cmds = append(cmds, waitForEvent(m.events))

	case eventsClosedMsg:
		m.events = nil

	case submittedMsg:
		if msg.err != nil {
			cmds = append(cmds, m.showStatusMessage("could not queue: "+msg.err.Error(), true))
			break
		}
		cmds = append(cmds, m.showStatusMessage(fmt.Sprintf("queued %s (%s)", displayName(msg.job.TargetName), msg.job.ShortID()), false))

	case clipboardMsg:
		if msg.err != nil {
			cmds = append(cmds, m.showStatusMessage("clipboard: "+msg.err.Error(), true))
			break
		}
		if strings.TrimSpace(msg.text) == "" {
			cmds = append(cmds, m.showStatusMessage("clipboard is empty", true))
			break
		}
		m.text.SetValue(msg.text)
		cmds = append(cmds, m.showStatusMessage("pasted from clipboard", false))

	case SettingsChangedMsg:
		m.models.set(msg.Model)
		m.voices.set(msg.Voice)
		if msg.DownloadPath != "" {
			m.cfg.OutputDir = msg.DownloadPath
		}

	case previewRenderedMsg:
		m.preview.SetContent(string(msg))
		m.preview.GotoTop()
		m.state = statePreview

	case errMsg:
		cmds = append(cmds, m.showStatusMessage(msg.Error(), true))

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		m.statusIsError = false

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	cmds = append(cmds, m.updateFocused(msg))
	return m, tea.Batch(cmds...)
}

// handleKey processes keys that are not plain text input.
func (m *model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		m.quit()
		return tea.Quit, true
	case "ctrl+z":
		return tea.Suspend, true
	}

	if m.state == statePreview {
		switch msg.String() {
		case "esc", "q", "ctrl+o":
			m.state = stateForm
			return nil, true
		}
		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)
		return cmd, true
	}

	switch msg.String() {
	case "tab":
		return m.setFocus(nextField(m.focus, m.mode, false)), true
	case "shift+tab":
		return m.setFocus(nextField(m.focus, m.mode, true)), true
	case "ctrl+t":
		m.toggleMode()
		return nil, true
	case "ctrl+s":
		return m.submit(), true
	case "ctrl+p":
		return pasteCmd, true
	case "ctrl+o":
		return renderPreviewCmd(m.cfg, m.status.lastText(), max(0, m.width-2)), true
	case "ctrl+l":
		m.text.Reset()
		return nil, true
	case "f1":
		m.showHelp = !m.showHelp
		m.setSize()
		return nil, true
	}

	if m.focus == fieldModel || m.focus == fieldVoice {
		c := &m.models
		if m.focus == fieldVoice {
			c = &m.voices
		}
		switch msg.String() {
		case "right", "l", "down", "j", " ":
			c.next()
			return nil, true
		case "left", "h", "up", "k":
			c.prev()
			return nil, true
		case "enter":
			return m.setFocus(nextField(m.focus, m.mode, false)), true
		}
		return nil, true
	}
	if msg.String() == "enter" && m.focus != fieldText {
		return m.setFocus(nextField(m.focus, m.mode, false)), true
	}
	return nil, false
}

// updateFocused passes msg to the focused input.
func (m *model) updateFocused(msg tea.Msg) tea.Cmd {
	if m.state != stateForm {
		return nil
	}
	var cmd tea.Cmd
	switch m.focus {
	case fieldName:
		m.name, cmd = m.name.Update(msg)
	case fieldInstruction:
		m.instruction, cmd = m.instruction.Update(msg)
	case fieldText:
		m.text, cmd = m.text.Update(msg)
	}
	return cmd
}

func (m *model) setFocus(f field) tea.Cmd {
	m.focus = f
	m.name.Blur()
	m.instruction.Blur()
	m.text.Blur()
	switch f {
	case fieldName:
		return m.name.Focus()
	case fieldInstruction:
		return m.instruction.Focus()
	case fieldText:
		return m.text.Focus()
	}
	return nil
}

func (m *model) toggleMode() {
	if m.mode == job.ModeStoryLoop {
		m.mode = job.ModeRewrite
	} else {
		m.mode = job.ModeStoryLoop
		if m.focus == fieldInstruction {
			m.setFocus(fieldText)
		}
	}
	m.setSize()
}

// submit builds a job from the form and queues it. Empty text is refused
// here so nothing reaches the queue.
func (m *model) submit() tea.Cmd {
	if strings.TrimSpace(m.text.Value()) == "" {
		return m.showStatusMessage("text is empty", true)
	}
	if m.sub == nil {
		return m.showStatusMessage("no worker", true)
	}
	instruction := ""
	if m.mode == job.ModeRewrite {
		instruction = m.instruction.Value()
	}
	j, err := job.New(m.mode, m.text.Value(), m.name.Value(), job.Options{
		Instruction: instruction,
		Model:       m.models.value(),
		Voice:       m.voices.value(),
		OutputDir:   m.cfg.OutputDir,
		Now:         m.now,
	})
	if err != nil {
		return m.showStatusMessage(err.Error(), true)
	}
	return submitCmd(m.sub, m.saver, j)
}

func (m *model) quit() {
	if m.cancelEvents != nil {
		m.cancelEvents()
	}
}

func (m *model) showStatusMessage(msg string, isErr bool) tea.Cmd {
	m.statusMessage = msg
	m.statusIsError = isErr
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	timer := m.statusMessageTimer
	return func() tea.Msg {
		<-timer.C
		return statusMessageTimeoutMsg{}
	}
}

// fixedLines is the height used by everything except the text area.
func (m *model) fixedLines() int {
	n := 2 + // header, blank
		4 + // name, instruction, model, voice rows (instruction may be blank)
		1 + // text label
		2 + // blank, recent heading
		maxRecent +
		1 // status bar
	if m.showHelp {
		n += 3
	}
	return n
}

func (m *model) setSize() {
	inputWidth := max(10, m.width-16)
	m.name.Width = inputWidth
	m.instruction.Width = inputWidth
	m.text.SetWidth(max(10, m.width-2))
	m.text.SetHeight(max(3, m.height-m.fixedLines()))
	m.preview.Width = m.width
	m.preview.Height = max(1, m.height-1)
}

func (m *model) View() string {
	if m.state == statePreview {
		return m.preview.View() + "\n" + m.statusBarView()
	}

	var b strings.Builder
	b.WriteString(m.headerView() + "\n\n")

	b.WriteString(m.labelView(fieldName) + m.name.View() + "\n")
	if m.mode == job.ModeRewrite {
		b.WriteString(m.labelView(fieldInstruction) + m.instruction.View() + "\n")
	} else {
		b.WriteString(m.labelView(fieldInstruction) + faintStyle.Render("not used in story mode") + "\n")
	}
	b.WriteString(m.labelView(fieldModel) + m.chooserView(m.models, fieldModel) + "\n")
	b.WriteString(m.labelView(fieldVoice) + m.chooserView(m.voices, fieldVoice) + "\n")
	b.WriteString(m.labelView(fieldText) + "\n")
	b.WriteString(m.text.View() + "\n\n")

	b.WriteString(faintStyle.Render("Recent") + "\n")
	b.WriteString(m.status.recentView(m.width, m.now()) + "\n")

	b.WriteString(m.statusBarView())
	if m.showHelp {
		b.WriteString("\n" + m.helpView())
	}
	return b.String()
}

func (m *model) headerView() string {
	tabs := []string{}
	for _, mode := range []job.Mode{job.ModeStoryLoop, job.ModeRewrite} {
		label := "Story"
		if mode == job.ModeRewrite {
			label = "Rewrite"
		}
		if mode == m.mode {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}
	left := logoView() + " " + strings.Join(tabs, "")
	out := faintStyle.Render(truncate.StringWithTail(m.cfg.OutputDir, uint(max(0, m.width-ansi.PrintableRuneWidth(left)-2)), ellipsis)) //nolint:gosec
	pad := max(1, m.width-ansi.PrintableRuneWidth(left)-ansi.PrintableRuneWidth(out))
	return left + strings.Repeat(" ", pad) + out
}

func (m *model) labelView(f field) string {
	if f == m.focus {
		return focusedLabelStyle.Render(fieldLabels[f])
	}
	return labelStyle.Render(fieldLabels[f])
}

func (m *model) chooserView(c chooser, f field) string {
	v := c.value()
	if v == "" {
		v = "(none)"
	}
	if f == m.focus {
		return focusedLabelStyle.Render("‹ ") + v + focusedLabelStyle.Render(" ›")
	}
	return "  " + v
}

func (m *model) statusBarView() string {
	logo := logoView()
	helpNote := statusBarHelpStyle(" f1 help ")

	var indicator string
	if m.status.processing {
		indicator = " " + m.spinner.View()
	}

	note := m.status.compact()
	style := statusBarNoteStyle
	if m.statusMessage != "" {
		note = m.statusMessage
		style = statusBarMessageStyle
		if m.statusIsError {
			style = statusBarErrorStyle
		}
	}
	avail := max(0, m.width-
		ansi.PrintableRuneWidth(logo)-
		ansi.PrintableRuneWidth(indicator)-
		ansi.PrintableRuneWidth(helpNote))
	note = truncate.StringWithTail(" "+note+" ", uint(avail), ellipsis) //nolint:gosec
	padding := max(0, avail-ansi.PrintableRuneWidth(note))

	return logo + statusBarNoteStyle(indicator) + style(note+strings.Repeat(" ", padding)) + helpNote
}

func (m *model) helpView() string {
	if m.state == statePreview {
		return helpViewStyle("esc back  ↑/↓ scroll")
	}
	return helpViewStyle(strings.Join([]string{
		"tab/shift+tab move  ←/→ choose model or voice  ctrl+t story/rewrite",
		"ctrl+s submit  ctrl+p paste clipboard  ctrl+l clear text",
		"ctrl+o preview last story  ctrl+c quit",
	}, "\n"))
}

// ErrNoTerminal is returned when the studio is started without a TTY.
var ErrNoTerminal = errors.New("the studio needs an interactive terminal")
