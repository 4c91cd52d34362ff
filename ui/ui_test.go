package ui

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgnsrekt/aistudio/internal/job"
	"github.com/dgnsrekt/aistudio/internal/settings"
	"github.com/dgnsrekt/aistudio/internal/worker"
)

type fakeSubmitter struct {
	mu   sync.Mutex
	jobs []job.Job
	err  error
}

func (f *fakeSubmitter) Submit(j job.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, j)
	return nil
}

func (f *fakeSubmitter) State() worker.State { return worker.State{} }

type fakeSaver struct {
	st    settings.Settings
	calls int
}

func (f *fakeSaver) Update(fn func(*settings.Settings)) (settings.Settings, error) {
	f.calls++
	fn(&f.st)
	return f.st, nil
}

func testConfig() Config {
	return Config{
		GlamourStyle:   "dark",
		GlamourEnabled: false,
		Models:         []string{"Gemini 2.5 Pro", "Gemini 2.5 Flash", "Grok 2"},
		Voices:         []string{"Christopher (Edge Free)", "Jenny (Edge Free)"},
		Model:          "Gemini 2.5 Flash",
		Voice:          "Jenny (Edge Free)",
		Mode:           "story",
	}
}

func newTestModel(t *testing.T) (*model, *fakeSubmitter, *fakeSaver) {
	t.Helper()
	sub := &fakeSubmitter{}
	saver := &fakeSaver{}
	hub := worker.NewHub(10)
	m := newModel(testConfig(), sub, hub, saver)
	m.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	t.Cleanup(m.quit)
	return m, sub, saver
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func TestSubmitRefusesEmptyText(t *testing.T) {
	m, sub, saver := newTestModel(t)
	m.text.SetValue("   ")

	m.Update(key(tea.KeyCtrlS))

	if len(sub.jobs) != 0 || saver.calls != 0 {
		t.Fatalf("job submitted: %v", sub.jobs)
	}
	if !m.statusIsError || !strings.Contains(m.statusMessage, "empty") {
		t.Errorf("status = %q (error=%v)", m.statusMessage, m.statusIsError)
	}
}

func TestSubmitQueuesJobAndSavesSettings(t *testing.T) {
	m, sub, saver := newTestModel(t)
	m.name.SetValue("Chapter 1")
	m.text.SetValue("Once upon a time")

	_, cmd := m.Update(key(tea.KeyCtrlS))
	if cmd == nil {
		t.Fatal("no command returned")
	}
	msg, ok := cmd().(submittedMsg)
	if !ok || msg.err != nil {
		t.Fatalf("msg = %#v", msg)
	}
	m.Update(msg)

	if len(sub.jobs) != 1 {
		t.Fatalf("submitted %d jobs", len(sub.jobs))
	}
	j := sub.jobs[0]
	if j.Mode != job.ModeStoryLoop || j.TargetName != "Chapter 1" || j.Model != "Gemini 2.5 Flash" || j.Voice != "Jenny (Edge Free)" {
		t.Errorf("job = %+v", j)
	}
	if j.Instruction != "" {
		t.Errorf("story job carries instruction %q", j.Instruction)
	}
	if saver.st.LastFilename != "Chapter 1" || saver.st.Mode != "story" {
		t.Errorf("settings = %+v", saver.st)
	}
	if !strings.Contains(m.statusMessage, "queued Chapter 1") {
		t.Errorf("status = %q", m.statusMessage)
	}
}

func TestSubmitErrorIsShown(t *testing.T) {
	m, sub, saver := newTestModel(t)
	sub.err = errors.New("queue is closed")
	m.text.SetValue("x")

	_, cmd := m.Update(key(tea.KeyCtrlS))
	m.Update(cmd())

	if saver.calls != 0 {
		t.Error("settings saved for a rejected job")
	}
	if !m.statusIsError || !strings.Contains(m.statusMessage, "queue is closed") {
		t.Errorf("status = %q", m.statusMessage)
	}
}

func TestRewriteModeSendsInstruction(t *testing.T) {
	m, sub, _ := newTestModel(t)
	m.Update(key(tea.KeyCtrlT))
	if m.mode != job.ModeRewrite {
		t.Fatalf("mode = %v", m.mode)
	}
	m.instruction.SetValue("Make it shorter")
	m.text.SetValue("Long text")

	_, cmd := m.Update(key(tea.KeyCtrlS))
	cmd()

	if len(sub.jobs) != 1 || sub.jobs[0].Mode != job.ModeRewrite || sub.jobs[0].Instruction != "Make it shorter" {
		t.Errorf("jobs = %+v", sub.jobs)
	}
}

func TestChooserKeys(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.setFocus(fieldModel)

	m.Update(key(tea.KeyRight))
	if got := m.models.value(); got != "Grok 2" {
		t.Errorf("model = %q", got)
	}
	m.Update(key(tea.KeyRight))
	if got := m.models.value(); got != "Gemini 2.5 Pro" {
		t.Errorf("model after wrap = %q", got)
	}
	m.Update(key(tea.KeyLeft))
	if got := m.models.value(); got != "Grok 2" {
		t.Errorf("model after left = %q", got)
	}
}

func TestFocusSkipsInstructionInStoryMode(t *testing.T) {
	if got := nextField(fieldName, job.ModeStoryLoop, false); got != fieldModel {
		t.Errorf("story: next after name = %v", got)
	}
	if got := nextField(fieldName, job.ModeRewrite, false); got != fieldInstruction {
		t.Errorf("rewrite: next after name = %v", got)
	}
	if got := nextField(fieldModel, job.ModeStoryLoop, true); got != fieldName {
		t.Errorf("story: prev before model = %v", got)
	}
	if got := nextField(fieldText, job.ModeRewrite, false); got != fieldName {
		t.Errorf("wrap = %v", got)
	}
}

func TestEventsUpdateStatus(t *testing.T) {
	m, _, _ := newTestModel(t)

	m.Update(eventMsg(worker.Event{Seq: 1, Type: worker.EventStarted, JobID: "a", TargetName: "Tale"}))
	if !m.status.processing || !strings.Contains(m.statusBarView(), "Tale") {
		t.Errorf("status bar = %q", m.statusBarView())
	}

	m.Update(eventMsg(worker.Event{Seq: 2, Type: worker.EventSucceeded, JobID: "a", TargetName: "Tale",
		Result: &job.Result{AudioPath: "/out/Tale/audio.mp3", TextPath: "/out/Tale/story.txt", AudioBytes: 2048}}))
	if m.status.processing {
		t.Error("still processing")
	}
	if got := m.status.lastText(); got != "/out/Tale/story.txt" {
		t.Errorf("lastText = %q", got)
	}
	if v := m.View(); !strings.Contains(v, "audio.mp3") {
		t.Error("recent list does not show the result")
	}
}

func TestSettingsChangedUpdatesChoosers(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.Update(SettingsChangedMsg(settings.Settings{Model: "Grok 2", Voice: "Christopher (Edge Free)"}))
	if m.models.value() != "Grok 2" || m.voices.value() != "Christopher (Edge Free)" {
		t.Errorf("model=%q voice=%q", m.models.value(), m.voices.value())
	}
}

func TestSubmitUsesCurrentOutputDir(t *testing.T) {
	m, sub, _ := newTestModel(t)
	m.cfg.OutputDir = "/data/first"
	m.Update(SettingsChangedMsg(settings.Settings{Model: "Grok 2", DownloadPath: "/data/moved"}))
	if !strings.Contains(m.View(), "/data/moved") {
		t.Error("header does not show the new output folder")
	}

	m.text.SetValue("Once upon a time")
	_, cmd := m.Update(key(tea.KeyCtrlS))
	if cmd == nil {
		t.Fatal("no command returned")
	}
	m.Update(cmd())

	if len(sub.jobs) != 1 {
		t.Fatalf("submitted %d jobs", len(sub.jobs))
	}
	if got := sub.jobs[0].OutputDir; got != "/data/moved" {
		t.Errorf("OutputDir = %q", got)
	}

	m.Update(SettingsChangedMsg(settings.Settings{Model: "Grok 2"}))
	if m.cfg.OutputDir != "/data/moved" {
		t.Errorf("empty download path cleared the folder: %q", m.cfg.OutputDir)
	}
}

func TestPreviewWithoutStory(t *testing.T) {
	m, _, _ := newTestModel(t)
	_, cmd := m.Update(key(tea.KeyCtrlO))
	msg := cmd()
	if _, ok := msg.(errMsg); !ok {
		t.Fatalf("msg = %#v", msg)
	}
	m.Update(msg)
	if m.state != stateForm || !m.statusIsError {
		t.Errorf("state = %v, status = %q", m.state, m.statusMessage)
	}
}

func TestNewChooserKeepsUnknownRememberedValue(t *testing.T) {
	c := newChooser([]string{"a", "b"}, "legacy")
	if c.value() != "legacy" || len(c.options) != 3 {
		t.Errorf("chooser = %+v", c)
	}
	c = newChooser([]string{"a", "b"}, "B")
	if c.value() != "b" {
		t.Errorf("value = %q", c.value())
	}
	c = newChooser(nil, "")
	if c.value() != "" {
		t.Errorf("empty chooser value = %q", c.value())
	}
}
