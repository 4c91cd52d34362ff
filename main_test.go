package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgnsrekt/aistudio/internal/config"
	"github.com/dgnsrekt/aistudio/internal/worker"
)

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{"serve", "generate", "studio", "voices", "failed", "config", "man"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered: %v", name, err)
		}
	}
}

func TestFirstSet(t *testing.T) {
	if got := firstSet("", "  ", "b", "c"); got != "b" {
		t.Errorf("firstSet = %q", got)
	}
	if got := firstSet("", ""); got != "" {
		t.Errorf("firstSet = %q", got)
	}
}

func TestReadGenerateText(t *testing.T) {
	got, err := readGenerateText([]string{"a", "dragon"})
	if err != nil || got != "a dragon" {
		t.Fatalf("args: %q, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "in.txt")
	if err := os.WriteFile(path, []byte("from file"), 0o600); err != nil {
		t.Fatal(err)
	}
	genFile = path
	defer func() { genFile = "" }()

	got, err = readGenerateText(nil)
	if err != nil || got != "from file" {
		t.Fatalf("file: %q, %v", got, err)
	}
}

func TestPrintEvents(t *testing.T) {
	events := make(chan worker.Event, 4)
	events <- worker.Event{Type: worker.EventProgress, JobID: "other", Message: "not mine"}
	events <- worker.Event{Type: worker.EventProgress, JobID: "j1", Message: "writing part 1"}
	events <- worker.Event{Type: worker.EventFailed, JobID: "j1", Error: "boom"}
	events <- worker.Event{Type: worker.EventProgress, JobID: "j1", Message: "after"}

	var buf bytes.Buffer
	printEvents(&buf, events, "j1")
	out := buf.String()
	if !strings.Contains(out, "writing part 1") || !strings.Contains(out, "boom") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "not mine") || strings.Contains(out, "after") {
		t.Errorf("printed events past the job or for other jobs: %q", out)
	}
}

func TestEnsureConfigFile(t *testing.T) {
	old := configFile
	defer func() { configFile = old }()

	configFile = filepath.Join(t.TempDir(), "nested", "aistudio.yml")
	if err := ensureConfigFile(); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != config.DefaultFile {
		t.Error("config file does not hold the default template")
	}

	configFile = filepath.Join(t.TempDir(), "aistudio.toml")
	if err := ensureConfigFile(); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
