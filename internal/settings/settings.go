// Package settings persists the user's last choices (model, voice, output
// folder, last target name) between runs.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// FileName is the settings file name inside the data directory.
const FileName = "settings.json"

// Settings is the flat record of remembered choices.
type Settings struct {
	Model        string `json:"model"`
	Voice        string `json:"voice"`
	Mode         string `json:"mode,omitempty"`
	Instruction  string `json:"instruction,omitempty"`
	DownloadPath string `json:"download_path"`
	LastFilename string `json:"last_filename"`
}

// Defaults returns the settings used on first launch.
func Defaults() Settings {
	return Settings{
		Model: "Gemini 2.5 Pro",
		Voice: "Christopher (Edge Free)",
		Mode:  "story",
	}
}

// Store reads and writes settings as JSON in a single file.
type Store struct {
	path   string
	logger *log.Logger
	mu     sync.Mutex
}

// NewStore creates a store backed by path.
func NewStore(path string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default().WithPrefix("settings")
	}
	return &Store{path: path, logger: logger}
}

// Path returns the settings file path.
func (s *Store) Path() string { return s.path }

// Load reads the settings. A missing file yields the defaults; a corrupt
// file yields the defaults and a warning. Empty fields are filled from the
// defaults.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		return Defaults(), fmt.Errorf("read settings: %w", err)
	}

	var st Settings
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn("Ignoring corrupt settings file", "path", s.path, "error", err)
		return Defaults(), nil
	}
	return withDefaults(st), nil
}

// Save writes the settings, creating parent directories.
func (s *Store) Save(st Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Update loads the settings, applies fn and saves the result.
func (s *Store) Update(fn func(*Settings)) (Settings, error) {
	st, err := s.Load()
	if err != nil {
		return st, err
	}
	fn(&st)
	return st, s.Save(st)
}

// Watch calls onChange with freshly loaded settings whenever the file is
// written, created or renamed into place, until ctx is done. The parent
// directory is watched so editors that replace the file are noticed.
func (s *Store) Watch(ctx context.Context, onChange func(Settings)) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.logger.Debug("Watching settings", "path", s.path)

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			s.logger.Debug("Settings changed", "event", event.Op)
			st, err := s.Load()
			if err != nil {
				s.logger.Warn("Could not reload settings", "error", err)
				continue
			}
			onChange(st)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Debug("Watcher error", "error", err)
		}
	}
}

func withDefaults(st Settings) Settings {
	d := Defaults()
	if st.Model == "" {
		st.Model = d.Model
	}
	if st.Voice == "" {
		st.Voice = d.Voice
	}
	if st.Mode == "" {
		st.Mode = d.Mode
	}
	return st
}
