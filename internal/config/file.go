package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// ConfigDirs lists the directories searched for aistudio.yml, highest
// priority first.
func ConfigDirs() ([]string, error) {
	dirs, err := gap.NewScope(gap.User, AppName).ConfigDirs()
	if err != nil {
		return nil, fmt.Errorf("find configuration directory: %w", err)
	}
	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, AppName)}, dirs...)
	}
	if c := os.Getenv("AISTUDIO_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	return dirs, nil
}

// Prepare points v at the config file search path and environment. It does
// not read anything.
func Prepare(v *viper.Viper, dirs []string) {
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	v.SetConfigName(AppName)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

// LoadDotEnv exports the variables in a .env file into the process
// environment, leaving variables that are already set untouched. A missing
// file is not an error. It returns the number of variables exported.
func LoadDotEnv(path string) (int, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}

	ev := viper.New()
	ev.SetConfigFile(path)
	ev.SetConfigType("env")
	if err := ev.ReadInConfig(); err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	n := 0
	for _, key := range ev.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, ev.GetString(key)); err != nil {
			return n, fmt.Errorf("set %s: %w", name, err)
		}
		n++
	}
	return n, nil
}

// Effective returns the settings v resolved to, with credentials masked,
// for display.
func Effective(v *viper.Viper, creds Credentials) map[string]any {
	all := v.AllSettings()
	all["credentials"] = map[string]string{
		"GOOGLE_API_KEY":   mask(creds.Google),
		"GROK_API_KEY":     mask(creds.Grok),
		"OPENAI_API_KEY":   mask(creds.OpenAI),
		"GENAIPRO_API_KEY": mask(creds.GenAIPro),
	}
	return all
}

func mask(s string) string {
	switch {
	case s == "":
		return "(unset)"
	case len(s) <= 8:
		return "****"
	default:
		return s[:4] + "****"
	}
}

// DefaultFile is written when the config command finds no config file.
const DefaultFile = `# aistudio configuration
# Credentials are read from the environment or a .env file:
# GOOGLE_API_KEY, GROK_API_KEY, OPENAI_API_KEY, GENAIPRO_API_KEY

# enable debug logging
debug: false
# where settings.json, failed.jsonl and the audio cache live
# data_dir: "~/.local/share/aistudio"

output:
  # folder for generated text and audio (default: working directory)
  dir: ""
  # folder, timestamp or uuid
  naming: "folder"
  # speak plain text instead of markdown
  strip_markdown: true

llm:
  default_model: "gemini-2.5-flash"
  requests_per_minute: 30
  timeout: "5m"

story:
  max_parts: 40
  end_token: "END"
  continue_message: "Continue"
  delay: "1s"

speech:
  default_voice: "Christopher (Edge Free)"
  attempts: 3
  retry_delay: "2s"
  timeout: "2m"
  edge:
    binary: "edge-tts"
    # rate: "+10%"
  # Voices for these are given as "gtts|en" or "piper|en_US-lessac-medium".
  gtts:
    binary: "gtts-cli"
    requests_per_minute: 50
  piper:
    binary: "piper"
    # models_dir: "~/.local/share/piper"
  openai:
    model: "tts-1"
  genaipro:
    poll_interval: "2s"
    poll_attempts: 600

cache:
  enabled: true
  memory_entries: 32
  memory_max_item_mb: 10
  disk_capacity_mb: 500
  compression_level: 3
  ttl: "168h"
  cleanup_interval: "1h"

server:
  addr: "127.0.0.1:5000"
  history_size: 500
`
