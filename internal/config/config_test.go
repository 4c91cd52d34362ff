package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/aistudio/internal/pipeline"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.Set("data_dir", t.TempDir())
	v.Set("output.dir", t.TempDir())
	return v
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("GROK_API_KEY", "")

	cfg, err := Load(newViper(t))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Story.MaxParts != 40 || cfg.Story.Delay != time.Second || cfg.Story.EndToken != "END" {
		t.Errorf("story = %+v", cfg.Story)
	}
	if cfg.Speech.Attempts != 3 || cfg.Speech.RetryDelay != 2*time.Second {
		t.Errorf("speech = %+v", cfg.Speech)
	}
	if cfg.Credentials.Google != "g-key" || cfg.Credentials.Grok != "" {
		t.Errorf("credentials = %+v", cfg.Credentials)
	}
	if cfg.Cache.Dir != filepath.Join(cfg.DataDir, "cache") {
		t.Errorf("cache dir = %q", cfg.Cache.Dir)
	}

	pc := cfg.PipelineConfig()
	if pc.Naming != pipeline.NamingFolder || pc.Loop.MaxParts != 40 || pc.OutputDir != cfg.Output.Dir {
		t.Errorf("pipeline config = %+v", pc)
	}
	if rc := cfg.RouterConfig(nil); rc.Credentials.Google != "g-key" || rc.RequestsPerMinute != 30 {
		t.Errorf("router config = %+v", rc)
	}
	if cc := cfg.CacheConfig(); cc.DiskCapacity != 500<<20 || cc.DiskPath != cfg.Cache.Dir {
		t.Errorf("cache config = %+v", cc)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	data := []byte("story:\n  max_parts: 5\n  delay: 250ms\noutput:\n  naming: uuid\n")
	if err := os.WriteFile(filepath.Join(dir, "aistudio.yml"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	Prepare(v, []string{dir})
	if err := v.ReadInConfig(); err != nil {
		t.Fatal(err)
	}
	v.Set("data_dir", t.TempDir())

	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Story.MaxParts != 5 || cfg.Story.Delay != 250*time.Millisecond {
		t.Errorf("story = %+v", cfg.Story)
	}
	if cfg.Output.Naming != "uuid" {
		t.Errorf("naming = %q", cfg.Output.Naming)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("AISTUDIO_STORY_MAX_PARTS", "7")
	v := viper.New()
	Prepare(v, nil)
	v.Set("data_dir", t.TempDir())

	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Story.MaxParts != 7 {
		t.Errorf("max parts = %d", cfg.Story.MaxParts)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
		want string
	}{
		{"naming", "output.naming", "random", "output.naming"},
		{"max parts", "story.max_parts", 0, "story.max_parts"},
		{"end token", "story.end_token", " ", "story.end_token"},
		{"attempts", "speech.attempts", 0, "speech.attempts"},
		{"compression", "cache.compression_level", 30, "cache.compression_level"},
		{"addr", "server.addr", "", "server.addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper(t)
			v.Set(tt.key, tt.val)
			_, err := Load(v)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	data := "GROK_API_KEY=from-file\nOPENAI_API_KEY=from-file\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("GROK_API_KEY", "")
	os.Unsetenv("GROK_API_KEY")

	n, err := LoadDotEnv(path)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("exported %d, want 1", n)
	}
	if got := os.Getenv("GROK_API_KEY"); got != "from-file" {
		t.Errorf("GROK_API_KEY = %q", got)
	}
	if got := os.Getenv("OPENAI_API_KEY"); got != "from-env" {
		t.Errorf("OPENAI_API_KEY = %q", got)
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	n, err := LoadDotEnv(filepath.Join(t.TempDir(), ".env"))
	if err != nil || n != 0 {
		t.Errorf("n=%d err=%v", n, err)
	}
}

func TestDefaultFileParses(t *testing.T) {
	var m map[string]any
	if err := yaml.Unmarshal([]byte(DefaultFile), &m); err != nil {
		t.Fatal(err)
	}
	if _, ok := m["speech"]; !ok {
		t.Error("speech section missing")
	}
}

func TestEffectiveMasksCredentials(t *testing.T) {
	v := newViper(t)
	eff := Effective(v, Credentials{Google: "abcdefghijkl"})
	creds := eff["credentials"].(map[string]string)
	if creds["GOOGLE_API_KEY"] != "abcd****" || creds["GROK_API_KEY"] != "(unset)" {
		t.Errorf("credentials = %v", creds)
	}
	out, err := yaml.Marshal(eff)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), "abcdefghijkl") {
		t.Error("raw key leaked")
	}
}
