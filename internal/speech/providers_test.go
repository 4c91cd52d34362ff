package speech

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/aistudio/internal/clock"
)

func TestOpenAIProvider_Synthesize(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte("ID3mp3"))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk", APIBase: srv.URL})
	audio, err := p.Synthesize(context.Background(), "Hello", "nova")
	if err != nil {
		t.Fatal(err)
	}
	if string(audio.Data) != "ID3mp3" || audio.Extension != "mp3" {
		t.Errorf("audio = %+v", audio)
	}
	if got["model"] != "tts-1" || got["voice"] != "nova" || got["input"] != "Hello" {
		t.Errorf("request = %v", got)
	}
}

func TestOpenAIProvider_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk", APIBase: srv.URL})
	_, err := p.Synthesize(context.Background(), "Hello", "")
	var serr *Error
	if !errors.As(err, &serr) || serr.Status != http.StatusTooManyRequests {
		t.Fatalf("error = %v", err)
	}
	if !Retryable(err) {
		t.Error("429 should be retryable")
	}

	if _, err := NewOpenAIProvider(OpenAIConfig{}).Synthesize(context.Background(), "x", ""); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("missing key error = %v", err)
	}
	if _, err := p.Synthesize(context.Background(), "  ", ""); !errors.Is(err, ErrEmptyText) {
		t.Errorf("empty text error = %v", err)
	}
}

func newGenAIServer(t *testing.T, pendingPolls int32, task *genAIProTaskRequest) *httptest.Server {
	t.Helper()
	var polls atomic.Int32
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("POST /labs/task", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gk" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(task)
		_, _ = w.Write([]byte(`{"task_id":"t-1"}`))
	})
	mux.HandleFunc("GET /labs/task/t-1", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) <= pendingPolls {
			_, _ = w.Write([]byte(`{"task_id":"t-1","status":"processing"}`))
			return
		}
		_, _ = w.Write([]byte(`{"task_id":"t-1","result":"` + srv.URL + `/files/t-1.mp3"}`))
	})
	mux.HandleFunc("GET /files/t-1.mp3", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("genai-audio"))
	})
	mux.HandleFunc("GET /labs/voices", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page_size") != "100" {
			t.Errorf("page_size = %q", r.URL.Query().Get("page_size"))
		}
		_, _ = w.Write([]byte(`{"voices":[{"name":"Anna","voice_id":"a1"},{"name":"","voice_id":"b2"}]}`))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGenAIProProvider_PollsUntilResult(t *testing.T) {
	var task genAIProTaskRequest
	srv := newGenAIServer(t, 2, &task)
	fake := clock.NewFake(time.Now())

	p := NewGenAIProProvider(GenAIProConfig{
		APIKey:  "gk",
		BaseURL: srv.URL,
		Clock:   fake,
		Logger:  log.New(io.Discard),
	})

	long := strings.Repeat("ж", genAIProMaxInput+50)
	audio, err := p.Synthesize(context.Background(), long, "voice-9")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio.Data) != "genai-audio" {
		t.Errorf("data = %q", audio.Data)
	}
	if n := len([]rune(task.Input)); n != genAIProMaxInput {
		t.Errorf("input runes = %d, want %d", n, genAIProMaxInput)
	}
	if task.VoiceID != "voice-9" || task.ModelID != genAIProModel || task.Speed != 1 || task.Style != 0.5 {
		t.Errorf("task = %+v", task)
	}
	if n := len(fake.Sleeps()); n != 3 {
		t.Errorf("polls = %d, want 3", n)
	}
}

func TestGenAIProProvider_Timeout(t *testing.T) {
	var task genAIProTaskRequest
	srv := newGenAIServer(t, 1000, &task)

	p := NewGenAIProProvider(GenAIProConfig{
		APIKey:       "gk",
		BaseURL:      srv.URL,
		PollAttempts: 4,
		Clock:        clock.NewFake(time.Now()),
		Logger:       log.New(io.Discard),
	})
	_, err := p.Synthesize(context.Background(), "text", "v")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
}

func TestGenAIProProvider_TimeoutCreatesOneTask(t *testing.T) {
	var tasks, polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /labs/task", func(w http.ResponseWriter, r *http.Request) {
		tasks.Add(1)
		_, _ = w.Write([]byte(`{"task_id":"t-1"}`))
	})
	mux.HandleFunc("GET /labs/task/t-1", func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		_, _ = w.Write([]byte(`{"task_id":"t-1","status":"processing"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fake := clock.NewFake(time.Now())
	p := NewGenAIProProvider(GenAIProConfig{
		APIKey:       "gk",
		BaseURL:      srv.URL,
		PollAttempts: 5,
		Clock:        fake,
		Logger:       log.New(io.Discard),
	})
	r := &Retrying{Next: p, Attempts: 3, Delay: time.Second, Clock: fake, Logger: log.New(io.Discard)}

	_, err := r.Synthesize(context.Background(), "text", "v")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if n := tasks.Load(); n != 1 {
		t.Errorf("tasks created = %d, want 1", n)
	}
	if n := polls.Load(); n != 5 {
		t.Errorf("polls = %d, want 5", n)
	}
}

func TestGenAIProProvider_VoicesAndCatalog(t *testing.T) {
	var task genAIProTaskRequest
	srv := newGenAIServer(t, 0, &task)
	p := NewGenAIProProvider(GenAIProConfig{APIKey: "gk", BaseURL: srv.URL})

	voices, err := p.Voices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	c := NewCatalog(DefaultVoices()...)
	before := c.Len()
	if n := c.AddGenAIPro(voices); n != 2 {
		t.Errorf("added %d, want 2", n)
	}
	if c.Len() != before+2 {
		t.Errorf("Len = %d", c.Len())
	}
	v, err := c.Resolve("Anna (GenAI)")
	if err != nil || v.Spec() != "genaipro|a1" {
		t.Errorf("Resolve = %+v, %v", v, err)
	}
	if _, err := c.Resolve("b2 (GenAI)"); err != nil {
		t.Errorf("unnamed voice not labelled by id: %v", err)
	}
}

func TestEdgeProvider_RunsCLI(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "edge-tts")
	// Writes the voice and text to the --write-media path.
	body := `#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    --voice) voice="$2"; shift 2 ;;
    --file) file="$2"; shift 2 ;;
    --write-media) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
printf '%s:' "$voice" > "$out"
cat "$file" >> "$out"
`
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	p := NewEdgeProvider(EdgeConfig{Binary: script})
	audio, err := p.Synthesize(context.Background(), "Привіт", "uk-UA-OstapNeural")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio.Data) != "uk-UA-OstapNeural:Привіт" {
		t.Errorf("data = %q", audio.Data)
	}
}

func TestEdgeProvider_NegativeRateIsOneArgument(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}
	script := filepath.Join(t.TempDir(), "edge-tts")
	// Writes each argument on its own line to the --write-media path.
	body := `#!/bin/sh
prev=""
for a in "$@"; do
  if [ "$prev" = "--write-media" ]; then out="$a"; fi
  prev="$a"
done
printf '%s\n' "$@" > "$out"
`
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	p := NewEdgeProvider(EdgeConfig{Binary: script, Rate: "-10%"})
	audio, err := p.Synthesize(context.Background(), "slow down", "en-US-GuyNeural")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	args := strings.Split(strings.TrimSpace(string(audio.Data)), "\n")
	found := false
	for _, a := range args {
		if a == "-10%" {
			t.Errorf("rate passed as a separate argument: %q", args)
		}
		if a == "--rate=-10%" {
			found = true
		}
	}
	if !found {
		t.Errorf("args = %q", args)
	}
}

func TestEdgeProvider_CommandFailure(t *testing.T) {
	p := NewEdgeProvider(EdgeConfig{Binary: filepath.Join(t.TempDir(), "missing-edge-tts")})
	_, err := p.Synthesize(context.Background(), "text", "")
	var serr *Error
	if !errors.As(err, &serr) || serr.Code != ErrorCodeEngine {
		t.Fatalf("error = %v", err)
	}
}

func writeStub(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGTTSProvider_RunsCLI(t *testing.T) {
	script := writeStub(t, "gtts-cli", `
while [ $# -gt 0 ]; do
  case "$1" in
    -l) lang="$2"; shift 2 ;;
    --file) file="$2"; shift 2 ;;
    --output) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
printf '%s:' "$lang" > "$out"
cat "$file" >> "$out"
`)
	p := NewGTTSProvider(GTTSConfig{Binary: script, RequestsPerMinute: 600})
	audio, err := p.Synthesize(context.Background(), "Bonjour", "fr")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio.Data) != "fr:Bonjour" || audio.Extension != "mp3" {
		t.Errorf("audio = %q %s", audio.Data, audio.Extension)
	}
}

func TestGTTSProvider_EmptyOutput(t *testing.T) {
	script := writeStub(t, "gtts-cli", "exit 0\n")
	p := NewGTTSProvider(GTTSConfig{Binary: script})
	_, err := p.Synthesize(context.Background(), "text", "")
	var serr *Error
	if !errors.As(err, &serr) || serr.Code != ErrorCodeEngine {
		t.Fatalf("error = %v", err)
	}
}

func TestPiperProvider_RunsCLI(t *testing.T) {
	models := t.TempDir()
	if err := os.WriteFile(filepath.Join(models, "en_US-test.onnx"), []byte("model"), 0o600); err != nil {
		t.Fatal(err)
	}
	script := writeStub(t, "piper", `
while [ $# -gt 0 ]; do
  case "$1" in
    --model) model="$2"; shift 2 ;;
    --input_file) file="$2"; shift 2 ;;
    --output_file) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
printf 'RIFF%s:' "$(basename "$model")" > "$out"
cat "$file" >> "$out"
`)
	p := NewPiperProvider(PiperConfig{Binary: script, ModelsDir: models})
	audio, err := p.Synthesize(context.Background(), "Hello", "en_US-test")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio.Data) != "RIFFen_US-test.onnx:Hello" || audio.Extension != "wav" {
		t.Errorf("audio = %q %s", audio.Data, audio.Extension)
	}
}

func TestPiperProvider_MissingModel(t *testing.T) {
	p := NewPiperProvider(PiperConfig{ModelsDir: t.TempDir()})
	if _, err := p.Synthesize(context.Background(), "Hello", "nope"); err == nil {
		t.Fatal("expected error for missing model")
	}
	if got := p.Model("/abs/voice.onnx"); got != "/abs/voice.onnx" {
		t.Errorf("Model = %q", got)
	}
}
