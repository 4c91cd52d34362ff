// Package server exposes the job queue over HTTP: a small web form, a JSON
// submission endpoint, artifact downloads and a live status stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/dgnsrekt/aistudio/internal/job"
	"github.com/dgnsrekt/aistudio/internal/settings"
	"github.com/dgnsrekt/aistudio/internal/speech"
	"github.com/dgnsrekt/aistudio/internal/story"
	"github.com/dgnsrekt/aistudio/internal/worker"
)

// VoiceLister provides the selectable voices.
type VoiceLister interface {
	List() []speech.Voice
}

// SettingsStore remembers the last submission.
type SettingsStore interface {
	Update(fn func(*settings.Settings)) (settings.Settings, error)
}

// Config configures the server.
type Config struct {
	Addr      string
	OutputDir string
	// Settings, when set, records each submission's choices.
	Settings SettingsStore
	// WaitTimeout bounds ?wait=true requests. Zero waits for as long as the
	// client stays connected.
	WaitTimeout time.Duration
}

// Server is the HTTP front end of a worker.
type Server struct {
	cfg    Config
	worker *worker.Worker
	voices VoiceLister
	dead   worker.DeadLetters
	logger *log.Logger

	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu       sync.RWMutex
	defaults settings.Settings
}

// New creates a server. dead may be nil, in which case the failed-job
// endpoints report an empty list.
func New(cfg Config, w *worker.Worker, voices VoiceLister, dead worker.DeadLetters, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default().WithPrefix("server")
	}
	s := &Server{
		cfg:    cfg,
		worker: w,
		voices: voices,
		dead:   dead,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local tool; the form is served from the same origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /generate", s.handleGenerate)
	s.mux.HandleFunc("GET /download/{path...}", s.handleDownload)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /api/voices", s.handleVoices)
	s.mux.HandleFunc("GET /api/failed", s.handleFailed)
	s.mux.HandleFunc("POST /api/failed/{id}/resubmit", s.handleResubmit)
}

// SetDefaults sets the model, voice and instruction used when a request
// leaves them empty.
func (s *Server) SetDefaults(st settings.Settings) {
	s.mu.Lock()
	s.defaults = st
	s.mu.Unlock()
}

func (s *Server) currentDefaults() settings.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// generateRequest is the body of POST /generate.
type generateRequest struct {
	Text        string `json:"text"`
	Voice       string `json:"voice"`
	Model       string `json:"model"`
	Instruction string `json:"instruction"`
	Mode        string `json:"mode"`
	Name        string `json:"name"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "No text provided")
		return
	}
	mode, err := job.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	defaults := s.currentDefaults()
	instruction := req.Instruction
	if mode == job.ModeRewrite && strings.TrimSpace(instruction) == "" {
		instruction = defaults.Instruction
	}
	j, err := job.New(mode, req.Text, req.Name, job.Options{
		Instruction: instruction,
		Model:       firstNonEmpty(req.Model, defaults.Model),
		Voice:       firstNonEmpty(normalizeVoice(req.Voice), defaults.Voice),
		OutputDir:   s.cfg.OutputDir,
		PromptStyle: string(story.PromptInline),
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.URL.Query().Get("wait") != "true" {
		if err := s.worker.Submit(j); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.remember(j)
		writeJSON(w, http.StatusAccepted, map[string]string{"id": j.ID})
		return
	}

	ctx := r.Context()
	if s.cfg.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.WaitTimeout)
		defer cancel()
	}
	s.remember(j)
	res, err := s.worker.SubmitAndWait(ctx, j)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"id": j.ID, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": j.ID, "filename": s.relative(res.AudioPath)})
}

// remember saves the job's choices as the new settings.
func (s *Server) remember(j job.Job) {
	if s.cfg.Settings == nil {
		return
	}
	if _, err := s.cfg.Settings.Update(func(st *settings.Settings) {
		st.Mode = j.Mode.String()
		st.Model = j.Model
		st.Voice = j.Voice
		if j.Mode == job.ModeRewrite {
			st.Instruction = j.Instruction
		}
		st.LastFilename = j.TargetName
	}); err != nil {
		s.logger.Warn("Could not save settings", "error", err)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// normalizeVoice accepts bare edge-tts voice names as sent by the web form.
func normalizeVoice(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.Contains(v, "|") && strings.HasSuffix(v, "Neural") {
		return "edge|" + v
	}
	return v
}

// relative returns p relative to the output directory, using forward
// slashes so it can be appended to /download/.
func (s *Server) relative(p string) string {
	rel, err := filepath.Rel(s.cfg.OutputDir, p)
	if err != nil {
		return filepath.Base(p)
	}
	return filepath.ToSlash(rel)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := filepath.FromSlash(r.PathValue("path"))
	if name == "" || !filepath.IsLocal(name) {
		http.NotFound(w, r)
		return
	}
	full := filepath.Join(s.cfg.OutputDir, name)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(full)))
	http.ServeFile(w, r, full)
}

type statusResponse struct {
	worker.State
	Queue         queueStats `json:"queue"`
	DroppedEvents int64      `json:"droppedEvents"`
}

type queueStats struct {
	Enqueued    int64        `json:"enqueued"`
	Dequeued    int64        `json:"dequeued"`
	Peak        int          `json:"peak"`
	LastEnqueue time.Time    `json:"lastEnqueue,omitempty"`
	LastDequeue time.Time    `json:"lastDequeue,omitempty"`
	Pending     []pendingJob `json:"pending"`
}

type pendingJob struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Mode        string    `json:"mode"`
	SubmittedAt time.Time `json:"submittedAt"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	qs := s.worker.Queue().Stats()
	pending := []pendingJob{}
	for _, j := range s.worker.Queue().Pending() {
		pending = append(pending, pendingJob{ID: j.ID, Name: j.TargetName, Mode: j.Mode.String(), SubmittedAt: j.SubmittedAt})
	}
	writeJSON(w, http.StatusOK, statusResponse{
		State: s.worker.State(),
		Queue: queueStats{
			Enqueued:    qs.TotalEnqueued,
			Dequeued:    qs.TotalDequeued,
			Peak:        qs.PeakSize,
			LastEnqueue: qs.LastEnqueue,
			LastDequeue: qs.LastDequeue,
			Pending:     pending,
		},
		DroppedEvents: s.worker.Hub().Dropped(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = n
	}
	events := s.worker.Hub().Since(since)
	if events == nil {
		events = []worker.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleVoices(w http.ResponseWriter, _ *http.Request) {
	voices := []speech.Voice{}
	if s.voices != nil {
		voices = s.voices.List()
	}
	writeJSON(w, http.StatusOK, voices)
}

func (s *Server) handleFailed(w http.ResponseWriter, _ *http.Request) {
	failures := []worker.Failure{}
	if s.dead != nil {
		list, err := s.dead.List()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		failures = append(failures, list...)
	}
	writeJSON(w, http.StatusOK, failures)
}

func (s *Server) handleResubmit(w http.ResponseWriter, r *http.Request) {
	if s.dead == nil {
		http.NotFound(w, r)
		return
	}
	f, err := s.dead.Take(r.PathValue("id"))
	if errors.Is(err, worker.ErrFailureNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.worker.Submit(f.Job); err != nil {
		// Put it back so the record is not lost.
		_ = s.dead.Record(f)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.logger.Info("Resubmitted failed job", "id", f.Job.ShortID())
	writeJSON(w, http.StatusAccepted, map[string]string{"id": f.Job.ID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
