package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/mitchellh/go-homedir"

	"github.com/dgnsrekt/aistudio/internal/cache"
	"github.com/dgnsrekt/aistudio/internal/config"
	"github.com/dgnsrekt/aistudio/internal/llm"
	"github.com/dgnsrekt/aistudio/internal/pipeline"
	"github.com/dgnsrekt/aistudio/internal/queue"
	"github.com/dgnsrekt/aistudio/internal/settings"
	"github.com/dgnsrekt/aistudio/internal/speech"
	"github.com/dgnsrekt/aistudio/internal/worker"
)

// app holds the components shared by the commands. It is built once from
// the loaded configuration and passed explicitly.
type app struct {
	cfg      config.Config
	cache    *cache.Manager
	catalog  *speech.Catalog
	genai    *speech.GenAIProProvider
	dead     *worker.FileDeadLetters
	settings *settings.Store
	worker   *worker.Worker
}

func newApp(cfg config.Config) (*app, error) {
	a := &app{
		cfg:      cfg,
		catalog:  speech.NewCatalog(speech.DefaultVoices()...),
		dead:     worker.NewFileDeadLetters(cfg.DeadLetterPath()),
		settings: settings.NewStore(cfg.SettingsPath(), log.Default().WithPrefix("settings")),
	}

	sc := cfg.SpeechConfig(log.Default().WithPrefix("speech"))
	if cfg.Cache.Enabled {
		m, err := cache.NewManager(cfg.CacheConfig(), log.Default().WithPrefix("cache"))
		if err != nil {
			// The cache only saves repeat synthesis; run without it.
			log.Warn("Audio cache disabled", "error", err)
		} else {
			a.cache = m
			sc.Cache = m
		}
	}
	registry, genai := speech.Build(sc)
	a.genai = genai

	router := llm.NewRouter(cfg.RouterConfig(log.Default().WithPrefix("llm")))
	p := pipeline.New(cfg.PipelineConfig(), router, registry, a.catalog,
		pipeline.WithLogger(log.Default().WithPrefix("pipeline")))

	a.worker = worker.New(queue.New(), p,
		worker.WithHub(worker.NewHub(cfg.Server.HistorySize)),
		worker.WithDeadLetters(a.dead),
		worker.WithLogger(log.Default().WithPrefix("worker")))
	return a, nil
}

// refreshVoices merges the GenAIPro voice list into the catalog when a key
// is configured. Failures only cost the extra voices.
func (a *app) refreshVoices(ctx context.Context) {
	if a.cfg.Credentials.GenAIPro == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	voices, err := a.genai.Voices(ctx)
	if err != nil {
		log.Warn("Could not fetch GenAIPro voices", "error", err)
		return
	}
	n := a.catalog.AddGenAIPro(voices)
	log.Debug("Fetched GenAIPro voices", "count", n)
}

// outputDir returns the saved download folder, or the configured one when
// none was saved or it cannot be expanded.
func (a *app) outputDir(st settings.Settings) string {
	if st.DownloadPath == "" {
		return a.cfg.Output.Dir
	}
	dir, err := homedir.Expand(st.DownloadPath)
	if err != nil {
		log.Warn("Ignoring saved download path", "path", st.DownloadPath, "error", err)
		return a.cfg.Output.Dir
	}
	return dir
}

func (a *app) Close() error {
	var errs []error
	if err := a.worker.Queue().Close(); err != nil {
		errs = append(errs, err)
	}
	if a.cache != nil {
		st := a.cache.Stats()
		log.Debug("Audio cache", "hits", st.Hits, "misses", st.Misses,
			"memory", humanize.Bytes(uint64(st.L1.Size)), "disk", humanize.Bytes(uint64(st.L2.Size)))
		if err := a.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	return errors.Join(errs...)
}

// setup loads the configuration and builds the app.
func setup() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}
