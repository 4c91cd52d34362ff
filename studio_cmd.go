package main

import (
	"context"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/dgnsrekt/aistudio/internal/llm"
	"github.com/dgnsrekt/aistudio/internal/settings"
	"github.com/dgnsrekt/aistudio/ui"
)

var studioCmd = &cobra.Command{
	Use:   "studio",
	Short: "Open the interactive studio (default)",
	Long:  paragraph(fmt.Sprintf("\n%s the interactive studio. Jobs submitted from the form are processed in the background while you keep writing.", keyword("Open"))),
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runStudio(cmd.Context())
	},
}

func init() {
	studioCmd.Flags().Bool("mouse", false, "enable mouse wheel in the preview")
	studioCmd.Flags().Uint("width", 0, "word-wrap the preview at width (0 to fit the window)")
	_ = viper.BindPFlag("studio.mouse", studioCmd.Flags().Lookup("mouse"))
	_ = viper.BindPFlag("studio.width", studioCmd.Flags().Lookup("width"))
}

func runStudio(ctx context.Context) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return ui.ErrNoTerminal
	}
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	a.refreshVoices(ctx)
	saved, err := a.settings.Load()
	if err != nil {
		log.Warn("Could not load settings", "error", err)
		saved = settings.Defaults()
	}

	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	cfg.GlamourMaxWidth = viper.GetUint("studio.width")
	cfg.EnableMouse = viper.GetBool("studio.mouse")
	cfg.Models = llm.ModelLabels()
	cfg.Voices = a.catalog.Labels()
	cfg.Mode = saved.Mode
	cfg.Model = saved.Model
	cfg.Voice = saved.Voice
	cfg.Instruction = saved.Instruction
	cfg.LastFilename = saved.LastFilename
	cfg.OutputDir = a.outputDir(saved)

	p := ui.NewProgram(cfg, a.worker, a.worker.Hub(), a.settings)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.worker.Run(gctx) })
	g.Go(func() error {
		return a.settings.Watch(gctx, func(st settings.Settings) {
			st.DownloadPath = a.outputDir(st)
			p.Send(ui.SettingsChangedMsg(st))
		})
	})

	_, runErr := p.Run()
	cancel()
	_ = g.Wait()
	if runErr != nil {
		return fmt.Errorf("unable to run tui program: %w", runErr)
	}
	return nil
}
