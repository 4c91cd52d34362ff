package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/aistudio/internal/server"
	"github.com/dgnsrekt/aistudio/internal/settings"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the web form and job API",
	Long:    paragraph(fmt.Sprintf("\n%s a web form and JSON API. Submitted jobs are queued and processed one at a time; progress is streamed over a websocket.", keyword("Serve"))),
	Example: paragraph("aistudio serve\naistudio serve --addr :8080"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a.refreshVoices(ctx)
		saved, err := a.settings.Load()
		if err != nil {
			log.Warn("Could not load settings", "error", err)
			saved = settings.Defaults()
		}

		// The output folder is fixed for the server's lifetime so download
		// links stay valid; model, voice and instruction follow the file.
		srv := server.New(server.Config{
			Addr:      a.cfg.Server.Addr,
			OutputDir: a.outputDir(saved),
			Settings:  a.settings,
		}, a.worker, a.catalog, a.dead, log.Default().WithPrefix("server"))
		srv.SetDefaults(saved)

		fmt.Fprintf(os.Stderr, "Listening on %s\n", keyword("http://"+a.cfg.Server.Addr))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return a.worker.Run(gctx) })
		g.Go(func() error { return srv.ListenAndServe(gctx) })
		g.Go(func() error {
			return a.settings.Watch(gctx, func(st settings.Settings) {
				srv.SetDefaults(st)
				log.Info("Settings changed on disk", "model", st.Model, "voice", st.Voice)
			})
		})
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}
