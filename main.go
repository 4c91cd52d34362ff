// Package main provides the entry point for the aistudio CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/aistudio/internal/config"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile        string
	defaultConfigFile string
	envFile           string
	debug             bool

	rootCmd = &cobra.Command{
		Use:   "aistudio",
		Short: "Turn text into stories and stories into speech",
		Long: paragraph(
			fmt.Sprintf("\nRewrite text or grow a story with an LLM, then %s. Jobs run one at a time in submission order.", keyword("read it aloud")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return prepareEnvironment(cmd.Flags().Changed("config"))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStudio(cmd.Context())
		},
	}
)

// prepareEnvironment reads the .env file and the config file. It runs once
// before any subcommand.
func prepareEnvironment(explicitConfig bool) error {
	n, err := config.LoadDotEnv(envFile)
	if err != nil {
		log.Warn("Could not read env file", "path", envFile, "error", err)
	} else if n > 0 {
		log.Debug("Loaded env file", "path", envFile, "vars", n)
	}

	if explicitConfig {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return nil
}

// loadConfig builds the runtime configuration. Misconfiguration is the only
// fatal startup error.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	return cfg, nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", defaultConfigFile))
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file with API keys to load into the environment")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(serveCmd, generateCmd, studioCmd, voicesCmd, failedCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	dirs, err := config.ConfigDirs()
	if err != nil || len(dirs) == 0 {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}
	config.Prepare(viper.GetViper(), dirs)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		defaultConfigFile = used
		return
	}
	defaultConfigFile = filepath.Join(dirs[0], config.AppName+".yml")
}
