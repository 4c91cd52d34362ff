package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/aistudio/internal/config"
)

var (
	configPrint bool

	configCmd = &cobra.Command{
		Use:     "config",
		Hidden:  false,
		Short:   "Edit the aistudio config file",
		Long:    paragraph(fmt.Sprintf("\n%s the aistudio config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
		Example: paragraph("aistudio config\naistudio config --print\naistudio config --config path/to/config.yml"),
		Args:    cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if configPrint {
				return printConfig()
			}
			if err := ensureConfigFile(); err != nil {
				return err
			}

			c, err := editor.Cmd("aistudio", configFile)
			if err != nil {
				return fmt.Errorf("unable to set config file: %w", err)
			}
			c.Stdin = os.Stdin
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			if err := c.Run(); err != nil {
				return fmt.Errorf("unable to run command: %w", err)
			}

			fmt.Println("Wrote config file to:", configFile)
			return nil
		},
	}
)

func init() {
	configCmd.Flags().BoolVar(&configPrint, "print", false, "print the effective configuration as YAML")
}

// printConfig validates the configuration and prints what the other
// commands would use, with credentials masked.
func printConfig() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(config.Effective(viper.GetViper(), cfg.Credentials))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Println(faint("# " + used))
	}
	_, err = os.Stdout.Write(out)
	return err
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = defaultConfigFile
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(config.DefaultFile); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
