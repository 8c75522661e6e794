package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ivlev/photo2video/internal/config"
	"github.com/ivlev/photo2video/internal/logging"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logJSON    bool
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "photo2video",
		Short:         "Render a photo slideshow video with captions and a soundtrack",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Job file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file with PHOTO2VIDEO_* overrides")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "Log in JSON")

	rootCmd.AddCommand(newRenderCommand(opts))
	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// loadConfig layers defaults, the job file, the env file and the
// environment. Command flags are applied by the caller afterwards.
func (o *globalOptions) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", o.envFile, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)

	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logJSON {
		cfg.LogJSON = true
	}
	cfg.BuildVersion = version
	return cfg, nil
}

func newLogger(cfg config.Config) hclog.Logger {
	return logging.New(logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON})
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "photo2video %s\n", version)
			return nil
		},
	}
}
