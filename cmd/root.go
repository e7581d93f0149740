// Package cmd implements the signal command line.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"go.aimuz.me/signal/config"
)

var (
	verbose    bool
	configFile string

	cfg *config.Config

	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "signal",
	Short: "Real-time meeting co-pilot",
	Long: `signal streams meeting audio to the analysis backend and shows the
decisions, risks, questions, code and diagrams it detects as they arrive.

A thumbs-up to the camera (or the copy hotkey) copies the suggested response
of the signal on screen.

Quick Start:
  signal                     # connect and open the prompt
  signal run --listen        # connect and start listening right away
  signal config init         # write a default config file
  signal clips list          # inspect recently sent audio clips`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runCopilot,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(v, c, d string) {
	version, commit, date = v, c, d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (.yaml or .json); defaults to the user config")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	addRunFlags(rootCmd)
}

// setup loads the configuration and installs the console logger.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})))
	return nil
}
