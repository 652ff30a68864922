package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinynewsco/docpub/internal/api"
	"github.com/tinynewsco/docpub/internal/config"
	"github.com/tinynewsco/docpub/internal/home"
	"github.com/tinynewsco/docpub/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "docpub",
	Short: "Convert collaborative documents into structured content and publish them",
	Long: `docpub turns a Docs API document into an ordered list of typed content
blocks and publishes the result as an article or page through the content API.

It covers:
  - Conversion passes with per-document image caches
  - Image upload to the organisation's asset bucket
  - Article and page publishing with previews
  - An HTTP server exposing the same operations`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.docpub/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "docpub home directory (default: ~/.docpub)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		f, err := api.ParseOutputFormat(outputFormat)
		if err != nil {
			return err
		}
		api.SetOutputFormat(f)
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the process logger. Logs go to stderr so structured
// command output on stdout stays parseable.
func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", logLevel)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})), nil
}

// loadEnv resolves the home directory and loads configuration. Without
// --config, a config file in the home directory wins over the search path.
func loadEnv(opts ...config.Option) (*home.Dir, *config.Manager, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, err
	}
	file := cfgFile
	if file == "" && h.ConfigExists() {
		file = h.ConfigPath()
	}
	mgr, err := config.NewManager(file, opts...)
	if err != nil {
		return nil, nil, err
	}
	return h, mgr, nil
}
