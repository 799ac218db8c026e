package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clearcanon/clarify/internal/config"
	"github.com/clearcanon/clarify/internal/corpus"
	"github.com/clearcanon/clarify/internal/home"
	"github.com/clearcanon/clarify/version"
)

var (
	cfgFile  string
	homeDir  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "clarify",
	Short: "Modernize an archaic-English verse corpus with verified meaning preservation",
	Long: `Clarify rewrites an archaic-English verse corpus into plain contemporary
English, one book at a time, and certifies every rewritten verse through an
independent meaning-preservation audit.

The pipeline per chapter:
  - Batch rewrite of every verse
  - Batch audit of every candidate by a different model
  - One synchronous correction and re-audit for each audit failure
  - Escalation of double failures for human review

A book whose escalation rate reaches the configured threshold halts the
run before the next book starts; resume with --from-book after review.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ~/.clarify/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "clarify home directory (default: ~/.clarify)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn, error",
	)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		slog.SetDefault(newLogger(logLevel))
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// getHome resolves the home directory and makes sure it exists.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// getConfig loads configuration from the flag-selected file or the home
// default.
func getConfig(h *home.Dir) (*config.Config, error) {
	mgr, err := getConfigManager(h)
	if err != nil {
		return nil, err
	}
	return mgr.Get(), nil
}

// getConfigManager builds the manager for commands that keep running long
// enough to care about config file changes.
func getConfigManager(h *home.Dir) (*config.Manager, error) {
	path := cfgFile
	if path == "" && h.ConfigExists() {
		path = h.ConfigPath()
	}
	return config.NewManager(path)
}

// getDockerManager builds the container manager for the local store.
func getDockerManager(h *home.Dir, cfg *config.Config) (*corpus.DockerManager, error) {
	return corpus.NewDockerManager(corpus.DockerConfig{
		ContainerName: cfg.Corpus.ContainerName,
		Image:         cfg.Corpus.Image,
		DataPath:      h.StoreDataPath(),
		HostPort:      cfg.Corpus.Port,
	})
}
