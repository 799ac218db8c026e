package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/clearcanon/clarify/internal/config"
	"github.com/clearcanon/clarify/internal/corpus"
	"github.com/clearcanon/clarify/internal/escalate"
	"github.com/clearcanon/clarify/internal/home"
	"github.com/clearcanon/clarify/internal/metrics"
	"github.com/clearcanon/clarify/internal/pipeline"
	"github.com/clearcanon/clarify/internal/providers"
	"github.com/clearcanon/clarify/internal/runlog"
	"github.com/clearcanon/clarify/internal/runmeta"
)

var (
	runChapters []int
	runForce    bool
	runDryRun   bool
	runFromBook string
)

var runCmd = &cobra.Command{
	Use:   "run [book ...]",
	Short: "Process books through the rewrite, audit and correction stages",
	Long: `Process the configured segment book by book, in canonical order.

With no arguments, every book in the segment is processed. Book arguments
restrict the run to those books; --chapters further restricts a single
book to specific chapters.

Chapters whose drafts are already certified are skipped unless --force is
given. --dry-run logs what would be submitted without calling providers or
writing to the corpus.

Examples:
  clarify run                    # Whole segment
  clarify run ruth               # One book
  clarify run ruth --chapters 1,2
  clarify run --from-book esther # Resume after a threshold halt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(runChapters) > 0 && len(args) != 1 {
			return fmt.Errorf("--chapters requires exactly one book argument")
		}
		if runFromBook != "" && len(args) > 0 {
			return fmt.Errorf("--from-book cannot be combined with book arguments")
		}

		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := getConfigManager(h)
		if err != nil {
			return err
		}
		rt, err := buildRuntime(cmd.Context(), h, mgr)
		if err != nil {
			return err
		}

		opts := pipeline.Options{
			Books:    args,
			Chapters: runChapters,
			Force:    runForce,
			DryRun:   runDryRun,
			FromBook: runFromBook,
		}
		return pipeline.New(rt, opts).Run(cmd.Context())
	},
}

func init() {
	runCmd.Flags().IntSliceVar(&runChapters, "chapters", nil, "restrict to these chapter numbers (single book only)")
	runCmd.Flags().BoolVar(&runForce, "force", false, "reprocess chapters that are already certified")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "log planned work without submitting or writing")
	runCmd.Flags().StringVar(&runFromBook, "from-book", "", "skip books before this one in canonical order")
}

// buildRuntime assembles every dependency a run needs. The store must be
// reachable before any batch is submitted. The config file is watched for
// the whole run: a multi-hour batch wait should not require a restart to
// pick up threshold or poll tuning.
func buildRuntime(ctx context.Context, h *home.Dir, mgr *config.Manager) (*pipeline.Runtime, error) {
	logger := slog.Default()
	cfg := mgr.Get()

	store := corpus.NewClient(cfg.Corpus.URL)
	if err := store.HealthCheck(ctx); err != nil {
		return nil, fmt.Errorf("corpus store at %s: %w (try 'clarify store start')", cfg.Corpus.URL, err)
	}

	registry, err := providers.NewRegistry(cfg.Providers)
	if err != nil {
		return nil, err
	}

	mgr.OnChange(func(*config.Config) {
		logger.Info("configuration reloaded, applied at the next book boundary")
	})
	mgr.WatchConfig()

	return &pipeline.Runtime{
		Config:      cfg,
		Reload:      mgr.Get,
		Registry:    registry,
		Store:       store,
		Writer:      corpus.NewWriter(store, logger),
		Jobs:        runmeta.NewStore(h, logger),
		Escalations: escalate.NewSink(h.EscalationLogPath(), logger),
		RunLog:      runlog.NewLog(h.RunLogPath()),
		Metrics:     metrics.NewRecorder(h.MetricsLogPath()),
		Logger:      logger,
	}, nil
}
