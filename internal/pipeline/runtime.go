package pipeline

import (
	"log/slog"

	"github.com/clearcanon/clarify/internal/config"
	"github.com/clearcanon/clarify/internal/corpus"
	"github.com/clearcanon/clarify/internal/escalate"
	"github.com/clearcanon/clarify/internal/metrics"
	"github.com/clearcanon/clarify/internal/providers"
	"github.com/clearcanon/clarify/internal/runlog"
	"github.com/clearcanon/clarify/internal/runmeta"
)

// Runtime carries every dependency a run needs. It is assembled once by the
// command layer and passed down explicitly; nothing in the pipeline reaches
// for process-global state.
type Runtime struct {
	Config *config.Config

	// Reload, when set, returns the current configuration snapshot. The
	// orchestrator re-reads tuning at book boundaries, so threshold and
	// poll changes land without restarting a long run.
	Reload func() *config.Config

	Registry    *providers.Registry
	Store       corpus.Store
	Writer      *corpus.Writer
	Jobs        *runmeta.Store
	Escalations *escalate.Sink
	RunLog      *runlog.Log
	Metrics     *metrics.Recorder
	Logger      *slog.Logger
}

// Options selects and shapes one run.
type Options struct {
	// Books restricts the run to these book ids (case-insensitive).
	// Empty means every book in the configured segment.
	Books []string

	// Chapters restricts processing to these chapter numbers. Only
	// meaningful when a single book is selected.
	Chapters []int

	// Force reprocesses chapters whose drafts are already certified.
	Force bool

	// DryRun logs what would be submitted without calling any provider
	// or writing to the corpus.
	DryRun bool

	// FromBook skips books before this id in canonical order. Used to
	// resume after a threshold halt.
	FromBook string
}
