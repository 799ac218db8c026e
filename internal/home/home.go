package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the clarify home directory.
	DefaultDirName = ".clarify"

	// JobsDirName holds persisted batch job metadata, one file per job.
	JobsDirName = "jobs"

	// ResultsDirName holds downloaded rewrite-phase result sets.
	ResultsDirName = "results"

	// LogsDirName holds the escalation, run and metrics logs.
	LogsDirName = "logs"

	// StoreDirName is the host data directory for the local corpus store.
	StoreDirName = "store"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the clarify home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.clarify).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}
	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// JobsPath returns the directory for persisted batch job metadata.
func (d *Dir) JobsPath() string {
	return filepath.Join(d.path, JobsDirName)
}

// JobPath returns the metadata file for a batch job.
func (d *Dir) JobPath(jobID string) string {
	return filepath.Join(d.JobsPath(), jobID+".json")
}

// LatestJobPath returns the "latest" pointer file used for default resume.
func (d *Dir) LatestJobPath() string {
	return filepath.Join(d.JobsPath(), "latest")
}

// ResultsPath returns the directory for downloaded rewrite result sets.
func (d *Dir) ResultsPath() string {
	return filepath.Join(d.path, ResultsDirName)
}

// ResultSetPath returns the file holding a book's rewrite-phase results.
func (d *Dir) ResultSetPath(jobID string) string {
	return filepath.Join(d.ResultsPath(), jobID+".json")
}

// LogsPath returns the directory for durable run logs.
func (d *Dir) LogsPath() string {
	return filepath.Join(d.path, LogsDirName)
}

// EscalationLogPath returns the append-only escalation log path.
func (d *Dir) EscalationLogPath() string {
	return filepath.Join(d.LogsPath(), "escalations.jsonl")
}

// RunLogPath returns the append-only run log path.
func (d *Dir) RunLogPath() string {
	return filepath.Join(d.LogsPath(), "runs.jsonl")
}

// MetricsLogPath returns the append-only per-call metrics log path.
func (d *Dir) MetricsLogPath() string {
	return filepath.Join(d.LogsPath(), "metrics.jsonl")
}

// StoreDataPath returns the host directory mounted into the corpus store
// container for persistence.
func (d *Dir) StoreDataPath() string {
	return filepath.Join(d.path, StoreDirName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, p := range []string{d.JobsPath(), d.ResultsPath(), d.LogsPath()} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
