// Package runmeta persists batch job metadata and intermediate results on
// disk. The correlation map is written before a batch is handed to the
// provider, so a crash between submission and completion never orphans a
// job: the mapping from provider correlation ids back to verses survives.
package runmeta

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clearcanon/clarify/internal/canon"
	"github.com/clearcanon/clarify/internal/home"
	"github.com/clearcanon/clarify/internal/providers"
	"github.com/clearcanon/clarify/internal/stages"
)

// ErrNoJobs is returned by Latest when no job has ever been recorded.
var ErrNoJobs = errors.New("no recorded jobs")

// CorrelationRecord maps one provider correlation id back to its verse.
type CorrelationRecord struct {
	CorrelationID string         `json:"correlation_id"`
	Ref           canon.VerseRef `json:"ref"`
	Phase         string         `json:"phase"`
}

// BatchJob is the durable record of one submitted batch. LocalID names the
// file and exists before the provider assigns JobID.
type BatchJob struct {
	LocalID     string                `json:"local_id"`
	JobID       string                `json:"job_id,omitempty"`
	Phase       string                `json:"phase"`
	Chapter     canon.ChapterRef      `json:"chapter"`
	SubmittedAt time.Time             `json:"submitted_at,omitempty"`
	Status      providers.BatchStatus `json:"status,omitempty"`
	Records     []CorrelationRecord   `json:"records"`
}

// Index rebuilds the correlation-id -> verse map from the durable records.
func (j *BatchJob) Index() map[string]canon.VerseRef {
	index := make(map[string]canon.VerseRef, len(j.Records))
	for _, r := range j.Records {
		index[r.CorrelationID] = r.Ref
	}
	return index
}

// Store reads and writes job records under the home directory.
type Store struct {
	home   *home.Dir
	logger *slog.Logger
}

// NewStore creates a job metadata store.
func NewStore(h *home.Dir, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{home: h, logger: logger}
}

// Prepare writes the not-yet-submitted record for a chapter batch. It must
// be called, and must succeed, before the batch goes to the provider.
func (s *Store) Prepare(batch stages.ChapterBatch) (*BatchJob, error) {
	job := &BatchJob{
		LocalID: uuid.NewString(),
		Phase:   batch.Stage,
		Chapter: batch.Ref,
	}
	for cid, ref := range batch.Index {
		job.Records = append(job.Records, CorrelationRecord{
			CorrelationID: cid,
			Ref:           ref,
			Phase:         batch.Stage,
		})
	}
	if err := s.save(job); err != nil {
		return nil, fmt.Errorf("persist job metadata: %w", err)
	}
	s.logger.Debug("job metadata persisted",
		"local_id", job.LocalID,
		"phase", job.Phase,
		"chapter", job.Chapter.String(),
		"units", len(job.Records))
	return job, nil
}

// MarkSubmitted records the provider job id and updates the latest pointer.
// The record is on disk before the submitting caller regains control.
func (s *Store) MarkSubmitted(job *BatchJob, providerJobID string) error {
	job.JobID = providerJobID
	job.SubmittedAt = time.Now().UTC()
	job.Status = providers.BatchSubmitted
	if err := s.save(job); err != nil {
		return fmt.Errorf("persist submitted job: %w", err)
	}
	return s.writeLatest(job.LocalID)
}

// MarkStatus updates the stored status after a poll.
func (s *Store) MarkStatus(job *BatchJob, status providers.BatchStatus) error {
	job.Status = status
	return s.save(job)
}

// Find returns the most recently submitted job for a chapter and phase, or
// nil when none exists. Jobs that never reached the provider, and jobs the
// provider reported as errored, are not candidates for adoption.
func (s *Store) Find(ref canon.ChapterRef, phase string) (*BatchJob, error) {
	entries, err := os.ReadDir(s.home.JobsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan jobs: %w", err)
	}
	var best *BatchJob
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		job, err := s.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			s.logger.Warn("skipping unreadable job record", "file", name, "error", err)
			continue
		}
		if job.JobID == "" || job.Phase != phase || job.Chapter != ref {
			continue
		}
		if job.Status == providers.BatchErrored {
			continue
		}
		if best == nil || job.SubmittedAt.After(best.SubmittedAt) {
			best = job
		}
	}
	return best, nil
}

// Load reads a job record by local id.
func (s *Store) Load(localID string) (*BatchJob, error) {
	data, err := os.ReadFile(s.home.JobPath(localID))
	if err != nil {
		return nil, fmt.Errorf("read job %s: %w", localID, err)
	}
	var job BatchJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", localID, err)
	}
	return &job, nil
}

// Latest returns the most recently submitted job.
func (s *Store) Latest() (*BatchJob, error) {
	data, err := os.ReadFile(s.home.LatestJobPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoJobs
		}
		return nil, err
	}
	return s.Load(strings.TrimSpace(string(data)))
}

// SaveResults persists the raw outcomes of an ended batch. Rewrite outcomes
// are read back when the audit batch is built, so an interrupted run resumes
// without re-submitting the rewrite.
func (s *Store) SaveResults(job *BatchJob, outcomes []providers.BatchOutcome) error {
	data, err := json.MarshalIndent(outcomes, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return atomicWrite(s.home.ResultSetPath(job.LocalID), data)
}

// LoadResults reads back a persisted result set.
func (s *Store) LoadResults(job *BatchJob) ([]providers.BatchOutcome, error) {
	data, err := os.ReadFile(s.home.ResultSetPath(job.LocalID))
	if err != nil {
		return nil, fmt.Errorf("read results for %s: %w", job.LocalID, err)
	}
	var outcomes []providers.BatchOutcome
	if err := json.Unmarshal(data, &outcomes); err != nil {
		return nil, fmt.Errorf("decode results for %s: %w", job.LocalID, err)
	}
	return outcomes, nil
}

func (s *Store) save(job *BatchJob) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(s.home.JobPath(job.LocalID), data)
}

func (s *Store) writeLatest(localID string) error {
	return atomicWrite(s.home.LatestJobPath(), []byte(localID+"\n"))
}

// atomicWrite lands the file via a temp-and-rename so a crash mid-write
// never leaves a truncated record.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
