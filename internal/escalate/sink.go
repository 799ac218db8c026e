// Package escalate records verses that failed both the audit and the
// post-correction re-audit. The sink is append-only JSONL; entries are the
// raw material for human review and are never rewritten or truncated by the
// pipeline.
package escalate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/clearcanon/clarify/internal/canon"
)

// Record is one escalated verse: everything a reviewer needs to decide by
// hand, including both failing verdicts.
type Record struct {
	Ref              canon.VerseRef `json:"ref"`
	SourceText       string         `json:"source_text"`
	FailedCandidate  string         `json:"failed_candidate"`
	CorrectionOutput string         `json:"correction_output,omitempty"`
	AuditReason      string         `json:"audit_reason"`
	ReauditReason    string         `json:"reaudit_reason,omitempty"`
	EscalatedAt      time.Time      `json:"escalated_at"`
}

// Sink appends escalation records to a JSONL file. Safe for concurrent use.
type Sink struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	count int
}

// NewSink creates a sink writing to path. The file is created on first
// append.
func NewSink(path string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{path: path, logger: logger}
}

// Append writes one record. The file is opened append-only for every write,
// so a crash never loses previously escalated verses.
func (s *Sink) Append(rec Record) error {
	if rec.EscalatedAt.IsZero() {
		rec.EscalatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open escalation log: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("append escalation: %w", err)
	}
	s.count++

	s.logger.Warn("verse escalated",
		"verse", rec.Ref.String(),
		"audit_reason", rec.AuditReason,
		"reaudit_reason", rec.ReauditReason)
	return nil
}

// Path returns the log file location.
func (s *Sink) Path() string {
	return s.path
}

// Count reports how many records this sink appended during the current run.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// ReadAll loads every record in the log, oldest first. Used by review
// tooling and tests; the pipeline itself only appends.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("malformed escalation line: %w", err)
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}
