// Package runlog records the per-book outcome summary and evaluates the
// escalation circuit breaker. One entry is appended per completed book; the
// log is the run's audit trail and feeds the threshold check that decides
// whether the next book may start.
package runlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"
)

// Entry summarizes one completed book.
type Entry struct {
	Book            string    `json:"book"`
	Segment         string    `json:"segment"`
	TotalVerses     int       `json:"total_verses"`
	AuditPassCount  int       `json:"audit_pass_count"`
	CorrectedCount  int       `json:"corrected_count"`
	EscalationCount int       `json:"escalation_count"`
	ErrorCount      int       `json:"error_count"`
	EscalationPct   float64   `json:"escalation_pct"`
	CompletedAt     time.Time `json:"completed_at"`
}

// EscalationPct returns the share of escalated verses as a percentage
// rounded to one decimal place. 1 escalation in 22 verses is 4.5.
func EscalationPct(escalations, totalVerses int) float64 {
	if totalVerses == 0 {
		return 0
	}
	pct := 100 * float64(escalations) / float64(totalVerses)
	return math.Round(pct*10) / 10
}

// NewEntry builds a book entry with the derived percentage filled in.
func NewEntry(segment, book string, total, passed, corrected, escalated, errored int) Entry {
	return Entry{
		Book:            book,
		Segment:         segment,
		TotalVerses:     total,
		AuditPassCount:  passed,
		CorrectedCount:  corrected,
		EscalationCount: escalated,
		ErrorCount:      errored,
		EscalationPct:   EscalationPct(escalated, total),
		CompletedAt:     time.Now().UTC(),
	}
}

// Breaches reports whether this book's escalation rate exceeds the
// threshold. A rate exactly at the threshold does not breach; only a higher
// one halts the run before the next book starts.
func (e Entry) Breaches(thresholdPct float64) bool {
	return e.EscalationPct > thresholdPct
}

// Log appends entries to a JSONL file.
type Log struct {
	path string
}

// NewLog creates a run log writing to path.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Append writes one book entry.
func (l *Log) Append(entry Entry) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(entry); err != nil {
		return fmt.Errorf("append run log entry: %w", err)
	}
	return nil
}

// ReadAll loads every entry, oldest first.
func (l *Log) ReadAll() ([]Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("malformed run log line: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}
