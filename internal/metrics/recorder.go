package metrics

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/clearcanon/clarify/internal/canon"
	"github.com/clearcanon/clarify/internal/providers"
)

// Recorder appends metrics to the JSONL metrics log. Safe for concurrent
// use by the correction workers.
type Recorder struct {
	path string
	mu   sync.Mutex
}

// NewRecorder creates a recorder writing to path.
func NewRecorder(path string) *Recorder {
	return &Recorder{path: path}
}

// Record appends one metric.
func (r *Recorder) Record(m Metric) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open metrics log: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(m); err != nil {
		return fmt.Errorf("append metric: %w", err)
	}
	return nil
}

// RecordCall records a metric from a chat result.
func (r *Recorder) RecordCall(ref canon.VerseRef, stage string, result *providers.ChatResult) error {
	if result == nil {
		return fmt.Errorf("nil chat result")
	}
	return r.Record(Metric{
		Book:             ref.Book,
		Chapter:          ref.Chapter,
		Stage:            stage,
		Unit:             ref.String(),
		Provider:         result.Provider,
		Model:            result.ModelUsed,
		CostUSD:          result.CostUSD,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,
		ExecutionSeconds: result.ExecutionTime.Seconds(),
		Success:          result.Success,
		ErrorType:        result.ErrorType,
	})
}

// ReadAll loads every metric in the log, oldest first.
func (r *Recorder) ReadAll() ([]Metric, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var metrics []Metric
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var m Metric
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, fmt.Errorf("malformed metric line: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, scanner.Err()
}

// SummarizeBook aggregates recorded metrics for one book.
func (r *Recorder) SummarizeBook(book string) (Summary, error) {
	all, err := r.ReadAll()
	if err != nil {
		return Summary{}, err
	}
	var forBook []Metric
	normalized := canon.NormalizeBookID(book)
	for _, m := range all {
		if canon.NormalizeBookID(m.Book) == normalized {
			forBook = append(forBook, m)
		}
	}
	return Summarize(forBook), nil
}
