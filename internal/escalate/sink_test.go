package escalate

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/clearcanon/clarify/internal/canon"
)

func TestSinkAppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escalations.jsonl")
	sink := NewSink(path, nil)

	first := Record{
		Ref:              canon.VerseRef{Segment: "ot", Book: "Ruth", Chapter: 1, Verse: 13},
		SourceText:       "it grieveth me much for your sakes",
		FailedCandidate:  "I am very sad.",
		CorrectionOutput: "I am very sad for you.",
		AuditReason:      "dropped the cause of the grief",
		ReauditReason:    "still missing that the grief is for their sake",
	}
	if err := sink.Append(first); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// A second sink on the same path must not truncate the first record.
	second := NewSink(path, nil)
	if err := second.Append(Record{
		Ref:             canon.VerseRef{Segment: "ot", Book: "Ruth", Chapter: 2, Verse: 3},
		SourceText:      "her hap was to light on",
		FailedCandidate: "she happened upon",
		AuditReason:     "unspecified violation (auditor returned no reason)",
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	records, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Ref != first.Ref || records[0].ReauditReason != first.ReauditReason {
		t.Errorf("first record = %+v", records[0])
	}
	if records[0].EscalatedAt.IsZero() {
		t.Error("timestamp not set")
	}
	if sink.Count() != 1 || second.Count() != 1 {
		t.Errorf("counts = %d, %d", sink.Count(), second.Count())
	}
}

func TestSinkConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escalations.jsonl")
	sink := NewSink(path, nil)

	var wg sync.WaitGroup
	for v := 1; v <= 20; v++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			sink.Append(Record{
				Ref:         canon.VerseRef{Segment: "ot", Book: "Ruth", Chapter: 1, Verse: v},
				AuditReason: "r",
			})
		}(v)
	}
	wg.Wait()

	records, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(records) != 20 {
		t.Fatalf("got %d records, want 20", len(records))
	}
	if sink.Count() != 20 {
		t.Errorf("count = %d", sink.Count())
	}
}

func TestReadAllMissingFile(t *testing.T) {
	records, err := ReadAll(filepath.Join(t.TempDir(), "none.jsonl"))
	if err != nil || records != nil {
		t.Fatalf("records = %v, err = %v", records, err)
	}
}
