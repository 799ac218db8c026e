package metrics

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/clearcanon/clarify/internal/canon"
	"github.com/clearcanon/clarify/internal/providers"
)

func TestRecorderRoundTrip(t *testing.T) {
	rec := NewRecorder(filepath.Join(t.TempDir(), "metrics.jsonl"))

	ref := canon.VerseRef{Segment: "ot", Book: "Ruth", Chapter: 1, Verse: 1}
	err := rec.RecordCall(ref, "audit", &providers.ChatResult{
		Provider:      "chat",
		ModelUsed:     "claude-sonnet-4",
		PromptTokens:  120,
		TotalTokens:   160,
		CostUSD:       0.002,
		ExecutionTime: 800 * time.Millisecond,
		Success:       true,
	})
	if err != nil {
		t.Fatalf("RecordCall() error = %v", err)
	}
	err = rec.RecordCall(ref, "correct", &providers.ChatResult{
		Provider:  "chat",
		Success:   false,
		ErrorType: "json_parse",
	})
	if err != nil {
		t.Fatalf("RecordCall() error = %v", err)
	}

	all, err := rec.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d metrics", len(all))
	}
	if all[0].Stage != "audit" || all[0].Unit != "ot/Ruth 1:1" || all[0].TotalTokens != 160 {
		t.Errorf("metric 0 = %+v", all[0])
	}
	if all[1].Success || all[1].ErrorType != "json_parse" {
		t.Errorf("metric 1 = %+v", all[1])
	}
}

func TestSummarizeBook(t *testing.T) {
	rec := NewRecorder(filepath.Join(t.TempDir(), "metrics.jsonl"))

	ruth := canon.VerseRef{Segment: "ot", Book: "Ruth", Chapter: 1, Verse: 1}
	esther := canon.VerseRef{Segment: "ot", Book: "Esther", Chapter: 1, Verse: 1}
	rec.RecordCall(ruth, "audit", &providers.ChatResult{Success: true, CostUSD: 0.01, TotalTokens: 100})
	rec.RecordCall(ruth, "correct", &providers.ChatResult{Success: false})
	rec.RecordCall(esther, "audit", &providers.ChatResult{Success: true, CostUSD: 0.05, TotalTokens: 500})

	s, err := rec.SummarizeBook("ruth")
	if err != nil {
		t.Fatalf("SummarizeBook() error = %v", err)
	}
	if s.Count != 2 || s.SuccessCount != 1 || s.ErrorCount != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.TotalCostUSD != 0.01 || s.TotalTokens != 100 {
		t.Errorf("summary totals = %+v", s)
	}
}

func TestEstimateVerses(t *testing.T) {
	verses := []canon.SourceVerse{
		{Ref: canon.VerseRef{Book: "Ruth", Chapter: 1, Verse: 1}, Text: "And it came to pass in the days when the judges ruled, that there was a famine in the land."},
		{Ref: canon.VerseRef{Book: "Ruth", Chapter: 1, Verse: 2}, Text: "And the name of the man was Elimelech, and the name of his wife Naomi."},
	}

	est := EstimateVerses(verses, "gpt-4o", "claude-sonnet-4")
	if est.Verses != 2 {
		t.Errorf("verses = %d", est.Verses)
	}
	if est.RewriteCostUSD <= 0 || est.AuditCostUSD <= 0 {
		t.Errorf("costs = %v / %v", est.RewriteCostUSD, est.AuditCostUSD)
	}
	if est.TotalCostUSD != est.RewriteCostUSD+est.AuditCostUSD {
		t.Error("total does not add up")
	}
	if est.RewriteTokens <= 0 || est.AuditTokens <= est.RewriteTokens/2 {
		t.Errorf("tokens = %d / %d", est.RewriteTokens, est.AuditTokens)
	}

	t.Run("audit leg priced at synchronous rates", func(t *testing.T) {
		// 40 chars is 10 tokens: audit in = 350+20, out = 40, at the
		// claude-sonnet-4 rates of 3.00/15.00 per 1M, undiscounted.
		one := []canon.SourceVerse{{
			Ref:  canon.VerseRef{Book: "Ruth", Chapter: 1, Verse: 1},
			Text: "0123456789012345678901234567890123456789",
		}}
		est := EstimateVerses(one, "gpt-4o", "claude-sonnet-4")
		want := 370*3.00/1e6 + 40*15.00/1e6
		if math.Abs(est.AuditCostUSD-want) > 1e-12 {
			t.Errorf("audit cost = %v, want %v", est.AuditCostUSD, want)
		}
	})

	t.Run("unknown model errs high", func(t *testing.T) {
		unknown := EstimateVerses(verses, "some-new-model", "claude-sonnet-4")
		known := EstimateVerses(verses, "gpt-4o-mini", "claude-sonnet-4")
		if unknown.RewriteCostUSD <= known.RewriteCostUSD {
			t.Error("unknown model should not be cheaper than the cheapest known model")
		}
	})

	t.Run("prefixed model name matches", func(t *testing.T) {
		prefixed := EstimateVerses(verses, "gpt-4o", "anthropic/claude-sonnet-4")
		plain := EstimateVerses(verses, "gpt-4o", "claude-sonnet-4")
		if prefixed.AuditCostUSD != plain.AuditCostUSD {
			t.Error("provider-prefixed model priced differently")
		}
	})
}
