package audit

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/clearcanon/clarify/internal/canon"
	"github.com/clearcanon/clarify/internal/providers"
	"github.com/clearcanon/clarify/internal/stages"
)

func result(content string) *providers.ChatResult {
	return &providers.ChatResult{
		Content:    content,
		ParsedJSON: json.RawMessage(content),
		Success:    true,
	}
}

func TestParseVerdict(t *testing.T) {
	t.Run("pass", func(t *testing.T) {
		v, err := ParseVerdict(result(`{"pass": true}`), "ot/Ruth 1:1", "In the days")
		if err != nil {
			t.Fatalf("ParseVerdict() error = %v", err)
		}
		if !v.Pass || v.Text != "In the days" {
			t.Errorf("verdict = %+v", v)
		}
	})

	t.Run("fail with reason", func(t *testing.T) {
		v, err := ParseVerdict(result(`{"pass": false, "reason": "dropped Elimelech"}`), "ot/Ruth 1:2", "x")
		if err != nil {
			t.Fatalf("ParseVerdict() error = %v", err)
		}
		if v.Pass || v.Reason != "dropped Elimelech" {
			t.Errorf("verdict = %+v", v)
		}
	})

	t.Run("fail without reason gets placeholder", func(t *testing.T) {
		v, err := ParseVerdict(result(`{"pass": false}`), "ot/Ruth 1:3", "x")
		if err != nil {
			t.Fatalf("ParseVerdict() error = %v", err)
		}
		if v.Pass {
			t.Error("verdict passed")
		}
		if v.Reason != UnspecifiedReason {
			t.Errorf("reason = %q", v.Reason)
		}
	})

	t.Run("not json is a parse error", func(t *testing.T) {
		_, err := ParseVerdict(result(`the candidate looks fine to me`), "ot/Ruth 1:4", "x")
		var perr *stages.ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("err = %v, want ParseError", err)
		}
		if perr.Stage != stages.StageAudit {
			t.Errorf("stage = %q", perr.Stage)
		}
	})

	t.Run("wrong shape is a parse error", func(t *testing.T) {
		_, err := ParseVerdict(result(`{"verdict": "ok"}`), "ot/Ruth 1:5", "x")
		var perr *stages.ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("err = %v, want ParseError", err)
		}
	})

	t.Run("failed request is a parse error", func(t *testing.T) {
		_, err := ParseVerdict(nil, "ot/Ruth 1:6", "x")
		var perr *stages.ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("err = %v, want ParseError", err)
		}
	})
}

func TestRequest(t *testing.T) {
	ref := canon.VerseRef{Segment: "ot", Book: "Ruth", Chapter: 1, Verse: 22}
	req := Request(ref, "So Naomi returned", "So Naomi came back", "claude-sonnet-4")

	if req.Model != "claude-sonnet-4" {
		t.Errorf("model = %q", req.Model)
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" {
		t.Error("missing structured output format")
	}
	user := req.Messages[1].Content
	if !strings.Contains(user, "So Naomi returned") || !strings.Contains(user, "So Naomi came back") {
		t.Error("user prompt missing original or candidate")
	}
	if !strings.Contains(user, "ot/Ruth 1:22") {
		t.Error("user prompt missing verse ref")
	}
}

func TestBuildAndCollect(t *testing.T) {
	chapter := &canon.ChapterText{
		Ref: canon.ChapterRef{Segment: "ot", Book: "Ruth", Chapter: 1},
		Sources: []canon.SourceVerse{
			{Ref: canon.VerseRef{Segment: "ot", Book: "Ruth", Chapter: 1, Verse: 1}, Text: "first"},
			{Ref: canon.VerseRef{Segment: "ot", Book: "Ruth", Chapter: 1, Verse: 2}, Text: "second"},
		},
	}
	candidates := map[canon.VerseRef]string{
		chapter.Sources[0].Ref: "modern first",
		chapter.Sources[1].Ref: "modern second",
	}

	batch := BuildBatch(chapter, candidates, "claude-sonnet-4")
	if len(batch.Requests) != 2 {
		t.Fatalf("got %d requests, want 2", len(batch.Requests))
	}

	var outcomes []providers.BatchOutcome
	for cid, ref := range batch.Index {
		content := `{"pass": true}`
		if ref.Verse == 2 {
			content = `{"pass": false, "reason": "added a clause"}`
		}
		outcomes = append(outcomes, providers.BatchOutcome{
			CorrelationID: cid,
			Result:        result(content),
		})
	}

	verdicts := Collect(batch, candidates, outcomes)
	if len(verdicts.Verdicts) != 2 || len(verdicts.Failed) != 0 {
		t.Fatalf("verdicts = %d, failed = %d", len(verdicts.Verdicts), len(verdicts.Failed))
	}
	v1 := verdicts.Verdicts[chapter.Sources[0].Ref]
	if !v1.Pass || v1.Text != "modern first" {
		t.Errorf("verse 1 verdict = %+v", v1)
	}
	v2 := verdicts.Verdicts[chapter.Sources[1].Ref]
	if v2.Pass || v2.Reason != "added a clause" {
		t.Errorf("verse 2 verdict = %+v", v2)
	}
}

func TestBuildBatchSkipsMissingCandidates(t *testing.T) {
	chapter := &canon.ChapterText{
		Ref: canon.ChapterRef{Segment: "ot", Book: "Ruth", Chapter: 1},
		Sources: []canon.SourceVerse{
			{Ref: canon.VerseRef{Segment: "ot", Book: "Ruth", Chapter: 1, Verse: 1}, Text: "first"},
			{Ref: canon.VerseRef{Segment: "ot", Book: "Ruth", Chapter: 1, Verse: 2}, Text: "second"},
		},
	}
	candidates := map[canon.VerseRef]string{
		chapter.Sources[0].Ref: "modern first",
	}
	batch := BuildBatch(chapter, candidates, "m")
	if len(batch.Requests) != 1 {
		t.Errorf("got %d requests, want 1", len(batch.Requests))
	}
}
