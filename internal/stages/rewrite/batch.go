package rewrite

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clearcanon/clarify/internal/canon"
	"github.com/clearcanon/clarify/internal/providers"
	"github.com/clearcanon/clarify/internal/stages"
)

// ErrVerseCountMismatch is returned by Collect when the number of usable
// drafts differs from the number of source verses. The chapter as a whole
// failed; partial drafts are still returned for diagnostics.
var ErrVerseCountMismatch = errors.New("rewrite: draft count does not match source verse count")

// BuildBatch creates one rewrite request per source verse. Correlation ids
// are fresh UUIDs; the verse identity travels only through the index, never
// through the model.
func BuildBatch(chapter *canon.ChapterText, model string) stages.ChapterBatch {
	batch := stages.ChapterBatch{
		Stage: stages.StageRewrite,
		Ref:   chapter.Ref,
		Index: make(map[string]canon.VerseRef, len(chapter.Sources)),
	}
	for _, v := range chapter.Sources {
		cid := uuid.NewString()
		batch.Index[cid] = v.Ref
		batch.Requests = append(batch.Requests, providers.BatchRequest{
			CorrelationID: cid,
			Request: providers.ChatRequest{
				Messages: []providers.Message{
					{Role: "system", Content: SystemPrompt()},
					{Role: "user", Content: userPrompt(v)},
				},
				Model:       model,
				Temperature: 0.3,
				MaxTokens:   1024,
				RequestID:   cid,
			},
		})
	}
	return batch
}

// ChapterDrafts holds the usable drafts collected from a finished batch,
// plus the per-verse parse failures that were skipped.
type ChapterDrafts struct {
	Ref    canon.ChapterRef
	Drafts map[canon.VerseRef]string
	Failed []*stages.ParseError
}

// Collect resolves batch outcomes against the correlation index. Outcomes
// with unknown correlation ids, provider-side errors, or empty content are
// recorded as parse failures and skipped. If the number of usable drafts
// does not match the number of requested verses, Collect returns
// ErrVerseCountMismatch and the chapter must not proceed to audit.
func Collect(batch stages.ChapterBatch, outcomes []providers.BatchOutcome) (ChapterDrafts, error) {
	drafts := ChapterDrafts{
		Ref:    batch.Ref,
		Drafts: make(map[canon.VerseRef]string, len(batch.Index)),
	}

	for _, out := range outcomes {
		ref, ok := batch.Index[out.CorrelationID]
		if !ok {
			drafts.Failed = append(drafts.Failed, &stages.ParseError{
				Stage: stages.StageRewrite,
				Unit:  out.CorrelationID,
				Err:   errors.New("correlation id not in batch index"),
			})
			continue
		}
		if out.Result == nil || out.ErrorMessage != "" {
			drafts.Failed = append(drafts.Failed, &stages.ParseError{
				Stage: stages.StageRewrite,
				Unit:  ref.String(),
				Err:   fmt.Errorf("request failed: %s", out.ErrorMessage),
			})
			continue
		}
		text := strings.TrimSpace(out.Result.Content)
		if text == "" {
			drafts.Failed = append(drafts.Failed, &stages.ParseError{
				Stage: stages.StageRewrite,
				Unit:  ref.String(),
				Err:   errors.New("empty rewrite"),
			})
			continue
		}
		drafts.Drafts[ref] = text
	}

	if len(drafts.Drafts) != len(batch.Index) {
		return drafts, fmt.Errorf("%w: got %d of %d for %s",
			ErrVerseCountMismatch, len(drafts.Drafts), len(batch.Index), batch.Ref)
	}
	return drafts, nil
}
