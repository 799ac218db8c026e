package audit

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clearcanon/clarify/internal/canon"
	"github.com/clearcanon/clarify/internal/providers"
	"github.com/clearcanon/clarify/internal/stages"
)

// BuildBatch creates one audit request per drafted verse. Candidates are the
// uncertified drafts collected from the rewrite batch; sources supply the
// original text for each verse. Verses without a candidate are omitted (they
// already failed at the rewrite stage).
func BuildBatch(chapter *canon.ChapterText, candidates map[canon.VerseRef]string, model string) stages.ChapterBatch {
	batch := stages.ChapterBatch{
		Stage: stages.StageAudit,
		Ref:   chapter.Ref,
		Index: make(map[string]canon.VerseRef, len(candidates)),
	}
	for _, v := range chapter.Sources {
		candidate, ok := candidates[v.Ref]
		if !ok {
			continue
		}
		cid := uuid.NewString()
		batch.Index[cid] = v.Ref
		req := Request(v.Ref, v.Text, candidate, model)
		req.RequestID = cid
		batch.Requests = append(batch.Requests, providers.BatchRequest{
			CorrelationID: cid,
			Request:       req,
		})
	}
	return batch
}

// ChapterVerdicts holds the parsed verdicts for a chapter keyed by verse,
// plus the units whose responses could not be interpreted.
type ChapterVerdicts struct {
	Ref      canon.ChapterRef
	Verdicts map[canon.VerseRef]Verdict
	Failed   []*stages.ParseError
}

// Collect resolves audit batch outcomes into verdicts. Each verdict is bound
// to the exact candidate text it judged. Unparseable responses are skipped
// and counted; a verse with no verdict is never committed.
func Collect(batch stages.ChapterBatch, candidates map[canon.VerseRef]string, outcomes []providers.BatchOutcome) ChapterVerdicts {
	verdicts := ChapterVerdicts{
		Ref:      batch.Ref,
		Verdicts: make(map[canon.VerseRef]Verdict, len(batch.Index)),
	}

	for _, out := range outcomes {
		ref, ok := batch.Index[out.CorrelationID]
		if !ok {
			verdicts.Failed = append(verdicts.Failed, &stages.ParseError{
				Stage: stages.StageAudit,
				Unit:  out.CorrelationID,
				Err:   errors.New("correlation id not in batch index"),
			})
			continue
		}
		if out.Result == nil {
			verdicts.Failed = append(verdicts.Failed, &stages.ParseError{
				Stage: stages.StageAudit,
				Unit:  ref.String(),
				Err:   fmt.Errorf("request failed: %s", out.ErrorMessage),
			})
			continue
		}
		verdict, err := ParseVerdict(out.Result, ref.String(), candidates[ref])
		if err != nil {
			var perr *stages.ParseError
			if errors.As(err, &perr) {
				verdicts.Failed = append(verdicts.Failed, perr)
			} else {
				verdicts.Failed = append(verdicts.Failed, &stages.ParseError{
					Stage: stages.StageAudit, Unit: ref.String(), Err: err,
				})
			}
			continue
		}
		verdicts.Verdicts[ref] = verdict
	}
	return verdicts
}
