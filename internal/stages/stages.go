// Package stages holds the three decision stages of the modernization
// pipeline: rewrite, audit, and correct. Each subpackage owns its prompt
// contract, request construction, and response parsing; none of them talk
// to the corpus store directly.
package stages

import (
	"fmt"

	"github.com/clearcanon/clarify/internal/canon"
	"github.com/clearcanon/clarify/internal/providers"
)

// Stage names, used in logs and error messages.
const (
	StageRewrite = "rewrite"
	StageAudit   = "audit"
	StageCorrect = "correct"
)

// ParseError reports a model response that could not be interpreted for a
// single unit. The unit is skipped and counted; a ParseError never aborts
// the run on its own.
type ParseError struct {
	Stage string // rewrite, audit, correct
	Unit  string // verse ref, e.g. "ot/Ruth 1:22"
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: unparseable response for %s: %v", e.Stage, e.Unit, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ChapterBatch is a chapter's worth of batch requests plus the correlation
// index that maps each request back to its verse. The index is the only
// record of which request belongs to which verse, so it must be persisted
// before the batch is submitted.
type ChapterBatch struct {
	Stage    string
	Ref      canon.ChapterRef
	Requests []providers.BatchRequest
	Index    map[string]canon.VerseRef
}
