package pipeline

import (
	"errors"
	"fmt"
)

// ErrBookNotFound is returned when a requested book id (selection or
// --from-book) does not exist in the segment.
var ErrBookNotFound = errors.New("book not found in segment")

// ThresholdBreach halts a run when a book's escalation rate exceeds the
// configured limit. The run is resumable: NextBook names where --from-book
// should pick up after the escalations are reviewed.
type ThresholdBreach struct {
	Book      string
	Pct       float64
	Threshold float64
	NextBook  string
}

func (e *ThresholdBreach) Error() string {
	msg := fmt.Sprintf("escalation rate %.1f%% for %s exceeded the %.1f%% threshold",
		e.Pct, e.Book, e.Threshold)
	if e.NextBook != "" {
		msg += fmt.Sprintf("; resume with --from-book %s after review", e.NextBook)
	}
	return msg
}
