package corpus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clearcanon/clarify/internal/canon"
)

// Certificate pairs candidate text with the audit verdict rendered against
// that exact text. A Writer commits nothing else.
type Certificate struct {
	Ref  canon.VerseRef
	Text string // the candidate text the verdict judged
	Pass bool
}

// Writer is the only component permitted to mutate Clear-variant text.
// It refuses any write that is not backed by a passing certificate.
type Writer struct {
	store  Store
	logger *slog.Logger

	commits int
	noops   int
}

// NewWriter creates a persistence writer over a corpus store.
func NewWriter(store Store, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, logger: logger}
}

// Commit applies certified text to the store. Committing text identical to
// an already-certified draft is a no-op, not an error.
func (w *Writer) Commit(ctx context.Context, cert Certificate) error {
	if !cert.Pass {
		return fmt.Errorf("%w: %s", ErrUncertified, cert.Ref)
	}
	if cert.Text == "" {
		return fmt.Errorf("%w: %s has empty certified text", ErrUncertified, cert.Ref)
	}

	// Skip the write when the stored draft already matches.
	chapter, err := w.store.ChapterText(ctx, cert.Ref.ChapterRef())
	if err == nil {
		if d, ok := chapter.DraftFor(cert.Ref.Verse); ok && d.Certified && d.Text == cert.Text {
			w.noops++
			w.logger.Debug("draft already certified, skipping write", "verse", cert.Ref.String())
			return nil
		}
	}

	if err := w.store.UpdateDraft(ctx, cert.Ref, cert.Text, true); err != nil {
		return fmt.Errorf("commit failed for %s: %w", cert.Ref, err)
	}
	w.commits++
	w.logger.Debug("committed certified draft", "verse", cert.Ref.String())
	return nil
}

// Commits returns the number of store writes performed.
func (w *Writer) Commits() int {
	return w.commits
}

// Noops returns the number of commits skipped because the stored draft
// already matched the certified text.
func (w *Writer) Noops() int {
	return w.noops
}
