// Package canon defines the identity and text types for the source corpus.
//
// The corpus is organized segment -> book -> chapter -> verse. Source text
// is immutable; only the Clear-variant draft text is ever rewritten, and
// only through the corpus.Writer after a passing audit verdict.
package canon

import (
	"fmt"
	"strings"
)

// Variant names a text column in the corpus store.
type Variant string

const (
	// VariantSource is the canonical archaic-English text. Read-only.
	VariantSource Variant = "source"

	// VariantClear is the modernized draft text. The only column this
	// pipeline mutates.
	VariantClear Variant = "clear"
)

// VerseRef identifies a single verse. It is the immutable identity key
// used everywhere in the pipeline.
type VerseRef struct {
	Segment string `json:"segment"`
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
}

// String returns a stable human-readable form, e.g. "ot/Ruth 1:22".
func (r VerseRef) String() string {
	return fmt.Sprintf("%s/%s %d:%d", r.Segment, r.Book, r.Chapter, r.Verse)
}

// Chapter returns the chapter this verse belongs to.
func (r VerseRef) ChapterRef() ChapterRef {
	return ChapterRef{Segment: r.Segment, Book: r.Book, Chapter: r.Chapter}
}

// ChapterRef identifies a chapter within a book.
type ChapterRef struct {
	Segment string `json:"segment"`
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
}

// String returns a stable human-readable form, e.g. "ot/Ruth 1".
func (c ChapterRef) String() string {
	return fmt.Sprintf("%s/%s %d", c.Segment, c.Book, c.Chapter)
}

// SourceVerse is a canonical verse. Immutable; owned by the corpus store.
type SourceVerse struct {
	Ref  VerseRef `json:"ref"`
	Text string   `json:"text"`
}

// DraftVerse is the current Clear-variant candidate for a verse.
// Certified is true when the stored text was committed together with a
// passing audit verdict for that exact text.
type DraftVerse struct {
	Ref       VerseRef `json:"ref"`
	Text      string   `json:"text"`
	Certified bool     `json:"certified"`
}

// ChapterText pairs the source verses of a chapter with their current
// drafts, ordered by verse number. Drafts may be shorter than Sources when
// a chapter has never been processed.
type ChapterText struct {
	Ref     ChapterRef
	Sources []SourceVerse
	Drafts  []DraftVerse
}

// DraftFor returns the draft for a verse number, if one exists.
func (c *ChapterText) DraftFor(verse int) (DraftVerse, bool) {
	for _, d := range c.Drafts {
		if d.Ref.Verse == verse {
			return d, true
		}
	}
	return DraftVerse{}, false
}

// FullyCertified reports whether every source verse has a certified draft.
// Used for the idempotent skip: such a chapter is not reprocessed unless
// regeneration is forced.
func (c *ChapterText) FullyCertified() bool {
	if len(c.Sources) == 0 {
		return false
	}
	for _, s := range c.Sources {
		d, ok := c.DraftFor(s.Ref.Verse)
		if !ok || !d.Certified || d.Text == "" {
			return false
		}
	}
	return true
}

// NormalizeBookID lowercases and trims a book identifier for comparisons.
// Book ids in the store are case-preserving but matched case-insensitively
// on the CLI (e.g. --from-book ruth).
func NormalizeBookID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
