package corpus

import (
	"context"
	"fmt"
	"sort"

	"github.com/clearcanon/clarify/internal/canon"
)

// BookInfo describes a book within a corpus segment.
type BookInfo struct {
	Segment  string `json:"segment"`
	BookID   string `json:"book_id"`
	Position int    `json:"position"` // canonical ordering within the segment
	Chapters int    `json:"chapters"`
}

// Store is the corpus access interface used by the pipeline.
// The HTTP client implements it against DefraDB; MemoryStore implements it
// for tests.
type Store interface {
	// Books returns the books of a segment in canonical order.
	Books(ctx context.Context, segment string) ([]BookInfo, error)

	// ChapterText returns source verses and current drafts for a chapter,
	// ordered by verse number.
	ChapterText(ctx context.Context, ref canon.ChapterRef) (*canon.ChapterText, error)

	// UpdateDraft overwrites the Clear-variant text for one verse.
	// Callers must go through Writer; this is the raw store operation.
	UpdateDraft(ctx context.Context, ref canon.VerseRef, text string, certified bool) error

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}

// Books returns the books of a segment ordered by canonical position.
func (c *Client) Books(ctx context.Context, segment string) ([]BookInfo, error) {
	query := `query Books($segment: String!) {
		Book(filter: {segment: {_eq: $segment}}, order: {position: ASC}) {
			segment
			book_id
			position
			chapters
		}
	}`

	resp, err := c.Execute(ctx, query, map[string]any{"segment": segment})
	if err != nil {
		return nil, fmt.Errorf("books query failed: %w", err)
	}
	if msg := resp.Error(); msg != "" {
		return nil, fmt.Errorf("books query error: %s", msg)
	}

	docs, _ := resp.Data["Book"].([]any)
	books := make([]BookInfo, 0, len(docs))
	for _, d := range docs {
		doc, ok := d.(map[string]any)
		if !ok {
			continue
		}
		books = append(books, BookInfo{
			Segment:  asString(doc["segment"]),
			BookID:   asString(doc["book_id"]),
			Position: asInt(doc["position"]),
			Chapters: asInt(doc["chapters"]),
		})
	}

	sort.Slice(books, func(i, j int) bool { return books[i].Position < books[j].Position })
	return books, nil
}

// ChapterText returns the source verses and current drafts for a chapter.
func (c *Client) ChapterText(ctx context.Context, ref canon.ChapterRef) (*canon.ChapterText, error) {
	query := `query Chapter($segment: String!, $book: String!, $chapter: Int!) {
		Verse(
			filter: {segment: {_eq: $segment}, book: {_eq: $book}, chapter: {_eq: $chapter}},
			order: {verse: ASC}
		) {
			verse
			source_text
			clear_text
			clear_certified
		}
	}`

	resp, err := c.Execute(ctx, query, map[string]any{
		"segment": ref.Segment,
		"book":    ref.Book,
		"chapter": ref.Chapter,
	})
	if err != nil {
		return nil, fmt.Errorf("chapter query failed for %s: %w", ref, err)
	}
	if msg := resp.Error(); msg != "" {
		return nil, fmt.Errorf("chapter query error for %s: %s", ref, msg)
	}

	docs, _ := resp.Data["Verse"].([]any)
	text := &canon.ChapterText{Ref: ref}
	for _, d := range docs {
		doc, ok := d.(map[string]any)
		if !ok {
			continue
		}
		vref := canon.VerseRef{
			Segment: ref.Segment,
			Book:    ref.Book,
			Chapter: ref.Chapter,
			Verse:   asInt(doc["verse"]),
		}
		text.Sources = append(text.Sources, canon.SourceVerse{
			Ref:  vref,
			Text: asString(doc["source_text"]),
		})
		if clear := asString(doc["clear_text"]); clear != "" {
			text.Drafts = append(text.Drafts, canon.DraftVerse{
				Ref:       vref,
				Text:      clear,
				Certified: asBool(doc["clear_certified"]),
			})
		}
	}
	return text, nil
}

// UpdateDraft overwrites the Clear-variant text for one verse. The update
// is keyed on the verse identity, never on positional assumptions.
func (c *Client) UpdateDraft(ctx context.Context, ref canon.VerseRef, text string, certified bool) error {
	// Look up the document id first; Defra updates are by docID.
	lookup := `query VerseID($segment: String!, $book: String!, $chapter: Int!, $verse: Int!) {
		Verse(filter: {segment: {_eq: $segment}, book: {_eq: $book}, chapter: {_eq: $chapter}, verse: {_eq: $verse}}) {
			_docID
		}
	}`
	resp, err := c.Execute(ctx, lookup, map[string]any{
		"segment": ref.Segment,
		"book":    ref.Book,
		"chapter": ref.Chapter,
		"verse":   ref.Verse,
	})
	if err != nil {
		return fmt.Errorf("verse lookup failed for %s: %w", ref, err)
	}
	if msg := resp.Error(); msg != "" {
		return fmt.Errorf("verse lookup error for %s: %s", ref, msg)
	}

	docs, _ := resp.Data["Verse"].([]any)
	if len(docs) == 0 {
		return fmt.Errorf("%w: %s", ErrVerseNotFound, ref)
	}
	doc, _ := docs[0].(map[string]any)
	docID := asString(doc["_docID"])
	if docID == "" {
		return fmt.Errorf("%w: %s has no document id", ErrVerseNotFound, ref)
	}

	mutation := fmt.Sprintf(
		`mutation UpdateDraft($text: String!, $certified: Boolean!) {
			update_Verse(docID: %q, input: {clear_text: $text, clear_certified: $certified}) {
				_docID
			}
		}`, docID)

	resp, err = c.Execute(ctx, mutation, map[string]any{
		"text":      text,
		"certified": certified,
	})
	if err != nil {
		return fmt.Errorf("draft update failed for %s: %w", ref, err)
	}
	if msg := resp.Error(); msg != "" {
		return fmt.Errorf("draft update error for %s: %s", ref, msg)
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// Verify interface
var _ Store = (*Client)(nil)
