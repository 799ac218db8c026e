package corpus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/clearcanon/clarify/internal/canon"
)

// MemoryStore is an in-memory Store for unit tests.
type MemoryStore struct {
	mu     sync.Mutex
	books  []BookInfo
	verses map[canon.VerseRef]*memVerse

	// UpdateCalls counts UpdateDraft invocations, for idempotence tests.
	UpdateCalls int
}

type memVerse struct {
	source    string
	clear     string
	certified bool
}

// NewMemoryStore creates an empty in-memory corpus store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{verses: make(map[canon.VerseRef]*memVerse)}
}

// AddBook registers a book for Books queries.
func (m *MemoryStore) AddBook(info BookInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books = append(m.books, info)
}

// AddVerse seeds a source verse, optionally with an existing draft.
func (m *MemoryStore) AddVerse(ref canon.VerseRef, source, clear string, certified bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verses[ref] = &memVerse{source: source, clear: clear, certified: certified}
}

// Draft returns the stored draft for a verse.
func (m *MemoryStore) Draft(ref canon.VerseRef) (text string, certified bool, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.verses[ref]
	if !ok {
		return "", false, false
	}
	return v.clear, v.certified, true
}

func (m *MemoryStore) Books(ctx context.Context, segment string) ([]BookInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []BookInfo
	for _, b := range m.books {
		if b.Segment == segment {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *MemoryStore) ChapterText(ctx context.Context, ref canon.ChapterRef) (*canon.ChapterText, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	text := &canon.ChapterText{Ref: ref}
	var verseNums []int
	for vref := range m.verses {
		if vref.Segment == ref.Segment && vref.Book == ref.Book && vref.Chapter == ref.Chapter {
			verseNums = append(verseNums, vref.Verse)
		}
	}
	sort.Ints(verseNums)

	for _, n := range verseNums {
		vref := canon.VerseRef{Segment: ref.Segment, Book: ref.Book, Chapter: ref.Chapter, Verse: n}
		v := m.verses[vref]
		text.Sources = append(text.Sources, canon.SourceVerse{Ref: vref, Text: v.source})
		if v.clear != "" {
			text.Drafts = append(text.Drafts, canon.DraftVerse{Ref: vref, Text: v.clear, Certified: v.certified})
		}
	}
	return text, nil
}

func (m *MemoryStore) UpdateDraft(ctx context.Context, ref canon.VerseRef, text string, certified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateCalls++
	v, ok := m.verses[ref]
	if !ok {
		return fmt.Errorf("%w: %s", ErrVerseNotFound, ref)
	}
	v.clear = text
	v.certified = certified
	return nil
}

func (m *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

// Verify interface
var _ Store = (*MemoryStore)(nil)
