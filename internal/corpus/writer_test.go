package corpus

import (
	"context"
	"errors"
	"testing"

	"github.com/clearcanon/clarify/internal/canon"
)

func TestWriter_Commit(t *testing.T) {
	ref := canon.VerseRef{Segment: "ot", Book: "Ruth", Chapter: 1, Verse: 1}

	t.Run("certified text is written", func(t *testing.T) {
		store := NewMemoryStore()
		store.AddVerse(ref, "source text", "", false)
		w := NewWriter(store, nil)

		err := w.Commit(context.Background(), Certificate{Ref: ref, Text: "modern text", Pass: true})
		if err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		text, certified, _ := store.Draft(ref)
		if text != "modern text" || !certified {
			t.Errorf("draft = %q certified=%v", text, certified)
		}
		if w.Commits() != 1 {
			t.Errorf("Commits() = %d, want 1", w.Commits())
		}
	})

	t.Run("failing certificate refused", func(t *testing.T) {
		store := NewMemoryStore()
		store.AddVerse(ref, "source text", "", false)
		w := NewWriter(store, nil)

		err := w.Commit(context.Background(), Certificate{Ref: ref, Text: "modern text", Pass: false})
		if !errors.Is(err, ErrUncertified) {
			t.Fatalf("expected ErrUncertified, got %v", err)
		}
		if store.UpdateCalls != 0 {
			t.Errorf("store was written %d times", store.UpdateCalls)
		}
	})

	t.Run("empty text refused", func(t *testing.T) {
		store := NewMemoryStore()
		store.AddVerse(ref, "source text", "", false)
		w := NewWriter(store, nil)

		if err := w.Commit(context.Background(), Certificate{Ref: ref, Pass: true}); !errors.Is(err, ErrUncertified) {
			t.Fatalf("expected ErrUncertified, got %v", err)
		}
	})

	t.Run("identical certified draft is a no-op", func(t *testing.T) {
		store := NewMemoryStore()
		store.AddVerse(ref, "source text", "modern text", true)
		w := NewWriter(store, nil)

		err := w.Commit(context.Background(), Certificate{Ref: ref, Text: "modern text", Pass: true})
		if err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if store.UpdateCalls != 0 {
			t.Errorf("no-op commit wrote to store %d times", store.UpdateCalls)
		}
		if w.Noops() != 1 {
			t.Errorf("Noops() = %d, want 1", w.Noops())
		}
	})

	t.Run("uncertified identical draft is re-written", func(t *testing.T) {
		store := NewMemoryStore()
		store.AddVerse(ref, "source text", "modern text", false)
		w := NewWriter(store, nil)

		if err := w.Commit(context.Background(), Certificate{Ref: ref, Text: "modern text", Pass: true}); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if store.UpdateCalls != 1 {
			t.Errorf("UpdateCalls = %d, want 1", store.UpdateCalls)
		}
		_, certified, _ := store.Draft(ref)
		if !certified {
			t.Error("draft should now be certified")
		}
	})
}
