package corpus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clearcanon/clarify/internal/canon"
)

// fakeStoreServer implements just enough of the DefraDB HTTP surface for
// client tests: health check plus canned GraphQL responses keyed on the
// operation name embedded in the query text.
func fakeStoreServer(t *testing.T, responses map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health-check" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.URL.Path != "/api/v0/graphql" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}

		var req GQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}

		for op, data := range responses {
			if strings.Contains(req.Query, op) {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{"data": data})
				return
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"message": "unknown operation"}},
		})
	}))
}

func TestClient_HealthCheck(t *testing.T) {
	server := fakeStoreServer(t, nil)
	defer server.Close()

	if err := NewClient(server.URL).HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClient_Books(t *testing.T) {
	server := fakeStoreServer(t, map[string]any{
		"query Books": map[string]any{
			"Book": []map[string]any{
				{"segment": "ot", "book_id": "Judges", "position": 7, "chapters": 21},
				{"segment": "ot", "book_id": "Ruth", "position": 8, "chapters": 4},
			},
		},
	})
	defer server.Close()

	books, err := NewClient(server.URL).Books(context.Background(), "ot")
	if err != nil {
		t.Fatalf("Books() error = %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("got %d books, want 2", len(books))
	}
	if books[0].BookID != "Judges" || books[1].BookID != "Ruth" {
		t.Errorf("books out of order: %+v", books)
	}
}

func TestClient_ChapterText(t *testing.T) {
	server := fakeStoreServer(t, map[string]any{
		"query Chapter": map[string]any{
			"Verse": []map[string]any{
				{"verse": 1, "source_text": "In the days when the judges ruled...", "clear_text": "", "clear_certified": false},
				{"verse": 2, "source_text": "And the name of the man was Elimelech...", "clear_text": "The man's name was Elimelech...", "clear_certified": true},
			},
		},
	})
	defer server.Close()

	ref := canon.ChapterRef{Segment: "ot", Book: "Ruth", Chapter: 1}
	text, err := NewClient(server.URL).ChapterText(context.Background(), ref)
	if err != nil {
		t.Fatalf("ChapterText() error = %v", err)
	}
	if len(text.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(text.Sources))
	}
	if len(text.Drafts) != 1 {
		t.Fatalf("got %d drafts, want 1", len(text.Drafts))
	}
	d, ok := text.DraftFor(2)
	if !ok || !d.Certified {
		t.Errorf("DraftFor(2) = %+v, ok=%v", d, ok)
	}
	if text.FullyCertified() {
		t.Error("chapter with an uncertified verse must not be FullyCertified")
	}
}

func TestClient_UpdateDraft(t *testing.T) {
	var sawUpdate bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GQLRequest
		json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(req.Query, "query VerseID"):
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"Verse": []map[string]any{{"_docID": "bae-verse-1"}},
				},
			})
		case strings.Contains(req.Query, "mutation UpdateDraft"):
			sawUpdate = true
			if !strings.Contains(req.Query, "bae-verse-1") {
				t.Errorf("update does not target looked-up docID: %s", req.Query)
			}
			if req.Variables["text"] != "Naomi returned" {
				t.Errorf("unexpected text variable: %v", req.Variables["text"])
			}
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"update_Verse": []map[string]any{{"_docID": "bae-verse-1"}},
				},
			})
		default:
			t.Errorf("unexpected query: %s", req.Query)
		}
	}))
	defer server.Close()

	ref := canon.VerseRef{Segment: "ot", Book: "Ruth", Chapter: 1, Verse: 22}
	err := NewClient(server.URL).UpdateDraft(context.Background(), ref, "Naomi returned", true)
	if err != nil {
		t.Fatalf("UpdateDraft() error = %v", err)
	}
	if !sawUpdate {
		t.Error("update mutation never sent")
	}
}

func TestClient_UpdateDraftMissingVerse(t *testing.T) {
	server := fakeStoreServer(t, map[string]any{
		"query VerseID": map[string]any{"Verse": []map[string]any{}},
	})
	defer server.Close()

	ref := canon.VerseRef{Segment: "ot", Book: "Ruth", Chapter: 99, Verse: 1}
	err := NewClient(server.URL).UpdateDraft(context.Background(), ref, "text", true)
	if err == nil || !strings.Contains(err.Error(), "verse not found") {
		t.Errorf("expected verse not found, got %v", err)
	}
}
