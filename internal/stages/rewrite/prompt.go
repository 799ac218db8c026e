// Package rewrite builds the batch rewrite requests for a chapter and
// collects the returned drafts. One request per verse; the chapter is the
// unit of submission.
package rewrite

import (
	_ "embed"
	"fmt"

	"github.com/clearcanon/clarify/internal/canon"
)

//go:embed system.tmpl
var systemPrompt string

// SystemPrompt returns the rewrite system prompt.
func SystemPrompt() string {
	return systemPrompt
}

// userPrompt formats a single source verse for the model. The ref line gives
// the model context (book and chapter register) without inviting commentary.
func userPrompt(v canon.SourceVerse) string {
	return fmt.Sprintf("Verse %s:\n%s", v.Ref.String(), v.Text)
}
