// Package audit builds meaning-preservation checks for rewritten verses and
// parses the verdicts. The auditor only judges; it never emits corrected
// text, and it must run on a different decision process than the stage that
// produced the candidate.
package audit

import (
	_ "embed"
	"fmt"

	"github.com/clearcanon/clarify/internal/canon"
	"github.com/clearcanon/clarify/internal/providers"
)

//go:embed system.tmpl
var systemPrompt string

// SystemPrompt returns the audit system prompt.
func SystemPrompt() string {
	return systemPrompt
}

// Request builds a single audit request comparing a candidate rewrite
// against its source verse. Used both for batch audits and for the
// synchronous re-audit after a correction.
func Request(ref canon.VerseRef, source, candidate, model string) providers.ChatRequest {
	user := fmt.Sprintf("Verse %s\n\nORIGINAL:\n%s\n\nCANDIDATE:\n%s",
		ref.String(), source, candidate)
	return providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: SystemPrompt()},
			{Role: "user", Content: user},
		},
		Model:          model,
		Temperature:    0,
		MaxTokens:      512,
		ResponseFormat: responseFormat(),
	}
}
