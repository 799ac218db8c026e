// Package correct runs the synchronous correction pass: each verse that
// failed its audit gets one violation-scoped fix and exactly one re-audit.
// A verse that fails again is escalated, never retried.
package correct

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/clearcanon/clarify/internal/canon"
	"github.com/clearcanon/clarify/internal/providers"
	"github.com/clearcanon/clarify/internal/stages"
	"github.com/clearcanon/clarify/internal/stages/audit"
)

//go:embed system.tmpl
var systemPrompt string

// SystemPrompt returns the correction system prompt.
func SystemPrompt() string {
	return systemPrompt
}

// DefaultWorkers bounds the correction pool when the config does not.
const DefaultWorkers = 4

// Item is one verse awaiting correction: the source text, the candidate
// that failed, and the auditor's reason.
type Item struct {
	Ref       canon.VerseRef
	Source    string
	Candidate string
	Reason    string
}

// Outcome is the result of correcting and re-auditing one verse. Exactly one
// of three states holds: Verdict.Pass (corrected text certified), !Verdict.Pass
// (escalate with Verdict.Reason), or Err != nil (the unit could not be
// decided and is counted as an error).
type Outcome struct {
	Ref       canon.VerseRef
	Corrected string
	Verdict   audit.Verdict
	Err       error

	// Raw results for metrics recording.
	CorrectResult *providers.ChatResult
	AuditResult   *providers.ChatResult
}

// Runner drives the correction pool. The corrector runs on the rewrite
// provider's decision process and the re-audit on the audit provider's, so
// no correction is ever judged by the process that produced it.
type Runner struct {
	Corrector    providers.LLMClient
	Auditor      providers.LLMClient
	CorrectModel string
	AuditModel   string
	Workers      int
	Logger       *slog.Logger
}

// Run corrects every item with a bounded worker pool and re-audits each
// correction once. Results are returned in input order. Run only fails as a
// whole when the context is cancelled.
func (r *Runner) Run(ctx context.Context, items []Item) ([]Outcome, error) {
	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(items) {
		workers = len(items)
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	outcomes := make([]Outcome, len(items))
	work := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				outcomes[i] = r.correctOne(ctx, items[i], logger)
			}
		}()
	}

	for i := range items {
		if err := ctx.Err(); err != nil {
			close(work)
			wg.Wait()
			return nil, err
		}
		select {
		case work <- i:
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(work)
	wg.Wait()

	return outcomes, nil
}

// correctOne performs the fix and the single re-audit for one verse.
func (r *Runner) correctOne(ctx context.Context, item Item, logger *slog.Logger) Outcome {
	outcome := Outcome{Ref: item.Ref}

	req := r.request(item)
	result, err := r.Corrector.Chat(ctx, &req)
	outcome.CorrectResult = result
	if err != nil {
		outcome.Err = fmt.Errorf("correction call: %w", err)
		return outcome
	}
	corrected := strings.TrimSpace(result.Content)
	if corrected == "" {
		outcome.Err = &stages.ParseError{
			Stage: stages.StageCorrect,
			Unit:  item.Ref.String(),
			Err:   errors.New("empty correction"),
		}
		return outcome
	}
	outcome.Corrected = corrected

	auditReq := audit.Request(item.Ref, item.Source, corrected, r.AuditModel)
	auditResult, err := r.Auditor.Chat(ctx, &auditReq)
	outcome.AuditResult = auditResult
	if err != nil {
		outcome.Err = fmt.Errorf("re-audit call: %w", err)
		return outcome
	}
	verdict, err := audit.ParseVerdict(auditResult, item.Ref.String(), corrected)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Verdict = verdict

	logger.Debug("re-audit complete",
		"verse", item.Ref.String(),
		"pass", verdict.Pass,
		"reason", verdict.Reason)
	return outcome
}

func (r *Runner) request(item Item) providers.ChatRequest {
	user := fmt.Sprintf("Verse %s\n\nORIGINAL:\n%s\n\nREJECTED REWRITE:\n%s\n\nREVIEWER'S REASON:\n%s",
		item.Ref.String(), item.Source, item.Candidate, item.Reason)
	return providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: SystemPrompt()},
			{Role: "user", Content: user},
		},
		Model:       r.CorrectModel,
		Temperature: 0.2,
		MaxTokens:   1024,
	}
}
