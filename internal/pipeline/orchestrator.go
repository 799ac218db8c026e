package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/clearcanon/clarify/internal/canon"
	"github.com/clearcanon/clarify/internal/corpus"
	"github.com/clearcanon/clarify/internal/escalate"
	"github.com/clearcanon/clarify/internal/providers"
	"github.com/clearcanon/clarify/internal/runlog"
	"github.com/clearcanon/clarify/internal/runmeta"
	"github.com/clearcanon/clarify/internal/stages"
	"github.com/clearcanon/clarify/internal/stages/audit"
	"github.com/clearcanon/clarify/internal/stages/correct"
	"github.com/clearcanon/clarify/internal/stages/rewrite"
)

// Orchestrator drives a run: books strictly in canonical order, one chapter
// batch at a time, with the escalation breaker evaluated between books.
type Orchestrator struct {
	rt   *Runtime
	opts Options
	log  *slog.Logger

	// consecutive chapter-level failures; the run aborts when this
	// reaches the configured maximum.
	chapterFailures int
}

// New creates an orchestrator for one run.
func New(rt *Runtime, opts Options) *Orchestrator {
	logger := rt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{rt: rt, opts: opts, log: logger}
}

// bookStats accumulates the counters behind one run log entry.
type bookStats struct {
	total     int
	passed    int
	corrected int
	escalated int
	errored   int
}

// Run processes the selected books sequentially. It returns a
// *ThresholdBreach when a book's escalation rate halts the run, and a plain
// error for fatal conditions.
func (o *Orchestrator) Run(ctx context.Context) error {
	segment := o.rt.Config.Pipeline.Segment
	books, err := o.rt.Store.Books(ctx, segment)
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	selected, err := selectBooks(books, o.opts)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		o.log.Warn("no books selected", "segment", segment)
		return nil
	}

	for i, book := range selected {
		// Book boundaries are the safe point to pick up edited tuning:
		// nothing is in flight and the breaker has not been evaluated.
		if o.rt.Reload != nil {
			if cfg := o.rt.Reload(); cfg != nil {
				o.rt.Config = cfg
			}
		}
		threshold := o.rt.Config.Pipeline.EscalationThresholdPct

		o.log.Info("starting book",
			"book", book.BookID,
			"chapters", book.Chapters,
			"position", book.Position)

		stats, err := o.processBook(ctx, book)
		if err != nil {
			return err
		}
		if o.opts.DryRun {
			continue
		}

		entry := runlog.NewEntry(book.Segment, book.BookID,
			stats.total, stats.passed, stats.corrected, stats.escalated, stats.errored)
		if err := o.rt.RunLog.Append(entry); err != nil {
			return fmt.Errorf("append run log: %w", err)
		}
		o.log.Info("book complete",
			"book", book.BookID,
			"verses", entry.TotalVerses,
			"passed", entry.AuditPassCount,
			"corrected", entry.CorrectedCount,
			"escalated", entry.EscalationCount,
			"errors", entry.ErrorCount,
			"escalation_pct", entry.EscalationPct)

		if entry.Breaches(threshold) {
			breach := &ThresholdBreach{
				Book:      book.BookID,
				Pct:       entry.EscalationPct,
				Threshold: threshold,
			}
			if i+1 < len(selected) {
				breach.NextBook = selected[i+1].BookID
			}
			o.log.Error("escalation threshold breached, halting",
				"book", breach.Book,
				"pct", breach.Pct,
				"threshold", breach.Threshold,
				"next_book", breach.NextBook)
			return breach
		}
	}
	return nil
}

// selectBooks applies the Books and FromBook filters, preserving canonical
// order. The store returns books ordered by position.
func selectBooks(books []corpus.BookInfo, opts Options) ([]corpus.BookInfo, error) {
	wanted := make(map[string]bool, len(opts.Books))
	for _, b := range opts.Books {
		wanted[canon.NormalizeBookID(b)] = true
	}

	from := canon.NormalizeBookID(opts.FromBook)
	fromSeen := from == ""

	var selected []corpus.BookInfo
	matched := make(map[string]bool)
	for _, book := range books {
		id := canon.NormalizeBookID(book.BookID)
		if !fromSeen {
			if id != from {
				continue
			}
			fromSeen = true
		}
		if len(wanted) > 0 {
			if !wanted[id] {
				continue
			}
			matched[id] = true
		}
		selected = append(selected, book)
	}

	if !fromSeen {
		return nil, fmt.Errorf("%w: %s", ErrBookNotFound, opts.FromBook)
	}
	for _, b := range opts.Books {
		if !matched[canon.NormalizeBookID(b)] {
			return nil, fmt.Errorf("%w: %s", ErrBookNotFound, b)
		}
	}
	return selected, nil
}

// processBook runs every selected chapter of a book. Chapter-level failures
// are counted, not fatal, unless they repeat beyond the configured limit.
func (o *Orchestrator) processBook(ctx context.Context, book corpus.BookInfo) (bookStats, error) {
	var stats bookStats

	chapters := make(map[int]bool, len(o.opts.Chapters))
	for _, c := range o.opts.Chapters {
		chapters[c] = true
	}

	for ch := 1; ch <= book.Chapters; ch++ {
		if len(chapters) > 0 && !chapters[ch] {
			continue
		}
		ref := canon.ChapterRef{Segment: book.Segment, Book: book.BookID, Chapter: ch}

		chapter, err := o.rt.Store.ChapterText(ctx, ref)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			if err := o.chapterFailed(ref, &stats, 0, err); err != nil {
				return stats, err
			}
			continue
		}
		stats.total += len(chapter.Sources)

		if chapter.FullyCertified() && !o.opts.Force {
			stats.passed += len(chapter.Sources)
			o.log.Info("chapter already certified, skipping",
				"chapter", ref.String(),
				"verses", len(chapter.Sources))
			continue
		}

		if o.opts.DryRun {
			o.log.Info("dry-run: would process chapter",
				"chapter", ref.String(),
				"verses", len(chapter.Sources))
			continue
		}

		if err := o.processChapter(ctx, chapter, &stats); err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			if err := o.chapterFailed(ref, &stats, len(chapter.Sources), err); err != nil {
				return stats, err
			}
			continue
		}
		o.chapterFailures = 0
	}
	return stats, nil
}

// chapterFailed records a chapter-level failure and aborts the run when too
// many happen in a row.
func (o *Orchestrator) chapterFailed(ref canon.ChapterRef, stats *bookStats, verses int, cause error) error {
	stats.errored += verses
	o.chapterFailures++
	o.log.Error("chapter failed",
		"chapter", ref.String(),
		"consecutive_failures", o.chapterFailures,
		"error", cause)

	limit := o.rt.Config.Pipeline.MaxConsecutiveChapterFailures
	if limit > 0 && o.chapterFailures >= limit {
		return fmt.Errorf("aborting after %d consecutive chapter failures: %w", o.chapterFailures, cause)
	}
	return nil
}

// processChapter runs the three stages for one chapter: rewrite batch,
// audit batch, then the synchronous correction pass for audit failures.
func (o *Orchestrator) processChapter(ctx context.Context, chapter *canon.ChapterText, stats *bookStats) error {
	reg := o.rt.Registry

	rewriteBatch := rewrite.BuildBatch(chapter, reg.RewriteModel())
	rewriteOutcomes, rewriteAdopted, err := o.runBatch(ctx, &rewriteBatch, !o.opts.Force)
	if err != nil {
		return err
	}
	drafts, err := rewrite.Collect(rewriteBatch, rewriteOutcomes)
	for _, f := range drafts.Failed {
		o.log.Warn("rewrite unit failed", "unit", f.Unit, "error", f.Err)
	}
	if err != nil {
		return err
	}

	// An earlier audit job may be adopted only when the drafts it judged
	// came from the same persisted rewrite results: a verdict certifies one
	// exact text, never a regenerated one.
	auditBatch := audit.BuildBatch(chapter, drafts.Drafts, reg.AuditModel())
	auditOutcomes, _, err := o.runBatch(ctx, &auditBatch, rewriteAdopted)
	if err != nil {
		return err
	}
	verdicts := audit.Collect(auditBatch, drafts.Drafts, auditOutcomes)
	for _, f := range verdicts.Failed {
		o.log.Warn("audit unit unparseable, verse left uncertified", "unit", f.Unit, "error", f.Err)
	}
	stats.errored += len(verdicts.Failed)

	var items []correct.Item
	for _, v := range chapter.Sources {
		verdict, ok := verdicts.Verdicts[v.Ref]
		if !ok {
			continue
		}
		if verdict.Pass {
			if err := o.commit(ctx, v.Ref, verdict, stats); err != nil {
				return err
			}
			continue
		}
		items = append(items, correct.Item{
			Ref:       v.Ref,
			Source:    v.Text,
			Candidate: verdict.Text,
			Reason:    verdict.Reason,
		})
	}

	if len(items) == 0 {
		return nil
	}
	return o.correctAndEscalate(ctx, items, stats)
}

// commit writes a certified draft. Store write failures count against the
// verse, not the chapter.
func (o *Orchestrator) commit(ctx context.Context, ref canon.VerseRef, verdict audit.Verdict, stats *bookStats) error {
	cert := corpus.Certificate{Ref: ref, Text: verdict.Text, Pass: verdict.Pass}
	if err := o.rt.Writer.Commit(ctx, cert); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.log.Error("commit failed", "verse", ref.String(), "error", err)
		stats.errored++
		return nil
	}
	stats.passed++
	return nil
}

// correctAndEscalate runs the bounded correction pool and routes each verse
// to a commit, the escalation sink, or the error count.
func (o *Orchestrator) correctAndEscalate(ctx context.Context, items []correct.Item, stats *bookStats) error {
	runner := &correct.Runner{
		Corrector:    o.rt.Registry.Corrector(),
		Auditor:      o.rt.Registry.Audit(),
		CorrectModel: o.rt.Registry.RewriteModel(),
		AuditModel:   o.rt.Registry.AuditModel(),
		Workers:      o.rt.Config.Pipeline.CorrectionWorkers,
		Logger:       o.log,
	}
	outcomes, err := runner.Run(ctx, items)
	if err != nil {
		return err
	}

	for i, out := range outcomes {
		item := items[i]
		o.recordCall(item.Ref, stages.StageCorrect, out.CorrectResult)
		o.recordCall(item.Ref, stages.StageAudit, out.AuditResult)

		switch {
		case out.Err != nil:
			o.log.Error("correction failed, verse left uncertified",
				"verse", item.Ref.String(), "error", out.Err)
			stats.errored++
		case out.Verdict.Pass:
			cert := corpus.Certificate{Ref: item.Ref, Text: out.Verdict.Text, Pass: true}
			if err := o.rt.Writer.Commit(ctx, cert); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				o.log.Error("commit failed", "verse", item.Ref.String(), "error", err)
				stats.errored++
				continue
			}
			stats.corrected++
		default:
			rec := escalate.Record{
				Ref:              item.Ref,
				SourceText:       item.Source,
				FailedCandidate:  item.Candidate,
				CorrectionOutput: out.Corrected,
				AuditReason:      item.Reason,
				ReauditReason:    out.Verdict.Reason,
			}
			if err := o.rt.Escalations.Append(rec); err != nil {
				return fmt.Errorf("append escalation: %w", err)
			}
			stats.escalated++
		}
	}
	return nil
}

// runBatch produces the outcomes for one chapter batch, blocking until they
// are in. When an earlier invocation already submitted the same work,
// allowAdopt lets that job be resumed instead of resubmitted; the returned
// bool reports whether that happened. For a fresh submission, the
// correlation index is durable before the provider sees the batch, and the
// provider job id is durable before polling starts.
func (o *Orchestrator) runBatch(ctx context.Context, batch *stages.ChapterBatch, allowAdopt bool) ([]providers.BatchOutcome, bool, error) {
	client := o.rt.Registry.Rewrite()
	if batch.Stage == stages.StageAudit {
		client = o.rt.Registry.AuditBatch()
	}

	if allowAdopt {
		outcomes, adopted, err := o.adoptJob(ctx, client, batch)
		if err != nil {
			return nil, false, err
		}
		if adopted {
			return outcomes, true, nil
		}
	}

	job, err := o.rt.Jobs.Prepare(*batch)
	if err != nil {
		return nil, false, err
	}
	jobID, err := client.Submit(ctx, batch.Requests)
	if err != nil {
		return nil, false, fmt.Errorf("submit %s batch for %s: %w", batch.Stage, batch.Ref, err)
	}
	if err := o.rt.Jobs.MarkSubmitted(job, jobID); err != nil {
		return nil, false, err
	}
	o.log.Info("batch submitted",
		"stage", batch.Stage,
		"chapter", batch.Ref.String(),
		"job_id", jobID,
		"units", len(batch.Requests))

	outcomes, err := o.collectJob(ctx, client, job)
	if err != nil {
		return nil, false, err
	}
	o.recordOutcomes(*batch, outcomes)
	return outcomes, false, nil
}

// adoptJob resumes the newest previously submitted job for the same chapter
// and phase. Saved results are reused directly; a job still at the provider
// is polled from where the interrupted run left off. On adoption the
// batch's correlation index is replaced with the adopted job's so outcomes
// resolve to verses. A job whose client cannot resume across processes is
// skipped, leaving the caller to submit fresh.
func (o *Orchestrator) adoptJob(ctx context.Context, client providers.BatchClient, batch *stages.ChapterBatch) ([]providers.BatchOutcome, bool, error) {
	job, err := o.rt.Jobs.Find(batch.Ref, batch.Stage)
	if err != nil || job == nil {
		return nil, false, err
	}

	if outcomes, err := o.rt.Jobs.LoadResults(job); err == nil {
		o.log.Info("reusing saved batch results",
			"stage", batch.Stage,
			"chapter", batch.Ref.String(),
			"job_id", job.JobID)
		batch.Index = job.Index()
		return outcomes, true, nil
	}

	if !client.Resumable() {
		o.log.Warn("submitted batch did not outlive its process, resubmitting",
			"stage", batch.Stage,
			"chapter", batch.Ref.String(),
			"job_id", job.JobID)
		return nil, false, nil
	}

	o.log.Info("resuming submitted batch",
		"stage", batch.Stage,
		"chapter", batch.Ref.String(),
		"job_id", job.JobID)
	batch.Index = job.Index()
	outcomes, err := o.collectJob(ctx, client, job)
	if err != nil {
		return nil, false, err
	}
	o.recordOutcomes(*batch, outcomes)
	return outcomes, true, nil
}

// collectJob polls a submitted job to a terminal state, downloads its
// outcomes, and persists both before returning.
func (o *Orchestrator) collectJob(ctx context.Context, client providers.BatchClient, job *runmeta.BatchJob) ([]providers.BatchOutcome, error) {
	status, err := o.awaitTerminal(ctx, client, job.JobID)
	if err != nil {
		return nil, err
	}
	if err := o.rt.Jobs.MarkStatus(job, status); err != nil {
		return nil, err
	}
	if status != providers.BatchEnded {
		return nil, fmt.Errorf("%s batch %s for %s finished %s", job.Phase, job.JobID, job.Chapter, status)
	}

	outcomes, err := retry.DoWithData(
		func() ([]providers.BatchOutcome, error) { return client.Results(ctx, job.JobID) },
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch results for %s: %w", job.JobID, err)
	}
	if err := o.rt.Jobs.SaveResults(job, outcomes); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (o *Orchestrator) recordOutcomes(batch stages.ChapterBatch, outcomes []providers.BatchOutcome) {
	for _, out := range outcomes {
		if ref, ok := batch.Index[out.CorrelationID]; ok && out.Result != nil {
			o.recordCall(ref, batch.Stage, out.Result)
		}
	}
}

// awaitTerminal polls the job until it leaves the submitted state. Each
// poll tolerates transient provider errors with its own retry.
func (o *Orchestrator) awaitTerminal(ctx context.Context, client providers.BatchClient, jobID string) (providers.BatchStatus, error) {
	cfg := o.rt.Config.Pipeline
	interval := time.Duration(cfg.PollIntervalSec) * time.Second
	attempts := cfg.PollMaxAttempts
	if attempts <= 0 {
		attempts = 120
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && interval > 0 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		status, err := retry.DoWithData(
			func() (providers.BatchStatus, error) { return client.Poll(ctx, jobID) },
			retry.Context(ctx),
			retry.Attempts(3),
			retry.Delay(time.Second),
		)
		if err != nil {
			return "", fmt.Errorf("poll %s: %w", jobID, err)
		}
		if status.Terminal() {
			return status, nil
		}
	}
	return "", fmt.Errorf("job %s still running after %d polls", jobID, attempts)
}

func (o *Orchestrator) recordCall(ref canon.VerseRef, stage string, result *providers.ChatResult) {
	if o.rt.Metrics == nil || result == nil {
		return
	}
	if err := o.rt.Metrics.RecordCall(ref, stage, result); err != nil {
		o.log.Warn("metric not recorded", "verse", ref.String(), "error", err)
	}
}
