package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clearcanon/clarify/internal/canon"
	"github.com/clearcanon/clarify/internal/corpus"
	"github.com/clearcanon/clarify/internal/metrics"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate [book ...]",
	Short: "Project inference cost for books before running them",
	Long: `Project the rewrite and audit cost for the given books (or the whole
segment) without submitting anything. Correction cost is excluded: the
number of audit failures is unknowable up front.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}
		cfg, err := getConfig(h)
		if err != nil {
			return err
		}

		store := corpus.NewClient(cfg.Corpus.URL)
		if err := store.HealthCheck(ctx); err != nil {
			return fmt.Errorf("corpus store at %s: %w", cfg.Corpus.URL, err)
		}

		books, err := store.Books(ctx, cfg.Pipeline.Segment)
		if err != nil {
			return err
		}
		wanted := make(map[string]bool, len(args))
		for _, a := range args {
			wanted[canon.NormalizeBookID(a)] = true
		}

		var verses []canon.SourceVerse
		for _, book := range books {
			if len(wanted) > 0 && !wanted[canon.NormalizeBookID(book.BookID)] {
				continue
			}
			for ch := 1; ch <= book.Chapters; ch++ {
				ref := canon.ChapterRef{Segment: book.Segment, Book: book.BookID, Chapter: ch}
				chapter, err := store.ChapterText(ctx, ref)
				if err != nil {
					return fmt.Errorf("read %s: %w", ref, err)
				}
				verses = append(verses, chapter.Sources...)
			}
		}

		est := metrics.EstimateVerses(verses, cfg.Providers.Rewrite.Model, cfg.Providers.Audit.Model)
		fmt.Printf("Verses:        %d\n", est.Verses)
		fmt.Printf("Rewrite:       ~%d tokens, $%.2f (%s)\n", est.RewriteTokens, est.RewriteCostUSD, cfg.Providers.Rewrite.Model)
		fmt.Printf("Audit:         ~%d tokens, $%.2f (%s)\n", est.AuditTokens, est.AuditCostUSD, cfg.Providers.Audit.Model)
		fmt.Printf("Total:         $%.2f\n", est.TotalCostUSD)
		fmt.Println("Correction cost excluded; it depends on the audit failure rate.")
		return nil
	},
}
