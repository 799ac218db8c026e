package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clearcanon/clarify/internal/canon"
	"github.com/clearcanon/clarify/internal/pipeline"
	"github.com/clearcanon/clarify/internal/runlog"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue a halted run from the book after the last completed one",
	Long: `Continue a run from where it stopped.

The last entry in the run log names the most recently completed book;
resume starts from the book after it in canonical order. Equivalent to
'clarify run --from-book <next>'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := getConfigManager(h)
		if err != nil {
			return err
		}
		cfg := mgr.Get()
		rt, err := buildRuntime(cmd.Context(), h, mgr)
		if err != nil {
			return err
		}

		entries, err := runlog.NewLog(h.RunLogPath()).ReadAll()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("no run log entries; use 'clarify run' for a fresh run")
		}
		last := entries[len(entries)-1]

		books, err := rt.Store.Books(cmd.Context(), cfg.Pipeline.Segment)
		if err != nil {
			return err
		}
		next := ""
		for i, b := range books {
			if canon.NormalizeBookID(b.BookID) == canon.NormalizeBookID(last.Book) && i+1 < len(books) {
				next = books[i+1].BookID
				break
			}
		}
		if next == "" {
			fmt.Printf("Last completed book %s is the final book in the segment; nothing to resume.\n", last.Book)
			return nil
		}

		fmt.Printf("Resuming from %s (last completed: %s)\n", next, last.Book)
		return pipeline.New(rt, pipeline.Options{FromBook: next}).Run(cmd.Context())
	},
}
