package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/clearcanon/clarify/internal/pipeline"
)

// Exit codes: 0 success, 1 fatal error, 2 escalation threshold breach
// (resumable with --from-book after review).
const (
	exitOK     = 0
	exitFatal  = 1
	exitBreach = 2
)

func main() {
	// Set up context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var breach *pipeline.ThresholdBreach
		if errors.As(err, &breach) {
			os.Exit(exitBreach)
		}
		os.Exit(exitFatal)
	}
	os.Exit(exitOK)
}
