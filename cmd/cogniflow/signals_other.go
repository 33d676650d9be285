//go:build !unix

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joseph-ayodele/cogniflow/internal/core"
)

// watchPauseSignals is a no-op where SIGUSR1/SIGUSR2 do not exist.
func watchPauseSignals(context.Context, *core.Processor, *slog.Logger) <-chan struct{} {
	return make(chan struct{})
}

func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}
