//go:build unix

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/cogniflow/internal/core"
)

// watchPauseSignals pauses the live job on SIGUSR1. SIGUSR2 is delivered on
// the returned channel so the caller can resume, and only while the job is
// paused.
func watchPauseSignals(ctx context.Context, proc *core.Processor, logger *slog.Logger) <-chan struct{} {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	resume := make(chan struct{}, 1)

	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-sigs:
				switch s {
				case syscall.SIGUSR1:
					if err := proc.Pause(); err != nil {
						logger.Warn("cli.pause_ignored", "error", err)
					}
				case syscall.SIGUSR2:
					if !resumable(proc.Job()) {
						logger.Warn("cli.resume_ignored", "reason", "job is not paused")
						continue
					}
					select {
					case resume <- struct{}{}:
					default:
					}
				}
			}
		}
	}()
	return resume
}

func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
