package main

import (
	"context"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/joseph-ayodele/cogniflow/internal/entity"
	"github.com/joseph-ayodele/cogniflow/internal/jobstate"
)

type progressTracker struct {
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// trackProgress renders the job progress stream until it closes.
func trackProgress(parent context.Context, events <-chan jobstate.ProgressEvent, w io.Writer) *progressTracker {
	ctx, cancel := context.WithCancel(parent)
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
	)
	t := &progressTracker{cancel: cancel}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-ctx.Done():
				_ = bar.Exit()
				return
			case ev, ok := <-events:
				if !ok {
					_ = bar.Finish()
					_, _ = io.WriteString(w, "\n")
					return
				}
				bar.Describe(ev.Stage)
				_ = bar.Set(int(ev.Progress))
			}
		}
	}()
	return t
}

// Close waits for the stream to drain when the job reached a terminal state,
// otherwise it stops rendering immediately.
func (t *progressTracker) Close(terminal bool) {
	if !terminal {
		t.cancel()
	}
	t.wg.Wait()
	t.cancel()
}

func countChunks(job *entity.Job) (completed, failed int) {
	return entity.CountStatuses(job.Chunks)
}
