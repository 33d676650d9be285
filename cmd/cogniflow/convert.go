package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cogniflow/constants"
	"github.com/joseph-ayodele/cogniflow/internal/core/async"
	"github.com/joseph-ayodele/cogniflow/internal/entity"
)

type runOptions struct {
	outDir  string
	partial bool
	quiet   bool
}

func (o *runOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.outDir, "out", "o", "", "directory for the generated PDF (default OUTPUT_DIR)")
	cmd.Flags().BoolVar(&o.partial, "partial", false, "write the PDF even when some chunks failed")
	cmd.Flags().BoolVarP(&o.quiet, "quiet", "q", false, "hide the progress bar")
}

func newConvertCmd(root *rootOptions) *cobra.Command {
	ro := &runOptions{}
	cmd := &cobra.Command{
		Use:   "convert <file.pdf>",
		Short: "Convert a PDF document",
		Long: `Extract, chunk and transform a PDF, then write CogniFlow_<name>.pdf.
Send SIGUSR1 to pause dispatching and SIGUSR2 to resume. Interrupting leaves
the job resumable with "cogniflow resume".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			a, err := newApp(cmd.Context(), root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := interruptContext(cmd.Context())
			defer stop()

			job, err := a.proc.Accept(ctx, filepath.Base(path), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks\n", job.DocumentName, len(job.Chunks))
			return process(ctx, cmd, a, ro, a.proc.Run)
		},
	}
	ro.bind(cmd)
	return cmd
}

func newResumeCmd(root *rootOptions) *cobra.Command {
	ro := &runOptions{}
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Continue the last job from its persisted chunks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := interruptContext(cmd.Context())
			defer stop()

			job, err := a.proc.Restore(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", job.DocumentName, job.Stage)
			return process(ctx, cmd, a, ro, a.proc.Run)
		},
	}
	ro.bind(cmd)
	return cmd
}

// resumable reports whether a resume request applies to job. Requests sent
// before a pause are dropped so they cannot cancel a later one.
func resumable(job *entity.Job) bool {
	return job != nil && job.Status == constants.JobStatusPaused
}

// process runs the scheduler, honouring pause and resume signals, then
// writes the output document.
func process(ctx context.Context, cmd *cobra.Command, a *app, ro *runOptions, run func(context.Context) error) error {
	var tracker *progressTracker
	if !ro.quiet {
		tracker = trackProgress(ctx, a.proc.Subscribe(ctx), cmd.ErrOrStderr())
	}
	resume := watchPauseSignals(ctx, a.proc, a.logger)

	err := run(ctx)
	for errors.Is(err, async.ErrPaused) {
		fmt.Fprintln(cmd.ErrOrStderr(), "paused, send SIGUSR2 to resume")
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-resume:
			err = a.proc.Resume(ctx)
		}
	}
	job := a.proc.Job()
	if tracker != nil {
		tracker.Close(err == nil && job != nil && job.Status.IsTerminal())
	}
	if err != nil {
		return err
	}
	if job == nil {
		return async.ErrNoJob
	}

	completed, failed := countChunks(job)
	fmt.Fprintf(cmd.OutOrStdout(), "%d/%d chunks completed, %d failed\n", completed, len(job.Chunks), failed)
	if completed < len(job.Chunks) && !ro.partial {
		return fmt.Errorf("%d chunks did not complete; run \"cogniflow resume\" to retry them or pass --partial", len(job.Chunks)-completed)
	}

	name, data, err := a.proc.Output(ctx)
	if err != nil {
		return err
	}
	dir := ro.outDir
	if dir == "" {
		dir = a.cfg.Output.Dir
	}
	out := filepath.Join(dir, name)
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
	return nil
}
