package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cogniflow/internal/llm"
)

func newDoctorCmd(root *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the database, stored settings and credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			a, err := newApp(ctx, root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.repo.HealthCheck(ctx, timeout); err != nil {
				fmt.Fprintf(out, "database: FAIL (%v)\n", err)
				return err
			}
			fmt.Fprintf(out, "database: OK (%s)\n", a.cfg.Database.Driver)

			s, err := a.proc.Settings(ctx)
			if err != nil {
				fmt.Fprintf(out, "settings: FAIL (%v)\n", err)
				return err
			}
			if err := s.Validate(); err != nil {
				fmt.Fprintf(out, "settings: FAIL (%v)\n", err)
				return err
			}
			fmt.Fprintf(out, "settings: OK (%d models, concurrency %d)\n", len(s.ModelPriority), s.ConcurrencyLimit())

			candidates := append([]string{root.apiKey, s.APIKey}, a.cfg.LLM.APIKeys...)
			if _, err := llm.ResolveCredential(candidates...); err != nil {
				fmt.Fprintf(out, "credential: MISSING (%v)\n", err)
				return err
			}
			fmt.Fprintln(out, "credential: OK")

			chunks, err := a.repo.ListChunks(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "persisted chunks: %d\n", len(chunks))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "database ping timeout")
	return cmd
}
