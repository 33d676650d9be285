package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd(root *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard the persisted job",
		Long:  "Deletes persisted chunk records. With --all, settings and the activity log are wiped too.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.proc.Purge(cmd.Context(), all); err != nil {
				return err
			}
			if all {
				fmt.Fprintln(cmd.OutOrStdout(), "all data cleared")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "job cleared")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "also clear settings and logs")
	return cmd
}
