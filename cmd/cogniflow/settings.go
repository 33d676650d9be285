package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cogniflow/internal/settings"
)

func newSettingsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect or change stored settings",
	}
	cmd.AddCommand(newSettingsShowCmd(root), newSettingsImportCmd(root), newSettingsModelsCmd())
	return cmd
}

func newSettingsShowCmd(root *rootOptions) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.proc.Settings(cmd.Context())
			if err != nil {
				return err
			}
			if !reveal {
				s = s.Redacted()
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print the API key unmasked")
	return cmd
}

func newSettingsImportCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <settings.json>",
		Short: "Merge a JSON settings file over the defaults and store it",
		Long: `Fields missing from the file keep their default values. The result is
validated before it is stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			s, err := settings.Merge(raw)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.proc.SaveSettings(cmd.Context(), s); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "settings saved")
			return nil
		},
	}
}

func newSettingsModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List known models, best first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODEL\tNAME\tTIER")
			for _, m := range settings.Catalog {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Name, m.DisplayName, m.Tier)
			}
			return tw.Flush()
		},
	}
}
