package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"example.com/smartroutine/internal/persistence/migrations"
)

// NewMigrateCommand creates the migrate command and its up/down/version children.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	requireURL := func() error {
		if rootOpts.DatabaseURL == "" {
			return errNoDatabase
		}
		return nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireURL(); err != nil {
				return err
			}
			if err := migrations.Up(cmd.Context(), rootOpts.DatabaseURL); err != nil {
				return err
			}
			return reportVersion(cmd, rootOpts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireURL(); err != nil {
				return err
			}
			if err := migrations.Down(cmd.Context(), rootOpts.DatabaseURL); err != nil {
				return err
			}
			return reportVersion(cmd, rootOpts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireURL(); err != nil {
				return err
			}
			return reportVersion(cmd, rootOpts)
		},
	})
	return cmd
}

func reportVersion(cmd *cobra.Command, rootOpts *RootOptions) error {
	version, err := migrations.Version(cmd.Context(), rootOpts.DatabaseURL)
	if err != nil {
		return err
	}
	out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	return out.Emit(map[string]int64{"version": version}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "schema version %d\n", version)
		return err
	})
}
