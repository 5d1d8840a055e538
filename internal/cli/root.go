// Package cli implements smartctl, the operator and terminal client for SmartRoutine.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"example.com/smartroutine/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format      string // "json" | "text"
	DatabaseURL string

	cfg  config.Config
	open opener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for smartctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(config.Load(), openBackend)
}

func newRootCommand(cfg config.Config, open opener) *cobra.Command {
	opts := &RootOptions{cfg: cfg, open: open}

	cmd := &cobra.Command{
		Use:   "smartctl",
		Short: "SmartRoutine operator and terminal client",
		Long:  "Run migrations, manage accounts and track activities against a SmartRoutine database.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database", cfg.PostgresURL, "Postgres URL (defaults to POSTGRES_URL)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewPromoteCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewTrackCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	return cmd
}
