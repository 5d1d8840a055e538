package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"example.com/smartroutine/internal/domain"
)

// credentials are the sign-in flags shared by user-facing commands.
type credentials struct {
	Email    string
	Password string
}

func (c *credentials) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.Email, "email", "", "account email")
	cmd.Flags().StringVar(&c.Password, "password", "", "account password (defaults to SMARTCTL_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
}

func (c *credentials) password() string {
	if c.Password != "" {
		return c.Password
	}
	return os.Getenv("SMARTCTL_PASSWORD")
}

// NewPromoteCommand creates the promote command.
func NewPromoteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the admin role to an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rootOpts.open(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer b.close()

			email := strings.ToLower(strings.TrimSpace(args[0]))
			profile, _, err := b.users.FindCredentials(cmd.Context(), email)
			if err != nil {
				return err
			}
			if profile == nil {
				return fmt.Errorf("%w: no account for %s", domain.ErrNotFound, email)
			}
			if err := b.identity.PromoteToAdmin(cmd.Context(), profile.UID); err != nil {
				return err
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Emit(map[string]string{"uid": profile.UID, "role": string(domain.RoleAdmin)}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s (%s) is now an admin\n", email, profile.UID)
				return err
			})
		},
	}
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	creds := &credentials{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign in and print a bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rootOpts.open(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer b.close()

			token, profile, err := b.identity.SignIn(cmd.Context(), creds.Email, creds.password())
			if err != nil {
				return err
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			payload := map[string]any{
				"access_token": token.Value,
				"token_type":   token.Type,
				"expires_at":   token.ExpiresAt.UTC().Format(time.RFC3339),
				"uid":          profile.UID,
			}
			return out.Emit(payload, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, token.Value)
				return err
			})
		},
	}
	creds.bind(cmd)
	return cmd
}
