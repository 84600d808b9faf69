package cli

import (
	"fmt"
	"time"

	"github.com/prudhvinik1/sheetsync/internal/config"
	"github.com/prudhvinik1/sheetsync/internal/services"
	"github.com/spf13/cobra"
)

// NewIssueTokenCommand creates the issue-token command.
func NewIssueTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:          "issue-token",
		Short:        "Print a bearer token for the record API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, expiry, err := config.LoadAuthConfig()
			if err != nil {
				return err
			}

			token, expiresAt, err := services.NewAuthService(secret, expiry).IssueToken(subject)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "who the token is issued to")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
