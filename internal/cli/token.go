package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prudhvinik1/sheetsync/internal/config"
	"github.com/prudhvinik1/sheetsync/internal/sheets"
	"github.com/spf13/cobra"
)

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Exchange the service account key for an access token",
		Long: `Sign an assertion with the configured key and exchange it for an access
token. The token itself is masked; use this to check credentials.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSheetsConfig()
			if err != nil {
				return err
			}

			httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
			provider := sheets.NewServiceAccountTokenProvider(cfg.Credentials(), httpClient)
			tok, err := provider.FetchToken(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "account:    %s\n", provider.ClientEmail())
			fmt.Fprintf(out, "token:      %s\n", maskToken(tok.Token))
			fmt.Fprintf(out, "expires at: %s\n", tok.ExpiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
