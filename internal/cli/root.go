package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
}

// NewRootCommand creates the root command for the sheetsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sheetsync",
		Short: "Replicate datastore records into a spreadsheet",
		Long: `sheetsync mirrors records into one worksheet per table.

Credentials are read from the environment (GOOGLE_SERVICE_ACCOUNT_EMAIL,
GOOGLE_PRIVATE_KEY, GOOGLE_SPREADSHEET_ID), optionally loaded from --env-file.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(opts.EnvFile, cmd.Flags().Changed("env-file"))
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load before reading the environment")

	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewIssueTokenCommand(opts))

	return cmd
}

// loadEnvFile loads path into the environment. A missing default file is
// fine; a missing file the user asked for is not.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil
	}
	return fmt.Errorf("failed to load env file %s: %w", path, err)
}
