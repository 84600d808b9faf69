package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prudhvinik1/sheetsync/internal/models"
	"github.com/spf13/cobra"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Action string
	Table  string
	ID     string
	Data   string
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Apply one insert, update or delete to the spreadsheet",
		Long: `Apply one sync request directly, bypassing the primary store.

Example:
  sheetsync sync --action update --table customers --id 42 --data '{"name":"Ada"}'`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Action, "action", "", "insert, update or delete")
	cmd.Flags().StringVar(&opts.Table, "table", "", "source table")
	cmd.Flags().StringVar(&opts.ID, "id", "", "record id")
	cmd.Flags().StringVar(&opts.Data, "data", "", "record fields as a JSON object")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

func runSync(cmd *cobra.Command, opts *SyncOptions) error {
	req := models.SyncRequest{
		Action:   models.Action(strings.ToLower(opts.Action)),
		Table:    models.Table(opts.Table),
		RecordID: opts.ID,
	}
	if opts.Data != "" {
		decoder := json.NewDecoder(strings.NewReader(opts.Data))
		decoder.UseNumber()
		if err := decoder.Decode(&req.Data); err != nil {
			return fmt.Errorf("invalid --data JSON: %w", err)
		}
	}

	env, err := newSyncEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	result := env.service.Sync(cmd.Context(), req)

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("sync failed: %s", result.Error)
	}
	return nil
}
