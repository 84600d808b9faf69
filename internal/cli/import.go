package cli

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/prudhvinik1/sheetsync/internal/models"
	"github.com/prudhvinik1/sheetsync/internal/schema"
	"github.com/prudhvinik1/sheetsync/internal/services"
	"github.com/spf13/cobra"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Table string
	File  string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Append the rows of a CSV file to a table's sheet",
		Long: `Append every row of a CSV file in batches. The header row names the
fields; an "id" column becomes the row key, otherwise keys are generated.

Example:
  sheetsync import --table customers --file customers.csv`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Table, "table", "", "destination table")
	cmd.Flags().StringVar(&opts.File, "file", "", "CSV file to import")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(cmd *cobra.Command, opts *ImportOptions) error {
	table := models.Table(opts.Table)
	if !schema.IsKnownTable(table) {
		return fmt.Errorf("%w: %q", services.ErrUnsupportedTable, opts.Table)
	}

	f, err := os.Open(opts.File)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", opts.File, err)
	}
	defer f.Close()

	rows, err := ReadCSV(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", opts.File, err)
	}

	env, err := newSyncEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	result, err := env.service.Import(cmd.Context(), table, rows)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return err
	}
	if result.Imported < result.Total {
		return fmt.Errorf("imported %d of %d rows", result.Imported, result.Total)
	}
	return nil
}

// ReadCSV turns a CSV with a header row into import rows. Empty cells are
// left out of the data.
func ReadCSV(r io.Reader) ([]services.ImportRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, err
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var rows []services.ImportRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		row := services.ImportRow{Data: make(map[string]any, len(header))}
		for i, field := range header {
			value := strings.TrimSpace(record[i])
			if field == "id" {
				row.Key = value
				continue
			}
			if value != "" {
				row.Data[field] = value
			}
		}
		if row.Key == "" {
			row.Key = uuid.NewString()
		}
		rows = append(rows, row)
	}
	return rows, nil
}
