package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/prudhvinik1/sheetsync/internal/models"
	"github.com/prudhvinik1/sheetsync/internal/schema"
	"github.com/prudhvinik1/sheetsync/internal/sheets"
)

type ImportRow struct {
	Key  string         `json:"key"`
	Data map[string]any `json:"data"`
}

// ChunkResult is the outcome of one batch append. Chunks are independent: a
// failed chunk does not undo the ones before it.
type ChunkResult struct {
	Index         int    `json:"index"`
	Rows          int    `json:"rows"`
	FirstSequence int    `json:"first_sequence,omitempty"`
	Error         string `json:"error,omitempty"`
}

type ImportResult struct {
	Table    models.Table  `json:"table"`
	Total    int           `json:"total"`
	Imported int           `json:"imported"`
	Chunks   []ChunkResult `json:"chunks"`
}

// Import appends rows in chunks of importChunkSize. Like insert it is not
// idempotent; re-running an import duplicates the rows that succeeded.
func (s *SyncService) Import(ctx context.Context, table models.Table, rows []ImportRow) (*ImportResult, error) {
	layout, ok := schema.LayoutFor(table)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTable, table)
	}
	for i, row := range rows {
		if strings.TrimSpace(row.Key) == "" {
			return nil, fmt.Errorf("%w: row %d has no key", ErrValidation, i)
		}
	}

	result := &ImportResult{Table: table, Total: len(rows)}
	if len(rows) == 0 {
		return result, nil
	}

	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire access token: %w", err)
	}
	mutator := sheets.NewMutator(s.client.WithToken(token))

	for index, start := 0, 0; start < len(rows); index, start = index+1, start+s.importChunkSize {
		end := min(start+s.importChunkSize, len(rows))
		chunk := rows[start:end]

		first, err := s.importChunkLocked(ctx, mutator, layout, chunk)
		res := ChunkResult{Index: index, Rows: len(chunk), FirstSequence: first}
		if err != nil {
			s.dropRejectedToken(ctx, token, err)
			res.Error = err.Error()
			s.logger.Warn("import chunk failed", "table", table, "chunk", index, "rows", len(chunk), "err", err)
		} else {
			result.Imported += len(chunk)
			s.logger.Info("import chunk appended", "table", table, "chunk", index, "rows", len(chunk), "first_sequence", first)
		}
		result.Chunks = append(result.Chunks, res)

		msg := fmt.Sprintf("imported in chunk %d", index)
		for _, row := range chunk {
			req := models.SyncRequest{Action: models.ActionInsert, Table: table, RecordID: row.Key}
			s.appendEvent(ctx, req, msg, 0, err)
		}

		if ctx.Err() != nil {
			break
		}
	}

	return result, nil
}

func (s *SyncService) importChunkLocked(ctx context.Context, mutator *sheets.Mutator, layout schema.Layout, chunk []ImportRow) (int, error) {
	unlock, err := s.lockSheet(ctx, layout)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return s.importChunk(ctx, mutator, layout, chunk)
}

func (s *SyncService) importChunk(ctx context.Context, mutator *sheets.Mutator, layout schema.Layout, chunk []ImportRow) (int, error) {
	now := s.now()
	cells := make([][]string, 0, len(chunk))
	for _, row := range chunk {
		c, err := schema.Map(layout.Table, strings.TrimSpace(row.Key), row.Data, now)
		if err != nil {
			return 0, err
		}
		cells = append(cells, c)
	}
	return mutator.AppendBatch(ctx, layout.Sheet, cells)
}
