package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/sheetsync/internal/models"
)

type PostgresSyncEventRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresSyncEventRepository(pool *pgxpool.Pool) *PostgresSyncEventRepository {
	return &PostgresSyncEventRepository{pool: pool}
}

// Append writes one entry to the replication log. The log is append-only.
func (r *PostgresSyncEventRepository) Append(ctx context.Context, event *models.SyncEvent) error {
	query := `INSERT INTO sync_events (action, table_name, record_id, status, message, error, duration_ms)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		string(event.Action),
		string(event.Table),
		event.RecordID,
		string(event.Status),
		event.Message,
		event.Error,
		event.DurationMs,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append sync event: %w", err)
	}
	return nil
}

func (r *PostgresSyncEventRepository) ListByRecord(ctx context.Context, table models.Table, recordID string) ([]*models.SyncEvent, error) {
	query := `SELECT id, action, table_name, record_id, status, message, error, duration_ms, created_at
	          FROM sync_events
	          WHERE table_name = $1 AND record_id = $2
	          ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, string(table), recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync events: %w", err)
	}
	return collectSyncEvents(rows)
}

// ListRecent returns the newest events, optionally filtered by status.
func (r *PostgresSyncEventRepository) ListRecent(ctx context.Context, status models.SyncStatus, limit int) ([]*models.SyncEvent, error) {
	query := `SELECT id, action, table_name, record_id, status, message, error, duration_ms, created_at
	          FROM sync_events
	          WHERE ($1 = '' OR status = $1)
	          ORDER BY created_at DESC
	          LIMIT $2`

	rows, err := r.pool.Query(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync events: %w", err)
	}
	return collectSyncEvents(rows)
}

func collectSyncEvents(rows pgx.Rows) ([]*models.SyncEvent, error) {
	defer rows.Close()

	var events []*models.SyncEvent
	for rows.Next() {
		var (
			event  models.SyncEvent
			action string
			table  string
			status string
		)
		err := rows.Scan(
			&event.ID,
			&action,
			&table,
			&event.RecordID,
			&status,
			&event.Message,
			&event.Error,
			&event.DurationMs,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync event: %w", err)
		}
		event.Action = models.Action(action)
		event.Table = models.Table(table)
		event.Status = models.SyncStatus(status)
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync events: %w", err)
	}
	return events, nil
}
