package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/sheetsync/internal/models"
)

var ErrNotFound = errors.New("not found")

type PostgresRecordRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRecordRepository(pool *pgxpool.Pool) *PostgresRecordRepository {
	return &PostgresRecordRepository{pool: pool}
}

func (r *PostgresRecordRepository) Create(ctx context.Context, record *models.Record) error {
	data, err := json.Marshal(record.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal record data: %w", err)
	}

	query := `INSERT INTO records (table_name, data)
	          VALUES ($1, $2::jsonb)
	          RETURNING id, created_at`

	err = r.pool.QueryRow(ctx, query, string(record.Table), data).
		Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

// CreateBatch stores all records in one transaction: either every record gets
// an id or none is stored.
func (r *PostgresRecordRepository) CreateBatch(ctx context.Context, records []*models.Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO records (table_name, data)
	          VALUES ($1, $2::jsonb)
	          RETURNING id, created_at`

	for i, record := range records {
		data, err := json.Marshal(record.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal record %d data: %w", i, err)
		}
		err = tx.QueryRow(ctx, query, string(record.Table), data).
			Scan(&record.ID, &record.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create record %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

func (r *PostgresRecordRepository) GetByID(ctx context.Context, table models.Table, id uuid.UUID) (*models.Record, error) {
	query := `SELECT id, table_name, data, created_at, updated_at, deleted_at
	          FROM records
	          WHERE table_name = $1 AND id = $2 AND deleted_at IS NULL`

	record, err := scanRecord(r.pool.QueryRow(ctx, query, string(table), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return record, nil
}

func (r *PostgresRecordRepository) ListByTable(ctx context.Context, table models.Table, limit int) ([]*models.Record, error) {
	query := `SELECT id, table_name, data, created_at, updated_at, deleted_at
	          FROM records
	          WHERE table_name = $1 AND deleted_at IS NULL
	          ORDER BY created_at ASC
	          LIMIT $2`

	rows, err := r.pool.Query(ctx, query, string(table), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

func (r *PostgresRecordRepository) Update(ctx context.Context, record *models.Record) error {
	data, err := json.Marshal(record.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal record data: %w", err)
	}

	query := `UPDATE records
	          SET data = $1::jsonb, updated_at = NOW()
	          WHERE table_name = $2 AND id = $3 AND deleted_at IS NULL
	          RETURNING created_at, updated_at`

	err = r.pool.QueryRow(ctx, query, data, string(record.Table), record.ID).
		Scan(&record.CreatedAt, &record.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	return nil
}

// Delete soft-deletes the record.
func (r *PostgresRecordRepository) Delete(ctx context.Context, table models.Table, id uuid.UUID) error {
	query := `UPDATE records SET deleted_at = NOW()
	          WHERE table_name = $1 AND id = $2 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query, string(table), id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (*models.Record, error) {
	var (
		record models.Record
		table  string
		data   []byte
	)
	err := row.Scan(
		&record.ID,
		&table,
		&data,
		&record.CreatedAt,
		&record.UpdatedAt,
		&record.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Table = models.Table(table)
	if err := json.Unmarshal(data, &record.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record data: %w", err)
	}
	return &record, nil
}
