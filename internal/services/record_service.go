package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prudhvinik1/sheetsync/internal/models"
	"github.com/prudhvinik1/sheetsync/internal/repositories"
	"github.com/prudhvinik1/sheetsync/internal/schema"
)

const defaultListLimit = 500

type Enqueuer interface {
	Enqueue(req models.SyncRequest) error
}

type Importer interface {
	Import(ctx context.Context, table models.Table, rows []ImportRow) (*ImportResult, error)
}

// RecordService is the primary-store side. Every successful write is followed
// by a background sync; a failed sync never fails the write.
type RecordService struct {
	repo     repositories.RecordRepository
	queue    Enqueuer
	importer Importer
	logger   *slog.Logger
}

func NewRecordService(repo repositories.RecordRepository, queue Enqueuer, importer Importer, logger *slog.Logger) *RecordService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordService{
		repo:     repo,
		queue:    queue,
		importer: importer,
		logger:   logger,
	}
}

func (s *RecordService) Create(ctx context.Context, table models.Table, data map[string]any) (*models.Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}

	record := &models.Record{Table: table, Data: data}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	s.enqueue(models.SyncRequest{
		Action:   models.ActionInsert,
		Table:    table,
		Data:     record.Data,
		RecordID: record.ID.String(),
	})
	return record, nil
}

func (s *RecordService) Get(ctx context.Context, table models.Table, id uuid.UUID) (*models.Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, table, id)
}

func (s *RecordService) List(ctx context.Context, table models.Table) ([]*models.Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	return s.repo.ListByTable(ctx, table, defaultListLimit)
}

func (s *RecordService) Update(ctx context.Context, table models.Table, id uuid.UUID, data map[string]any) (*models.Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}

	record := &models.Record{ID: id, Table: table, Data: data}
	if err := s.repo.Update(ctx, record); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	s.enqueue(models.SyncRequest{
		Action:   models.ActionUpdate,
		Table:    table,
		Data:     record.Data,
		RecordID: id.String(),
	})
	return record, nil
}

func (s *RecordService) Delete(ctx context.Context, table models.Table, id uuid.UUID) error {
	if err := checkTable(table); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, table, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete record: %w", err)
	}

	s.enqueue(models.SyncRequest{
		Action:   models.ActionDelete,
		Table:    table,
		RecordID: id.String(),
	})
	return nil
}

// Import stores every row in the primary store, then appends them to the sheet
// in chunks. Rows are stored in one transaction, so a storage failure leaves
// nothing behind that the sheet would be missing.
func (s *RecordService) Import(ctx context.Context, table models.Table, rows []map[string]any) (*ImportResult, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	records := make([]*models.Record, 0, len(rows))
	for _, data := range rows {
		if data == nil {
			data = map[string]any{}
		}
		records = append(records, &models.Record{Table: table, Data: data})
	}
	if err := s.repo.CreateBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to store import: %w", err)
	}

	importRows := make([]ImportRow, 0, len(records))
	for _, record := range records {
		importRows = append(importRows, ImportRow{Key: record.ID.String(), Data: record.Data})
	}

	return s.importer.Import(ctx, table, importRows)
}

func (s *RecordService) enqueue(req models.SyncRequest) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(req); err != nil {
		s.logger.Warn("failed to schedule sheet sync",
			"action", req.Action, "table", req.Table, "key", req.RecordID, "err", err)
	}
}

func checkTable(table models.Table) error {
	if !schema.IsKnownTable(table) {
		return fmt.Errorf("%w: %q", ErrUnsupportedTable, table)
	}
	return nil
}
