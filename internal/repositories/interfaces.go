package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/prudhvinik1/sheetsync/internal/models"
)

type RecordRepository interface {
	Create(ctx context.Context, record *models.Record) error
	CreateBatch(ctx context.Context, records []*models.Record) error
	GetByID(ctx context.Context, table models.Table, id uuid.UUID) (*models.Record, error)
	ListByTable(ctx context.Context, table models.Table, limit int) ([]*models.Record, error)
	Update(ctx context.Context, record *models.Record) error
	Delete(ctx context.Context, table models.Table, id uuid.UUID) error
}

type SyncEventRepository interface {
	Append(ctx context.Context, event *models.SyncEvent) error
	ListByRecord(ctx context.Context, table models.Table, recordID string) ([]*models.SyncEvent, error)
	ListRecent(ctx context.Context, status models.SyncStatus, limit int) ([]*models.SyncEvent, error)
}

// KeyLocker serializes work on one (table, key) pair. The returned function
// releases the lock and is safe to call once.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
