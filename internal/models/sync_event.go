package models

import (
	"time"

	"github.com/google/uuid"
)

type SyncStatus string

const (
	SyncStatusSucceeded SyncStatus = "succeeded"
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncEvent is one entry of the replication log. Every Sync call leaves exactly
// one event, whether the spreadsheet accepted the change or not.
type SyncEvent struct {
	ID         uuid.UUID  `json:"id"`
	Action     Action     `json:"action"`
	Table      Table      `json:"table"`
	RecordID   string     `json:"record_id"`
	Status     SyncStatus `json:"status"`
	Message    string     `json:"message,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMs int64      `json:"duration_ms"`
	CreatedAt  time.Time  `json:"created_at"`
}
