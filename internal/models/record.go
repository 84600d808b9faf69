package models

import (
	"time"

	"github.com/google/uuid"
)

// Record is a row of the primary datastore. Data holds the business fields of
// the table; its keys are the column names listed in the sheet layouts.
type Record struct {
	ID        uuid.UUID      `json:"id"`
	Table     Table          `json:"table"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty"`
}
