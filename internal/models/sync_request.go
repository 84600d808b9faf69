package models

type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) Valid() bool {
	switch a {
	case ActionInsert, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Table names the primary-store tables that are mirrored into the spreadsheet.
type Table string

const (
	TableCarData   Table = "car_data"
	TableCustomers Table = "customers"
	TableSales     Table = "sales"
	TableExpenses  Table = "expenses"
	TableNotes     Table = "notes"
)

// SyncRequest is created once per primary-store mutation and consumed immediately.
type SyncRequest struct {
	Action   Action         `json:"action"`
	Table    Table          `json:"table"`
	Data     map[string]any `json:"data,omitempty"`
	RecordID string         `json:"record_id,omitempty"`
}

type SyncResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
