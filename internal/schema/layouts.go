package schema

import "github.com/prudhvinik1/sheetsync/internal/models"

// Layout is the positional contract of one synced sheet:
// A = sequence, B = record key, then Fields in order, then the sync timestamp.
//
// Existing layouts must never be reordered. Spreadsheets that were already
// synced rely on the positions, and so does the sequence re-read on update.
type Layout struct {
	Table  models.Table
	Sheet  string
	Fields []string
}

// Width is the number of cells in a mapped row.
func (l Layout) Width() int {
	return len(l.Fields) + 3
}

var layouts = map[models.Table]Layout{
	models.TableCarData: {
		Table:  models.TableCarData,
		Sheet:  "Cars",
		Fields: []string{"make", "model", "year", "vin", "color", "mileage", "price", "status"},
	},
	models.TableCustomers: {
		Table:  models.TableCustomers,
		Sheet:  "Customers",
		Fields: []string{"name", "phone", "email", "address", "city"},
	},
	models.TableSales: {
		Table:  models.TableSales,
		Sheet:  "Sales",
		Fields: []string{"car_id", "customer_id", "sale_price", "sale_date", "payment_method"},
	},
	models.TableExpenses: {
		Table:  models.TableExpenses,
		Sheet:  "Expenses",
		Fields: []string{"car_id", "category", "amount", "expense_date", "description"},
	},
	models.TableNotes: {
		Table:  models.TableNotes,
		Sheet:  "Notes",
		Fields: []string{"record_id", "author", "body"},
	},
}

// LayoutFor returns the layout of a known table.
func LayoutFor(table models.Table) (Layout, bool) {
	l, ok := layouts[table]
	return l, ok
}

// Tables lists the known tables in a stable order.
func Tables() []models.Table {
	return []models.Table{
		models.TableCarData,
		models.TableCustomers,
		models.TableSales,
		models.TableExpenses,
		models.TableNotes,
	}
}

func IsKnownTable(table models.Table) bool {
	_, ok := layouts[table]
	return ok
}
