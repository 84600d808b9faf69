package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prudhvinik1/sheetsync/internal/models"
)

var (
	ErrUnknownTable = errors.New("unknown table")
	ErrRowWidth     = errors.New("row does not match table layout")
)

// TimestampLayout is the format of the last cell of every row.
const TimestampLayout = time.RFC3339

// Map turns a record into the ordered cells of its sheet row. The sequence cell
// is left blank; the mutator fills it in.
func Map(table models.Table, key string, data map[string]any, now time.Time) ([]string, error) {
	layout, ok := layouts[table]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	cells := make([]string, 0, layout.Width())
	cells = append(cells, "", key)
	for _, field := range layout.Fields {
		cells = append(cells, FormatCell(data[field]))
	}
	cells = append(cells, now.UTC().Format(TimestampLayout))
	return cells, nil
}

// Unmap is the inverse of Map for rows read back from the sheet. Blank cells
// are omitted from data. Short rows are accepted since the API trims trailing
// empty cells.
func Unmap(table models.Table, cells []string) (key string, data map[string]string, syncedAt time.Time, err error) {
	layout, ok := layouts[table]
	if !ok {
		return "", nil, time.Time{}, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	if len(cells) < 2 || len(cells) > layout.Width() {
		return "", nil, time.Time{}, fmt.Errorf("%w: %d cells for %s", ErrRowWidth, len(cells), table)
	}

	key = cells[1]
	data = make(map[string]string, len(layout.Fields))
	for i, field := range layout.Fields {
		idx := i + 2
		if idx < len(cells) && cells[idx] != "" {
			data[field] = cells[idx]
		}
	}

	last := layout.Width() - 1
	if last < len(cells) && cells[last] != "" {
		syncedAt, err = time.Parse(TimestampLayout, cells[last])
		if err != nil {
			return "", nil, time.Time{}, fmt.Errorf("failed to parse sync timestamp: %w", err)
		}
	}
	return key, data, syncedAt, nil
}

// FormatCell renders a decoded JSON value as spreadsheet text. Missing values
// become the empty string.
func FormatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case time.Time:
		return val.UTC().Format(TimestampLayout)
	case fmt.Stringer:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
