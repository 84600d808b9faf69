package sheets

import (
	"context"
	"fmt"
)

const (
	sequenceColumn = "A"
	keyColumn      = "B"
)

// Locator finds rows by scanning the whole key column. The cost is one read
// and O(rows) comparisons per lookup, which suits human-curated sheets.
// Duplicate keys resolve to the first match.
type Locator struct {
	api API
}

func NewLocator(api API) *Locator {
	return &Locator{api: api}
}

// Locate returns the 1-based row index holding key.
func (l *Locator) Locate(ctx context.Context, sheet, key string) (int, bool, error) {
	rows, err := l.api.GetValues(ctx, columnRange(sheet, keyColumn))
	if err != nil {
		return 0, false, fmt.Errorf("%w: failed to read key column of %q: %w", ErrRead, sheet, err)
	}

	for i, row := range rows {
		if len(row) > 0 && row[0] == key {
			return i + 1, true, nil
		}
	}
	return 0, false, nil
}
