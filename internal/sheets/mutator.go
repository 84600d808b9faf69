package sheets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

var ErrEmptyRow = errors.New("row has no cells")

// Mutator applies row-level changes to a sheet.
type Mutator struct {
	api       API
	locator   *Locator
	sequencer *Sequencer
}

func NewMutator(api API) *Mutator {
	return &Mutator{
		api:       api,
		locator:   NewLocator(api),
		sequencer: NewSequencer(api),
	}
}

func (m *Mutator) Locator() *Locator {
	return m.locator
}

// Update overwrites the row at rowIndex. The existing sequence cell is read
// back first so an update never changes the displayed sequence.
func (m *Mutator) Update(ctx context.Context, sheet string, rowIndex int, cells []string) error {
	if len(cells) == 0 {
		return ErrEmptyRow
	}

	current, err := m.api.GetValues(ctx, cellRange(sheet, sequenceColumn, rowIndex))
	if err != nil {
		return fmt.Errorf("%w: failed to read sequence of row %d: %w", ErrRead, rowIndex, err)
	}
	if len(current) > 0 && len(current[0]) > 0 {
		cells[0] = current[0][0]
	}

	if err := m.api.UpdateValues(ctx, cellRange(sheet, sequenceColumn, rowIndex), [][]string{cells}); err != nil {
		return fmt.Errorf("%w: update row %d of %q: %w", ErrWrite, rowIndex, sheet, err)
	}
	return nil
}

// Append adds a row with the next sequence number and returns that number.
// The append inserts rows so trailing data is never overwritten.
func (m *Mutator) Append(ctx context.Context, sheet string, cells []string) (int, error) {
	if len(cells) == 0 {
		return 0, ErrEmptyRow
	}
	return m.AppendBatch(ctx, sheet, [][]string{cells})
}

// AppendBatch appends rows in a single call, numbering them consecutively from
// the next sequence. It returns the first sequence assigned.
func (m *Mutator) AppendBatch(ctx context.Context, sheet string, rows [][]string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	for _, row := range rows {
		if len(row) == 0 {
			return 0, ErrEmptyRow
		}
	}

	first, err := m.sequencer.NextSequence(ctx, sheet)
	if err != nil {
		return 0, err
	}
	for i, row := range rows {
		row[0] = strconv.Itoa(first + i)
	}

	if err := m.api.AppendValues(ctx, appendRange(sheet), rows); err != nil {
		return 0, fmt.Errorf("%w: append %d row(s) to %q: %w", ErrWrite, len(rows), sheet, err)
	}
	return first, nil
}

// Delete removes the row holding key. A missing row is not an error, so
// repeated or out-of-order deletes are harmless. It reports whether a row
// was removed.
func (m *Mutator) Delete(ctx context.Context, sheet, key string) (bool, error) {
	rowIndex, found, err := m.locator.Locate(ctx, sheet, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	sheetID, err := m.api.SheetID(ctx, sheet)
	if err != nil {
		if errors.Is(err, ErrSheetNotFound) {
			return false, err
		}
		return false, fmt.Errorf("%w: failed to resolve sheet %q: %w", ErrRead, sheet, err)
	}

	if err := m.api.DeleteRows(ctx, sheetID, rowIndex-1, rowIndex); err != nil {
		return false, fmt.Errorf("%w: delete row %d of %q: %w", ErrWrite, rowIndex, sheet, err)
	}
	return true, nil
}

func appendRange(sheet string) string {
	return fmt.Sprintf("%s!%s:%s", quoteSheet(sheet), sequenceColumn, keyColumn)
}
