package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Sequencer computes the human-facing row counter. Numbers are max+1 over the
// rows present, so numbers freed by deletes are not handed out again unless
// they were the highest.
type Sequencer struct {
	api API
}

func NewSequencer(api API) *Sequencer {
	return &Sequencer{api: api}
}

func (s *Sequencer) NextSequence(ctx context.Context, sheet string) (int, error) {
	rows, err := s.api.GetValues(ctx, columnRange(sheet, sequenceColumn))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read sequence column of %q: %w", ErrRead, sheet, err)
	}

	highest := 0
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}
