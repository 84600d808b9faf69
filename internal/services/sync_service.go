package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prudhvinik1/sheetsync/internal/models"
	"github.com/prudhvinik1/sheetsync/internal/repositories"
	"github.com/prudhvinik1/sheetsync/internal/schema"
	"github.com/prudhvinik1/sheetsync/internal/sheets"
)

var (
	ErrValidation       = errors.New("invalid sync request")
	ErrUnsupportedTable = errors.New("unsupported table")
)

// SyncService mirrors primary-store mutations into the spreadsheet.
//
// Requests are validated before a token is requested. Operations on the same
// (table, key) are serialized through the locker, and every mutation also holds
// the lock of its sheet, since a delete shifts the rows below it and appends
// share one sequence.
// Insert is not idempotent and must not be retried blindly; update and delete
// are safe to retry.
type SyncService struct {
	tokens sheets.TokenProvider
	client *sheets.Client
	locker repositories.KeyLocker
	events repositories.SyncEventRepository
	logger *slog.Logger
	now    func() time.Time

	importChunkSize int
}

func NewSyncService(
	tokens sheets.TokenProvider,
	client *sheets.Client,
	locker repositories.KeyLocker,
	events repositories.SyncEventRepository,
	importChunkSize int,
	logger *slog.Logger,
) *SyncService {
	if locker == nil {
		locker = repositories.NewMemoryKeyLocker()
	}
	if importChunkSize < 1 {
		importChunkSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		tokens:          tokens,
		client:          client,
		locker:          locker,
		events:          events,
		logger:          logger,
		now:             time.Now,
		importChunkSize: importChunkSize,
	}
}

// Sync applies one request and records the outcome in the sync log.
// Failures are reported in the result, never panicked or swallowed.
func (s *SyncService) Sync(ctx context.Context, req models.SyncRequest) models.SyncResult {
	start := s.now()
	msg, err := s.sync(ctx, req)
	s.record(ctx, req, start, msg, err)

	if err != nil {
		return models.SyncResult{Success: false, Error: err.Error()}
	}
	return models.SyncResult{Success: true, Message: msg}
}

func (s *SyncService) sync(ctx context.Context, req models.SyncRequest) (string, error) {
	key, layout, err := validateRequest(req)
	if err != nil {
		return "", err
	}

	unlock, err := s.locker.Lock(ctx, string(req.Table)+":"+key)
	if err != nil {
		return "", err
	}
	defer unlock()

	// Sequences and row positions belong to the whole sheet.
	unlockSheet, err := s.lockSheet(ctx, layout)
	if err != nil {
		return "", err
	}
	defer unlockSheet()

	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to acquire access token: %w", err)
	}
	msg, err := s.apply(ctx, req, key, layout, sheets.NewMutator(s.client.WithToken(token)))
	if err != nil {
		s.dropRejectedToken(ctx, token, err)
	}
	return msg, err
}

func (s *SyncService) apply(ctx context.Context, req models.SyncRequest, key string, layout schema.Layout, mutator *sheets.Mutator) (string, error) {
	switch req.Action {
	case models.ActionDelete:
		deleted, err := mutator.Delete(ctx, layout.Sheet, key)
		if err != nil {
			return "", err
		}
		if !deleted {
			return "row already absent", nil
		}
		return "row deleted", nil

	case models.ActionInsert:
		cells, err := schema.Map(req.Table, key, req.Data, s.now())
		if err != nil {
			return "", err
		}
		seq, err := mutator.Append(ctx, layout.Sheet, cells)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("row appended with sequence %d", seq), nil

	case models.ActionUpdate:
		cells, err := schema.Map(req.Table, key, req.Data, s.now())
		if err != nil {
			return "", err
		}
		row, found, err := mutator.Locator().Locate(ctx, layout.Sheet, key)
		if err != nil {
			return "", err
		}
		if found {
			if err := mutator.Update(ctx, layout.Sheet, row, cells); err != nil {
				return "", err
			}
			return fmt.Sprintf("row %d updated", row), nil
		}

		// The row was lost by an earlier failed sync or removed by hand.
		seq, err := mutator.Append(ctx, layout.Sheet, cells)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("row missing, appended with sequence %d", seq), nil
	}

	return "", fmt.Errorf("%w: unknown action %q", ErrValidation, req.Action)
}

// TokenInvalidator is implemented by token providers that cache.
type TokenInvalidator interface {
	Invalidate(ctx context.Context, token string)
}

// dropRejectedToken forgets token when the API answered 401 to it, e.g. after
// the key was rotated.
func (s *SyncService) dropRejectedToken(ctx context.Context, token string, err error) {
	var apiErr *sheets.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		return
	}
	if inv, ok := s.tokens.(TokenInvalidator); ok {
		s.logger.Warn("access token rejected, invalidating", "url", apiErr.URL)
		inv.Invalidate(ctx, token)
	}
}

// lockSheet is always taken after the key lock.
func (s *SyncService) lockSheet(ctx context.Context, layout schema.Layout) (func(), error) {
	return s.locker.Lock(ctx, "sheet:"+layout.Sheet)
}

func (s *SyncService) record(ctx context.Context, req models.SyncRequest, start time.Time, msg string, syncErr error) {
	duration := s.now().Sub(start)

	if syncErr != nil {
		s.logger.Warn("sheet sync failed",
			"action", req.Action, "table", req.Table, "key", requestKey(req), "err", syncErr)
	} else {
		s.logger.Info("sheet sync applied",
			"action", req.Action, "table", req.Table, "key", requestKey(req), "result", msg, "duration", duration)
	}

	s.appendEvent(ctx, req, msg, duration, syncErr)
}

func (s *SyncService) appendEvent(ctx context.Context, req models.SyncRequest, msg string, duration time.Duration, syncErr error) {
	if s.events == nil {
		return
	}

	event := &models.SyncEvent{
		Action:     req.Action,
		Table:      req.Table,
		RecordID:   requestKey(req),
		Status:     models.SyncStatusSucceeded,
		Message:    msg,
		DurationMs: duration.Milliseconds(),
	}
	if syncErr != nil {
		event.Status = models.SyncStatusFailed
		event.Message = ""
		event.Error = syncErr.Error()
	}

	// The log outlives a cancelled caller.
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.events.Append(logCtx, event); err != nil {
		s.logger.Error("failed to record sync event", "table", req.Table, "key", event.RecordID, "err", err)
	}
}

// ValidateRequest reports whether req could be applied, without any I/O.
func ValidateRequest(req models.SyncRequest) error {
	_, _, err := validateRequest(req)
	return err
}

func validateRequest(req models.SyncRequest) (string, schema.Layout, error) {
	if !req.Action.Valid() {
		return "", schema.Layout{}, fmt.Errorf("%w: unknown action %q", ErrValidation, req.Action)
	}
	if req.Table == "" {
		return "", schema.Layout{}, fmt.Errorf("%w: table is required", ErrValidation)
	}

	layout, ok := schema.LayoutFor(req.Table)
	if !ok {
		return "", schema.Layout{}, fmt.Errorf("%w: %q", ErrUnsupportedTable, req.Table)
	}

	key := requestKey(req)
	if key == "" {
		return "", schema.Layout{}, fmt.Errorf("%w: record id is required for %s", ErrValidation, req.Action)
	}

	if req.Action != models.ActionDelete && req.Data == nil {
		return "", schema.Layout{}, fmt.Errorf("%w: data is required for %s", ErrValidation, req.Action)
	}

	return key, layout, nil
}

// requestKey is the record id, falling back to data["id"] for insert and update.
func requestKey(req models.SyncRequest) string {
	key := strings.TrimSpace(req.RecordID)
	if key == "" && req.Action != models.ActionDelete && req.Data != nil {
		key = strings.TrimSpace(schema.FormatCell(req.Data["id"]))
	}
	return key
}
