package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prudhvinik1/sheetsync/internal/models"
)

var (
	ErrQueueFull        = errors.New("sync queue is full")
	ErrDispatcherClosed = errors.New("sync dispatcher is closed")
)

// Syncer is the single entry point the dispatcher drives.
type Syncer interface {
	Sync(ctx context.Context, req models.SyncRequest) models.SyncResult
}

// Dispatcher runs syncs in the background on a bounded queue so the request
// that mutated the primary store never waits on the spreadsheet. A sync that
// fails is logged (and recorded by the Syncer); it never reaches the caller.
type Dispatcher struct {
	syncer  Syncer
	jobs    chan models.SyncRequest
	workers int
	timeout time.Duration
	logger  *slog.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(syncer Syncer, workers, queueSize int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		syncer:  syncer,
		jobs:    make(chan models.SyncRequest, queueSize),
		workers: workers,
		timeout: timeout,
		logger:  logger,
	}
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(i)
	}
}

// Enqueue schedules a sync without blocking. When the queue is full the
// request is dropped and ErrQueueFull returned.
func (d *Dispatcher) Enqueue(req models.SyncRequest) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.jobs <- req:
		return nil
	default:
		d.logger.Warn("sync queue full, dropping request",
			"action", req.Action, "table", req.Table, "key", req.RecordID)
		return ErrQueueFull
	}
}

// Shutdown stops accepting work and waits for queued syncs to finish.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work(id int) {
	defer d.wg.Done()
	for req := range d.jobs {
		d.run(id, req)
	}
}

func (d *Dispatcher) run(id int, req models.SyncRequest) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("sync worker panic", "worker", id, "table", req.Table, "key", req.RecordID, "panic", r)
		}
	}()

	result := d.syncer.Sync(ctx, req)
	if !result.Success {
		d.logger.Warn("background sync failed",
			"worker", id, "action", req.Action, "table", req.Table, "key", req.RecordID, "err", result.Error)
	}
}
