// Package cache provides the read-through entity cache and the post-commit
// invalidation dispatcher that keeps it coherent with the store.
package cache

import (
	"context"
	"sync"
	"time"

	"papyrus/internal/core/entity"
	"papyrus/pkg/logger"
)

// Invalidator receives batches of committed change records and evicts the
// affected cache entries.
type Invalidator interface {
	InvalidateBatch(ctx context.Context, records []entity.ChangeRecord) error
}

// Dispatcher fans committed change records out to an Invalidator.
//
// Dispatch is fire-and-forget: records are queued and processed by a single
// worker, and a full queue drops the batch rather than blocking the caller.
// Invalidation failures are logged and swallowed; the cache converges on the
// next miss, the committed data is already durable.
type Dispatcher struct {
	inv      Invalidator
	log      *logger.Logger
	queue    chan []entity.ChangeRecord
	timeout  time.Duration
	recorder *Recorder

	closeOnce sync.Once
	done      chan struct{}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueueSize sets the queue capacity (default 256).
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) { d.queue = make(chan []entity.ChangeRecord, n) }
}

// WithTimeout bounds a single invalidation batch (default 5s).
func WithTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.timeout = t }
}

// WithRecorder counts processed records per entity type.
func WithRecorder(r *Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = r }
}

// NewDispatcher creates a dispatcher and starts its worker.
func NewDispatcher(inv Invalidator, log *logger.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		inv:     inv,
		log:     log.WithComponent("cache-dispatcher"),
		queue:   make(chan []entity.ChangeRecord, 256),
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d
}

// Dispatch queues a batch without blocking. When the queue is full the batch
// is dropped with a warning.
func (d *Dispatcher) Dispatch(records []entity.ChangeRecord) {
	if len(records) == 0 {
		return
	}
	select {
	case d.queue <- records:
	default:
		d.log.Warnw("invalidation queue full, dropping batch", "records", len(records))
	}
}

// Notify invalidates the batch synchronously, bypassing the queue. Errors are
// logged and suppressed so a cache failure never fails the save that already
// committed.
func (d *Dispatcher) Notify(ctx context.Context, records []entity.ChangeRecord) {
	if len(records) == 0 {
		return
	}
	d.invalidate(ctx, records)
}

// Close stops the worker after draining everything already queued.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
		<-d.done
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for records := range d.queue {
		d.invalidate(context.Background(), records)
	}
}

func (d *Dispatcher) invalidate(ctx context.Context, records []entity.ChangeRecord) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorw("invalidator panicked", "panic", r, "records", len(records))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.inv.InvalidateBatch(ctx, records); err != nil {
		d.log.Warnw("cache invalidation failed", "error", err, "records", len(records))
		return
	}
	if d.recorder != nil {
		d.recorder.Observe(records)
	}
}
