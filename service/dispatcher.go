package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"matchbook/domain/book"
	"matchbook/feed"
)

// Stats is a point-in-time tally of dispatcher activity.
type Stats struct {
	Submitted uint64
	Rejected  uint64
	Matched   uint64
	Trades    uint64
	Volume    int64
}

// Dispatcher owns the worker pool that feeds the engine: records go
// into a bounded queue, N workers drain it into Engine.Submit. The
// engine itself has no opinion on worker count; that lifecycle lives
// entirely here.
type Dispatcher struct {
	log     *zap.Logger
	eng     *Engine
	queue   chan feed.Record
	workers int

	wg       sync.WaitGroup
	started  atomic.Bool
	closed   atomic.Bool
	inflight atomic.Int64

	submitted atomic.Uint64
	rejected  atomic.Uint64
	matched   atomic.Uint64
	trades    atomic.Uint64
	volume    atomic.Int64
}

func NewDispatcher(log *zap.Logger, eng *Engine, workers, queueSize int) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		log:     log,
		eng:     eng,
		queue:   make(chan feed.Record, queueSize),
		workers: workers,
	}
}

// Run starts the workers. They drain the queue until Close, then
// exit; ctx cancellation abandons whatever is still queued.
func (d *Dispatcher) Run(ctx context.Context) {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-d.queue:
			if !ok {
				return
			}
			d.inflight.Add(1)
			d.submit(rec)
			d.inflight.Add(-1)
		}
	}
}

func (d *Dispatcher) submit(rec feed.Record) {
	res, err := d.eng.Submit(rec)
	if err != nil {
		d.rejected.Add(1)
		var verr *book.ValidationError
		if !errors.As(err, &verr) {
			d.log.Error("submit failed", zap.Error(err))
		}
		return
	}
	d.submitted.Add(1)
	if res.Matched {
		d.matched.Add(1)
	}
	d.trades.Add(uint64(len(res.Trades)))
	for _, tr := range res.Trades {
		d.volume.Add(tr.Qty)
	}
}

var ErrClosed = errors.New("dispatcher: closed")

// Enqueue queues one record, blocking while the queue is full.
func (d *Dispatcher) Enqueue(ctx context.Context, rec feed.Record) error {
	if d.closed.Load() {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case d.queue <- rec:
		return nil
	}
}

// Drain blocks until everything enqueued so far has been submitted,
// or ctx ends. The callers of Enqueue must be paused; records queued
// while Drain spins push the finish line back.
func (d *Dispatcher) Drain(ctx context.Context) {
	for len(d.queue) > 0 || d.inflight.Load() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Millisecond):
		}
	}
}

// Close stops intake, waits for the workers to drain what is queued,
// and joins them.
func (d *Dispatcher) Close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	close(d.queue)
	d.wg.Wait()
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Submitted: d.submitted.Load(),
		Rejected:  d.rejected.Load(),
		Matched:   d.matched.Load(),
		Trades:    d.trades.Load(),
		Volume:    d.volume.Load(),
	}
}
