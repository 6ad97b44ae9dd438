// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/shmq"
)

// Backend drains the ring, resolves templates and writes batches to the
// sink. It runs on its own goroutine, off the producer's critical path.
//
// A batch is written when it reaches BatchSize records, when the ring runs
// dry, or when FlushInterval has passed since the last write under
// sustained load.
type Backend struct {
	cons          shmq.Consumer[Record]
	templates     *Templates
	sink          Sink
	logger        *slog.Logger
	batchSize     int
	flushInterval time.Duration

	batch []Entry
	n     int

	written    atomix.Uint64 // Records handed to the sink
	unknown    atomix.Uint64
	sinkErrors atomix.Uint64
	lost       atomix.Uint64 // Records in batches the sink rejected
	abort      atomix.Uint64
	done       chan struct{}
}

func newBackend(cons shmq.Consumer[Record], cfg Config, templates *Templates, sink Sink, o options) *Backend {
	if cfg.Breaker.Enabled {
		sink = BreakerSink(sink, cfg.Breaker, o.logger)
	}
	batch := make([]Entry, cfg.BatchSize)
	for i := range batch {
		batch[i].Attrs = make([]slog.Attr, 0, MaxArgs)
	}
	return &Backend{
		cons:          cons,
		templates:     templates,
		sink:          sink,
		logger:        o.logger,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		batch:         batch,
		done:          make(chan struct{}),
	}
}

// Attach opens the ring of a logger created with [NewProducer] in another
// process and returns a backend for it. Call Run to drain.
func Attach(cfg Config, templates *Templates, sink Sink, opts ...Option) (*Backend, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Shared == "" {
		return nil, fmt.Errorf("%w: Attach requires a shared segment name", ErrInvalidConfig)
	}
	cons, err := shmq.BuildSPSCConsumer[Record](
		shmq.New(cfg.Capacity).Shared(cfg.Shared).Attach().Wait(shmq.BackoffWait),
	)
	if err != nil {
		return nil, err
	}
	return newBackend(cons, cfg, templates, sink, applyOptions(opts)), nil
}

// Run drains the ring until it is closed and empty, ctx is done, or the
// backend is aborted. Cancellation is observed after each batch write and
// whenever the ring runs dry. The ring is detached when Run returns.
func (b *Backend) Run(ctx context.Context) error {
	defer close(b.done)
	defer b.cons.Close()

	var backoff iox.Backoff
	last := time.Now()
	for {
		if b.abort.LoadAcquire() != 0 {
			return ErrDrainTimeout
		}
		var r Record
		err := b.cons.TryPopInto(&r)
		switch {
		case err == nil:
			backoff.Reset()
			b.decode(&r, &b.batch[b.n])
			b.n++
			if b.n == b.batchSize || time.Since(last) >= b.flushInterval {
				b.flush(ctx)
				last = time.Now()
				if ctx.Err() != nil {
					b.sync()
					return ctx.Err()
				}
			}
		case err == shmq.ErrChannelEmpty:
			if b.n > 0 {
				b.flush(ctx)
				last = time.Now()
			}
			if ctx.Err() != nil {
				b.sync()
				return ctx.Err()
			}
			backoff.Wait()
		case errors.Is(err, shmq.ErrClosed):
			b.flush(ctx)
			b.sync()
			return nil
		default:
			b.flush(ctx)
			b.sync()
			return err
		}
	}
}

// decode resolves a record into e, reusing e's attribute storage.
func (b *Backend) decode(r *Record, e *Entry) {
	e.Time = r.Time()
	e.Seq = r.Seq
	e.Template = r.Template
	e.Attrs = e.Attrs[:0]
	n := min(int(r.NArgs), MaxArgs)

	t, err := b.templates.Lookup(r.Template)
	if err != nil {
		b.unknown.Add(1)
		e.Level = slog.LevelWarn
		e.Message = ErrUnknownTemplate.Error()
		e.Attrs = append(e.Attrs, slog.Uint64("template", uint64(r.Template)))
		for i := range n {
			e.Attrs = append(e.Attrs, slog.Uint64(fmt.Sprintf("arg%d", i), uint64(r.Args[i])))
		}
		return
	}
	e.Level = t.Level
	e.Message = t.Message
	for i := range n {
		e.Attrs = append(e.Attrs, t.attr(i, r.Args[i]))
	}
}

func (b *Backend) flush(ctx context.Context) {
	if b.n == 0 {
		return
	}
	n := b.n
	b.n = 0
	if err := b.sink.WriteBatch(ctx, b.batch[:n]); err != nil {
		b.sinkErrors.Add(1)
		b.lost.Add(uint64(n))
		b.logger.Error("logq: sink write failed", "records", n, "err", err)
	}
	b.written.Add(uint64(n))
}

func (b *Backend) sync() {
	if err := b.sink.Sync(); err != nil {
		b.logger.Error("logq: sink sync failed", "err", err)
	}
}

// Done is closed when Run returns.
func (b *Backend) Done() <-chan struct{} {
	return b.done
}

// Abort makes Run return [ErrDrainTimeout] after the current record.
// Records still in the ring are not written.
func (b *Backend) Abort() {
	b.abort.Store(1)
}

// Stop aborts the backend and waits up to timeout for Run to return.
// Reports whether it returned in time.
func (b *Backend) Stop(timeout time.Duration) bool {
	b.Abort()
	select {
	case <-b.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// BackendStats is a snapshot of backend counters.
type BackendStats struct {
	Written    uint64 // Records handed to the sink, including rejected batches
	Lost       uint64 // Records in batches the sink rejected
	Unknown    uint64 // Records with an unregistered template
	SinkErrors uint64 // Failed batch writes
}

// Stats returns a snapshot of the backend counters.
func (b *Backend) Stats() BackendStats {
	return BackendStats{
		Written:    b.written.Load(),
		Lost:       b.lost.Load(),
		Unknown:    b.unknown.Load(),
		SinkErrors: b.sinkErrors.Load(),
	}
}
