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

// Option configures a Logger or Backend.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the slog.Logger used for pipeline diagnostics such as
// sink failures and drain timeouts. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Logger is the producer side of the log pipeline.
//
// Log builds a fixed-layout [Record] and pushes it into an SPSC ring. It
// does no heap allocation, takes no lock, makes no syscall and formats
// nothing; the backend does all of that on its own goroutine.
//
// A Logger is owned by one goroutine at a time. Counters may be read from
// any goroutine.
type Logger struct {
	cfg     Config
	prod    *shmq.SPSCProducer[Record]
	tap     *shmq.SPMCProducer[Record]
	tapRead *shmq.SPMCConsumer[Record]
	backend *Backend
	logger  *slog.Logger
	clock   clock
	lastTS  int64
	lastSeq uint32

	logged  atomix.Uint64 // Records accepted into the ring
	dropped atomix.Uint64 // Records discarded under PolicyDrop
	closed  atomix.Uint64
}

// New creates a logger whose backend drains into sink on a detached
// goroutine.
//
// Example:
//
//	templates := logq.NewTemplates()
//	fill := templates.MustRegister(slog.LevelInfo, "order filled",
//	    logq.Field{Name: "id", Kind: logq.KindUint},
//	    logq.Field{Name: "px", Kind: logq.KindFloat})
//
//	log, err := logq.New(logq.Config{Capacity: 8192}, templates,
//	    logq.HandlerSink(slog.NewJSONHandler(os.Stdout, nil)))
//	defer log.Close()
//
//	log.Log(fill, logq.Uint(id), logq.Float(px))
func New(cfg Config, templates *Templates, sink Sink, opts ...Option) (*Logger, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if templates == nil || sink == nil {
		return nil, fmt.Errorf("%w: templates and sink are required", ErrInvalidConfig)
	}
	o := applyOptions(opts)

	b := shmq.New(cfg.Capacity)
	if cfg.Shared != "" {
		b = b.Shared(cfg.Shared)
	}
	prod, cons, err := shmq.BuildSPSC[Record](b)
	if err != nil {
		return nil, err
	}
	l := &Logger{cfg: cfg, prod: prod, logger: o.logger, clock: newClock()}
	if err := l.openTap(); err != nil {
		prod.Close()
		cons.Close()
		return nil, err
	}
	l.backend = newBackend(cons, cfg, templates, sink, o)
	go func() {
		if err := l.backend.Run(context.Background()); err != nil {
			l.logger.Error("logq: backend stopped", "err", err)
		}
	}()
	return l, nil
}

// NewProducer creates a logger whose ring lives in the shared segment
// cfg.Shared. No backend runs in this process; another process drains the
// ring with [Attach].
func NewProducer(cfg Config, opts ...Option) (*Logger, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Shared == "" {
		return nil, fmt.Errorf("%w: NewProducer requires a shared segment name", ErrInvalidConfig)
	}
	o := applyOptions(opts)
	prod, err := shmq.BuildSPSCProducer[Record](shmq.New(cfg.Capacity).Shared(cfg.Shared))
	if err != nil {
		return nil, err
	}
	l := &Logger{cfg: cfg, prod: prod, logger: o.logger, clock: newClock()}
	if err := l.openTap(); err != nil {
		prod.Close()
		return nil, err
	}
	return l, nil
}

func (l *Logger) openTap() error {
	if !l.cfg.Tap {
		return nil
	}
	b := shmq.New(1)
	if l.cfg.Shared != "" {
		b = b.Shared(l.cfg.Shared + "-tap")
	}
	pub, sub, err := shmq.BuildSPMC[Record](b)
	if err != nil {
		return err
	}
	l.tap, l.tapRead = pub, sub
	return nil
}

// Log records an event with a fresh timestamp. Arguments beyond
// [MaxArgs] are ignored. Reports whether the record entered the ring.
func (l *Logger) Log(id TemplateID, args ...Arg) bool {
	var ts int64
	if !l.cfg.DisableTimestamps {
		ts = l.clock.now()
	}
	l.lastTS, l.lastSeq = ts, 0
	return l.emit(ts, 0, id, args)
}

// LogSame records an event with the timestamp of the previous Log call
// and the next sequence number, skipping the clock read.
func (l *Logger) LogSame(id TemplateID, args ...Arg) bool {
	l.lastSeq++
	return l.emit(l.lastTS, l.lastSeq, id, args)
}

func (l *Logger) emit(ts int64, seq uint32, id TemplateID, args []Arg) bool {
	rec := Record{Timestamp: ts, Template: id, Seq: seq}
	rec.NArgs = uint32(copy(rec.Args[:], args))

	var err error
	if l.cfg.Policy == PolicyBlock {
		err = l.prod.Push(&rec)
	} else {
		err = l.prod.TryPush(&rec)
	}
	if err != nil {
		if err == shmq.ErrChannelFull {
			l.dropped.Add(1)
		}
		return false
	}
	l.logged.Add(1)
	if l.tap != nil {
		l.tap.Publish(&rec)
	}
	return true
}

// Dropped returns the number of records discarded because the ring was
// full. It only grows.
func (l *Logger) Dropped() uint64 {
	return l.dropped.Load()
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Logged  uint64 // Records accepted into the ring
	Dropped uint64 // Records discarded under PolicyDrop
	Pending int    // Records in the ring, a hint
	Backend BackendStats
}

// Stats returns a snapshot of the pipeline counters. Backend counters are
// zero for a logger created with NewProducer.
func (l *Logger) Stats() Stats {
	s := Stats{
		Logged:  l.logged.Load(),
		Dropped: l.dropped.Load(),
		Pending: l.prod.Len(),
	}
	if l.backend != nil {
		s.Backend = l.backend.Stats()
	}
	return s
}

// Flush waits until every accepted record has been handed to the sink,
// or, without a local backend, until the ring is empty. Reports whether
// that happened within timeout.
func (l *Logger) Flush(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	target := l.logged.Load()
	var backoff iox.Backoff
	for {
		if l.flushed(target) {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		backoff.Wait()
	}
}

func (l *Logger) flushed(target uint64) bool {
	if l.backend == nil {
		return l.prod.Len() == 0
	}
	return l.backend.written.Load() >= target
}

// Tap returns a new reader of the latest logged record.
// Returns [shmq.ErrClosed] when the tap is not enabled or the logger is
// closed. Close the reader when done.
func (l *Logger) Tap() (*shmq.SPMCConsumer[Record], error) {
	if l.tapRead == nil || l.closed.Load() != 0 {
		return nil, shmq.ErrClosed
	}
	return l.tapRead.Clone()
}

// Close closes the ring and waits up to DrainTimeout for the backend to
// write what remains. Returns [ErrDrainTimeout] if the backend did not
// finish in time; it is then aborted. Close is idempotent.
func (l *Logger) Close() error {
	if !l.closed.CompareAndSwapAcqRel(0, 1) {
		return nil
	}
	var errs []error
	if err := l.prod.Close(); err != nil {
		errs = append(errs, err)
	}
	if l.backend != nil {
		select {
		case <-l.backend.Done():
		case <-time.After(l.cfg.DrainTimeout):
			l.backend.Abort()
			l.logger.Warn("logq: backend did not drain in time", "timeout", l.cfg.DrainTimeout)
			errs = append(errs, ErrDrainTimeout)
		}
	}
	if l.tap != nil {
		errs = append(errs, l.tap.Close(), l.tapRead.Close())
	}
	return errors.Join(errs...)
}
