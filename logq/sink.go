// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logq

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Entry is a decoded record handed to a sink.
type Entry struct {
	Time     time.Time
	Seq      uint32
	Level    slog.Level
	Template TemplateID
	Message  string
	Attrs    []slog.Attr
}

// Sink receives decoded entries from the backend.
//
// WriteBatch is called from the backend goroutine only. The entries and
// their Attrs are reused after WriteBatch returns; a sink that keeps them
// must copy.
type Sink interface {
	WriteBatch(ctx context.Context, entries []Entry) error
	Sync() error
}

// HandlerSink writes entries through a slog.Handler, for console and file
// output:
//
//	sink := logq.HandlerSink(slog.NewJSONHandler(os.Stdout, nil))
func HandlerSink(h slog.Handler) Sink {
	return &handlerSink{h: h}
}

type handlerSink struct {
	h slog.Handler
}

func (s *handlerSink) WriteBatch(ctx context.Context, entries []Entry) error {
	var errs []error
	for i := range entries {
		e := &entries[i]
		if !s.h.Enabled(ctx, e.Level) {
			continue
		}
		r := slog.NewRecord(e.Time, e.Level, e.Message, 0)
		r.AddAttrs(e.Attrs...)
		if e.Seq != 0 {
			r.AddAttrs(slog.Uint64("seq", uint64(e.Seq)))
		}
		if err := s.h.Handle(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *handlerSink) Sync() error {
	return nil
}

// MemorySink keeps copies of every entry. Safe for concurrent use.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
	syncs   int
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) WriteBatch(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		e.Attrs = slices.Clone(e.Attrs)
		s.entries = append(s.entries, e)
	}
	return nil
}

func (s *MemorySink) Sync() error {
	s.mu.Lock()
	s.syncs++
	s.mu.Unlock()
	return nil
}

// Entries returns a copy of the collected entries.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// Len returns the number of collected entries.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Syncs returns how many times Sync was called.
func (s *MemorySink) Syncs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncs
}
