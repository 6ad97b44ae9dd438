// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

import (
	"fmt"

	"github.com/google/uuid"
)

// DefaultReadRetries bounds how many times an SPMC read retries while the
// producer is mid-publish before reporting [ErrWriterStalled].
const DefaultReadRetries = 1 << 16

// Options configures channel creation.
type Options struct {
	// Capacity (SPSC: rounds up to next power of 2, min 2;
	// SPMC: number of latest-value slots, rounds up to next power of 2)
	capacity int

	// Backing memory
	shared bool   // Named OS object instead of heap
	name   string // Object name; generated when empty
	attach bool   // Open an existing object instead of creating one

	// Waiting
	wait    WaitStrategy
	retries int
}

// Builder creates channels with fluent configuration.
//
// Example:
//
//	// Both ends in this process, heap backed
//	p, c, err := shmq.BuildSPSC[Tick](shmq.New(1024))
//
//	// Producer process creates a shared segment
//	p, err := shmq.BuildSPSCProducer[Tick](shmq.New(1024).Shared("ticks"))
//
//	// Consumer process attaches to it
//	c, err := shmq.BuildSPSCConsumer[Tick](shmq.New(1024).Shared("ticks").Attach())
type Builder struct {
	opts Options
}

// New creates a channel builder with the given capacity.
//
// Panics if capacity < 1.
func New(capacity int) *Builder {
	if capacity < 1 {
		panic("shmq: capacity must be >= 1")
	}
	return &Builder{opts: Options{
		capacity: capacity,
		wait:     SpinWait,
		retries:  DefaultReadRetries,
	}}
}

// Shared places the channel in a named OS shared-memory object so that
// other processes can attach to it. An empty name generates a unique one;
// read it back from the handle's Segment().Name().
func (b *Builder) Shared(name string) *Builder {
	b.opts.shared = true
	b.opts.name = name
	return b
}

// Attach opens an existing shared segment instead of creating one.
// Requires Shared with a non-empty name.
func (b *Builder) Attach() *Builder {
	b.opts.attach = true
	return b
}

// Wait sets the idle strategy of blocking operations.
// Default: [SpinWait].
func (b *Builder) Wait(strategy WaitStrategy) *Builder {
	if strategy == nil {
		strategy = SpinWait
	}
	b.opts.wait = strategy
	return b
}

// ReadRetries bounds torn-read retries of SPMC reads.
// Default: [DefaultReadRetries].
func (b *Builder) ReadRetries(n int) *Builder {
	if n < 1 {
		n = 1
	}
	b.opts.retries = n
	return b
}

// geometry resolves the builder into a segment geometry for T.
func geometryFor[T any](b *Builder, kind Kind) (Geometry, error) {
	layout, err := LayoutOf[T]()
	if err != nil {
		return Geometry{}, err
	}
	n := b.opts.capacity
	if kind == KindSPMC && n == 1 {
		// A single latest-value slot is already a power of 2.
	} else {
		n = roundToPow2(n)
	}
	return Geometry{Kind: kind, Capacity: n, SlotSize: layout.Size, TypeTag: layout.Tag}, nil
}

// segment creates or opens the segment described by the builder.
func (b *Builder) segment(g Geometry) (*Segment, error) {
	if !b.opts.shared {
		if b.opts.attach {
			return nil, fmt.Errorf("%w: Attach requires Shared", ErrSegmentUnavailable)
		}
		return CreateSegment("", g)
	}
	if b.opts.attach {
		if b.opts.name == "" {
			return nil, fmt.Errorf("%w: Attach requires a segment name", ErrSegmentUnavailable)
		}
		return OpenSegment(b.opts.name, g)
	}
	name := b.opts.name
	if name == "" {
		name = "seg-" + uuid.NewString()
	}
	return CreateSegment(name, g)
}

// BuildSPSC creates an SPSC channel and returns both ends.
func BuildSPSC[T any](b *Builder) (*SPSCProducer[T], *SPSCConsumer[T], error) {
	g, err := geometryFor[T](b, KindSPSC)
	if err != nil {
		return nil, nil, err
	}
	seg, err := b.segment(g)
	if err != nil {
		return nil, nil, err
	}
	peer, err := seg.Attach()
	if err != nil {
		seg.Close()
		return nil, nil, err
	}
	return newSPSCProducer[T](seg, b.opts.wait()), newSPSCConsumer[T](peer, b.opts.wait()), nil
}

// BuildSPSCProducer creates or attaches the producer end of a shared SPSC
// channel.
func BuildSPSCProducer[T any](b *Builder) (*SPSCProducer[T], error) {
	seg, err := b.oneEnd(KindSPSC, geometryFor[T])
	if err != nil {
		return nil, err
	}
	return newSPSCProducer[T](seg, b.opts.wait()), nil
}

// BuildSPSCConsumer creates or attaches the consumer end of a shared SPSC
// channel.
func BuildSPSCConsumer[T any](b *Builder) (*SPSCConsumer[T], error) {
	seg, err := b.oneEnd(KindSPSC, geometryFor[T])
	if err != nil {
		return nil, err
	}
	return newSPSCConsumer[T](seg, b.opts.wait()), nil
}

// BuildSPMC creates an SPMC latest-value channel and returns the producer
// and a first consumer. More consumers come from [SPMCConsumer.Clone].
func BuildSPMC[T any](b *Builder) (*SPMCProducer[T], *SPMCConsumer[T], error) {
	g, err := geometryFor[T](b, KindSPMC)
	if err != nil {
		return nil, nil, err
	}
	seg, err := b.segment(g)
	if err != nil {
		return nil, nil, err
	}
	peer, err := seg.Attach()
	if err != nil {
		seg.Close()
		return nil, nil, err
	}
	return newSPMCProducer[T](seg), newSPMCConsumer[T](peer, b.opts.wait, b.opts.retries), nil
}

// BuildSPMCProducer creates or attaches the producer of a shared SPMC
// channel.
func BuildSPMCProducer[T any](b *Builder) (*SPMCProducer[T], error) {
	seg, err := b.oneEnd(KindSPMC, geometryFor[T])
	if err != nil {
		return nil, err
	}
	return newSPMCProducer[T](seg), nil
}

// BuildSPMCConsumer creates or attaches a consumer of a shared SPMC
// channel.
func BuildSPMCConsumer[T any](b *Builder) (*SPMCConsumer[T], error) {
	seg, err := b.oneEnd(KindSPMC, geometryFor[T])
	if err != nil {
		return nil, err
	}
	return newSPMCConsumer[T](seg, b.opts.wait, b.opts.retries), nil
}

// oneEnd builds a segment for a single channel end. A heap segment would
// be unreachable by the other end, so one-ended builders require Shared.
func (b *Builder) oneEnd(kind Kind, geo func(*Builder, Kind) (Geometry, error)) (*Segment, error) {
	if !b.opts.shared {
		return nil, fmt.Errorf("%w: a single %v end requires Shared", ErrSegmentUnavailable, kind)
	}
	g, err := geo(b, kind)
	if err != nil {
		return nil, err
	}
	return b.segment(g)
}
