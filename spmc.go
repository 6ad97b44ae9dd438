// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

import (
	"encoding/binary"
	"unsafe"

	"code.hybscloud.com/atomix"
)

// SPMC slot layout: one sequence word followed by the record, padded to
// whole cache lines.
//
// The sequence word is 0 before the first publish, odd while a publish is
// in progress and even once the slot holds a complete record. Every
// publish moves it forward by 2, so a reader that sees the same even value
// before and after its copy has read exactly one publish.
const seqSize = 8

// SPMCProducer publishes latest values into an SPMC segment.
//
// A segment holds Cap() independent slots. Publishing never blocks and
// never looks at consumers: each publish replaces the slot's previous
// value whether or not anyone read it.
//
// A producer is owned by one goroutine at a time.
type SPMCProducer[T any] struct {
	seg       *Segment
	hdr       *header
	slots     unsafe.Pointer
	stride    uint64
	n         int
	published uint64
	detached  atomix.Uint64
}

func newSPMCProducer[T any](seg *Segment) *SPMCProducer[T] {
	g := seg.Geometry()
	return &SPMCProducer[T]{
		seg:       seg,
		hdr:       seg.hdr,
		slots:     seg.slots,
		stride:    g.stride(),
		n:         g.Capacity,
		published: seg.hdr.tail.LoadAcquire(),
	}
}

// Publish replaces the value of slot 0.
func (p *SPMCProducer[T]) Publish(elem *T) error {
	return p.PublishAt(0, elem)
}

// PublishAt replaces the value of slot i.
// Returns [ErrClosed] after Close. Panics if i is out of range.
func (p *SPMCProducer[T]) PublishAt(i int, elem *T) error {
	if uint(i) >= uint(p.n) {
		panic("shmq: slot index out of range")
	}
	if p.detached.LoadAcquire() != 0 {
		return ErrClosed
	}
	slot := unsafe.Add(p.slots, i*int(p.stride))
	seq := (*atomix.Uint64)(slot)

	odd := (seq.LoadRelaxed() + 1) | 1
	seq.StoreRelease(odd)
	storeWords(unsafe.Add(slot, seqSize), bytesOf(elem))
	seq.StoreRelease(odd + 1)

	p.published++
	p.hdr.tail.StoreRelease(p.published)
	return nil
}

// Published returns the number of publishes made through this segment.
func (p *SPMCProducer[T]) Published() uint64 {
	return p.published
}

// Cap returns the number of slots.
func (p *SPMCProducer[T]) Cap() int {
	return p.n
}

// IsClosed reports whether the producer has closed the channel.
func (p *SPMCProducer[T]) IsClosed() bool {
	return p.detached.LoadAcquire() != 0 || p.hdr.closed.LoadAcquire() != 0
}

// Segment returns the segment backing the channel.
func (p *SPMCProducer[T]) Segment() *Segment {
	return p.seg
}

// Close marks the channel closed and releases the producer's reference.
// Consumers keep reading the last published values; blocking Next calls
// return [ErrClosed] once nothing newer can arrive.
func (p *SPMCProducer[T]) Close() error {
	if !p.detached.CompareAndSwapAcqRel(0, 1) {
		return nil
	}
	p.seg.markClosed()
	return p.seg.Close()
}

// SPMCConsumer reads latest values from an SPMC segment.
//
// Each consumer keeps its own copy of the last clean value per slot, so
// Poll can tell a new publish from one it has already seen. Any number of
// consumers may read the same segment; create more with Clone. A single
// consumer is owned by one goroutine at a time.
type SPMCConsumer[T any] struct {
	seg      *Segment
	hdr      *header
	slots    unsafe.Pointer
	stride   uint64
	n        int
	retries  int
	strategy WaitStrategy
	waiter   Waiter
	scratch  T
	last     []T
	seen     []uint64 // Sequence of last[i]; 0 when nothing read yet
	detached atomix.Uint64
}

func newSPMCConsumer[T any](seg *Segment, strategy WaitStrategy, retries int) *SPMCConsumer[T] {
	g := seg.Geometry()
	return &SPMCConsumer[T]{
		seg:      seg,
		hdr:      seg.hdr,
		slots:    seg.slots,
		stride:   g.stride(),
		n:        g.Capacity,
		retries:  retries,
		strategy: strategy,
		waiter:   strategy(),
		last:     make([]T, g.Capacity),
		seen:     make([]uint64, g.Capacity),
	}
}

// Load returns the latest value of slot 0.
func (c *SPMCConsumer[T]) Load() (T, error) {
	return c.LoadAt(0)
}

// LoadAt returns the most recently completed publish of slot i.
//
// Returns [ErrNoDataYet] before the first publish to the slot, and
// [ErrWriterStalled] if a publish stayed in progress for the configured
// number of retries. A returned value is never a mix of two publishes.
// Panics if i is out of range.
func (c *SPMCConsumer[T]) LoadAt(i int) (T, error) {
	err := c.read(i)
	if !IsWouldBlock(err) {
		c.waiter.Reset()
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return c.last[i], nil
}

// Poll returns the latest value of slot 0 if it is newer than the last
// value this consumer read.
func (c *SPMCConsumer[T]) Poll() (T, error) {
	return c.PollAt(0)
}

// PollAt is LoadAt that returns [ErrNoUpdate] when slot i holds the value
// this consumer already read.
func (c *SPMCConsumer[T]) PollAt(i int) (T, error) {
	if uint(i) >= uint(c.n) {
		panic("shmq: slot index out of range")
	}
	if c.detached.LoadAcquire() != 0 {
		var zero T
		return zero, ErrClosed
	}
	if s := c.seq(i).LoadAcquire(); s != 0 && s == c.seen[i] {
		var zero T
		return zero, ErrNoUpdate
	}
	return c.LoadAt(i)
}

// Next waits for a publish to slot 0 newer than the last value this
// consumer read. Returns [ErrClosed] once the producer has closed and no
// newer value remains.
func (c *SPMCConsumer[T]) Next() (T, error) {
	for {
		v, err := c.PollAt(0)
		if err == nil || !IsWouldBlock(err) {
			c.waiter.Reset()
			return v, err
		}
		if c.hdr.closed.LoadAcquire() != 0 {
			// A final publish precedes the closed flag.
			v, err = c.PollAt(0)
			if IsWouldBlock(err) {
				err = ErrClosed
			}
			c.waiter.Reset()
			return v, err
		}
		c.waiter.Wait()
	}
}

// Last returns this consumer's cached copy of slot 0 and whether one
// exists. It does not touch shared memory.
func (c *SPMCConsumer[T]) Last() (T, bool) {
	return c.LastAt(0)
}

// LastAt returns this consumer's cached copy of slot i.
func (c *SPMCConsumer[T]) LastAt(i int) (T, bool) {
	return c.last[i], c.seen[i] != 0
}

// Clone attaches an independent consumer to the same segment. The clone
// starts with an empty cache.
func (c *SPMCConsumer[T]) Clone() (*SPMCConsumer[T], error) {
	if c.detached.LoadAcquire() != 0 {
		return nil, ErrClosed
	}
	seg, err := c.seg.Attach()
	if err != nil {
		return nil, err
	}
	return newSPMCConsumer[T](seg, c.strategy, c.retries), nil
}

// Published returns the producer's publish count. The value is a hint.
func (c *SPMCConsumer[T]) Published() uint64 {
	if c.detached.LoadAcquire() != 0 {
		return 0
	}
	return c.hdr.tail.LoadAcquire()
}

// Cap returns the number of slots.
func (c *SPMCConsumer[T]) Cap() int {
	return c.n
}

// IsClosed reports whether the producer has closed the channel or this
// consumer has been closed.
func (c *SPMCConsumer[T]) IsClosed() bool {
	return c.detached.LoadAcquire() != 0 || c.hdr.closed.LoadAcquire() != 0
}

// Segment returns the segment backing the channel.
func (c *SPMCConsumer[T]) Segment() *Segment {
	return c.seg
}

// Close detaches this consumer. The producer and other consumers are
// unaffected.
func (c *SPMCConsumer[T]) Close() error {
	if !c.detached.CompareAndSwapAcqRel(0, 1) {
		return nil
	}
	return c.seg.Close()
}

func (c *SPMCConsumer[T]) seq(i int) *atomix.Uint64 {
	return (*atomix.Uint64)(unsafe.Add(c.slots, i*int(c.stride)))
}

// read copies a clean snapshot of slot i into the cache. Retries step
// the consumer's waiter; resetting it is left to the caller.
//
// Protocol: acquire-load the sequence s0; if odd a publish is in progress;
// otherwise acquire-load every data word, then acquire-load the sequence
// again. Equal values mean no publish overlapped the copy.
func (c *SPMCConsumer[T]) read(i int) error {
	if uint(i) >= uint(c.n) {
		panic("shmq: slot index out of range")
	}
	if c.detached.LoadAcquire() != 0 {
		return ErrClosed
	}
	slot := unsafe.Add(c.slots, i*int(c.stride))
	seq := (*atomix.Uint64)(slot)
	data := unsafe.Add(slot, seqSize)
	buf := bytesOf(&c.scratch)

	for range c.retries {
		s0 := seq.LoadAcquire()
		if s0 == 0 {
			return ErrNoDataYet
		}
		if s0&1 == 0 {
			loadWords(buf, data)
			if seq.LoadAcquire() == s0 {
				c.last[i] = c.scratch
				c.seen[i] = s0
				return nil
			}
		}
		c.waiter.Wait()
	}
	return ErrWriterStalled
}

// storeWords copies src into the word-aligned region at dst, one
// release-ordered 8-byte store per word. A short final word is
// zero-extended.
func storeWords(dst unsafe.Pointer, src []byte) {
	w := 0
	for ; w+8 <= len(src); w += 8 {
		(*atomix.Uint64)(unsafe.Add(dst, w)).StoreRelease(binary.NativeEndian.Uint64(src[w:]))
	}
	if w < len(src) {
		var tail [8]byte
		copy(tail[:], src[w:])
		(*atomix.Uint64)(unsafe.Add(dst, w)).StoreRelease(binary.NativeEndian.Uint64(tail[:]))
	}
}

// loadWords copies the word-aligned region at src into dst, one
// acquire-ordered 8-byte load per word.
func loadWords(dst []byte, src unsafe.Pointer) {
	w := 0
	for ; w+8 <= len(dst); w += 8 {
		binary.NativeEndian.PutUint64(dst[w:], (*atomix.Uint64)(unsafe.Add(src, w)).LoadAcquire())
	}
	if w < len(dst) {
		var tail [8]byte
		binary.NativeEndian.PutUint64(tail[:], (*atomix.Uint64)(unsafe.Add(src, w)).LoadAcquire())
		copy(dst[w:], tail[:])
	}
}
