// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

import (
	"unsafe"

	"code.hybscloud.com/atomix"
)

// SPSCProducer is the writing end of a single-producer single-consumer
// bounded ring.
//
// Based on Lamport's ring buffer with cached index optimization. The
// shared cursors live in the segment header on separate cache lines; the
// producer caches the consumer's head in its own handle and re-reads the
// shared copy only when the ring looks full.
//
// A producer is owned by one goroutine at a time.
type SPSCProducer[T any] struct {
	seg        *Segment
	hdr        *header
	slots      unsafe.Pointer
	stride     uint64
	mask       uint64
	cachedHead uint64 // Producer's cached view of head
	waiter     Waiter
	detached   atomix.Uint64 // 1 once this handle is closed
}

func newSPSCProducer[T any](seg *Segment, w Waiter) *SPSCProducer[T] {
	g := seg.Geometry()
	return &SPSCProducer[T]{
		seg:        seg,
		hdr:        seg.hdr,
		slots:      seg.slots,
		stride:     g.stride(),
		mask:       uint64(g.Capacity - 1),
		cachedHead: seg.hdr.head.LoadAcquire(),
		waiter:     w,
	}
}

// TryPush copies *elem into the ring (non-blocking).
// Returns [ErrChannelFull] if the ring is full and [ErrClosed] if the
// channel has been closed. On either error the cursors are unchanged.
func (p *SPSCProducer[T]) TryPush(elem *T) error {
	if p.detached.LoadAcquire() != 0 || p.hdr.closed.LoadAcquire() != 0 {
		return ErrClosed
	}
	tail := p.hdr.tail.LoadRelaxed()
	if tail-p.cachedHead > p.mask {
		p.cachedHead = p.hdr.head.LoadAcquire()
		if tail-p.cachedHead > p.mask {
			return ErrChannelFull
		}
	}

	*(*T)(unsafe.Add(p.slots, int((tail&p.mask)*p.stride))) = *elem
	p.hdr.tail.StoreRelease(tail + 1)
	return nil
}

// Push copies *elem into the ring, waiting while it is full.
// Returns nil once the record is published, or [ErrClosed] if the channel
// is closed before space frees.
func (p *SPSCProducer[T]) Push(elem *T) error {
	for {
		err := p.TryPush(elem)
		if err != ErrChannelFull {
			p.waiter.Reset()
			return err
		}
		p.waiter.Wait()
	}
}

// Cap returns the ring capacity.
func (p *SPSCProducer[T]) Cap() int {
	return int(p.mask + 1)
}

// Len returns the number of unread records.
// The value is a hint: the consumer may pop concurrently.
func (p *SPSCProducer[T]) Len() int {
	if p.detached.LoadAcquire() != 0 {
		return 0
	}
	return ringLen(p.hdr, p.mask)
}

// IsClosed reports whether either end has closed the channel.
func (p *SPSCProducer[T]) IsClosed() bool {
	return p.detached.LoadAcquire() != 0 || p.hdr.closed.LoadAcquire() != 0
}

// Segment returns the segment backing the channel.
func (p *SPSCProducer[T]) Segment() *Segment {
	return p.seg
}

// Close marks the channel closed and releases the producer's reference.
// Records already pushed stay readable by the consumer. Close is
// idempotent.
func (p *SPSCProducer[T]) Close() error {
	if !p.detached.CompareAndSwapAcqRel(0, 1) {
		return nil
	}
	p.seg.markClosed()
	return p.seg.Close()
}

// SPSCConsumer is the reading end of a single-producer single-consumer
// bounded ring. A consumer is owned by one goroutine at a time.
type SPSCConsumer[T any] struct {
	seg        *Segment
	hdr        *header
	slots      unsafe.Pointer
	stride     uint64
	mask       uint64
	cachedTail uint64 // Consumer's cached view of tail
	waiter     Waiter
	detached   atomix.Uint64 // 1 once this handle is closed
}

func newSPSCConsumer[T any](seg *Segment, w Waiter) *SPSCConsumer[T] {
	g := seg.Geometry()
	return &SPSCConsumer[T]{
		seg:        seg,
		hdr:        seg.hdr,
		slots:      seg.slots,
		stride:     g.stride(),
		mask:       uint64(g.Capacity - 1),
		cachedTail: seg.hdr.tail.LoadAcquire(),
		waiter:     w,
	}
}

// TryPop removes and returns the oldest record (non-blocking).
// Returns [ErrChannelEmpty] if no record is available, or [ErrClosed]
// once the channel is closed and fully drained.
func (c *SPSCConsumer[T]) TryPop() (T, error) {
	var elem T
	err := c.TryPopInto(&elem)
	return elem, err
}

// TryPopInto is TryPop writing the record into *dst, for records too large
// to return by value comfortably. *dst is untouched on error.
func (c *SPSCConsumer[T]) TryPopInto(dst *T) error {
	if c.detached.LoadAcquire() != 0 {
		return ErrClosed
	}
	head := c.hdr.head.LoadRelaxed()
	if head >= c.cachedTail {
		c.cachedTail = c.hdr.tail.LoadAcquire()
		if head >= c.cachedTail {
			if c.hdr.closed.LoadAcquire() == 0 {
				return ErrChannelEmpty
			}
			// The producer publishes its last tail before the closed flag.
			c.cachedTail = c.hdr.tail.LoadAcquire()
			if head >= c.cachedTail {
				return ErrClosed
			}
		}
	}

	*dst = *(*T)(unsafe.Add(c.slots, int((head&c.mask)*c.stride)))
	c.hdr.head.StoreRelease(head + 1)
	return nil
}

// Pop removes and returns the oldest record, waiting while the ring is
// empty. Returns [ErrClosed] once the channel is closed and drained.
func (c *SPSCConsumer[T]) Pop() (T, error) {
	var elem T
	for {
		err := c.TryPopInto(&elem)
		if err != ErrChannelEmpty {
			c.waiter.Reset()
			return elem, err
		}
		c.waiter.Wait()
	}
}

// Cap returns the ring capacity.
func (c *SPSCConsumer[T]) Cap() int {
	return int(c.mask + 1)
}

// Len returns the number of unread records.
// The value is a hint: the producer may push concurrently.
func (c *SPSCConsumer[T]) Len() int {
	if c.detached.LoadAcquire() != 0 {
		return 0
	}
	return ringLen(c.hdr, c.mask)
}

// IsClosed reports whether either end has closed the channel. Records may
// still be buffered; drain them with TryPop until it returns [ErrClosed].
func (c *SPSCConsumer[T]) IsClosed() bool {
	return c.detached.LoadAcquire() != 0 || c.hdr.closed.LoadAcquire() != 0
}

// Segment returns the segment backing the channel.
func (c *SPSCConsumer[T]) Segment() *Segment {
	return c.seg
}

// Close marks the channel closed and releases the consumer's reference.
// A blocked producer observes the closure and returns [ErrClosed].
func (c *SPSCConsumer[T]) Close() error {
	if !c.detached.CompareAndSwapAcqRel(0, 1) {
		return nil
	}
	c.seg.markClosed()
	return c.seg.Close()
}

// ringLen computes tail - head clamped to [0, capacity]. The cursors are
// read separately, so either may have moved in between.
func ringLen(h *header, mask uint64) int {
	head := h.head.LoadAcquire()
	tail := h.tail.LoadAcquire()
	if tail <= head {
		return 0
	}
	if n := tail - head; n <= mask+1 {
		return int(n)
	}
	return int(mask + 1)
}
