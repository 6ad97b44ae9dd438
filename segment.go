// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

import (
	"errors"
	"fmt"
	"log/slog"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/shmq/internal/shm"
)

// Segment is one handle to a self-describing memory region: a fixed
// header followed by capacity slots.
//
// A segment is either process-local (heap backed, unnamed) or a named OS
// shared-memory object mapped into any number of processes. Nothing
// inside the region is a pointer; every slot is addressed by its byte
// offset from the handle's own base, so handles in different address
// spaces agree on the layout.
//
// The header carries a reference count. Every handle (from [CreateSegment],
// [OpenSegment] or [Segment.Attach]) holds one reference until Close. The
// handle that drops the count to zero removes the shared object's name.
//
// Precondition: all holders must Close before the memory is reused. The
// implementation cannot stop another process from touching a segment after
// its name has been removed.
type Segment struct {
	name   string
	geo    Geometry
	hdr    *header
	slots  unsafe.Pointer
	region *shm.Region // nil for heap segments
	heap   []uint64    // keeps heap memory reachable
	owner  bool
	done   atomix.Uint64 // 1 once this handle is closed
}

// CreateSegment creates a segment with the given geometry.
//
// An empty name creates a process-local heap segment; other handles to it
// are obtained with [Segment.Attach]. A non-empty name creates a shared
// object that other processes open with [OpenSegment].
func CreateSegment(name string, g Geometry) (*Segment, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	size := g.Size()

	s := &Segment{name: name, geo: g, owner: true}
	var base unsafe.Pointer
	if name == "" {
		// Over-allocate by one cache line and align the base.
		s.heap = make([]uint64, (size+cacheLine)/8)
		p := unsafe.Pointer(unsafe.SliceData(s.heap))
		base = unsafe.Add(p, int(alignUp(uint64(uintptr(p)), cacheLine)-uint64(uintptr(p))))
	} else {
		r, err := shm.Create(name, size)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSegmentUnavailable, err)
		}
		s.region = r
		base = unsafe.Pointer(unsafe.SliceData(r.Mem))
	}
	s.bind(base)

	h := s.hdr
	h.version = SegmentVersion
	h.kind = g.Kind
	h.slotSize = uint64(g.SlotSize)
	h.capacity = uint64(g.Capacity)
	h.stride = g.stride()
	h.typeTag = g.TypeTag
	h.refs.StoreRelaxed(1)
	h.closed.StoreRelaxed(0)
	h.tail.StoreRelaxed(0)
	h.head.StoreRelaxed(0)
	h.magic.StoreRelease(segmentMagic)
	return s, nil
}

// OpenSegment attaches to a named segment created by [CreateSegment].
//
// The header's magic, version, kind, slot size, capacity and record
// layout must equal g; otherwise OpenSegment returns [ErrLayoutMismatch]
// and holds no reference. A segment whose creator has not finished
// initializing reports [ErrSegmentUnavailable].
func OpenSegment(name string, g Geometry) (*Segment, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: heap segments are attached, not opened", ErrSegmentUnavailable)
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	r, err := shm.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSegmentUnavailable, err)
	}
	if err := checkRegion(r, g); err != nil {
		r.Close()
		return nil, err
	}

	s := &Segment{name: name, geo: g, region: r}
	s.bind(unsafe.Pointer(unsafe.SliceData(r.Mem)))
	s.hdr.refs.AddAcqRel(1)
	return s, nil
}

// checkRegion validates a mapping before any slot is addressed.
func checkRegion(r *shm.Region, g Geometry) error {
	if r.Size() < HeaderSize {
		return fmt.Errorf("%w: %d bytes, header needs %d", ErrLayoutMismatch, r.Size(), HeaderSize)
	}
	h := (*header)(unsafe.Pointer(unsafe.SliceData(r.Mem)))
	switch magic := h.magic.LoadAcquire(); magic {
	case segmentMagic:
	case 0:
		return fmt.Errorf("%w: %q not initialized", ErrSegmentUnavailable, r.Name)
	default:
		return fmt.Errorf("%w: magic %#x", ErrLayoutMismatch, magic)
	}
	if err := h.match(g); err != nil {
		return err
	}
	if r.Size() < g.Size() {
		return fmt.Errorf("%w: %d bytes, geometry needs %d", ErrLayoutMismatch, r.Size(), g.Size())
	}
	return nil
}

func (s *Segment) bind(base unsafe.Pointer) {
	s.hdr = (*header)(base)
	s.slots = unsafe.Add(base, HeaderSize)
}

// Attach returns a new handle to the same segment.
//
// Heap segments share memory with the receiver; shared segments are
// mapped again by name.
func (s *Segment) Attach() (*Segment, error) {
	if s.done.LoadAcquire() != 0 {
		return nil, ErrClosed
	}
	if s.region != nil {
		return OpenSegment(s.name, s.geo)
	}
	a := &Segment{geo: s.geo, hdr: s.hdr, slots: s.slots, heap: s.heap}
	a.hdr.refs.AddAcqRel(1)
	return a, nil
}

// Close releases this handle. The last handle to close removes the shared
// object's name. Close is idempotent.
func (s *Segment) Close() error {
	if !s.done.CompareAndSwapAcqRel(0, 1) {
		return nil
	}
	last := s.hdr.refs.AddAcqRel(-1) == 0
	if s.region == nil {
		return nil
	}
	var errs []error
	if last {
		if err := shm.Unlink(s.name); err != nil {
			slog.Error("shmq: unlink on last close failed", "name", s.name, "err", err)
			errs = append(errs, err)
		}
	}
	s.hdr, s.slots = nil, nil
	if err := s.region.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Name returns the shared object name, or "" for heap segments.
func (s *Segment) Name() string {
	return s.name
}

// Geometry returns the segment geometry.
func (s *Segment) Geometry() Geometry {
	return s.geo
}

// IsOwner reports whether this handle created the segment.
func (s *Segment) IsOwner() bool {
	return s.owner
}

// IsShared reports whether the segment is a named OS object.
func (s *Segment) IsShared() bool {
	return s.region != nil
}

// Refs returns the number of live handles, or 0 once this handle is
// closed.
func (s *Segment) Refs() int {
	if s.done.LoadAcquire() != 0 {
		return 0
	}
	return int(s.hdr.refs.LoadAcquire())
}

// Cursors returns the producer and consumer cursors.
// The values are a racy snapshot when either side is active, and zero once
// this handle is closed.
func (s *Segment) Cursors() (head, tail uint64) {
	if s.done.LoadAcquire() != 0 {
		return 0, 0
	}
	return s.hdr.head.LoadAcquire(), s.hdr.tail.LoadAcquire()
}

// IsClosed reports whether the channel in this segment has been closed or
// this handle has been released.
func (s *Segment) IsClosed() bool {
	return s.done.LoadAcquire() != 0 || s.hdr.closed.LoadAcquire() != 0
}

// markClosed sets the channel's closed flag. Observed by both sides
// between operations.
func (s *Segment) markClosed() {
	s.hdr.closed.StoreRelease(1)
}

// slot returns the address of slot i.
func (s *Segment) slot(i uint64) unsafe.Pointer {
	return unsafe.Add(s.slots, int(i*s.hdr.stride))
}
