// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

import (
	"fmt"
	"unsafe"

	"code.hybscloud.com/atomix"
)

// Kind identifies the channel protocol a segment is laid out for.
type Kind uint32

const (
	// KindSPSC is a bounded FIFO ring with one producer and one consumer.
	KindSPSC Kind = 1
	// KindSPMC is a set of latest-value slots with one producer and any
	// number of consumers.
	KindSPMC Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindSPSC:
		return "spsc"
	case KindSPMC:
		return "spmc"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

const (
	// segmentMagic is "SHMQSEG1" read as a little-endian uint64.
	segmentMagic uint64 = 0x31474553514d4853

	// SegmentVersion is the layout version written into every header.
	SegmentVersion uint32 = 1

	cacheLine = 64

	// HeaderSize is the byte offset of the first slot from the segment base.
	HeaderSize = int(unsafe.Sizeof(header{}))
)

// header is the fixed prefix of every segment.
//
// All fields are addressed by offset from the segment base, so the same
// header is valid in every address space that maps the segment.
//
// Layout (verified by tests):
//   - line 0: geometry, refcount and closed flag (written rarely)
//   - line 1: tail, written by the producer only
//   - line 2: head, written by the consumer only
type header struct {
	magic    atomix.Uint64 // Published last on create
	version  uint32
	kind     Kind
	slotSize uint64 // Record size in bytes
	capacity uint64 // Number of slots (power of 2)
	stride   uint64 // Distance between slots in bytes
	typeTag  uint64 // Record layout fingerprint
	refs     atomix.Int64
	closed   atomix.Uint64
	tail     atomix.Uint64 // Producer cursor
	_        padShort
	head     atomix.Uint64 // Consumer cursor
	_        padShort
}

// Geometry describes the shape of a segment. Two parties agree on a
// segment exactly when their geometries are equal.
type Geometry struct {
	Kind     Kind
	Capacity int    // Number of slots, power of 2
	SlotSize int    // Record size in bytes
	TypeTag  uint64 // Record layout fingerprint, 0 for untyped use
}

// stride returns the distance between consecutive slots.
//
// SPSC slots hold the record only, rounded up to 8 bytes so every slot
// starts word-aligned. SPMC slots carry their sequence counter in the
// first word and occupy whole cache lines so neighboring slots written by
// the producer never share a line.
func (g Geometry) stride() uint64 {
	words := alignUp(uint64(g.SlotSize), 8)
	if g.Kind == KindSPMC {
		return alignUp(8+words, cacheLine)
	}
	return words
}

// Size returns the total segment size in bytes.
func (g Geometry) Size() int {
	return HeaderSize + int(g.stride())*g.Capacity
}

func (g Geometry) validate() error {
	switch g.Kind {
	case KindSPSC:
		if g.Capacity < 2 {
			return fmt.Errorf("%w: spsc capacity %d < 2", ErrSegmentUnavailable, g.Capacity)
		}
	case KindSPMC:
		if g.Capacity < 1 {
			return fmt.Errorf("%w: spmc capacity %d < 1", ErrSegmentUnavailable, g.Capacity)
		}
	default:
		return fmt.Errorf("%w: unknown kind %v", ErrSegmentUnavailable, g.Kind)
	}
	if g.Capacity&(g.Capacity-1) != 0 {
		return fmt.Errorf("%w: capacity %d is not a power of 2", ErrSegmentUnavailable, g.Capacity)
	}
	if g.SlotSize <= 0 {
		return fmt.Errorf("%w: slot size %d", ErrSegmentUnavailable, g.SlotSize)
	}
	return nil
}

// match compares a header against the expected geometry.
func (h *header) match(g Geometry) error {
	switch {
	case h.version != SegmentVersion:
		return fmt.Errorf("%w: version %d, want %d", ErrLayoutMismatch, h.version, SegmentVersion)
	case h.kind != g.Kind:
		return fmt.Errorf("%w: kind %v, want %v", ErrLayoutMismatch, h.kind, g.Kind)
	case h.slotSize != uint64(g.SlotSize):
		return fmt.Errorf("%w: slot size %d, want %d", ErrLayoutMismatch, h.slotSize, g.SlotSize)
	case h.capacity != uint64(g.Capacity):
		return fmt.Errorf("%w: capacity %d, want %d", ErrLayoutMismatch, h.capacity, g.Capacity)
	case h.stride != g.stride():
		return fmt.Errorf("%w: stride %d, want %d", ErrLayoutMismatch, h.stride, g.stride())
	case g.TypeTag != 0 && h.typeTag != g.TypeTag:
		return fmt.Errorf("%w: record layout %#x, want %#x", ErrLayoutMismatch, h.typeTag, g.TypeTag)
	}
	return nil
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

func alignUp(n, a uint64) uint64 {
	return (n + a - 1) &^ (a - 1)
}

// padShort is padding to fill cache line after 8-byte field.
type padShort [cacheLine - 8]byte
