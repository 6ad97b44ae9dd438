// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package shmq provides allocation-free channels for pinned,
// latency-critical threads, usable within one process or across processes
// through shared memory.
//
// Two channel kinds are offered:
//
//   - SPSC: bounded FIFO ring, one producer, one consumer
//   - SPMC: latest-value slots, one producer, any number of consumers
//
// Both live in a [Segment]: a fixed header followed by fixed-size slots.
// Nothing in a segment is a pointer, so the same bytes are valid in every
// address space that maps them.
//
// # Quick Start
//
// Heap-backed channel inside one process:
//
//	p, c, err := shmq.BuildSPSC[Tick](shmq.New(1024))
//
// Shared between processes:
//
//	// Process A
//	p, err := shmq.BuildSPSCProducer[Tick](shmq.New(1024).Shared("ticks"))
//
//	// Process B
//	c, err := shmq.BuildSPSCConsumer[Tick](shmq.New(1024).Shared("ticks").Attach())
//
// Latest value with fan-out:
//
//	pub, sub, err := shmq.BuildSPMC[Quote](shmq.New(1))
//	sub2, err := sub.Clone()
//
//	pub.Publish(&q)
//	latest, err := sub.Load()
//
// # Records
//
// A record type must be plain data: booleans, sized numbers, and arrays
// and structs of them. Pointers, strings, slices, maps, channels, funcs,
// interfaces, uintptr and unsafe.Pointer are rejected at construction with
// [ErrInvalidRecord]. The record layout is fingerprinted into the segment
// header, and attaching with a differently shaped type fails with
// [ErrLayoutMismatch].
//
// # SPSC
//
// Lamport ring with cached indices. The producer copies the record into
// the slot, then publishes the advanced tail with a release store; the
// consumer acquire-loads the tail before reading the slot. Backpressure is
// the caller's choice:
//
//	err := p.TryPush(&t)  // ErrChannelFull when full
//	err := p.Push(&t)     // waits for space; ErrClosed if closed first
//
// Closing either end marks the channel closed. The consumer drains what
// was pushed before closure, then TryPop returns [ErrClosed].
//
// # SPMC
//
// Each slot is a seqlock. The producer stores the next odd sequence,
// copies the record word by word with release stores, then stores the
// next even sequence. A reader acquire-loads the sequence, the words, and
// the sequence again, and retries when they differ. A reader never returns
// a mix of two publishes and never observes an older value after a newer
// one; it may skip values.
//
//	v, err := sub.Load()  // ErrNoDataYet before the first publish
//	v, err := sub.Poll()  // ErrNoUpdate when nothing new
//	v, err := sub.Next()  // waits for something new
//
// Torn-read retries are bounded by [Builder.ReadRetries]; a producer that
// stops mid-publish surfaces as [ErrWriterStalled].
//
// # Waiting
//
// Blocking operations spin through a [Waiter]. [SpinWait] is the default;
// [BackoffWait] and [SpinThenBackoff] trade latency for CPU.
//
// # Error Handling
//
// Non-blocking outcomes wrap [ErrWouldBlock], sourced from
// [code.hybscloud.com/iox]:
//
//	shmq.IsWouldBlock(err)  // ChannelFull, ChannelEmpty, NoDataYet, NoUpdate
//	shmq.IsSemantic(err)    // true if control flow signal
//	shmq.IsNonFailure(err)  // true if nil or would-block
//
// Hot-path operations return the sentinel values directly, so == and
// errors.Is both work.
//
// # Lifetime
//
// Every handle holds a reference in the segment header. The handle whose
// Close drops the count to zero removes the shared object's name. The
// package cannot stop a process from touching a segment after that; all
// holders must close before the memory is reused.
//
// # Race Detection
//
// Slot contents are ordinary memory protected by acquire/release on a
// separate cursor. The race detector cannot see that pairing and may
// report false positives for the typed SPSC copy; concurrent SPSC stress
// tests are skipped when [RaceEnabled] is set. SPMC slots are copied with
// atomic word operations and are clean under the detector.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives with
// explicit memory ordering, [code.hybscloud.com/iox] for semantic errors
// and backoff, [code.hybscloud.com/spin] for CPU pause instructions,
// golang.org/x/sys/unix for shared-memory objects and
// github.com/cespare/xxhash/v2 for record layout fingerprints.
package shmq
