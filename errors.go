// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
// The channel-specific outcomes below wrap it, so a single
// [IsWouldBlock] check covers all of them.
var ErrWouldBlock = iox.ErrWouldBlock

// Non-blocking outcomes. These are control flow signals, not failures:
// shared state is unchanged when one of them is returned.
var (
	// ErrChannelFull is returned by TryPush when (tail - head) == capacity.
	//
	// Example:
	//
	//	backoff := iox.Backoff{}
	//	for {
	//	    err := p.TryPush(&rec)
	//	    if err == nil {
	//	        break
	//	    }
	//	    if !shmq.IsWouldBlock(err) {
	//	        return err // ErrClosed
	//	    }
	//	    backoff.Wait()
	//	}
	ErrChannelFull = fmt.Errorf("shmq: channel full: %w", iox.ErrWouldBlock)

	// ErrChannelEmpty is returned by TryPop when head == tail.
	ErrChannelEmpty = fmt.Errorf("shmq: channel empty: %w", iox.ErrWouldBlock)

	// ErrNoDataYet is returned by an SPMC read before the first publish.
	ErrNoDataYet = fmt.Errorf("shmq: no data yet: %w", iox.ErrWouldBlock)

	// ErrNoUpdate is returned by SPMC Poll when nothing newer than the
	// consumer's cached copy has been published.
	ErrNoUpdate = fmt.Errorf("shmq: no update: %w", iox.ErrWouldBlock)
)

// Failures.
var (
	// ErrClosed is returned when an operation is attempted on a closed
	// channel, and by blocking operations once closure is observed.
	ErrClosed = errors.New("shmq: channel closed")

	// ErrLayoutMismatch is returned when attaching to a segment whose
	// magic, version, kind, slot size, capacity or record layout differ
	// from what the caller expects. Nothing is attached on this error.
	ErrLayoutMismatch = errors.New("shmq: segment layout mismatch")

	// ErrSegmentUnavailable is returned when the backing memory (heap or
	// OS shared object) cannot be obtained or is not yet initialized.
	ErrSegmentUnavailable = errors.New("shmq: segment unavailable")

	// ErrInvalidRecord is returned when a record type is not plain data.
	ErrInvalidRecord = errors.New("shmq: record type is not plain data")

	// ErrWriterStalled is returned when an SPMC read observed a write in
	// progress for more than the configured number of retries.
	ErrWriterStalled = errors.New("shmq: writer stalled mid-publish")
)

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
