// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

// Producer is the writing end of a FIFO channel.
//
// The record is passed by pointer to avoid copying large structs. The
// channel stores a copy of the pointed-to value, so the original can be
// modified after TryPush or Push returns.
//
// Example:
//
//	p, c, _ := shmq.BuildSPSC[Tick](shmq.New(1024))
//
//	t := Tick{Price: 101}
//	if err := p.TryPush(&t); shmq.IsWouldBlock(err) {
//	    // Full: back off, or drop and count
//	}
type Producer[T any] interface {
	// TryPush copies the record into the channel (non-blocking).
	// Returns nil on success, ErrChannelFull if the channel is full,
	// ErrClosed if it has been closed.
	TryPush(elem *T) error

	// Push copies the record into the channel, waiting while it is full.
	// Returns ErrClosed if the channel is closed first.
	Push(elem *T) error

	Endpoint
}

// Consumer is the reading end of a FIFO channel.
type Consumer[T any] interface {
	// TryPop removes and returns the oldest record (non-blocking).
	// Returns (zero-value, ErrChannelEmpty) if the channel is empty and
	// (zero-value, ErrClosed) once it is closed and drained.
	TryPop() (T, error)

	// TryPopInto is TryPop copying into *dst.
	TryPopInto(dst *T) error

	// Pop removes and returns the oldest record, waiting while the
	// channel is empty.
	Pop() (T, error)

	Endpoint
}

// Publisher is the writing end of a latest-value channel.
type Publisher[T any] interface {
	// Publish replaces the value of slot 0. Never blocks.
	Publish(elem *T) error

	// PublishAt replaces the value of slot i. Never blocks.
	PublishAt(i int, elem *T) error

	Closer
}

// Reader is a reading end of a latest-value channel.
type Reader[T any] interface {
	// Load returns the latest completed value of slot 0.
	Load() (T, error)

	// Poll is Load that returns ErrNoUpdate when nothing newer than the
	// last read value has been published.
	Poll() (T, error)

	// Next waits for a value newer than the last read one.
	Next() (T, error)

	Closer
}

// Endpoint is the state shared by both ends of a FIFO channel.
type Endpoint interface {
	// Cap returns the channel capacity.
	Cap() int

	// Len returns the number of buffered records.
	// The result is a hint: the other end may be active.
	Len() int

	Closer
}

// Closer is implemented by every channel handle.
type Closer interface {
	// IsClosed reports whether the channel has been closed.
	IsClosed() bool

	// Close marks the handle closed and releases its segment reference.
	Close() error
}

var (
	_ Producer[int64]  = (*SPSCProducer[int64])(nil)
	_ Consumer[int64]  = (*SPSCConsumer[int64])(nil)
	_ Publisher[int64] = (*SPMCProducer[int64])(nil)
	_ Reader[int64]    = (*SPMCConsumer[int64])(nil)
)
