// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logq

import (
	"math"
	"time"
)

// MaxArgs is the number of argument words a record carries.
const MaxArgs = 6

// TemplateID identifies a registered message template. Zero is never
// assigned.
type TemplateID uint32

// Record is the fixed-layout log event copied through the ring.
//
// It holds no pointers: message text and argument names live in the
// [Templates] registry on the backend side, so a record is meaningful in
// any process that shares the registry.
type Record struct {
	Timestamp int64 // Unix nanoseconds, 0 when timestamps are disabled
	Template  TemplateID
	Seq       uint32 // 0 for Log, incremented by each LogSame
	NArgs     uint32
	_         uint32
	Args      [MaxArgs]Arg
}

// Arg is one raw argument word. Its interpretation comes from the
// template field at the same position.
type Arg uint64

// Int encodes a signed integer argument.
func Int(v int64) Arg { return Arg(v) }

// Uint encodes an unsigned integer argument.
func Uint(v uint64) Arg { return Arg(v) }

// Float encodes a float argument.
func Float(v float64) Arg { return Arg(math.Float64bits(v)) }

// Bool encodes a boolean argument.
func Bool(v bool) Arg {
	if v {
		return 1
	}
	return 0
}

// Duration encodes a duration argument.
func Duration(d time.Duration) Arg { return Arg(d) }

// Time returns the record timestamp as a time.Time.
func (r *Record) Time() time.Time {
	if r.Timestamp == 0 {
		return time.Time{}
	}
	return time.Unix(0, r.Timestamp)
}

// clock converts the monotonic clock into wall-clock nanoseconds relative
// to an anchor taken once, so the producer never reads the wall clock.
type clock struct {
	wall int64
	mono time.Time
}

func newClock() clock {
	now := time.Now()
	return clock{wall: now.UnixNano(), mono: now}
}

func (c *clock) now() int64 {
	return c.wall + int64(time.Since(c.mono))
}
