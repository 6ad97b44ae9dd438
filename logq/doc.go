// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package logq is a low-latency log pipeline built on shmq channels.
//
// The producer side ([Logger.Log]) copies a template ID, up to [MaxArgs]
// argument words and a timestamp into a fixed-layout [Record] and pushes
// it through an SPSC ring. A detached [Backend] drains the ring, resolves
// the template, and hands batches of decoded [Entry] values to a [Sink].
//
// When the backend falls behind, the [OverloadPolicy] decides: PolicyDrop
// (default) discards the record and increments [Logger.Dropped];
// PolicyBlock waits for space.
//
// Sinks:
//
//   - [HandlerSink]: any slog.Handler (console, file)
//   - [MsgpackSink]: length-prefixed msgpack frames
//   - [BreakerSink]: circuit breaker around another sink
//   - [MemorySink]: in-memory collection
//
// Across processes, [NewProducer] places the ring in a named shared
// segment and [Attach] runs the backend in another process. Both sides
// must register the same templates in the same order.
package logq
