// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logq

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// WireEntry is the msgpack form of an [Entry].
type WireEntry struct {
	Time     int64          `msgpack:"t"`
	Seq      uint32         `msgpack:"s,omitempty"`
	Level    string         `msgpack:"l"`
	Template uint32         `msgpack:"id"`
	Message  string         `msgpack:"m"`
	Attrs    map[string]any `msgpack:"a,omitempty"`
}

// MsgpackSink writes each entry as a length-prefixed msgpack frame:
// 4 bytes big-endian length followed by the encoded [WireEntry].
// Read frames back with [ReadMsgpack].
func MsgpackSink(w io.Writer) Sink {
	return &msgpackSink{w: bufio.NewWriter(w), dst: w}
}

type msgpackSink struct {
	w    *bufio.Writer
	dst  io.Writer
	wire WireEntry
}

func (s *msgpackSink) WriteBatch(_ context.Context, entries []Entry) error {
	for i := range entries {
		e := &entries[i]
		s.wire = WireEntry{
			Seq:      e.Seq,
			Level:    e.Level.String(),
			Template: uint32(e.Template),
			Message:  e.Message,
		}
		if !e.Time.IsZero() {
			s.wire.Time = e.Time.UnixNano()
		}
		if len(e.Attrs) > 0 {
			s.wire.Attrs = make(map[string]any, len(e.Attrs))
			for _, a := range e.Attrs {
				s.wire.Attrs[a.Key] = a.Value.Any()
			}
		}
		data, err := msgpack.Marshal(&s.wire)
		if err != nil {
			return fmt.Errorf("logq: marshal msgpack entry: %w", err)
		}
		var prefix [4]byte
		binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))
		if _, err := s.w.Write(prefix[:]); err != nil {
			return err
		}
		if _, err := s.w.Write(data); err != nil {
			return err
		}
	}
	return s.w.Flush()
}

func (s *msgpackSink) Sync() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if f, ok := s.dst.(interface{ Sync() error }); ok {
		return f.Sync()
	}
	return nil
}

// ReadMsgpack reads one frame written by [MsgpackSink].
// Returns io.EOF at a clean end of stream.
func ReadMsgpack(r io.Reader) (WireEntry, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return WireEntry{}, err
	}
	data := make([]byte, binary.BigEndian.Uint32(prefix[:]))
	if _, err := io.ReadFull(r, data); err != nil {
		return WireEntry{}, fmt.Errorf("logq: read msgpack frame: %w", err)
	}
	var e WireEntry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return WireEntry{}, fmt.Errorf("logq: unmarshal msgpack entry: %w", err)
	}
	return e, nil
}
