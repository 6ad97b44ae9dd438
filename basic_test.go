// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq_test

import (
	"errors"
	"testing"

	"code.hybscloud.com/shmq"
)

type tick struct {
	Seq   uint64
	Price float64
	Qty   int32
	Side  uint8
	_     [3]byte
}

// =============================================================================
// SPSC - Basic Operations
// =============================================================================

func TestSPSCBasic(t *testing.T) {
	p, c, err := shmq.BuildSPSC[int64](shmq.New(3))
	if err != nil {
		t.Fatalf("BuildSPSC: %v", err)
	}
	defer p.Close()
	defer c.Close()

	if p.Cap() != 4 || c.Cap() != 4 {
		t.Fatalf("Cap: got %d/%d, want 4", p.Cap(), c.Cap())
	}

	for i := range 4 {
		v := int64(i + 100)
		if err := p.TryPush(&v); err != nil {
			t.Fatalf("TryPush(%d): %v", i, err)
		}
	}
	if p.Len() != 4 {
		t.Fatalf("Len: got %d, want 4", p.Len())
	}

	v := int64(999)
	if err := p.TryPush(&v); !errors.Is(err, shmq.ErrChannelFull) {
		t.Fatalf("TryPush on full: got %v, want ErrChannelFull", err)
	}

	for i := range 4 {
		got, err := c.TryPop()
		if err != nil {
			t.Fatalf("TryPop(%d): %v", i, err)
		}
		if got != int64(i+100) {
			t.Fatalf("TryPop(%d): got %d, want %d", i, got, i+100)
		}
	}

	if _, err := c.TryPop(); !errors.Is(err, shmq.ErrChannelEmpty) {
		t.Fatalf("TryPop on empty: got %v, want ErrChannelEmpty", err)
	}
	if c.Len() != 0 {
		t.Fatalf("Len: got %d, want 0", c.Len())
	}
}

// TestSPSCScenario pushes A..D into a 4-slot ring, observes full, frees one
// slot and checks the remaining order.
func TestSPSCScenario(t *testing.T) {
	p, c, err := shmq.BuildSPSC[byte](shmq.New(4))
	if err != nil {
		t.Fatalf("BuildSPSC: %v", err)
	}
	defer p.Close()
	defer c.Close()

	for _, r := range []byte("ABCD") {
		if err := p.TryPush(&r); err != nil {
			t.Fatalf("TryPush(%c): %v", r, err)
		}
	}
	e := byte('E')
	if err := p.TryPush(&e); err != shmq.ErrChannelFull {
		t.Fatalf("TryPush(E) on full: got %v, want ErrChannelFull", err)
	}
	if got, err := c.TryPop(); err != nil || got != 'A' {
		t.Fatalf("TryPop: got %c, %v, want A", got, err)
	}
	if err := p.TryPush(&e); err != nil {
		t.Fatalf("TryPush(E): %v", err)
	}
	for _, want := range []byte("BCDE") {
		got, err := c.TryPop()
		if err != nil {
			t.Fatalf("TryPop: %v", err)
		}
		if got != want {
			t.Fatalf("TryPop: got %c, want %c", got, want)
		}
	}
}

// TestSPSCFullLeavesCursors checks that a rejected push does not move
// either cursor.
func TestSPSCFullLeavesCursors(t *testing.T) {
	p, c, err := shmq.BuildSPSC[int64](shmq.New(2))
	if err != nil {
		t.Fatalf("BuildSPSC: %v", err)
	}
	defer p.Close()
	defer c.Close()

	v := int64(1)
	p.TryPush(&v)
	p.TryPush(&v)
	head, tail := p.Segment().Cursors()

	for range 10 {
		if err := p.TryPush(&v); err != shmq.ErrChannelFull {
			t.Fatalf("TryPush on full: got %v, want ErrChannelFull", err)
		}
	}
	h2, t2 := p.Segment().Cursors()
	if h2 != head || t2 != tail {
		t.Fatalf("Cursors: got (%d, %d), want (%d, %d)", h2, t2, head, tail)
	}
	if tail-head != 2 {
		t.Fatalf("tail-head: got %d, want 2", tail-head)
	}
}

// TestSPSCBitwiseRoundTrip checks that a struct with padding and a float
// survives the ring byte for byte.
func TestSPSCBitwiseRoundTrip(t *testing.T) {
	p, c, err := shmq.BuildSPSC[tick](shmq.New(8))
	if err != nil {
		t.Fatalf("BuildSPSC: %v", err)
	}
	defer p.Close()
	defer c.Close()

	in := tick{Seq: 0xdeadbeefcafebabe, Price: -0.0, Qty: -7, Side: 2}
	if err := p.TryPush(&in); err != nil {
		t.Fatalf("TryPush: %v", err)
	}
	var out tick
	if err := c.TryPopInto(&out); err != nil {
		t.Fatalf("TryPopInto: %v", err)
	}
	if out != in {
		t.Fatalf("round trip: got %+v, want %+v", out, in)
	}
}

func TestSPSCBlockingPushPop(t *testing.T) {
	p, c, err := shmq.BuildSPSC[int64](shmq.New(2).Wait(shmq.BackoffWait))
	if err != nil {
		t.Fatalf("BuildSPSC: %v", err)
	}
	defer c.Close()

	const n = 1000
	done := make(chan error, 1)
	go func() {
		for i := range int64(n) {
			if err := p.Push(&i); err != nil {
				done <- err
				return
			}
		}
		done <- p.Close()
	}()

	for i := range int64(n) {
		got, err := c.Pop()
		if err != nil {
			t.Fatalf("Pop(%d): %v", i, err)
		}
		if got != i {
			t.Fatalf("Pop: got %d, want %d", got, i)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("producer: %v", err)
	}
	if _, err := c.Pop(); err != shmq.ErrClosed {
		t.Fatalf("Pop after close: got %v, want ErrClosed", err)
	}
}

// =============================================================================
// SPSC - Close
// =============================================================================

func TestSPSCCloseDrains(t *testing.T) {
	p, c, err := shmq.BuildSPSC[int64](shmq.New(4))
	if err != nil {
		t.Fatalf("BuildSPSC: %v", err)
	}
	defer c.Close()

	for i := range int64(3) {
		p.TryPush(&i)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !c.IsClosed() || !p.IsClosed() {
		t.Fatalf("IsClosed: got false, want true")
	}

	v := int64(9)
	if err := p.TryPush(&v); err != shmq.ErrClosed {
		t.Fatalf("TryPush after close: got %v, want ErrClosed", err)
	}
	for i := range int64(3) {
		got, err := c.TryPop()
		if err != nil || got != i {
			t.Fatalf("TryPop(%d): got %d, %v", i, got, err)
		}
	}
	if _, err := c.TryPop(); err != shmq.ErrClosed {
		t.Fatalf("TryPop on drained closed channel: got %v, want ErrClosed", err)
	}
}

func TestSPSCConsumerCloseUnblocksProducer(t *testing.T) {
	p, c, err := shmq.BuildSPSC[int64](shmq.New(2))
	if err != nil {
		t.Fatalf("BuildSPSC: %v", err)
	}
	defer p.Close()

	v := int64(1)
	p.TryPush(&v)
	p.TryPush(&v)

	done := make(chan error, 1)
	go func() { done <- p.Push(&v) }()
	c.Close()
	if err := <-done; err != shmq.ErrClosed {
		t.Fatalf("Push on closed: got %v, want ErrClosed", err)
	}
}

// =============================================================================
// SPMC - Basic Operations
// =============================================================================

func TestSPMCNoDataYet(t *testing.T) {
	p, c, err := shmq.BuildSPMC[tick](shmq.New(1))
	if err != nil {
		t.Fatalf("BuildSPMC: %v", err)
	}
	defer p.Close()
	defer c.Close()

	if _, err := c.Load(); !errors.Is(err, shmq.ErrNoDataYet) {
		t.Fatalf("Load before publish: got %v, want ErrNoDataYet", err)
	}
	if !shmq.IsWouldBlock(shmq.ErrNoDataYet) {
		t.Fatalf("ErrNoDataYet should be a would-block outcome")
	}
	if _, ok := c.Last(); ok {
		t.Fatalf("Last before publish: got ok")
	}
}

func TestSPMCLatestWins(t *testing.T) {
	p, c, err := shmq.BuildSPMC[tick](shmq.New(1))
	if err != nil {
		t.Fatalf("BuildSPMC: %v", err)
	}
	defer p.Close()
	defer c.Close()

	for i := range uint64(5) {
		v := tick{Seq: i, Price: float64(i) * 1.5}
		if err := p.Publish(&v); err != nil {
			t.Fatalf("Publish(%d): %v", i, err)
		}
	}
	got, err := c.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Seq != 4 || got.Price != 6 {
		t.Fatalf("Load: got %+v, want Seq 4", got)
	}
	if p.Published() != 5 || c.Published() != 5 {
		t.Fatalf("Published: got %d/%d, want 5", p.Published(), c.Published())
	}

	if _, err := c.Poll(); err != shmq.ErrNoUpdate {
		t.Fatalf("Poll without new publish: got %v, want ErrNoUpdate", err)
	}
	v := tick{Seq: 5}
	p.Publish(&v)
	if got, err := c.Poll(); err != nil || got.Seq != 5 {
		t.Fatalf("Poll: got %+v, %v, want Seq 5", got, err)
	}
	if last, ok := c.Last(); !ok || last.Seq != 5 {
		t.Fatalf("Last: got %+v, %v", last, ok)
	}
}

func TestSPMCMultiSlot(t *testing.T) {
	p, c, err := shmq.BuildSPMC[int64](shmq.New(3))
	if err != nil {
		t.Fatalf("BuildSPMC: %v", err)
	}
	defer p.Close()
	defer c.Close()

	if p.Cap() != 4 {
		t.Fatalf("Cap: got %d, want 4", p.Cap())
	}
	for i := range 4 {
		v := int64(i * 10)
		if err := p.PublishAt(i, &v); err != nil {
			t.Fatalf("PublishAt(%d): %v", i, err)
		}
	}
	for i := range 4 {
		got, err := c.LoadAt(i)
		if err != nil || got != int64(i*10) {
			t.Fatalf("LoadAt(%d): got %d, %v", i, got, err)
		}
		if last, ok := c.LastAt(i); !ok || last != int64(i*10) {
			t.Fatalf("LastAt(%d): got %d, %v", i, last, ok)
		}
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("PublishAt out of range: no panic")
		}
	}()
	v := int64(0)
	p.PublishAt(4, &v)
}

func TestSPMCClone(t *testing.T) {
	p, c, err := shmq.BuildSPMC[int64](shmq.New(1))
	if err != nil {
		t.Fatalf("BuildSPMC: %v", err)
	}
	defer p.Close()
	defer c.Close()

	v := int64(7)
	p.Publish(&v)
	if _, err := c.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	c2, err := c.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if refs := c.Segment().Refs(); refs != 3 {
		t.Fatalf("Refs: got %d, want 3", refs)
	}
	// The clone has its own cache: the value is new to it.
	if got, err := c2.Poll(); err != nil || got != 7 {
		t.Fatalf("clone Poll: got %d, %v, want 7", got, err)
	}
	if _, err := c.Poll(); err != shmq.ErrNoUpdate {
		t.Fatalf("Poll: got %v, want ErrNoUpdate", err)
	}

	if err := c2.Close(); err != nil {
		t.Fatalf("clone Close: %v", err)
	}
	if c.IsClosed() {
		t.Fatalf("consumer close should not close the channel")
	}
	if _, err := c2.Load(); err != shmq.ErrClosed {
		t.Fatalf("Load on closed clone: got %v, want ErrClosed", err)
	}
}

func TestSPMCNextAndClose(t *testing.T) {
	p, c, err := shmq.BuildSPMC[int64](shmq.New(1).Wait(shmq.BackoffWait))
	if err != nil {
		t.Fatalf("BuildSPMC: %v", err)
	}
	defer c.Close()

	got := make(chan int64, 1)
	go func() {
		v, err := c.Next()
		if err != nil {
			t.Errorf("Next: %v", err)
		}
		got <- v
	}()
	v := int64(42)
	p.Publish(&v)
	if g := <-got; g != 42 {
		t.Fatalf("Next: got %d, want 42", g)
	}

	v = 43
	p.Publish(&v)
	p.Close()
	if g, err := c.Next(); err != nil || g != 43 {
		t.Fatalf("Next after final publish: got %d, %v, want 43", g, err)
	}
	if _, err := c.Next(); err != shmq.ErrClosed {
		t.Fatalf("Next after close: got %v, want ErrClosed", err)
	}
	if err := p.Publish(&v); err != shmq.ErrClosed {
		t.Fatalf("Publish after close: got %v, want ErrClosed", err)
	}
}

// =============================================================================
// Builder and Records
// =============================================================================

func TestInvalidRecord(t *testing.T) {
	type withPtr struct {
		N int64
		P *int64
	}
	type withString struct{ S string }
	type nested struct {
		A [2]struct{ M map[int]int }
	}

	if _, _, err := shmq.BuildSPSC[withPtr](shmq.New(4)); !errors.Is(err, shmq.ErrInvalidRecord) {
		t.Fatalf("pointer field: got %v, want ErrInvalidRecord", err)
	}
	if _, _, err := shmq.BuildSPSC[withString](shmq.New(4)); !errors.Is(err, shmq.ErrInvalidRecord) {
		t.Fatalf("string field: got %v, want ErrInvalidRecord", err)
	}
	if _, _, err := shmq.BuildSPMC[nested](shmq.New(1)); !errors.Is(err, shmq.ErrInvalidRecord) {
		t.Fatalf("nested map: got %v, want ErrInvalidRecord", err)
	}
	if _, _, err := shmq.BuildSPSC[struct{}](shmq.New(4)); !errors.Is(err, shmq.ErrInvalidRecord) {
		t.Fatalf("zero size: got %v, want ErrInvalidRecord", err)
	}
	if _, _, err := shmq.BuildSPSC[uintptr](shmq.New(4)); !errors.Is(err, shmq.ErrInvalidRecord) {
		t.Fatalf("uintptr: got %v, want ErrInvalidRecord", err)
	}
}

func TestLayoutOf(t *testing.T) {
	type a struct {
		X int32
		Y int64
	}
	type b struct {
		X int64
		Y int32
	}
	la, err := shmq.LayoutOf[a]()
	if err != nil {
		t.Fatalf("LayoutOf[a]: %v", err)
	}
	lb, err := shmq.LayoutOf[b]()
	if err != nil {
		t.Fatalf("LayoutOf[b]: %v", err)
	}
	if la.Size != 16 || lb.Size != 16 {
		t.Fatalf("Size: got %d/%d, want 16", la.Size, lb.Size)
	}
	if la.Tag == lb.Tag {
		t.Fatalf("Tag: equal tags for different layouts")
	}
	la2, _ := shmq.LayoutOf[a]()
	if la2 != la {
		t.Fatalf("LayoutOf not deterministic: %+v vs %+v", la2, la)
	}
}

func TestBuilderMisuse(t *testing.T) {
	if _, _, err := shmq.BuildSPSC[int64](shmq.New(4).Attach()); !errors.Is(err, shmq.ErrSegmentUnavailable) {
		t.Fatalf("Attach without Shared: got %v, want ErrSegmentUnavailable", err)
	}
	if _, err := shmq.BuildSPSCProducer[int64](shmq.New(4)); !errors.Is(err, shmq.ErrSegmentUnavailable) {
		t.Fatalf("single heap end: got %v, want ErrSegmentUnavailable", err)
	}
	if _, err := shmq.BuildSPMCConsumer[int64](shmq.New(1).Shared("").Attach()); !errors.Is(err, shmq.ErrSegmentUnavailable) {
		t.Fatalf("Attach without name: got %v, want ErrSegmentUnavailable", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("New(0): no panic")
		}
	}()
	shmq.New(0)
}
