// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq_test

import (
	"errors"
	"fmt"

	"code.hybscloud.com/shmq"
)

// ExampleBuildSPSC demonstrates a bounded FIFO between two stages.
func ExampleBuildSPSC() {
	type Order struct {
		ID    uint64
		Price float64
	}

	p, c, err := shmq.BuildSPSC[Order](shmq.New(4))
	if err != nil {
		panic(err)
	}
	defer c.Close()

	for i := range uint64(5) {
		o := Order{ID: i, Price: 100 + float64(i)}
		if err := p.TryPush(&o); errors.Is(err, shmq.ErrChannelFull) {
			fmt.Println("full at", i)
		}
	}
	p.Close()

	for {
		o, err := c.TryPop()
		if err != nil {
			fmt.Println(err)
			break
		}
		fmt.Println(o.ID, o.Price)
	}

	// Output:
	// full at 4
	// 0 100
	// 1 101
	// 2 102
	// 3 103
	// shmq: channel closed
}

// ExampleBuildSPMC demonstrates latest-value fan-out.
func ExampleBuildSPMC() {
	type Quote struct {
		Bid, Ask float64
	}

	pub, sub, err := shmq.BuildSPMC[Quote](shmq.New(1))
	if err != nil {
		panic(err)
	}
	defer pub.Close()
	defer sub.Close()

	_, err = sub.Load()
	fmt.Println(errors.Is(err, shmq.ErrNoDataYet))

	for _, q := range []Quote{{99, 101}, {99.5, 100.5}, {99.75, 100.25}} {
		pub.Publish(&q)
	}

	q, _ := sub.Load()
	fmt.Println(q.Bid, q.Ask)

	_, err = sub.Poll()
	fmt.Println(errors.Is(err, shmq.ErrNoUpdate))

	// Output:
	// true
	// 99.75 100.25
	// true
}

// ExampleLayoutOf demonstrates the record check.
func ExampleLayoutOf() {
	type Good struct {
		A int64
		B [4]float32
	}
	type Bad struct {
		Name string
	}

	l, err := shmq.LayoutOf[Good]()
	fmt.Println(l.Size, err)

	_, err = shmq.LayoutOf[Bad]()
	fmt.Println(errors.Is(err, shmq.ErrInvalidRecord))

	// Output:
	// 24 <nil>
	// true
}

// ExampleBuildSPMC_info pairs per-instrument latest values with a
// descriptor of a different type, published on a second channel.
func ExampleBuildSPMC_info() {
	type Book struct {
		Bid, Ask float64
	}
	type Info struct {
		Instruments int32
		Epoch       uint32
	}

	books, booksSub, err := shmq.BuildSPMC[Book](shmq.New(4))
	if err != nil {
		panic(err)
	}
	info, infoSub, err := shmq.BuildSPMC[Info](shmq.New(1))
	if err != nil {
		panic(err)
	}
	defer books.Close()
	defer booksSub.Close()
	defer info.Close()
	defer infoSub.Close()

	info.Publish(&Info{Instruments: 2, Epoch: 7})
	books.PublishAt(0, &Book{Bid: 10, Ask: 11})
	books.PublishAt(1, &Book{Bid: 20, Ask: 21})

	meta, _ := infoSub.Load()
	for i := range int(meta.Instruments) {
		b, _ := booksSub.LoadAt(i)
		fmt.Println(meta.Epoch, i, b.Bid, b.Ask)
	}

	// Output:
	// 7 0 10 11
	// 7 1 20 21
}
