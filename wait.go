// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
)

// Waiter is the idle step of a busy-wait loop.
//
// Blocking channel operations call Wait between attempts and Reset once
// the operation has made progress. A Waiter is owned by a single handle
// and is never shared between goroutines.
type Waiter interface {
	Wait()
	Reset()
}

// WaitStrategy creates the Waiter used by a handle.
type WaitStrategy func() Waiter

// SpinWait spins with CPU pause instructions and never yields to the
// scheduler. It keeps the caller's cache lines resident and is the
// default for pinned, latency-critical threads.
func SpinWait() Waiter {
	return &spinWaiter{}
}

// BackoffWait uses [iox.Backoff]: adaptive backoff suited to threads that
// are not latency-critical, such as a log backend.
func BackoffWait() Waiter {
	return &backoffWaiter{}
}

// SpinThenBackoff returns a strategy that spins for spins rounds and then
// calls backoff with the number of rounds past the spin budget.
// A nil backoff keeps spinning.
//
// Example:
//
//	b := shmq.New(1024).Wait(shmq.SpinThenBackoff(4096, func(round int) {
//	    if round%1024 == 0 {
//	        runtime.Gosched()
//	    }
//	}))
func SpinThenBackoff(spins int, backoff func(round int)) WaitStrategy {
	return func() Waiter {
		return &spinBackoff{spins: spins, backoff: backoff}
	}
}

type spinWaiter struct {
	sw spin.Wait
}

func (w *spinWaiter) Wait()  { w.sw.Once() }
func (w *spinWaiter) Reset() { w.sw.Reset() }

type backoffWaiter struct {
	b iox.Backoff
}

func (w *backoffWaiter) Wait()  { w.b.Wait() }
func (w *backoffWaiter) Reset() { w.b.Reset() }

type spinBackoff struct {
	sw      spin.Wait
	spins   int
	n       int
	backoff func(round int)
}

func (w *spinBackoff) Wait() {
	w.n++
	if w.n <= w.spins || w.backoff == nil {
		w.sw.Once()
		return
	}
	w.backoff(w.n - w.spins)
}

func (w *spinBackoff) Reset() {
	w.n = 0
	w.sw.Reset()
}
