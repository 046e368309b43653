// rsx_spin.go - Low-latency wait policy shared by Sync and the offload worker

package main

import (
	"runtime"
	"time"
)

// SpinPolicy bounds how long a waiter busy-polls before giving the
// scheduler a turn. Offload latency is expected to be well under a
// millisecond, so Sync mostly finishes inside the spin window.
type SpinPolicy struct {
	// SyncSpins is the number of failed polls Sync makes between yields.
	SyncSpins int
	// IdleSpins is the number of empty polls the worker makes before yielding.
	IdleSpins int
	// IdleBackoff, when non-zero, makes an idle worker sleep instead of yield.
	IdleBackoff time.Duration
}

func DefaultSpinPolicy() SpinPolicy {
	return SpinPolicy{
		SyncSpins: DEFAULT_SYNC_SPINS,
		IdleSpins: DEFAULT_IDLE_SPINS,
	}
}

// spinWaiter counts consecutive failed polls against a budget.
type spinWaiter struct {
	budget  int
	backoff time.Duration
	misses  int
}

// miss records a failed poll and yields once the budget is spent.
func (w *spinWaiter) miss() {
	w.misses++
	if w.misses < w.budget {
		return
	}
	w.misses = 0
	if w.backoff > 0 {
		time.Sleep(w.backoff)
		return
	}
	runtime.Gosched()
}

func (w *spinWaiter) hit() {
	w.misses = 0
}

func (p SpinPolicy) syncWaiter() spinWaiter {
	return spinWaiter{budget: p.SyncSpins}
}

func (p SpinPolicy) idleWaiter() spinWaiter {
	return spinWaiter{budget: p.IdleSpins, backoff: p.IdleBackoff}
}
