package tsvar

import (
	"context"
	"sync"
)

// waiter is the Waiter Facility (spec §4.4), shared by both engines. A
// goroutine blocks in wait until hasValue reports true, then chain-wakes
// the next waiter with a single Signal rather than a Broadcast, so a
// herd of waiters wakes one at a time instead of all at once (spec
// §4.3 "Wake semantics", §8/S4).
type waiter struct {
	mu   sync.Mutex
	cond *sync.Cond
}

func (w *waiter) init() {
	w.cond = sync.NewCond(&w.mu)
}

// announce is called by a writer exactly once, on the transition from
// no-value to first-value.
func (w *waiter) announce() {
	w.mu.Lock()
	w.cond.Signal()
	w.mu.Unlock()
}

// wait blocks until hasValue() reports true or ctx is done. sync.Cond
// has no native cancellation, so a cancelled ctx is turned into a
// Broadcast that wakes every blocked waiter to re-check its own ctx;
// only the cancelled one leaves the loop, the rest go back to sleep.
func (w *waiter) wait(ctx context.Context, hasValue func() bool) error {
	if hasValue() {
		return nil
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		stop := context.AfterFunc(ctx, func() {
			w.mu.Lock()
			w.cond.Broadcast()
			w.mu.Unlock()
		})
		defer stop()
	}

	w.mu.Lock()
	for !hasValue() {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				w.mu.Unlock()
				return err
			}
		}
		w.cond.Wait()
	}
	w.cond.Signal()
	w.mu.Unlock()
	return nil
}
