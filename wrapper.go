package tsvar

import (
	"sync"
	"sync/atomic"
)

// wrapper is the envelope around one published value (spec §3): a
// value, its version, the destructor that owns it, and a strong
// reference count. Every holder of a wrapper — a slot, a list node, a
// reader's cache — contributes exactly one unit to refs; a
// subscription cell's hazard pointer does not. The destructor runs exactly once, the moment the count
// reaches zero, regardless of which holder dropped the last reference.
type wrapper[T any] struct {
	value   T
	version uint64
	dtor    func(T)
	refs    atomic.Int32
	once    sync.Once
}

// newWrapper returns a wrapper with a single reference, held on behalf
// of whichever holder is about to store it (a slot or a list head).
func newWrapper[T any](value T, dtor func(T)) *wrapper[T] {
	w := &wrapper[T]{value: value, dtor: dtor}
	w.refs.Store(1)
	return w
}

func (w *wrapper[T]) retain() {
	w.refs.Add(1)
}

// release drops one reference. The last one to bring refs to zero runs
// the destructor.
func (w *wrapper[T]) release() {
	switch n := w.refs.Add(-1); {
	case n == 0:
		w.destroy()
	case n < 0:
		// Every caller only releases a reference it holds after a
		// matching retain/store, so refs going negative means a slot
		// or reader double-released — a broken invariant, not a bad
		// argument from the caller of Var.
		internalPanic("release", errRefcountUnderflow)
	}
}

func (w *wrapper[T]) destroy() {
	w.once.Do(func() {
		if w.dtor != nil {
			w.dtor(w.value)
		}
	})
}
