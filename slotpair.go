package tsvar

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// pairSlot is one of the two fixed positions of the slot-pair engine
// (spec §4.2). Its sibling is always the other element of PairVar.slots
// — addressed by XOR-ing the index rather than a pointer, so the two
// slots never form a reference cycle (spec §9 "Cyclic slot references").
type pairSlot[T any] struct {
	wrapper       atomic.Pointer[wrapper[T]]
	activeReaders atomic.Int32
}

// PairVar is the slot-pair engine: two fixed slots addressed by
// version parity, no allocation on the read path, O(1) writes. It
// trades an unbounded reader "spare" slot for a hard cap of two live
// generations at once (current and previous).
type PairVar[T any] struct {
	slots       [2]pairSlot[T]
	nextVersion atomic.Uint64 // 0 until first publish, else the latest published version

	writeMu sync.Mutex

	writerWaitMu  sync.Mutex
	writerWaitCV  *sync.Cond
	writerWaiting atomic.Bool

	dtor   func(T)
	waiter waiter
}

// NewPair initializes an empty PairVar. dtor, if non-nil, is invoked
// exactly once per published value when its last reference is dropped.
func NewPair[T any](dtor func(T)) *PairVar[T] {
	v := &PairVar[T]{dtor: dtor}
	v.writerWaitCV = sync.NewCond(&v.writerWaitMu)
	v.waiter.init()
	return v
}

var _ Var[int] = (*PairVar[int])(nil)

// Reader returns a new per-goroutine read handle.
func (v *PairVar[T]) Reader() Reader[T] {
	r := &PairReader[T]{v: v}
	runtime.SetFinalizer(r, (*PairReader[T]).exit)
	return r
}

// Wait blocks until the first value has been published.
func (v *PairVar[T]) Wait(ctx context.Context) error {
	return v.waiter.wait(ctx, func() bool { return v.nextVersion.Load() > 0 })
}

// Set publishes value into the non-current slot, then republishes it
// by advancing the version counter (spec §4.2 "Writer algorithm").
func (v *PairVar[T]) Set(value T) (uint64, error) {
	if isNilValue(value) {
		return 0, &Error{Kind: KindInvalid, Op: "Set", Err: errNilValue}
	}
	w := newWrapper(value, v.dtor)

	v.writeMu.Lock()

	nv := v.nextVersion.Load()
	if nv == 0 {
		// First publish: both slots start out pointing at the same
		// wrapper, so it carries two references, one per slot.
		w.version = 1
		w.retain()
		v.slots[0].wrapper.Store(w)
		v.slots[1].wrapper.Store(w)
		v.nextVersion.Store(1)
		v.waiter.announce()
		v.writeMu.Unlock()
		return 1, nil
	}

	curIdx := int((nv - 1) & 1)
	target := &v.slots[curIdx^1]

	v.waitQuiescent(target)

	old := target.wrapper.Load()
	w.version = nv + 1
	target.wrapper.Store(w)
	v.nextVersion.Store(nv + 1)

	// Release the writer mutex before running the old wrapper's
	// destructor (spec §4.2 step 6): the destructor may itself take
	// locks or allocate (spec §6), and must not serialize unrelated
	// Set calls behind it.
	v.writeMu.Unlock()

	if old != nil {
		old.release()
	}
	return w.version, nil
}

// waitQuiescent blocks until target has no pinning readers. Writers do
// not starve: a reader that becomes the last one pinning target
// signals writerWaitCV as soon as it unpins (spec §5 "Progress").
func (v *PairVar[T]) waitQuiescent(target *pairSlot[T]) {
	if target.activeReaders.Load() == 0 {
		return
	}
	v.writerWaitMu.Lock()
	v.writerWaiting.Store(true)
	for target.activeReaders.Load() > 0 {
		v.writerWaitCV.Wait()
	}
	v.writerWaiting.Store(false)
	v.writerWaitMu.Unlock()
}

// unpin releases one reader's pin on s, signalling a possibly-waiting
// writer the instant the slot becomes quiescent.
func (v *PairVar[T]) unpin(s *pairSlot[T]) {
	if s.activeReaders.Add(-1) == 0 && v.writerWaiting.Load() {
		v.writerWaitMu.Lock()
		v.writerWaitCV.Signal()
		v.writerWaitMu.Unlock()
	}
}

// acquire implements the reader algorithm's slow path (spec §4.2 steps
// 2-7): pin the slot the version counter says is current, re-check
// that the counter did not move, and retry with whichever slot is
// current if it did. At most one writer races ahead in the common
// case, but the loop tolerates more.
func (v *PairVar[T]) acquire() *wrapper[T] {
	pinnedIdx := -1
	var pinned *pairSlot[T]
	for {
		nv := v.nextVersion.Load()
		if nv == 0 {
			if pinned != nil {
				v.unpin(pinned)
			}
			return nil
		}
		idx := int((nv - 1) & 1)
		if idx == pinnedIdx {
			break // the version counter agrees with what we already pinned
		}
		next := &v.slots[idx]
		next.activeReaders.Add(1)
		if pinned != nil {
			v.unpin(pinned)
		}
		pinned, pinnedIdx = next, idx
	}

	w := pinned.wrapper.Load()
	if w != nil {
		w.retain()
	}
	v.unpin(pinned)
	return w
}

// Close releases the PairVar's own references to whatever both slots
// currently hold. Values still cached by outstanding Readers survive
// until those Readers release or are finalized.
func (v *PairVar[T]) Close() error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	for i := range v.slots {
		if w := v.slots[i].wrapper.Swap(nil); w != nil {
			w.release()
		}
	}
	return nil
}

// PairReader is a per-goroutine handle onto a PairVar.
type PairReader[T any] struct {
	v      *PairVar[T]
	cached *wrapper[T]
}

var _ Reader[int] = (*PairReader[int])(nil)

func (r *PairReader[T]) exit() { r.Release() }

// Get returns the currently published value and version. The fast
// path (spec §4.2 step 1) only loads the version counter when the
// reader's cached wrapper is still current; the slow path pins a slot.
func (r *PairReader[T]) Get() (val T, version uint64) {
	v := r.v
	nv := v.nextVersion.Load()
	if nv == 0 {
		return
	}
	if r.cached != nil && r.cached.version == nv {
		return r.cached.value, r.cached.version
	}

	w := v.acquire()
	if w == nil {
		return
	}
	old := r.cached
	r.cached = w
	if old != nil && old != w {
		old.release()
	}
	return w.value, w.version
}

// Release drops this goroutine's cached reference, if any. Idempotent.
func (r *PairReader[T]) Release() {
	if r.cached != nil {
		r.cached.release()
		r.cached = nil
	}
}
