package tsvar

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// listNode is one link of the subscription-slots engine's value list
// (spec §3 "Value list"): head is always the most recently published
// wrapper, tails are older wrappers a slow reader might still be
// protecting.
type listNode[T any] struct {
	w    *wrapper[T]
	next atomic.Pointer[listNode[T]]
}

// subCell is one reader goroutine's hazard-pointer cell (spec §3
// "Subscription slot"): it publishes, with release semantics, the node
// its owning goroutine is currently protecting from collection.
type subCell[T any] struct {
	idx  int
	node atomic.Pointer[listNode[T]]
}

// SubscriptionVar is the subscription-slots engine: an unbounded chain
// of live wrappers, protected by per-goroutine hazard cells instead of
// a fixed pair of slots. Reads never block; writers pay for garbage
// collection by scanning every live cell on each Set.
type SubscriptionVar[T any] struct {
	head    atomic.Pointer[listNode[T]]
	version atomic.Uint64

	writeMu sync.Mutex
	cells   *cellPool[T]

	dtor   func(T)
	waiter waiter
}

// NewSubscription initializes an empty SubscriptionVar. dtor, if
// non-nil, is invoked exactly once per published value when its last
// reference is dropped.
func NewSubscription[T any](dtor func(T)) *SubscriptionVar[T] {
	v := &SubscriptionVar[T]{dtor: dtor, cells: newCellPool[T]()}
	v.waiter.init()
	return v
}

var _ Var[int] = (*SubscriptionVar[int])(nil)

// Reader returns a new per-goroutine read handle.
func (v *SubscriptionVar[T]) Reader() Reader[T] {
	r := &SubscriptionReader[T]{v: v}
	runtime.SetFinalizer(r, (*SubscriptionReader[T]).exit)
	return r
}

// Wait blocks until the first value has been published.
func (v *SubscriptionVar[T]) Wait(ctx context.Context) error {
	return v.waiter.wait(ctx, func() bool { return v.head.Load() != nil })
}

// Set links a new node at the head of the value list, then garbage
// collects any older node no live cell still protects (spec §4.3
// "Writer algorithm").
func (v *SubscriptionVar[T]) Set(value T) (uint64, error) {
	if isNilValue(value) {
		return 0, &Error{Kind: KindInvalid, Op: "Set", Err: errNilValue}
	}
	w := newWrapper(value, v.dtor)

	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	ver := v.version.Add(1)
	w.version = ver

	node := &listNode[T]{w: w}
	old := v.head.Load()
	node.next.Store(old)
	v.head.Store(node)

	v.gc(node)

	if ver == 1 {
		v.waiter.announce()
	}

	// Yield once before returning, mitigating writer starvation of the
	// readers' compare-and-loop in step 2 (spec §4.3 "Writer algorithm").
	runtime.Gosched()
	return ver, nil
}

// gc walks the list rooted just past head, unlinking and releasing the
// list's own reference on every node no live cell still points to.
// head itself is never collected.
func (v *SubscriptionVar[T]) gc(head *listNode[T]) {
	live := make(map[*listNode[T]]bool)
	for _, c := range v.cells.snapshot() {
		if n := c.node.Load(); n != nil {
			live[n] = true
		}
	}

	prev := head
	cur := head.next.Load()
	for cur != nil {
		next := cur.next.Load()
		if !live[cur] {
			prev.next.Store(next)
			cur.w.release()
		} else {
			prev = cur
		}
		cur = next
	}
}

// Close releases the list's own references to every node it currently
// holds. A node still protected by an outstanding Reader's cell
// survives on its own reference count until that Reader releases or is
// finalized — no further Set call is needed to reclaim it.
func (v *SubscriptionVar[T]) Close() error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	node := v.head.Swap(nil)
	for node != nil {
		next := node.next.Load()
		node.next.Store(nil)
		node.w.release()
		node = next
	}
	return nil
}

// SubscriptionReader is a per-goroutine handle onto a SubscriptionVar.
// Its hazard cell is allocated lazily, on the first Get (spec §4.3
// "Reader algorithm" step 1).
type SubscriptionReader[T any] struct {
	v    *SubscriptionVar[T]
	cell *subCell[T]
	held *listNode[T]
}

var _ Reader[int] = (*SubscriptionReader[int])(nil)

func (r *SubscriptionReader[T]) exit() { r.Release() }

// Get publishes the current list head into this reader's hazard cell,
// re-verifying the head did not move underneath it before trusting the
// read (spec §4.3 "Reader algorithm" step 2), then adopts a strong
// reference on the node so its wrapper survives even if a subsequent
// Set garbage collects it out of the list.
func (r *SubscriptionReader[T]) Get() (val T, version uint64) {
	v := r.v
	if r.cell == nil {
		r.cell = v.cells.acquire()
	}

	var h *listNode[T]
	for {
		h = v.head.Load()
		r.cell.node.Store(h)
		if v.head.Load() == h {
			break
		}
	}

	if h == nil {
		if r.held != nil {
			r.held.w.release()
			r.held = nil
		}
		return
	}

	if r.held != h {
		h.w.retain()
		if r.held != nil {
			r.held.w.release()
		}
		r.held = h
	}
	return h.w.value, h.w.version
}

// Release drops this goroutine's hazard cell and cached reference, if
// any. Idempotent; the cell is returned to the pool for reuse.
func (r *SubscriptionReader[T]) Release() {
	if r.cell != nil {
		r.v.cells.release(r.cell)
		r.cell = nil
	}
	if r.held != nil {
		r.held.w.release()
		r.held = nil
	}
}
