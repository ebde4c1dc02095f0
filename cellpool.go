package tsvar

import "sync"

// poolCapacity bounds the free list of recycled subscription cells
// (spec §9 "Hazard pointers vs. subscription slots"; original_source's
// hazards.c scans for an inuse==0 cell before allocating a new one so a
// long-running process with many short-lived reader goroutines does
// not grow the cell array without bound). It is a buffer size, not a
// hard cap on the number of goroutines a SubscriptionVar can ever
// serve — once it fills, release leaves further cells unrecycled
// instead of blocking, and acquire allocates a new cell whenever the
// free list is empty.
const poolCapacity = 1 << 12

// cellPool hands out reusable *subCell[T] slots for the
// subscription-slots engine. The common case — acquiring a cell a
// previous goroutine released — is the teacher's own bounded
// lock-free MPMC ring (ringbuffer.go/mpmc.go), reused here as an
// index free-list rather than a byte-queue: the same Vyukov algorithm,
// generalized from "hand out task slots" to "hand out subscription
// cell indices". Growing past the initial pool takes a mutex, which
// only a first-time reader goroutine ever pays for.
type cellPool[T any] struct {
	free *MPMC[int]

	mu    sync.RWMutex
	cells []*subCell[T]
}

func newCellPool[T any]() *cellPool[T] {
	return &cellPool[T]{free: NewMPMC[int](poolCapacity)}
}

// acquire's fast path only dequeues an index a previous release already
// put back, but reading p.cells by that index still races with a
// concurrent append growing (and reallocating) the slice in the slow
// path below, so even the fast path takes the read lock.
func (p *cellPool[T]) acquire() *subCell[T] {
	if idx, ok := p.free.Dequeue(); ok {
		p.mu.RLock()
		cell := p.cells[idx]
		p.mu.RUnlock()
		return cell
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cell := &subCell[T]{idx: len(p.cells)}
	p.cells = append(p.cells, cell)
	return cell
}

// release returns cell to the pool for reuse. If the free ring is
// momentarily full, the cell is simply left unrecycled — it stays
// alive with node cleared and can still be scanned by gc, it just
// won't be handed back out by acquire.
func (p *cellPool[T]) release(cell *subCell[T]) {
	cell.node.Store(nil)
	p.free.Enqueue(cell.idx)
}

// snapshot returns a stable copy of every cell ever allocated,
// including ones currently free (their node is nil, so gc's live scan
// naturally ignores them).
func (p *cellPool[T]) snapshot() []*subCell[T] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*subCell[T], len(p.cells))
	copy(out, p.cells)
	return out
}
