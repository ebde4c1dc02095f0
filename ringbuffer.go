package tsvar

import "sync/atomic"

// Original algorithm by Dmitry Vyukov
// https://www.1024cores.net/home/lock-free-algorithms/queues/bounded-mpmc-queue

// T — specific type to store in the queue .
// slot is one cell of the bounded lock-free MPMC ring in mpmc.go.

type slot[T any] struct {
	seq  atomic.Uint64 // sequence number (controls visibility and slot ownership)
	lock atomic.Uint64 // not read or written by MPMC; seq alone controls visibility and ownership
	val  T             // actual value stored in this slot
}
