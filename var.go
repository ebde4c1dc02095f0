// Package tsvar implements a thread-safe variable: a shared cell
// holding a value that readers may obtain at near-zero cost and
// writers may replace without ever blocking readers. A value read by a
// goroutine remains valid for that goroutine until it reads the next
// value or explicitly releases it; stale values are destroyed
// automatically once the last reference to them is dropped.
//
// Two engines implement the same contract with different trade-offs:
// PairVar (slot-pair: two fixed slots, allocation-free reads, O(1)
// writes) and SubscriptionVar (subscription-slots: an unbounded chain
// of live values, no allocation on the read path beyond the first,
// writers pay for garbage collection).
//
// Go has no per-OS-thread key facility exposed to user code, so the
// per-thread cache the original C API keeps behind the scenes is
// explicit here: call Reader once per goroutine and reuse the returned
// handle for that goroutine's lifetime.
package tsvar

import "context"

// Var is the six-call public contract (spec §4.1) shared by both
// engines, parameterized over T, the opaque value type. Neither engine
// inspects or copies T's bytes; they only move references to it.
type Var[T any] interface {
	// Reader returns a new per-goroutine read handle. Obtain one per
	// goroutine and reuse it; a fresh Reader per call defeats the
	// per-goroutine caching this type exists to provide.
	Reader() Reader[T]

	// Set publishes value, returning its new version (>= 1). Writers
	// are serialized against each other. value must not be nil.
	Set(value T) (uint64, error)

	// Wait blocks until at least one value has been published, or ctx
	// is done. It returns immediately if a value already has been
	// published. ctx may be nil to wait indefinitely.
	Wait(ctx context.Context) error

	// Close asserts that no goroutine will use this Var again. It
	// releases the Var's own references to whatever it currently
	// holds; values still referenced by outstanding Readers are
	// destroyed when those Readers release or are finalized.
	Close() error
}

// Reader is a per-goroutine handle onto a Var, standing in for the
// per-thread cache of spec §3/§4.1. It must not be shared across
// goroutines.
type Reader[T any] interface {
	// Get returns the currently published value and its version, or
	// the zero value and 0 if none has ever been set.
	Get() (value T, version uint64)

	// Release drops this goroutine's cached reference, if any. Safe to
	// call more than once.
	Release()
}
