package tsvar

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valyala/fastrand"
)

// engineUnderTest lets the soak scenarios below run against either
// engine through the shared Var/Reader contract (spec §4.1), so S3 and
// S4 are written once instead of twice.
type engineUnderTest struct {
	name string
	new  func(dtor func(*int)) Var[*int]
}

var engines = []engineUnderTest{
	{name: "PairVar", new: func(dtor func(*int)) Var[*int] { return NewPair(dtor) }},
	{name: "SubscriptionVar", new: func(dtor func(*int)) Var[*int] { return NewSubscription(dtor) }},
}

// TestSoakConcurrentReadersAndWriters is scenario S3: 20 readers and 4
// writers hammer the same Var for at least 1000 operations apiece, with
// randomized sleeps between operations (fastrand, not math/rand — a
// deterministic soak loop would never exercise the interleavings that
// make this engine interesting). Every published value is destroyed
// exactly once, and no reader ever observes a version regression.
func TestSoakConcurrentReadersAndWriters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping soak test in -short mode")
	}

	const (
		readers        = 20
		writers        = 4
		writerOps      = 1000
		readerOps      = 1000
		readerJitterUs = 2000
		writerJitterUs = 9000
	)

	for _, eng := range engines {
		eng := eng
		t.Run(eng.name, func(t *testing.T) {
			var destroyed int64
			v := eng.new(func(p *int) { atomic.AddInt64(&destroyed, 1) })

			var published int64
			var wg sync.WaitGroup
			errs := make(chan error, readers+writers)

			wg.Add(writers)
			for w := 0; w < writers; w++ {
				go func() {
					defer wg.Done()
					for i := 0; i < writerOps; i++ {
						val := new(int)
						*val = i
						if _, err := v.Set(val); err != nil {
							errs <- fmt.Errorf("Set: %w", err)
							return
						}
						atomic.AddInt64(&published, 1)
						time.Sleep(time.Duration(fastrand.Uint32n(writerJitterUs)) * time.Microsecond)
					}
				}()
			}

			wg.Add(readers)
			for r := 0; r < readers; r++ {
				go func() {
					defer wg.Done()
					reader := v.Reader()
					defer reader.Release()

					if err := v.Wait(context.Background()); err != nil {
						errs <- fmt.Errorf("Wait: %w", err)
						return
					}

					var last uint64
					for i := 0; i < readerOps; i++ {
						if _, ver := reader.Get(); ver != 0 {
							if ver < last {
								errs <- errFromVersions(last, ver)
								return
							}
							last = ver
						}
						time.Sleep(time.Duration(fastrand.Uint32n(readerJitterUs)) * time.Microsecond)
					}
				}()
			}

			wg.Wait()
			close(errs)
			for err := range errs {
				t.Error(err)
			}

			if err := v.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			if got := atomic.LoadInt64(&destroyed); got != atomic.LoadInt64(&published) {
				t.Fatalf("expected every published value destroyed exactly once: published %d, destroyed %d", published, got)
			}
		})
	}
}

// TestSoakWaitChainWake is scenario S4: a herd of waiters blocked on
// Wait all observe the first published value once it lands, waking in a
// bounded time rather than being starved by the single-Signal chain-wake
// discipline (spec §4.4).
func TestSoakWaitChainWake(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping soak test in -short mode")
	}

	const waiters = 20

	for _, eng := range engines {
		eng := eng
		t.Run(eng.name, func(t *testing.T) {
			v := eng.new(nil)
			a := new(int)

			var wg sync.WaitGroup
			wg.Add(waiters)
			woken := make(chan struct{}, waiters)
			for i := 0; i < waiters; i++ {
				go func() {
					defer wg.Done()
					if err := v.Wait(context.Background()); err != nil {
						t.Errorf("Wait: %v", err)
						return
					}
					woken <- struct{}{}
				}()
			}

			time.Sleep(100 * time.Millisecond)
			if _, err := v.Set(a); err != nil {
				t.Fatalf("Set: %v", err)
			}

			done := make(chan struct{})
			go func() { wg.Wait(); close(done) }()

			select {
			case <-done:
			case <-time.After(3 * time.Second):
				t.Fatalf("only %d/%d waiters woke up within the deadline", len(woken), waiters)
			}

			if err := v.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
		})
	}
}
