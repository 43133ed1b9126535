//go:build property

package websocket

import (
	"runtime"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestHubProperties validates the rendezvous guarantees under random interleavings
func TestHubProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(5678)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// Property: K concurrent registrations and one NotifyAll lose nothing
	properties.Property("no lost or duplicated waiters", prop.ForAll(
		func(k int, notifyAfter int) bool {
			hub := NewHub(nil)
			waiters := make(chan *Waiter, k)

			var wg sync.WaitGroup
			for i := 0; i < k; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					waiters <- hub.Register()
				}()
			}

			released := 0
			notified := make(chan struct{})
			go func() {
				for len(waiters) < notifyAfter && len(waiters) < k {
					runtime.Gosched()
				}
				released = hub.NotifyAll()
				close(notified)
			}()

			wg.Wait()
			<-notified
			close(waiters)

			fulfilled := 0
			for w := range waiters {
				select {
				case _, ok := <-w.C():
					if !ok {
						return false
					}
					fulfilled++
					select {
					case <-w.C():
						return false
					default:
					}
				default:
				}
			}

			return fulfilled == released && hub.Pending() == k-released
		},
		gen.IntRange(0, 64),
		gen.IntRange(0, 64),
	))

	// Property: consecutive cycles each release only their own waiters
	properties.Property("each cycle releases only prior registrations", prop.ForAll(
		func(batches []int) bool {
			hub := NewHub(nil)
			for cycle, size := range batches {
				batch := make([]*Waiter, size)
				for i := range batch {
					batch[i] = hub.Register()
				}
				if hub.NotifyAll() != size {
					return false
				}
				for _, w := range batch {
					signal := <-w.C()
					if signal.Cycle != uint64(cycle+1) {
						return false
					}
				}
			}
			return hub.Pending() == 0
		},
		gen.SliceOf(gen.IntRange(0, 20)),
	))

	properties.TestingRun(t)
}
