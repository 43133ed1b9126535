package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubNotifyAllReleasesRegisteredWaiters(t *testing.T) {
	hub := NewHub(nil)

	first := hub.Register()
	second := hub.Register()
	assert.Equal(t, 2, hub.Pending())

	assert.Equal(t, 2, hub.NotifyAll())
	assert.Equal(t, 0, hub.Pending())
	assert.Equal(t, uint64(1), hub.Cycles())

	for _, w := range []*Waiter{first, second} {
		signal, err := w.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(1), signal.Cycle)
	}
}

func TestHubLateWaiterWaitsForNextCycle(t *testing.T) {
	hub := NewHub(nil)

	early := hub.Register()
	hub.NotifyAll()
	late := hub.Register()

	_, err := early.Wait(context.Background())
	require.NoError(t, err)

	select {
	case <-late.C():
		t.Fatal("waiter registered after the flush must not be released by it")
	default:
	}

	assert.Equal(t, 1, hub.NotifyAll())
	signal, err := late.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), signal.Cycle)
}

func TestHubWaiterFulfilledOnce(t *testing.T) {
	hub := NewHub(nil)
	w := hub.Register()

	hub.NotifyAll()
	hub.NotifyAll()

	_, err := w.Wait(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = w.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHubNotifyAllWithoutWaiters(t *testing.T) {
	hub := NewHub(nil)
	assert.Equal(t, 0, hub.NotifyAll())
	assert.Equal(t, uint64(1), hub.Cycles())
}

func TestWaiterCancel(t *testing.T) {
	hub := NewHub(nil)
	w := hub.Register()
	other := hub.Register()

	w.Cancel()
	w.Cancel()
	assert.Equal(t, 1, hub.Pending())

	assert.Equal(t, 1, hub.NotifyAll())
	_, err := other.Wait(context.Background())
	assert.NoError(t, err)
}

func TestWaiterWaitContextCancelDropsRegistration(t *testing.T) {
	hub := NewHub(nil)
	w := hub.Register()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, hub.Pending())
}

func TestHubClose(t *testing.T) {
	hub := NewHub(nil)
	w := hub.Register()

	hub.Close()
	hub.Close()

	_, err := w.Wait(context.Background())
	assert.ErrorIs(t, err, ErrHubClosed)

	late := hub.Register()
	_, err = late.Wait(context.Background())
	assert.ErrorIs(t, err, ErrHubClosed)
	assert.Equal(t, 0, hub.NotifyAll())
}

func TestHubConcurrentRegistrationsAllFulfilled(t *testing.T) {
	hub := NewHub(nil)
	const k = 200

	waiters := make([]*Waiter, k)
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			waiters[i] = hub.Register()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, k, hub.NotifyAll())

	for _, w := range waiters {
		select {
		case _, ok := <-w.C():
			assert.True(t, ok)
		default:
			t.Fatal("waiter not fulfilled")
		}
	}
}

func TestHubRegistrationsRacingNotifyAll(t *testing.T) {
	hub := NewHub(nil)
	const k = 100

	waiters := make(chan *Waiter, k)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			waiters <- hub.Register()
		}()
	}

	close(start)
	released := hub.NotifyAll()
	wg.Wait()
	close(waiters)

	fulfilled := 0
	for w := range waiters {
		select {
		case <-w.C():
			fulfilled++
		default:
		}
	}

	assert.Equal(t, released, fulfilled)
	assert.Equal(t, k-released, hub.Pending())
}
