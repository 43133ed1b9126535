package websocket

import (
	"context"
	"sync"

	"github.com/conneroisu/specto/internal/logging"
)

// Hub holds the waiters pending for the next successful build.
type Hub struct {
	mutex   sync.Mutex
	pending map[uint64]chan Signal
	nextID  uint64
	cycles  uint64
	closed  bool
	logger  logging.Logger
}

// Waiter is one registration. It is fulfilled at most once.
type Waiter struct {
	id    uint64
	hub   *Hub
	reply chan Signal
}

// NewHub creates an empty hub.
func NewHub(logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Hub{
		pending: make(map[uint64]chan Signal),
		logger:  logger.WithComponent("reload"),
	}
}

// Register adds a waiter that the next NotifyAll will fulfil. Registering
// on a closed hub returns a waiter that is already closed.
func (h *Hub) Register() *Waiter {
	reply := make(chan Signal, 1)

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		close(reply)
		return &Waiter{hub: h, reply: reply}
	}

	h.nextID++
	h.pending[h.nextID] = reply
	return &Waiter{id: h.nextID, hub: h, reply: reply}
}

// NotifyAll fulfils every waiter pending at the moment of the call and
// returns how many were released. Waiters registered concurrently either
// make this cycle or stay pending for the next one, never both.
func (h *Hub) NotifyAll() int {
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return 0
	}
	drained := h.pending
	h.pending = make(map[uint64]chan Signal)
	h.cycles++
	signal := Signal{Cycle: h.cycles}
	h.mutex.Unlock()

	// Each reply channel has room for exactly one signal and appears in
	// exactly one drained set, so these sends cannot block.
	for _, reply := range drained {
		reply <- signal
	}

	h.logger.Debug(context.Background(), "Reload signalled", "waiters", len(drained), "cycle", signal.Cycle)
	return len(drained)
}

// Pending returns the number of registered, unfulfilled waiters.
func (h *Hub) Pending() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return len(h.pending)
}

// Cycles returns how many times NotifyAll has run.
func (h *Hub) Cycles() uint64 {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.cycles
}

// Close drops every pending waiter without a signal. Their Wait calls
// return ErrHubClosed.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, reply := range h.pending {
		close(reply)
		delete(h.pending, id)
	}
}

func (h *Hub) drop(id uint64) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	delete(h.pending, id)
}

// C returns the channel the signal is delivered on. It is closed, without
// a value, if the hub shuts down first.
func (w *Waiter) C() <-chan Signal {
	return w.reply
}

// Wait blocks until the waiter is fulfilled, the hub closes, or ctx is done.
// A waiter abandoned through ctx is removed from the hub.
func (w *Waiter) Wait(ctx context.Context) (Signal, error) {
	select {
	case signal, ok := <-w.reply:
		if !ok {
			return Signal{}, ErrHubClosed
		}
		return signal, nil
	case <-ctx.Done():
		w.Cancel()
		return Signal{}, ctx.Err()
	}
}

// Cancel removes the waiter from the hub. It is safe to call more than once
// and after fulfilment.
func (w *Waiter) Cancel() {
	if w.id == 0 {
		return
	}
	w.hub.drop(w.id)
}
