// Package command implements the priority queue, long-poll dispatcher,
// state machine and payload validation of spec.md §4.2-§4.4.
package command

import "sync"

// WaiterRegistry is a process-local notification map keyed by deployment
// hash: a long-poll handler blocked waiting for work registers a channel
// here, and Dispatcher.Enqueue signals it the moment a command lands for
// that deployment. Grounded on the teacher's Hub (server/hub.go)
// register/unregister/broadcast channel pattern, narrowed from fan-out
// broadcast to a single-slot signal per key since at most one agent
// long-polls per deployment at a time.
type WaiterRegistry struct {
	mu      sync.Mutex
	waiters map[string]chan struct{}
}

func NewWaiterRegistry() *WaiterRegistry {
	return &WaiterRegistry{waiters: make(map[string]chan struct{})}
}

// Register returns a channel that is closed when Signal is called for
// deploymentHash. The caller
// must call release() (the returned func) exactly once when done waiting,
// whether it woke naturally or timed out, to avoid leaking the slot.
func (w *WaiterRegistry) Register(deploymentHash string) (ch <-chan struct{}, release func()) {
	w.mu.Lock()
	c, ok := w.waiters[deploymentHash]
	if !ok {
		c = make(chan struct{})
		w.waiters[deploymentHash] = c
	}
	w.mu.Unlock()

	return c, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if cur, ok := w.waiters[deploymentHash]; ok && cur == c {
			delete(w.waiters, deploymentHash)
		}
	}
}

// Signal wakes any waiter registered for deploymentHash. If none is
// registered this is a no-op: the next claim attempt will simply find the
// command already in the queue.
func (w *WaiterRegistry) Signal(deploymentHash string) {
	w.mu.Lock()
	c, ok := w.waiters[deploymentHash]
	if ok {
		delete(w.waiters, deploymentHash)
	}
	w.mu.Unlock()
	if ok {
		close(c)
	}
}
