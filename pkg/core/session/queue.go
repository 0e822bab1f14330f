package session

import (
	"sync"
	"sync/atomic"

	"netplay/pkg/protocol"
)

// Threshold bounds for input buffering.
const (
	MinThreshold = 3
	MaxThreshold = 10
)

// AdaptiveThreshold is the queue depth the input path waits for before
// consuming. It only grows during a session.
type AdaptiveThreshold struct {
	v atomic.Int32
}

func newThreshold() *AdaptiveThreshold {
	t := &AdaptiveThreshold{}
	t.v.Store(MinThreshold)
	return t
}

func (t *AdaptiveThreshold) Load() int { return int(t.v.Load()) }

// Grow raises the threshold by one unless it is already at MaxThreshold and
// returns the resulting value.
func (t *AdaptiveThreshold) Grow() int {
	for {
		cur := t.v.Load()
		if cur >= MaxThreshold {
			return int(cur)
		}
		if t.v.CompareAndSwap(cur, cur+1) {
			return int(cur + 1)
		}
	}
}

// portQueues holds the authoritative input states waiting for each port.
// Structure changes happen under mu; depths are mirrored in atomics so the
// input path can test for emptiness without the lock.
type portQueues struct {
	mu    sync.Mutex
	q     [protocol.PortCount][]protocol.ControllerState
	depth [protocol.PortCount]atomic.Int32
	// wake holds at most one pending signal per port.
	wake [protocol.PortCount]chan struct{}
}

func newPortQueues() *portQueues {
	pq := &portQueues{}
	for i := range pq.wake {
		pq.wake[i] = make(chan struct{}, 1)
	}
	return pq
}

// push appends st and returns the new depth.
func (pq *portQueues) push(port uint8, st protocol.ControllerState) int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	pq.q[port] = append(pq.q[port], st)
	pq.depth[port].Store(int32(len(pq.q[port])))
	return len(pq.q[port])
}

// pop removes the oldest state and returns it with the remaining depth.
func (pq *portQueues) pop(port uint8) (protocol.ControllerState, int, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	q := pq.q[port]
	if len(q) == 0 {
		return protocol.ControllerState{}, 0, false
	}
	st := q[0]
	q = q[1:]
	if len(q) == 0 {
		q = nil
	}
	pq.q[port] = q
	pq.depth[port].Store(int32(len(q)))
	return st, len(q), true
}

func (pq *portQueues) clear() {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	for i := range pq.q {
		pq.q[i] = nil
		pq.depth[i].Store(0)
	}
}

func (pq *portQueues) size(port uint8) int { return int(pq.depth[port].Load()) }

// signal wakes the port's waiter, or the next one to wait if none is waiting.
func (pq *portQueues) signal(port uint8) {
	select {
	case pq.wake[port] <- struct{}{}:
	default:
	}
}

func (pq *portQueues) signalAll() {
	for i := range pq.wake {
		pq.signal(uint8(i))
	}
}

// drain discards pending signals.
func (pq *portQueues) drain() {
	for i := range pq.wake {
		select {
		case <-pq.wake[i]:
		default:
		}
	}
}
