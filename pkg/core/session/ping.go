package session

import (
	"sync"
	"time"
)

// pingTracker correlates Ping replies with their send times. Replies with
// ids it never issued are reported as unknown. Nothing is retried.
type pingTracker struct {
	mu   sync.Mutex
	now  func() time.Time
	next uint32
	sent map[uint32]time.Time
	last time.Duration
}

func newPingTracker(now func() time.Time) *pingTracker {
	if now == nil {
		now = time.Now
	}
	return &pingTracker{now: now, sent: make(map[uint32]time.Time)}
}

// start allocates the next id, starting at 1, and records its send time.
func (p *pingTracker) start() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	p.sent[p.next] = p.now()
	return p.next
}

// reply resolves id and returns the round trip time.
func (p *pingTracker) reply(id uint32) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	at, ok := p.sent[id]
	if !ok {
		return 0, false
	}
	delete(p.sent, id)
	p.last = p.now().Sub(at)
	return p.last, true
}

func (p *pingTracker) lastRTT() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *pingTracker) outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}
