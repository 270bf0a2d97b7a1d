package codec

import (
	"sync"
	"time"
)

// NonceSource issues strictly increasing integer nonces derived from
// wall-clock milliseconds. When the clock has not advanced since the last
// nonce, the previous value is incremented instead of being reused, so two
// private requests inside one tick never collide.
type NonceSource struct {
	mu    sync.Mutex
	clock func() time.Time
	last  int64
}

// NewNonceSource constructs a nonce source; clock defaults to time.Now.
func NewNonceSource(clock func() time.Time) *NonceSource {
	if clock == nil {
		clock = time.Now
	}
	return &NonceSource{clock: clock}
}

// Next returns the next nonce.
func (n *NonceSource) Next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	candidate := n.clock().UnixMilli()
	if candidate <= n.last {
		candidate = n.last + 1
	}
	n.last = candidate
	return candidate
}

// TickCounter issues (tick, sequence) nonce pairs for venues that want a
// coarse timestamp plus a per-tick counter. The counter restarts from base+1
// whenever the tick advances and keeps incrementing while it does not.
type TickCounter struct {
	mu       sync.Mutex
	clock    func() time.Time
	unit     time.Duration
	base     int64
	lastTick int64
	counter  int64
}

// NewTickCounter constructs a counter over the given tick unit (for example
// time.Second) starting each window at base.
func NewTickCounter(clock func() time.Time, unit time.Duration, base int64) *TickCounter {
	if clock == nil {
		clock = time.Now
	}
	if unit <= 0 {
		unit = time.Second
	}
	return &TickCounter{clock: clock, unit: unit, base: base}
}

// Next returns the current tick and the next counter value within it.
func (t *TickCounter) Next() (tick, seq int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock().UnixNano() / int64(t.unit)
	if now > t.lastTick {
		t.lastTick = now
		t.counter = t.base
	}
	t.counter++
	return t.lastTick, t.counter
}
