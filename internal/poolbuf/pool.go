// Package poolbuf implements Pool: the fixed-size circular buffer that
// sources deposit into and consumers read from, with fill/mix policies and
// backpressure.
package poolbuf

import (
	"context"
	"sync"
	"time"
)

// Pool is a fixed-size circular buffer with two deposit policies (fill
// while not full, XOR-mix once full) and a blocking reader that always
// returns bytes from the top of the buffer.
type Pool struct {
	mu     sync.Mutex
	buffer []byte
	size   int
	fill   int
	next   int

	// sourceReady is closed and replaced every time fill drops (broadcast
	// to source threads waiting for room); sinkReady is closed and
	// replaced every time fill rises (broadcast to readers).
	sourceReady chan struct{}
	sinkReady   chan struct{}
}

// New constructs an empty Pool of size bytes.
func New(size int) *Pool {
	if size <= 0 {
		panic("poolbuf: size must be positive")
	}
	return &Pool{
		buffer:      make([]byte, size),
		size:        size,
		sourceReady: make(chan struct{}),
		sinkReady:   make(chan struct{}),
	}
}

// Size returns the pool's fixed capacity.
func (p *Pool) Size() int {
	return p.size
}

// Fill returns the current fill level. For diagnostics only; callers that
// need a consistent read should use Read.
func (p *Pool) Fill() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fill
}

func (p *Pool) broadcastSink() {
	close(p.sinkReady)
	p.sinkReady = make(chan struct{})
}

func (p *Pool) broadcastSource() {
	close(p.sourceReady)
	p.sourceReady = make(chan struct{})
}

// AddEntropy deposits buf under the pool mutex: bytes are copied directly
// into buffer[fill:size] while there is room (bumping fill and broadcasting
// to readers); any remainder is XOR-mixed into buffer starting at next,
// which advances modulo size. Reading never blocks a deposit and a deposit
// never blocks a reader from draining what is already filled, because both
// only hold the mutex for the duration of their own critical section.
func (p *Pool) AddEntropy(buf []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(buf)
	copied := 0
	if p.fill < p.size {
		room := p.size - p.fill
		toCopy := room
		if toCopy > n {
			toCopy = n
		}
		copy(p.buffer[p.fill:p.fill+toCopy], buf[:toCopy])
		p.fill += toCopy
		copied = toCopy
		if toCopy > 0 {
			p.broadcastSink()
		}
	}

	for _, b := range buf[copied:] {
		p.buffer[p.next] ^= b
		p.next = (p.next + 1) % p.size
	}
}

// Read waits until fill >= min(want, size), then copies
// got = min(fill, want) bytes from the top of the buffer (buffer[fill-got:
// fill]) into out, decrements fill by got, and broadcasts to source
// threads waiting for room. It returns early with ctx.Err() if ctx is
// cancelled before enough data arrives.
func (p *Pool) Read(ctx context.Context, out []byte, want int) (int, error) {
	threshold := want
	if threshold > p.size {
		threshold = p.size
	}

	p.mu.Lock()
	for p.fill < threshold {
		ch := p.sinkReady
		p.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		p.mu.Lock()
	}

	got := p.fill
	if got > want {
		got = want
	}
	copy(out[:got], p.buffer[p.fill-got:p.fill])
	p.fill -= got
	p.broadcastSource()
	p.mu.Unlock()

	return got, nil
}

// WaitForRoom blocks until fill < size, the timeout elapses, or ctx is
// cancelled, returning true only in the first case. timeout <= 0 means
// wait indefinitely for a broadcast (idle_sleep_max_ms == 0).
func (p *Pool) WaitForRoom(ctx context.Context, timeout time.Duration) bool {
	p.mu.Lock()
	if p.fill < p.size {
		p.mu.Unlock()
		return true
	}
	ch := p.sourceReady
	p.mu.Unlock()

	if timeout <= 0 {
		select {
		case <-ch:
			return true
		case <-ctx.Done():
			return false
		}
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// IsFull reports whether the pool currently has no free fill capacity.
func (p *Pool) IsFull() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fill >= p.size
}

// UnderlyingBytes exposes the pool's backing array for callers that need
// its address, not its contents -- currently only memory-locking at
// startup. It must not be read or written directly.
func (p *Pool) UnderlyingBytes() []byte {
	return p.buffer
}
