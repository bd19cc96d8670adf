package device

import (
	"sync"
)

// DefaultReaderDepth is the bounded pool size of a buffer reader.
const DefaultReaderDepth = 3

// BufferedReader is a bounded in-memory buffer reader shared by drivers.
// Emit pushes a buffer into the pool; when the pool is full the oldest
// unclaimed buffer is dropped and its slot released, mirroring a hardware
// reader overwriting stale frames. Notifications fire on the reader
// dispatch queue.
type BufferedReader struct {
	queue *Queue
	depth int

	mu          sync.Mutex
	pending     []*Buffer
	outstanding int
	handler     func()
	closed      bool
}

// NewBufferedReader creates a reader with the given pool depth, delivering
// notifications on q.
func NewBufferedReader(depth int, q *Queue) *BufferedReader {
	if depth < 1 {
		depth = DefaultReaderDepth
	}
	return &BufferedReader{queue: q, depth: depth}
}

// SetHandler installs the buffer-available notification. Nil detaches.
func (r *BufferedReader) SetHandler(fn func()) {
	r.mu.Lock()
	r.handler = fn
	r.mu.Unlock()
}

// Emit makes a buffer with the given timestamp available to consumers.
func (r *BufferedReader) Emit(timestamp int64, format PixelFormat, w, h int, data []byte) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	b := NewBuffer(timestamp, format, w, h, data, r.releaseSlot)
	r.outstanding++
	var stale *Buffer
	if len(r.pending) >= r.depth {
		stale = r.pending[0]
		r.pending = r.pending[1:]
	}
	r.pending = append(r.pending, b)
	handler := r.handler
	r.mu.Unlock()

	if stale != nil {
		stale.Release()
	}
	if handler != nil {
		r.queue.Submit(handler)
	}
}

func (r *BufferedReader) releaseSlot() {
	r.mu.Lock()
	r.outstanding--
	r.mu.Unlock()
}

// Acquire claims the next pending buffer without blocking.
func (r *BufferedReader) Acquire() (*Buffer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return nil, false
	}
	b := r.pending[0]
	r.pending = r.pending[1:]
	return b, true
}

// Depth returns the pool capacity.
func (r *BufferedReader) Depth() int {
	return r.depth
}

// Outstanding returns the number of emitted buffers not yet released.
// Tests use it to verify release discipline.
func (r *BufferedReader) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outstanding
}

// Close drops all pending buffers and releases their slots.
func (r *BufferedReader) Close() error {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.closed = true
	r.mu.Unlock()
	for _, b := range pending {
		b.Release()
	}
	return nil
}

var _ Reader = (*BufferedReader)(nil)
