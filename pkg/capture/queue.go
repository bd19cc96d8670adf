package capture

import (
	"context"
	"sync"

	"github.com/teslashibe/go-camkit/pkg/device"
)

// bufferQueue is a fixed-capacity FIFO of pending buffers awaiting
// correlation. Capacity equals the reader's pool depth: the reader can never
// have more buffers in flight than its pool holds. On overflow the oldest
// entry is dropped and released, matching the reader's own stale-frame
// policy. Matching is a linear scan against one target timestamp, so arrival
// order is the only key.
type bufferQueue struct {
	mu     sync.Mutex
	items  []*device.Buffer
	cap    int
	avail  chan struct{}
	closed bool
}

func newBufferQueue(capacity int) *bufferQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &bufferQueue{
		cap:   capacity,
		avail: make(chan struct{}, capacity),
	}
}

// put appends a buffer, dropping and releasing the oldest on overflow.
func (q *bufferQueue) put(b *device.Buffer) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		b.Release()
		return
	}
	var dropped *device.Buffer
	if len(q.items) >= q.cap {
		dropped = q.items[0]
		q.items = q.items[1:]
		// Consume the stale availability signal.
		select {
		case <-q.avail:
		default:
		}
	}
	q.items = append(q.items, b)
	q.mu.Unlock()

	if dropped != nil {
		dropped.Release()
	}
	select {
	case q.avail <- struct{}{}:
	default:
	}
}

// take blocks until a buffer is available or ctx ends.
func (q *bufferQueue) take(ctx context.Context) (*device.Buffer, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			b := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return b, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrClosed
		}
		q.mu.Unlock()

		select {
		case <-q.avail:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// drain releases every queued buffer and closes the queue to further puts.
func (q *bufferQueue) drain() {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.closed = true
	q.mu.Unlock()
	for _, b := range items {
		b.Release()
	}
}
