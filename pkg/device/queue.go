package device

import (
	"sync"
)

// Queue is a single-goroutine serialized callback executor. Drivers use one
// Queue for device lifecycle and capture callbacks and a second, independent
// Queue for reader notifications, so the two callback streams never block
// each other but each stays strictly ordered.
type Queue struct {
	name  string
	tasks chan func()

	closeOnce sync.Once
	done      chan struct{}
	drained   sync.WaitGroup
}

// NewQueue creates and starts a dispatch queue.
func NewQueue(name string) *Queue {
	q := &Queue{
		name:  name,
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}
	q.drained.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.drained.Done()
	for {
		select {
		case fn := <-q.tasks:
			fn()
		case <-q.done:
			// Drain whatever was already submitted, then exit.
			for {
				select {
				case fn := <-q.tasks:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Submit enqueues fn for serialized execution. Submissions after Close are
// dropped.
func (q *Queue) Submit(fn func()) {
	select {
	case <-q.done:
	case q.tasks <- fn:
	}
}

// Name returns the queue's diagnostic name.
func (q *Queue) Name() string {
	return q.name
}

// Close stops the queue after running already-submitted tasks. Blocks until
// the worker goroutine exits. Idempotent.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
	q.drained.Wait()
}
