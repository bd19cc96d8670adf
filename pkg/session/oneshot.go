package session

import (
	"context"
	"sync"
)

// oneshot is a single-resume continuation: it begins empty and resolves
// exactly once. Hardware callback APIs may race a second completion onto an
// already-resolved operation; the extra resume is a no-op, not an error.
type oneshot[T any] struct {
	once sync.Once
	ch   chan outcome[T]
}

type outcome[T any] struct {
	val T
	err error
}

func newOneshot[T any]() *oneshot[T] {
	return &oneshot[T]{ch: make(chan outcome[T], 1)}
}

// resolve completes the continuation successfully. Later calls are ignored.
func (o *oneshot[T]) resolve(v T) {
	o.once.Do(func() {
		o.ch <- outcome[T]{val: v}
	})
}

// reject completes the continuation with an error. Later calls are ignored.
func (o *oneshot[T]) reject(err error) {
	o.once.Do(func() {
		o.ch <- outcome[T]{err: err}
	})
}

// await blocks until the continuation resolves or ctx ends.
func (o *oneshot[T]) await(ctx context.Context) (T, error) {
	select {
	case out := <-o.ch:
		return out.val, out.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
