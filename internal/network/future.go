package network

import (
	"context"
	"sync"
)

// Future holds a value that is produced exactly once.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
}

// NewFuture returns an unresolved future and the function that resolves it.
// Only the first call to resolve has any effect; it reports whether it won.
func NewFuture[T any]() (*Future[T], func(T) bool) {
	f := &Future[T]{done: make(chan struct{})}
	return f, f.resolve
}

func (f *Future[T]) resolve(v T) bool {
	won := false
	f.once.Do(func() {
		f.val = v
		close(f.done)
		won = true
	})
	return won
}

// Done is closed once the value is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the value is available or ctx ends.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Value returns the value without blocking.
func (f *Future[T]) Value() (T, bool) {
	select {
	case <-f.done:
		return f.val, true
	default:
		var zero T
		return zero, false
	}
}
