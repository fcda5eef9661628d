package eventloop

import "sync"

// pool is a typed sync.Pool.
type pool[T any] sync.Pool

func newPool[T any](newFunc func() T) *pool[T] {
	return (*pool[T])(&sync.Pool{
		New: func() any { return newFunc() },
	})
}

// Get retrieves a resource from the pool.
func (p *pool[T]) Get() T {
	return (*sync.Pool)(p).Get().(T)
}

// Put puts the resource into the pool.
func (p *pool[T]) Put(val T) {
	(*sync.Pool)(p).Put(val)
}
