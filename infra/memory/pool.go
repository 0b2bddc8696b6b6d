package memory

import "sync"

// Pool is a typed object pool for transient allocations on hot paths,
// encode buffers mostly. Orders published into the book are never
// pooled: a node another goroutine may still be traversing cannot be
// reused, so filled nodes are left to the garbage collector.
type Pool[T any] struct {
	p *sync.Pool
}

func NewPool[T any](ctor func() *T) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
	}
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	p.p.Put(v)
}
