package memory

import (
	"sync"
	"sync/atomic"
)

// RetireRing is a bounded MPSC ring buffer for retired objects.
// Producers (matchers handing over nodes whose unlink CAS lost)
// serialize on a short mutex; the single consumer (the janitor)
// stays lock-free.
type RetireRing struct {
	mu    sync.Mutex
	head  uint64
	_pad1 [56]byte
	tail  uint64
	_pad2 [56]byte
	buf   []any
	mask  uint64
}

func NewRetireRing(size uint64) *RetireRing {
	if size&(size-1) != 0 {
		panic("RetireRing size must be power of two")
	}
	return &RetireRing{
		buf:  make([]any, size),
		mask: size - 1,
	}
}

// Enqueue adds v to the ring. A full ring returns false and the
// caller drops the object; losing a retire hint is harmless, the
// janitor's sweep finds the node anyway.
func (r *RetireRing) Enqueue(v any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.head
	t := atomic.LoadUint64(&r.tail)
	if h-t == uint64(len(r.buf)) {
		return false
	}
	r.buf[h&r.mask] = v
	atomic.StoreUint64(&r.head, h+1)
	return true
}

// Dequeue must only be called from the single consumer.
func (r *RetireRing) Dequeue() any {
	t := r.tail
	h := atomic.LoadUint64(&r.head)
	if t == h {
		return nil
	}
	v := r.buf[t&r.mask]
	r.buf[t&r.mask] = nil
	atomic.StoreUint64(&r.tail, t+1)
	return v
}
