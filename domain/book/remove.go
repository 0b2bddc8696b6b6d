package book

// unlink makes one splice attempt for a node whose tombstone is
// already set. A lost race goes to the prune queue; the node stays
// physically linked but every scan already treats it as absent.
func (b *Book) unlink(o *Order) {
	if b.unlinkOnce(o) {
		return
	}
	if b.hints != nil {
		_ = b.hints.Enqueue(o)
	}
}

// unlinkOnce tries a single physical splice of o out of the list.
// Reports true when o is no longer reachable, false when a concurrent
// structural change won the CAS.
func (b *Book) unlinkOnce(o *Order) bool {
	succ := o.next.Load()
	head := b.head.Load()
	if head == o {
		return b.head.CompareAndSwap(o, succ)
	}
	for n := head; n != nil; n = n.next.Load() {
		if n.next.Load() == o {
			return n.next.CompareAndSwap(o, succ)
		}
	}
	// no predecessor found: already spliced out
	return true
}

// Unlink physically splices a tombstoned order out of the list.
// Best effort; returns false when the order is still live or a
// concurrent mutation won.
func (b *Book) Unlink(o *Order) bool {
	if !o.Dead() {
		return false
	}
	return b.unlinkOnce(o)
}

// Prune makes one pass over the list splicing out tombstoned nodes
// left behind by lost unlink races. limit caps the number of splices;
// limit <= 0 means no cap. Returns the number of nodes removed.
func (b *Book) Prune(limit int) int {
	if limit <= 0 {
		limit = int(^uint(0) >> 1)
	}
	pruned := 0

	for pruned < limit {
		h := b.head.Load()
		if h == nil || !h.Dead() {
			break
		}
		if !b.head.CompareAndSwap(h, h.next.Load()) {
			break
		}
		pruned++
	}

	prev := b.head.Load()
	for prev != nil && pruned < limit {
		n := prev.next.Load()
		if n == nil {
			break
		}
		if !n.Dead() {
			prev = n
			continue
		}
		if !prev.next.CompareAndSwap(n, n.next.Load()) {
			break
		}
		pruned++
	}
	return pruned
}

// Reset discards the whole book in one store. Matchers mid-traversal
// keep their references into the old generation but find no matches
// for it afterward; the discarded nodes become garbage once the last
// walker moves on.
func (b *Book) Reset() {
	b.head.Store(nil)
}
