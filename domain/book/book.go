package book

import "sync/atomic"

// PruneQueue receives tombstoned orders whose unlink CAS lost and
// still need a physical splice. Satisfied by memory.RetireRing.
type PruneQueue interface {
	Enqueue(v any) bool
}

// Book owns the head of a singly linked list of live orders across
// all tickers. Insertion is a CAS on the head, matching locks one
// candidate at a time, removal is a tombstone plus a best-effort
// splice. There is no per-ticker index: matching scans the list.
type Book struct {
	head  atomic.Pointer[Order]
	hints PruneQueue
}

// New creates an empty book. hints may be nil; lost unlink races are
// then left for Prune passes to find.
func New(hints PruneQueue) *Book {
	return &Book{hints: hints}
}

// Trade is one fill: Qty shares at the resident order's price.
type Trade struct {
	Ticker  uint16
	Qty     int64
	Price   int64
	MakerID uint64
	TakerID uint64
}

// MatchResult reports the fills an incoming order produced.
type MatchResult struct {
	Matched bool
	Trades  []Trade
}

// ---- insertion ----

// AddOrder publishes o at the head of the list. After it returns, any
// traversal that starts later sees o. Invalid orders are rejected and
// never enter the book.
func (b *Book) AddOrder(o *Order) error {
	if err := o.validate(); err != nil {
		return err
	}
	for {
		head := b.head.Load()
		o.next.Store(head)
		if b.head.CompareAndSwap(head, o) {
			return nil
		}
	}
}

// ---- matching ----

// MatchOrder fills incoming against the best resident counter-orders
// until it is satisfied or no candidate qualifies. incoming must
// already be published via AddOrder; a concurrent matcher may consume
// it as a candidate of its own, in which case the loop stops early.
func (b *Book) MatchOrder(incoming *Order) MatchResult {
	var res MatchResult
	for incoming.Remaining() > 0 && !incoming.Dead() {
		cand := b.bestCandidate(incoming)
		if cand == nil {
			break
		}
		traded, ok := b.trade(incoming, cand)
		if !ok {
			// candidate went stale between scan and lock
			continue
		}
		res.Trades = append(res.Trades, Trade{
			Ticker:  incoming.Ticker,
			Qty:     traded,
			Price:   cand.Price,
			MakerID: cand.ID,
			TakerID: incoming.ID,
		})
	}
	res.Matched = len(res.Trades) > 0
	return res
}

// bestCandidate scans the list for the best-priced live counter-order:
// lowest ask for a buy, highest bid for a sell. Ties keep the first
// node encountered in list order.
func (b *Book) bestCandidate(incoming *Order) *Order {
	var best *Order
	for n := b.head.Load(); n != nil; n = n.next.Load() {
		if n == incoming || n.Dead() {
			continue
		}
		if n.Ticker != incoming.Ticker || n.Side == incoming.Side {
			continue
		}
		if n.Remaining() <= 0 || !crosses(incoming, n) {
			continue
		}
		if best == nil ||
			(incoming.Side == Buy && n.Price < best.Price) ||
			(incoming.Side == Sell && n.Price > best.Price) {
			best = n
		}
	}
	return best
}

// trade executes one fill between incoming and cand, re-validating
// under the locks. Returns ok=false when the candidate (or incoming
// itself) was consumed by a concurrent matcher first.
func (b *Book) trade(incoming, cand *Order) (int64, bool) {
	lockPair(incoming, cand)
	defer unlockPair(incoming, cand)

	if cand.Dead() || cand.Remaining() <= 0 || !crosses(incoming, cand) {
		return 0, false
	}
	if incoming.Dead() || incoming.Remaining() <= 0 {
		return 0, false
	}

	traded := min(incoming.Remaining(), cand.Remaining())
	incoming.qty.Add(-traded)
	cand.qty.Add(-traded)

	if cand.Remaining() == 0 {
		cand.dead.Store(true)
		b.unlink(cand)
	}
	if incoming.Remaining() == 0 {
		incoming.dead.Store(true)
		b.unlink(incoming)
	}
	return traded, true
}

func crosses(incoming, resident *Order) bool {
	if incoming.Side == Buy {
		return resident.Price <= incoming.Price
	}
	return resident.Price >= incoming.Price
}

// Both sides of a trade are locked: the incoming order is already
// published, so another matcher can hold it as its candidate while we
// fill it. IDs are unique, so locking in ID order is deadlock-free.
func lockPair(a, b *Order) {
	if a.ID < b.ID {
		a.mu.Lock()
		b.mu.Lock()
	} else {
		b.mu.Lock()
		a.mu.Lock()
	}
}

func unlockPair(a, b *Order) {
	a.mu.Unlock()
	b.mu.Unlock()
}

// ---- bulk matching ----

// Sweep matches resident orders against each other until no cross
// remains. Used after bulk loads, where orders were inserted without
// an immediate match pass.
func (b *Book) Sweep() []Trade {
	var all []Trade
	for {
		progressed := false
		for n := b.head.Load(); n != nil; n = n.next.Load() {
			if n.Dead() || n.Remaining() <= 0 {
				continue
			}
			if res := b.MatchOrder(n); res.Matched {
				all = append(all, res.Trades...)
				progressed = true
			}
		}
		if !progressed {
			return all
		}
	}
}
