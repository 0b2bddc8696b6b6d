package book

// Entry is one row of a book snapshot.
type Entry struct {
	Side   Side
	Ticker uint16
	Qty    int64
	Price  int64
}

// Head returns the first physical node, tombstones included. Walk is
// the live view; Head exists for maintenance passes and inspection.
func (b *Book) Head() *Order {
	return b.head.Load()
}

// Walk visits live orders in list order until fn returns false.
// The view is a single pass, not an atomic instant: fills landing
// during the walk may or may not be observed.
func (b *Book) Walk(fn func(*Order) bool) {
	for n := b.head.Load(); n != nil; n = n.next.Load() {
		if n.Dead() || n.Remaining() <= 0 {
			continue
		}
		if !fn(n) {
			return
		}
	}
}

// Snapshot materializes the live orders for reporting.
func (b *Book) Snapshot() []Entry {
	var out []Entry
	b.Walk(func(o *Order) bool {
		out = append(out, Entry{
			Side:   o.Side,
			Ticker: o.Ticker,
			Qty:    o.Remaining(),
			Price:  o.Price,
		})
		return true
	})
	return out
}
