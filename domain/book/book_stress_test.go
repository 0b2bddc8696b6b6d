package book

import (
	"math/rand/v2"
	"sync"
	"testing"
)

func TestConcurrentAdd_NoInsertionLost(t *testing.T) {
	const workers = 8
	const perWorker = 500

	b := New(nil)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := uint64(w*perWorker + i + 1)
				if err := b.AddOrder(NewOrder(id, Buy, uint16(w), 1, 1)); err != nil {
					t.Errorf("add %d: %v", id, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	seen := make(map[uint64]bool, workers*perWorker)
	b.Walk(func(o *Order) bool {
		if seen[o.ID] {
			t.Errorf("order %d reachable twice", o.ID)
		}
		seen[o.ID] = true
		return true
	})
	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d live orders, got %d", workers*perWorker, len(seen))
	}
	for id := uint64(1); id <= workers*perWorker; id++ {
		if !seen[id] {
			t.Fatalf("order %d lost", id)
		}
	}
}

// Workers submit random orders and match them immediately. No quantity
// may be created or destroyed: per side, everything submitted is either
// still live or was traded away, and no single resident order ever
// gives up more than its initial quantity.
func TestConcurrentMatch_Conservation(t *testing.T) {
	const workers = 8
	const perWorker = 400

	b := New(nil)

	type outcome struct {
		submitted map[Side]int64
		initial   map[uint64]int64
		trades    []Trade
	}
	results := make([]outcome, workers)

	var ids struct {
		sync.Mutex
		next uint64
	}
	nextID := func() uint64 {
		ids.Lock()
		defer ids.Unlock()
		ids.next++
		return ids.next
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(42, uint64(w)))
			out := outcome{
				submitted: map[Side]int64{},
				initial:   map[uint64]int64{},
			}
			for i := 0; i < perWorker; i++ {
				side := Side(rng.IntN(2))
				qty := int64(rng.IntN(20) + 1)
				price := int64(rng.IntN(10) + 1)
				ticker := uint16(rng.IntN(4))

				o := NewOrder(nextID(), side, ticker, qty, price)
				if err := b.AddOrder(o); err != nil {
					t.Errorf("add: %v", err)
					return
				}
				out.submitted[side] += qty
				out.initial[o.ID] = qty
				res := b.MatchOrder(o)
				out.trades = append(out.trades, res.Trades...)
			}
			results[w] = out
		}(w)
	}
	wg.Wait()

	submitted := map[Side]int64{}
	initial := map[uint64]int64{}
	consumed := map[uint64]int64{}
	var traded int64
	for _, out := range results {
		for s, q := range out.submitted {
			submitted[s] += q
		}
		for id, q := range out.initial {
			initial[id] = q
		}
		for _, tr := range out.trades {
			traded += tr.Qty
			consumed[tr.MakerID] += tr.Qty
			consumed[tr.TakerID] += tr.Qty
		}
	}

	live := map[Side]int64{}
	b.Walk(func(o *Order) bool {
		if o.Remaining() <= 0 {
			t.Errorf("live order %d with non-positive quantity %d", o.ID, o.Remaining())
		}
		live[o.Side] += o.Remaining()
		consumed[o.ID] += o.Remaining()
		return true
	})

	for _, s := range []Side{Buy, Sell} {
		if submitted[s] != live[s]+traded {
			t.Errorf("%s conservation broken: submitted=%d live=%d traded=%d",
				s, submitted[s], live[s], traded)
		}
	}
	for id, q := range consumed {
		if q != initial[id] {
			t.Errorf("order %d consumed %d of initial %d", id, q, initial[id])
		}
	}
}

func TestConcurrentMatch_SingleCandidateNoDoubleSpend(t *testing.T) {
	const workers = 16

	b := New(nil)
	sell := NewOrder(1, Sell, 3, 10, 100)
	mustAdd(t, b, sell)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var total int64
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			o := NewOrder(uint64(w+2), Buy, 3, 10, 100)
			if err := b.AddOrder(o); err != nil {
				t.Errorf("add: %v", err)
				return
			}
			res := b.MatchOrder(o)
			mu.Lock()
			defer mu.Unlock()
			for _, tr := range res.Trades {
				if tr.MakerID == sell.ID || tr.TakerID == sell.ID {
					total += tr.Qty
				}
			}
		}(w)
	}
	wg.Wait()

	if total != 10 {
		t.Fatalf("sell of 10 shares was traded for %d in total", total)
	}
	if !sell.Dead() {
		t.Error("fully consumed sell should be tombstoned")
	}
}

func TestConcurrentResetDuringMatching(t *testing.T) {
	const workers = 4
	const perWorker = 200

	b := New(nil)
	var wg sync.WaitGroup
	wg.Add(workers + 1)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(7, uint64(w)))
			for i := 0; i < perWorker; i++ {
				id := uint64(w*perWorker+i) + 1
				o := NewOrder(id, Side(rng.IntN(2)), 0, int64(rng.IntN(5)+1), int64(rng.IntN(5)+1))
				if err := b.AddOrder(o); err != nil {
					t.Errorf("add: %v", err)
					return
				}
				b.MatchOrder(o)
			}
		}(w)
	}
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			b.Reset()
		}
	}()
	wg.Wait()

	b.Walk(func(o *Order) bool {
		if o.Remaining() <= 0 {
			t.Errorf("live order %d with quantity %d", o.ID, o.Remaining())
		}
		return true
	})
}
