package service

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"

	"matchbook/domain/book"
	"matchbook/feed"
	"matchbook/infra/memory"
	"matchbook/infra/sequence"
)

func newBareEngine() (*Engine, *book.Book) {
	b := book.New(memory.NewRetireRing(1 << 10))
	return NewEngine(nil, b, sequence.New(0), nil, nil), b
}

func TestDispatcher_DrainsQueue(t *testing.T) {
	eng, _ := newBareEngine()
	d := NewDispatcher(nil, eng, 4, 64)

	ctx := context.Background()
	d.Run(ctx)

	const n = 500
	for i := 0; i < n; i++ {
		rec := feed.Record{
			Side:   book.Side(i % 2),
			Ticker: uint16(i % 8),
			Qty:    10,
			Price:  int64(100 + i%5),
		}
		if err := d.Enqueue(ctx, rec); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	d.Close()

	st := d.Stats()
	if st.Submitted != n {
		t.Fatalf("expected %d submitted, got %d", n, st.Submitted)
	}
	if st.Rejected != 0 {
		t.Fatalf("expected no rejections, got %d", st.Rejected)
	}
}

func TestDispatcher_CountsRejections(t *testing.T) {
	eng, _ := newBareEngine()
	d := NewDispatcher(nil, eng, 2, 16)

	ctx := context.Background()
	d.Run(ctx)

	good := feed.Record{Side: book.Buy, Ticker: 1, Qty: 5, Price: 10}
	bad := feed.Record{Side: book.Buy, Ticker: 5000, Qty: 5, Price: 10}
	for i := 0; i < 10; i++ {
		_ = d.Enqueue(ctx, good)
		_ = d.Enqueue(ctx, bad)
	}
	d.Close()

	st := d.Stats()
	if st.Submitted != 10 || st.Rejected != 10 {
		t.Fatalf("expected 10 submitted / 10 rejected, got %d / %d",
			st.Submitted, st.Rejected)
	}
}

func TestDispatcher_EnqueueAfterClose(t *testing.T) {
	eng, _ := newBareEngine()
	d := NewDispatcher(nil, eng, 1, 4)
	d.Run(context.Background())
	d.Close()

	if err := d.Enqueue(context.Background(), feed.Record{}); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

// Quantity conservation under the full concurrent pipeline: whatever
// the interleaving, submitted quantity equals matched volume times
// two sides consumed plus what is still live.
func TestDispatcher_ConservationUnderLoad(t *testing.T) {
	eng, b := newBareEngine()
	d := NewDispatcher(nil, eng, 8, 256)

	ctx := context.Background()
	d.Run(ctx)

	const producers = 4
	const perProducer = 2000

	var wg sync.WaitGroup
	submittedQty := make([]int64, producers)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(p), uint64(p)))
			for i := 0; i < perProducer; i++ {
				rec := feed.Record{
					Side:   book.Side(rng.IntN(2)),
					Ticker: uint16(rng.IntN(16)),
					Qty:    int64(rng.IntN(100) + 1),
					Price:  int64(rng.IntN(50) + 1),
				}
				submittedQty[p] += rec.Qty
				if err := d.Enqueue(ctx, rec); err != nil {
					t.Errorf("enqueue: %v", err)
					return
				}
			}
		}(p)
	}
	wg.Wait()
	d.Close()

	var totalSubmitted int64
	for _, q := range submittedQty {
		totalSubmitted += q
	}

	var live int64
	b.Walk(func(o *book.Order) bool {
		live += o.Remaining()
		return true
	})

	st := d.Stats()
	if got := live + 2*st.Volume; got != totalSubmitted {
		t.Fatalf("quantity not conserved: live %d + 2*volume %d = %d, submitted %d",
			live, st.Volume, got, totalSubmitted)
	}
}
