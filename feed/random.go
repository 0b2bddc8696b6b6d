package feed

import (
	"context"
	"math/rand/v2"

	"matchbook/domain/book"
)

// RandomSource emits Count synthetic orders from a seeded generator:
// uniform side, ticker below Tickers, quantity 1..100, price 1..500.
// The same seed always yields the same stream.
type RandomSource struct {
	Count   int
	Tickers int
	Seed    uint64
}

func NewRandomSource(count, tickers int, seed uint64) *RandomSource {
	if tickers <= 0 || tickers > book.MaxTicker+1 {
		tickers = book.MaxTicker + 1
	}
	return &RandomSource{Count: count, Tickers: tickers, Seed: seed}
}

func (s *RandomSource) Stream(ctx context.Context, emit func(Record) error) error {
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed))

	for i := 0; i < s.Count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := Record{
			Side:   book.Side(rng.IntN(2)),
			Ticker: uint16(rng.IntN(s.Tickers)),
			Qty:    int64(rng.IntN(100) + 1),
			Price:  int64(rng.IntN(500) + 1),
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
	return nil
}
