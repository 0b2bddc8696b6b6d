// Package feed supplies fully formed order requests to the engine:
// CSV datasets, seeded synthetic generation, and a Kafka stream.
package feed

import (
	"context"

	"matchbook/domain/book"
)

// Record is an order request before validation. The book decides
// whether it is structurally acceptable.
type Record struct {
	Side   book.Side
	Ticker uint16
	Qty    int64
	Price  int64
}

// Source streams records into emit until the input is exhausted or
// the context ends. emit returning an error stops the stream.
type Source interface {
	Stream(ctx context.Context, emit func(Record) error) error
}
