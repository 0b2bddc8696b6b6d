package book

import (
	"fmt"
	"sync"
	"sync/atomic"
)

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// MaxTicker is the highest valid ticker id.
const MaxTicker = 1023

// Order is a live node in the book's list. Side, Ticker and Price are
// immutable after construction; the remaining quantity and the list
// links are the only mutable state.
type Order struct {
	ID     uint64
	Side   Side
	Ticker uint16
	Price  int64

	qty  atomic.Int64
	next atomic.Pointer[Order]
	dead atomic.Bool
	mu   sync.Mutex
}

func NewOrder(id uint64, side Side, ticker uint16, qty, price int64) *Order {
	o := &Order{ID: id, Side: side, Ticker: ticker, Price: price}
	o.qty.Store(qty)
	return o
}

// Remaining returns the unfilled quantity. Lock-free, so a value read
// during a concurrent fill may be stale by the time it is used.
func (o *Order) Remaining() int64 {
	return o.qty.Load()
}

// Dead reports whether the order has been tombstoned.
func (o *Order) Dead() bool {
	return o.dead.Load()
}

// Next is a read-only traversal helper.
func (o *Order) Next() *Order {
	return o.next.Load()
}

// ValidationError reports a structurally invalid order. It is the only
// error the book ever surfaces; contention and stale candidates are
// absorbed internally.
type ValidationError struct {
	Field string
	Value int64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("order rejected: %s=%d out of range", e.Field, e.Value)
}

func (o *Order) validate() error {
	switch {
	case o.Ticker > MaxTicker:
		return &ValidationError{Field: "ticker", Value: int64(o.Ticker)}
	case o.Remaining() <= 0:
		return &ValidationError{Field: "quantity", Value: o.Remaining()}
	case o.Price <= 0:
		return &ValidationError{Field: "price", Value: o.Price}
	}
	return nil
}
