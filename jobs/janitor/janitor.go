// Package janitor runs the book's deferred maintenance: epoch
// advancement and physical pruning of tombstoned nodes whose unlink
// CAS lost its race.
package janitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"matchbook/domain/book"
	"matchbook/infra/memory"
)

type Janitor struct {
	log        *zap.Logger
	book       *book.Book
	hints      *memory.RetireRing
	readers    []*memory.ReaderEpoch
	pruneLimit int
}

func New(
	log *zap.Logger,
	b *book.Book,
	hints *memory.RetireRing,
	pruneLimit int,
	readers ...*memory.ReaderEpoch,
) *Janitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Janitor{
		log:        log,
		book:       b,
		hints:      hints,
		readers:    readers,
		pruneLimit: pruneLimit,
	}
}

// Run ticks until ctx ends. Each tick advances the global epoch and,
// when no reader is still inside an older epoch, splices out dead
// nodes. A busy reader just delays the splice one tick; the nodes are
// already tombstoned and invisible to matching.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.tick()
		}
	}
}

// tick runs one maintenance pass and reports how many nodes it
// spliced. A pass under an active older-epoch reader does nothing.
func (j *Janitor) tick() int {
	memory.Advance()
	if !memory.Quiescent(j.readers...) {
		return 0
	}
	n := j.drainHints() + j.book.Prune(j.pruneLimit)
	if n > 0 {
		j.log.Debug("pruned dead orders", zap.Int("count", n))
	}
	return n
}

// drainHints empties the retire ring, splicing each queued node.
// The janitor is the ring's single consumer.
func (j *Janitor) drainHints() int {
	pruned := 0
	for {
		v := j.hints.Dequeue()
		if v == nil {
			return pruned
		}
		o, ok := v.(*book.Order)
		if !ok {
			continue
		}
		if j.book.Unlink(o) {
			pruned++
		}
	}
}
