package memory

import "sync/atomic"

// GlobalEpoch monotonically increases.
var GlobalEpoch atomic.Uint64

const inactive = ^uint64(0)

// ReaderEpoch marks when a reader entered a read section.
type ReaderEpoch struct {
	epoch atomic.Uint64
}

func NewReaderEpoch() *ReaderEpoch {
	r := &ReaderEpoch{}
	r.epoch.Store(inactive)
	return r
}

func (r *ReaderEpoch) Enter() {
	r.epoch.Store(GlobalEpoch.Load())
}

func (r *ReaderEpoch) Exit() {
	r.epoch.Store(inactive)
}

func (r *ReaderEpoch) Value() uint64 {
	return r.epoch.Load()
}

// Advance bumps the global epoch and returns the new value.
func Advance() uint64 {
	return GlobalEpoch.Add(1)
}

// Quiescent reports whether no reader is still inside an epoch older
// than the current one. Pruning while a walker sits in an old epoch is
// still safe, it just churns the links under the walker's feet, so the
// janitor uses this to hold off for a tick.
func Quiescent(readers ...*ReaderEpoch) bool {
	min := minReaderEpoch(readers...)
	return min == inactive || min >= GlobalEpoch.Load()
}

func minReaderEpoch(rs ...*ReaderEpoch) uint64 {
	min := inactive
	for _, r := range rs {
		if r == nil {
			continue
		}
		v := r.Value()
		if v < min {
			min = v
		}
	}
	return min
}
