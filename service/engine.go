package service

import (
	"sync"

	"go.uber.org/zap"

	"matchbook/domain/book"
	"matchbook/feed"
	"matchbook/infra/memory"
	"matchbook/infra/outbox"
	"matchbook/infra/sequence"
	"matchbook/infra/tape"
)

/*
Engine is the ONLY write entry point into the system.

All coordination between:
- domain (book)
- infra (sequence, tape, outbox, memory)
happens here. Feed sources and the dispatcher call Submit; nothing
else mutates the book.
*/
type Engine struct {
	log    *zap.Logger
	book   *book.Book
	seq    *sequence.Sequencer
	tape   *tape.Tape
	outbox *outbox.Outbox
	reader *memory.ReaderEpoch

	// Tape sequences are drawn under this lock so concurrent workers
	// cannot append out of order; Replay rejects a non-monotonic tape.
	tapeMu  sync.Mutex
	tapeSeq *sequence.Sequencer
}

// NewEngine wires all dependencies. tape and outbox may be nil for a
// bare in-memory engine (tests, benchmarks).
func NewEngine(
	log *zap.Logger,
	b *book.Book,
	seq *sequence.Sequencer,
	t *tape.Tape,
	ob *outbox.Outbox,
) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		log:     log,
		book:    b,
		seq:     seq,
		tape:    t,
		outbox:  ob,
		reader:  memory.NewReaderEpoch(),
		tapeSeq: sequence.New(0),
	}
}

// appendTape writes one record, assigning its sequence atomically
// with the append. Returns the sequence for outbox keying.
func (e *Engine) appendTape(t tape.RecordType, payload []byte) uint64 {
	e.tapeMu.Lock()
	defer e.tapeMu.Unlock()

	seq := e.tapeSeq.Next()
	if err := e.tape.Append(tape.NewRecord(t, seq, payload)); err != nil {
		e.log.Error("tape append failed",
			zap.Stringer("type", t), zap.Uint64("seq", seq), zap.Error(err))
	}
	return seq
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// Submit publishes one order request and immediately matches it.
// The returned error is only ever a validation rejection; tape and
// outbox failures are logged, the fill itself stands.
func (e *Engine) Submit(r feed.Record) (book.MatchResult, error) {
	id := e.seq.Next()
	o := book.NewOrder(id, r.Side, r.Ticker, r.Qty, r.Price)

	// 1️⃣ Publish into the book (validation happens here)
	if err := e.book.AddOrder(o); err != nil {
		return book.MatchResult{}, err
	}

	// 2️⃣ Tape the accepted submission
	if e.tape != nil {
		e.appendTape(tape.RecordSubmit, tape.AppendSubmitPayload(nil, id, r))
	}

	// 3️⃣ Match
	res := e.book.MatchOrder(o)

	// 4️⃣ Record the fills
	for _, tr := range res.Trades {
		e.recordTrade(tr)
	}
	return res, nil
}

// Sweep settles resident crossed orders against each other and
// records the resulting fills. Used after bulk dataset loads.
func (e *Engine) Sweep() []book.Trade {
	trades := e.book.Sweep()
	for _, tr := range trades {
		e.recordTrade(tr)
	}
	return trades
}

// Reset discards the whole book.
func (e *Engine) Reset() {
	if e.tape != nil {
		e.appendTape(tape.RecordReset, nil)
	}
	e.book.Reset()
}

func (e *Engine) recordTrade(tr book.Trade) {
	payload := tape.AppendTradePayload(nil, tr)

	seq := e.seq.Next()
	if e.tape != nil {
		seq = e.appendTape(tape.RecordTrade, payload)
	}
	if e.outbox != nil {
		if err := e.outbox.PutNew(seq, payload); err != nil {
			e.log.Error("outbox put failed", zap.Uint64("seq", seq), zap.Error(err))
		}
	}
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// SnapshotEntries walks the live book inside a reader epoch so the
// janitor holds off on physical pruning while the walk is in flight.
func (e *Engine) SnapshotEntries() []book.Entry {
	e.reader.Enter()
	defer e.reader.Exit()
	return e.book.Snapshot()
}

// Reader exposes the engine's reader epoch for the janitor's
// quiescence check.
func (e *Engine) Reader() *memory.ReaderEpoch {
	return e.reader
}
