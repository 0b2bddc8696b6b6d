package service

import (
	"errors"
	"testing"
	"time"

	"matchbook/domain/book"
	"matchbook/feed"
	"matchbook/infra/memory"
	"matchbook/infra/outbox"
	"matchbook/infra/sequence"
	"matchbook/infra/tape"
)

type testEnv struct {
	eng    *Engine
	book   *book.Book
	tape   *tape.Tape
	outbox *outbox.Outbox
	tdir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tdir := t.TempDir()
	tp, err := tape.Open(tape.Config{
		Dir:             tdir,
		SegmentSize:     1 << 20,
		SegmentDuration: time.Hour,
	})
	if err != nil {
		t.Fatalf("open tape: %v", err)
	}
	t.Cleanup(func() { tp.Close() })

	ob, err := outbox.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}
	t.Cleanup(func() { ob.Close() })

	b := book.New(memory.NewRetireRing(1 << 8))
	return &testEnv{
		eng:    NewEngine(nil, b, sequence.New(0), tp, ob),
		book:   b,
		tape:   tp,
		outbox: ob,
		tdir:   tdir,
	}
}

func TestEngine_SubmitAndMatch(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.eng.Submit(feed.Record{Side: book.Buy, Ticker: 100, Qty: 50, Price: 200})
	if err != nil {
		t.Fatalf("submit buy: %v", err)
	}
	if res.Matched {
		t.Fatal("buy matched against an empty book")
	}

	res, err = env.eng.Submit(feed.Record{Side: book.Sell, Ticker: 100, Qty: 50, Price: 190})
	if err != nil {
		t.Fatalf("submit sell: %v", err)
	}
	if !res.Matched || len(res.Trades) != 1 {
		t.Fatalf("expected one trade, got %+v", res)
	}
	if tr := res.Trades[0]; tr.Qty != 50 || tr.Price != 200 {
		t.Fatalf("expected 50 @ 200 (resident buy's price), got %+v", tr)
	}

	if entries := env.eng.SnapshotEntries(); len(entries) != 0 {
		t.Fatalf("expected empty book after full fill, got %v", entries)
	}
}

func TestEngine_RejectsInvalid(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.eng.Submit(feed.Record{Side: book.Buy, Ticker: 2000, Qty: 10, Price: 5})
	var verr *book.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if entries := env.eng.SnapshotEntries(); len(entries) != 0 {
		t.Fatalf("rejected order is visible: %v", entries)
	}
}

func TestEngine_TapeRecordsRun(t *testing.T) {
	env := newTestEnv(t)

	mustSubmit(t, env.eng, feed.Record{Side: book.Buy, Ticker: 1, Qty: 10, Price: 100})
	mustSubmit(t, env.eng, feed.Record{Side: book.Sell, Ticker: 1, Qty: 10, Price: 90})
	env.eng.Reset()

	if err := env.tape.Sync(); err != nil {
		t.Fatalf("sync tape: %v", err)
	}

	var submits, trades, resets int
	if _, err := tape.Replay(env.tdir, func(r *tape.Record) error {
		switch r.Type {
		case tape.RecordSubmit:
			submits++
		case tape.RecordTrade:
			trades++
		case tape.RecordReset:
			resets++
		}
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if submits != 2 || trades != 1 || resets != 1 {
		t.Fatalf("tape has submits=%d trades=%d resets=%d, want 2/1/1",
			submits, trades, resets)
	}
}

func TestEngine_OutboxReceivesTrades(t *testing.T) {
	env := newTestEnv(t)

	mustSubmit(t, env.eng, feed.Record{Side: book.Buy, Ticker: 5, Qty: 30, Price: 100})
	mustSubmit(t, env.eng, feed.Record{Side: book.Sell, Ticker: 5, Qty: 30, Price: 100})

	var seen int
	err := env.outbox.ScanByState(outbox.StateNew, func(seq uint64, rec outbox.Record) error {
		tr, err := tape.DecodeTradePayload(rec.Payload)
		if err != nil {
			return err
		}
		if tr.Ticker != 5 || tr.Qty != 30 {
			t.Fatalf("unexpected trade in outbox: %+v", tr)
		}
		seen++
		return nil
	})
	if err != nil {
		t.Fatalf("scan outbox: %v", err)
	}
	if seen != 1 {
		t.Fatalf("expected 1 pending trade, got %d", seen)
	}
}

func TestEngine_SweepSettlesCrossedBook(t *testing.T) {
	env := newTestEnv(t)

	// Insert without matching (straight into the book) so the cross
	// is left standing, the bulk-load shape.
	orders := []*book.Order{
		book.NewOrder(1001, book.Buy, 7, 60, 300),
		book.NewOrder(1002, book.Sell, 7, 40, 250),
	}
	for _, o := range orders {
		if err := env.book.AddOrder(o); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	trades := env.eng.Sweep()
	if len(trades) != 1 || trades[0].Qty != 40 {
		t.Fatalf("expected one 40-share fill, got %+v", trades)
	}

	entries := env.eng.SnapshotEntries()
	if len(entries) != 1 || entries[0].Side != book.Buy || entries[0].Qty != 20 {
		t.Fatalf("expected BUY 20 left live, got %v", entries)
	}
}

func mustSubmit(t *testing.T, eng *Engine, r feed.Record) book.MatchResult {
	t.Helper()
	res, err := eng.Submit(r)
	if err != nil {
		t.Fatalf("submit %+v: %v", r, err)
	}
	return res
}
