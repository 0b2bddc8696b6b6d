package report

import (
	"fmt"

	"matchbook/infra/tape"
)

// Summary is the fold of a whole tape: what the run accepted, filled
// and discarded. The book itself is never rebuilt from the tape.
type Summary struct {
	Submits int
	Trades  int
	Resets  int
	Volume  int64
	LastSeq uint64
}

// Summarize replays the tape in dir and folds it into totals.
func Summarize(dir string) (Summary, error) {
	var s Summary
	last, err := tape.Replay(dir, func(r *tape.Record) error {
		switch r.Type {
		case tape.RecordSubmit:
			s.Submits++
		case tape.RecordTrade:
			tr, err := tape.DecodeTradePayload(r.Data)
			if err != nil {
				return err
			}
			s.Trades++
			s.Volume += tr.Qty
		case tape.RecordReset:
			s.Resets++
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	s.LastSeq = last
	return s, nil
}

// PrintSummary renders a tape fold.
func (p *Printer) PrintSummary(s Summary) error {
	_, err := fmt.Fprintf(p.W,
		"\ntape summary\n  submits: %d\n  trades:  %d\n  resets:  %d\n  volume:  %d\n  last seq: %d\n",
		s.Submits, s.Trades, s.Resets, s.Volume, s.LastSeq)
	return err
}
