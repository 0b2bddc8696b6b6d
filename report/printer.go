// Package report renders book snapshots and run summaries for the
// console. Read side only; it never touches the engine's write path.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"matchbook/domain/book"
	"matchbook/service"
)

type Printer struct {
	W io.Writer
}

// PrintBook renders a snapshot as a table, one row per live order.
func (p *Printer) PrintBook(title string, entries []book.Entry) error {
	if _, err := fmt.Fprintf(p.W, "\n%s\n", title); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(p.W, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tTICKER\tQTY\tPRICE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", e.Side, e.Ticker, e.Qty, e.Price)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(p.W, "live orders: %d\n", len(entries))
	return err
}

// PrintStats renders one dispatcher run's tallies.
func (p *Printer) PrintStats(title string, st service.Stats) error {
	_, err := fmt.Fprintf(p.W,
		"\n%s\n  submitted: %d\n  rejected:  %d\n  matched:   %d\n  trades:    %d\n  volume:    %d\n",
		title, st.Submitted, st.Rejected, st.Matched, st.Trades, st.Volume)
	return err
}
