package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"matchbook/domain/book"
)

// CSVSource reads order records from a header-mapped CSV dataset.
// Expected columns: order_type, ticker, quantity, price, matched by
// name case-insensitively. Malformed rows are logged and skipped so
// one bad line cannot abort a bulk load.
type CSVSource struct {
	Path string
	Log  *zap.Logger

	Skipped int // malformed rows dropped by the last Stream call
}

func NewCSVSource(path string, log *zap.Logger) *CSVSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &CSVSource{Path: path, Log: log}
}

func (s *CSVSource) Stream(ctx context.Context, emit func(Record) error) error {
	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return err
	}

	s.Skipped = 0
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		line++
		if err != nil {
			s.Skipped++
			s.Log.Warn("dropping unreadable row",
				zap.Int("line", line), zap.Error(err))
			continue
		}

		rec, err := parseRow(row, cols)
		if err != nil {
			s.Skipped++
			s.Log.Warn("dropping malformed row",
				zap.Int("line", line), zap.Error(err))
			continue
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
}

type columns struct {
	side, ticker, qty, price int
}

func mapColumns(header []string) (columns, error) {
	c := columns{side: -1, ticker: -1, qty: -1, price: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "order_type":
			c.side = i
		case "ticker":
			c.ticker = i
		case "quantity":
			c.qty = i
		case "price":
			c.price = i
		}
	}
	if c.side < 0 || c.ticker < 0 || c.qty < 0 || c.price < 0 {
		return c, fmt.Errorf("%w: header %v is missing a required column",
			ErrBadRecord, header)
	}
	return c, nil
}

func parseRow(row []string, c columns) (Record, error) {
	if n := len(row); c.side >= n || c.ticker >= n || c.qty >= n || c.price >= n {
		return Record{}, fmt.Errorf("%w: short row", ErrBadRecord)
	}

	var rec Record
	switch strings.ToUpper(strings.TrimSpace(row[c.side])) {
	case "BUY":
		rec.Side = book.Buy
	case "SELL":
		rec.Side = book.Sell
	default:
		return Record{}, fmt.Errorf("%w: order_type %q", ErrBadRecord, row[c.side])
	}

	ticker, err := strconv.ParseUint(strings.TrimSpace(row[c.ticker]), 10, 16)
	if err != nil {
		return Record{}, fmt.Errorf("%w: ticker %q", ErrBadRecord, row[c.ticker])
	}
	rec.Ticker = uint16(ticker)

	rec.Qty, err = strconv.ParseInt(strings.TrimSpace(row[c.qty]), 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: quantity %q", ErrBadRecord, row[c.qty])
	}
	rec.Price, err = strconv.ParseInt(strings.TrimSpace(row[c.price]), 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: price %q", ErrBadRecord, row[c.price])
	}
	return rec, nil
}
