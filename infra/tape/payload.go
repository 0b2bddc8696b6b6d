package tape

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"

	"matchbook/domain/book"
	"matchbook/feed"
)

// Payloads use protobuf wire format, same as the feed records, so a
// tape can be consumed without this codebase. Submit payloads extend
// the feed record with the order id; trade payloads carry the fill.
const (
	submitFieldSide   = 1
	submitFieldTicker = 2
	submitFieldQty    = 3
	submitFieldPrice  = 4
	submitFieldID     = 5

	tradeFieldTicker = 1
	tradeFieldQty    = 2
	tradeFieldPrice  = 3
	tradeFieldMaker  = 4
	tradeFieldTaker  = 5
)

var ErrBadPayload = errors.New("tape: malformed payload")

func AppendSubmitPayload(dst []byte, id uint64, r feed.Record) []byte {
	dst = feed.AppendRecord(dst, r)
	dst = protowire.AppendTag(dst, submitFieldID, protowire.VarintType)
	dst = protowire.AppendVarint(dst, id)
	return dst
}

func DecodeSubmitPayload(data []byte) (id uint64, r feed.Record, err error) {
	err = eachVarintField(data, func(num protowire.Number, v uint64) error {
		switch num {
		case submitFieldSide:
			if v > 1 {
				return ErrBadPayload
			}
			r.Side = book.Side(v)
		case submitFieldTicker:
			if v > uint64(^uint16(0)) {
				return ErrBadPayload
			}
			r.Ticker = uint16(v)
		case submitFieldQty:
			r.Qty = int64(v)
		case submitFieldPrice:
			r.Price = int64(v)
		case submitFieldID:
			id = v
		}
		return nil
	})
	if err != nil {
		return 0, feed.Record{}, err
	}
	return id, r, nil
}

func AppendTradePayload(dst []byte, tr book.Trade) []byte {
	dst = protowire.AppendTag(dst, tradeFieldTicker, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(tr.Ticker))
	dst = protowire.AppendTag(dst, tradeFieldQty, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(tr.Qty))
	dst = protowire.AppendTag(dst, tradeFieldPrice, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(tr.Price))
	dst = protowire.AppendTag(dst, tradeFieldMaker, protowire.VarintType)
	dst = protowire.AppendVarint(dst, tr.MakerID)
	dst = protowire.AppendTag(dst, tradeFieldTaker, protowire.VarintType)
	dst = protowire.AppendVarint(dst, tr.TakerID)
	return dst
}

func DecodeTradePayload(data []byte) (book.Trade, error) {
	var tr book.Trade
	err := eachVarintField(data, func(num protowire.Number, v uint64) error {
		switch num {
		case tradeFieldTicker:
			if v > uint64(^uint16(0)) {
				return ErrBadPayload
			}
			tr.Ticker = uint16(v)
		case tradeFieldQty:
			tr.Qty = int64(v)
		case tradeFieldPrice:
			tr.Price = int64(v)
		case tradeFieldMaker:
			tr.MakerID = v
		case tradeFieldTaker:
			tr.TakerID = v
		}
		return nil
	})
	if err != nil {
		return book.Trade{}, err
	}
	return tr, nil
}

// eachVarintField walks a wire-encoded message, handing varint fields
// to fn and skipping everything else.
func eachVarintField(data []byte, fn func(num protowire.Number, v uint64) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ErrBadPayload
		}
		data = data[n:]

		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return ErrBadPayload
			}
			data = data[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return ErrBadPayload
		}
		data = data[n:]

		if err := fn(num, v); err != nil {
			return err
		}
	}
	return nil
}
