package feed

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"

	"matchbook/domain/book"
)

// Records travel as protobuf wire format without generated types.
// The field numbers are the contract shared by the tape and the
// Kafka feed; renumbering breaks both.
const (
	fieldSide   = 1
	fieldTicker = 2
	fieldQty    = 3
	fieldPrice  = 4
)

var ErrBadRecord = errors.New("feed: malformed record")

// AppendRecord appends the wire encoding of r to dst.
func AppendRecord(dst []byte, r Record) []byte {
	dst = protowire.AppendTag(dst, fieldSide, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(r.Side))
	dst = protowire.AppendTag(dst, fieldTicker, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(r.Ticker))
	dst = protowire.AppendTag(dst, fieldQty, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(r.Qty))
	dst = protowire.AppendTag(dst, fieldPrice, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(r.Price))
	return dst
}

// EncodeRecord is AppendRecord on a fresh buffer.
func EncodeRecord(r Record) []byte {
	return AppendRecord(make([]byte, 0, 24), r)
}

// DecodeRecord parses a wire-encoded record. Unknown fields are
// skipped so the format can grow.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Record{}, ErrBadRecord
		}
		data = data[n:]

		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Record{}, ErrBadRecord
			}
			data = data[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return Record{}, ErrBadRecord
		}
		data = data[n:]

		switch num {
		case fieldSide:
			if v > 1 {
				return Record{}, ErrBadRecord
			}
			r.Side = book.Side(v)
		case fieldTicker:
			if v > uint64(^uint16(0)) {
				return Record{}, ErrBadRecord
			}
			r.Ticker = uint16(v)
		case fieldQty:
			r.Qty = int64(v)
		case fieldPrice:
			r.Price = int64(v)
		}
	}
	return r, nil
}
