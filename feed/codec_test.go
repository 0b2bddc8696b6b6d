package feed

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"matchbook/domain/book"
)

func TestCodec_Roundtrip(t *testing.T) {
	cases := []Record{
		{Side: book.Buy, Ticker: 0, Qty: 1, Price: 1},
		{Side: book.Sell, Ticker: 1023, Qty: 100, Price: 500},
		{Side: book.Buy, Ticker: 512, Qty: 1 << 40, Price: 1 << 40},
	}
	for _, want := range cases {
		got, err := DecodeRecord(EncodeRecord(want))
		if err != nil {
			t.Fatalf("decode %+v: %v", want, err)
		}
		if got != want {
			t.Fatalf("roundtrip mismatch: got %+v want %+v", got, want)
		}
	}
}

func TestCodec_RejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{
		{0xff},
		{0x08}, // tag with no value
	} {
		if _, err := DecodeRecord(data); !errors.Is(err, ErrBadRecord) {
			t.Fatalf("data % x: expected ErrBadRecord, got %v", data, err)
		}
	}
}

func TestCodec_RejectsBadSide(t *testing.T) {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldSide, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 7)
	if _, err := DecodeRecord(buf); !errors.Is(err, ErrBadRecord) {
		t.Fatalf("expected ErrBadRecord for side=7, got %v", err)
	}
}

func TestCodec_SkipsUnknownFields(t *testing.T) {
	buf := EncodeRecord(Record{Side: book.Sell, Ticker: 7, Qty: 3, Price: 9})
	buf = protowire.AppendTag(buf, 99, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte("future"))

	got, err := DecodeRecord(buf)
	if err != nil {
		t.Fatalf("decode with unknown field: %v", err)
	}
	want := Record{Side: book.Sell, Ticker: 7, Qty: 3, Price: 9}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}
