package tape

import "time"

type RecordType uint8

const (
	RecordSubmit RecordType = iota
	RecordTrade
	RecordReset
)

func (t RecordType) String() string {
	switch t {
	case RecordSubmit:
		return "SUBMIT"
	case RecordTrade:
		return "TRADE"
	case RecordReset:
		return "RESET"
	default:
		return "UNKNOWN"
	}
}

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
