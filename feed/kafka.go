package feed

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// MessageReader is the slice of a Kafka consumer the feed needs.
// Satisfied by infra/kafka.Reader.
type MessageReader interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// KafkaSource streams wire-encoded records from a topic until the
// context ends. Undecodable messages are logged and skipped, same
// policy as the CSV loader.
type KafkaSource struct {
	Reader MessageReader
	Log    *zap.Logger
}

func NewKafkaSource(r MessageReader, log *zap.Logger) *KafkaSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaSource{Reader: r, Log: log}
}

func (s *KafkaSource) Stream(ctx context.Context, emit func(Record) error) error {
	for {
		val, err := s.Reader.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return err
		}

		rec, err := DecodeRecord(val)
		if err != nil {
			s.Log.Warn("dropping undecodable message", zap.Error(err))
			continue
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
}
