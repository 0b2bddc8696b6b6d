// Package broadcaster drains the trade outbox to Kafka. Delivery is
// at-least-once: a trade is marked SENT before the publish attempt
// and ACKED only after the broker confirms it.
package broadcaster

import (
	"context"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"matchbook/infra/outbox"
)

type Broadcaster struct {
	log      *zap.Logger
	outbox   *outbox.Outbox
	producer sarama.SyncProducer
	topic    string
}

// ------------------------------------------------
// CONSTRUCTORS
// ------------------------------------------------

// New wraps an existing producer; tests pass sarama's mock.
func New(
	log *zap.Logger,
	ob *outbox.Outbox,
	producer sarama.SyncProducer,
	topic string,
) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{
		log:      log,
		outbox:   ob,
		producer: producer,
		topic:    topic,
	}
}

// Dial connects a synchronous producer and wraps it.
func Dial(
	log *zap.Logger,
	ob *outbox.Outbox,
	brokers []string,
	topic string,
) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return New(log, ob, producer, topic), nil
}

// ------------------------------------------------
// PUBLISH LOOP
// ------------------------------------------------

func (b *Broadcaster) Run(ctx context.Context, interval time.Duration) {
	b.log.Info("broadcaster started", zap.String("topic", b.topic))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.publishOnce()
		}
	}
}

// publishOnce pushes every NEW trade out, then gives FAILED sends
// another attempt through the same path.
func (b *Broadcaster) publishOnce() {
	b.sendPending(outbox.StateNew)
	b.sendPending(outbox.StateFailed)
}

func (b *Broadcaster) sendPending(state outbox.State) {
	_ = b.outbox.ScanByState(state, func(seq uint64, rec outbox.Record) error {

		// 1️⃣ Mark SENT (bumps the attempt count)
		_ = b.outbox.MarkSent(seq)

		// 2️⃣ Publish to Kafka
		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(strconv.FormatUint(seq, 10)),
			Value: sarama.ByteEncoder(rec.Payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			b.log.Warn("publish failed, will retry",
				zap.Uint64("seq", seq),
				zap.Uint32("attempts", rec.Attempts+1),
				zap.Error(err))
			_ = b.outbox.MarkFailed(seq)
			return nil
		}

		// 3️⃣ Mark ACKED
		_ = b.outbox.MarkAcked(seq)
		return nil
	})
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
