package ingest

import (
	"context"

	"NgxQuant/internal/domain/models"
	domrepo "NgxQuant/internal/domain/repository"
	pkgkafka "NgxQuant/pkg/kafka"
)

// KafkaBarSink publishes bar events to the bars topic instead of writing to
// the store. Update sweeps use it when a downstream consumer owns the write
// path. Events are keyed by symbol so per-symbol ordering survives
// partitioning.
type KafkaBarSink struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaBarSink(producer *pkgkafka.Producer, topic string) *KafkaBarSink {
	return &KafkaBarSink{producer: producer, topic: topic}
}

func (s *KafkaBarSink) UpsertBars(ctx context.Context, bars []models.DailyBar) (int, error) {
	return s.publish(ctx, bars, "")
}

func (s *KafkaBarSink) UpsertFxRates(ctx context.Context, rates []models.DailyBar) (int, error) {
	return s.publish(ctx, rates, "fx")
}

func (s *KafkaBarSink) publish(ctx context.Context, bars []models.DailyBar, kind string) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	msgs := make([]pkgkafka.Message, 0, len(bars))
	for _, b := range bars {
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(b.Symbol),
			Value: models.NewBarEvent(b, kind),
		})
	}
	if err := s.producer.PublishBatch(ctx, s.topic, msgs); err != nil {
		return 0, err
	}
	return len(bars), nil
}

func (s *KafkaBarSink) Close() error { return s.producer.Close() }

var _ domrepo.BarSink = (*KafkaBarSink)(nil)
