package usecase

import (
	"context"
	"encoding/json"
	"time"

	"NgxQuant/internal/domain/models"
	drepo "NgxQuant/internal/domain/repository"
	pkgkafka "NgxQuant/pkg/kafka"
)

// KafkaBarsHandler consumes end-of-day bar events and upserts them into the
// analytical store. Re-delivery is harmless: the store keeps the latest row
// per (symbol, date).
type KafkaBarsHandler struct {
	topic   string
	store   drepo.BarSink
	metrics drepo.Metrics
}

func NewKafkaBarsHandler(topic string, store drepo.BarSink, metrics drepo.Metrics) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

func (h *KafkaBarsHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.BarEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	bar, err := ev.Bar()
	if err != nil {
		h.metrics.RecordError("consumer_bad_bar")
		return err
	}

	start := time.Now()
	if ev.Kind == "fx" {
		_, err = h.store.UpsertFxRates(ctx, []models.DailyBar{bar})
	} else {
		_, err = h.store.UpsertBars(ctx, []models.DailyBar{bar})
	}
	h.metrics.RecordLatency("bar_upsert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	if ev.Kind == "fx" {
		h.metrics.RecordBarsUpserted("fx_rates", 1)
	} else {
		h.metrics.RecordBarsUpserted("daily_bars", 1)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)
