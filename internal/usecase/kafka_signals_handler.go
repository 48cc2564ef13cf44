package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"EarlyPump/internal/domain/models"
	domrepo "EarlyPump/internal/domain/repository"
	pkgkafka "EarlyPump/pkg/kafka"
)

// KafkaSignalsHandler consumes published pump signals and writes them to the history store.
type KafkaSignalsHandler struct {
	topic   string
	store   domrepo.SignalStore
	metrics domrepo.Metrics
}

func NewKafkaSignalsHandler(topic string, store domrepo.SignalStore, metrics domrepo.Metrics) *KafkaSignalsHandler {
	return &KafkaSignalsHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaSignalsHandler) Topic() string { return h.topic }

// Handle stores one PumpSignal. Redelivery is harmless: rows are keyed by id.
// Payloads that cannot become a signal fail with pkgkafka.ErrPermanent; store errors are retried.
func (h *KafkaSignalsHandler) Handle(ctx context.Context, b []byte) error {
	var s models.PumpSignal
	if err := json.Unmarshal(b, &s); err != nil {
		h.recordError("consumer_unmarshal")
		return fmt.Errorf("decode signal: %w: %w", pkgkafka.ErrPermanent, err)
	}
	if s.ID == "" || s.Coin == "" {
		h.recordError("consumer_invalid")
		return fmt.Errorf("%w: signal without id or coin", pkgkafka.ErrPermanent)
	}

	if err := h.store.StoreBatch(ctx, []models.PumpSignal{s}); err != nil {
		h.recordError("consumer_store")
		return err
	}
	if h.metrics != nil {
		h.metrics.RecordStored(1)
	}
	return nil
}

func (h *KafkaSignalsHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

var _ pkgkafka.MessageHandler = (*KafkaSignalsHandler)(nil)
