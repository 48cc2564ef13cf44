package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"EarlyPump/internal/domain/models"
	pkgkafka "EarlyPump/pkg/kafka"
)

type memStore struct {
	rows map[string]models.PumpSignal
}

func (m *memStore) Init(context.Context) error { return nil }

func (m *memStore) StoreBatch(_ context.Context, s []models.PumpSignal) error {
	for _, p := range s {
		m.rows[p.ID] = p
	}
	return nil
}

func (m *memStore) Query(context.Context, string, time.Time, int) ([]models.PumpSignal, error) {
	return nil, nil
}

func (m *memStore) Health(context.Context) error { return nil }

func TestKafkaSignalsHandlerIdempotent(t *testing.T) {
	store := &memStore{rows: map[string]models.PumpSignal{}}
	h := NewKafkaSignalsHandler("early_pump.signals", store, nil)

	b, _ := json.Marshal(models.PumpSignal{ID: "a1", Coin: "ABCUSDT", Price: 1.5, Time: time.Now().UTC()})
	for i := 0; i < 2; i++ {
		if err := h.Handle(context.Background(), b); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if len(store.rows) != 1 || store.rows["a1"].Coin != "ABCUSDT" {
		t.Fatalf("unexpected rows %+v", store.rows)
	}
	if h.Topic() != "early_pump.signals" {
		t.Fatalf("unexpected topic %s", h.Topic())
	}
}

func TestKafkaSignalsHandlerRejectsGarbage(t *testing.T) {
	h := NewKafkaSignalsHandler("t", &memStore{rows: map[string]models.PumpSignal{}}, nil)
	if err := h.Handle(context.Background(), []byte("{")); !errors.Is(err, pkgkafka.ErrPermanent) {
		t.Fatalf("expected permanent decode error, got %v", err)
	}
	if err := h.Handle(context.Background(), []byte(`{"coin":"A"}`)); !errors.Is(err, pkgkafka.ErrPermanent) {
		t.Fatalf("expected permanent missing id error, got %v", err)
	}
}

type failingStore struct{ memStore }

func (failingStore) StoreBatch(context.Context, []models.PumpSignal) error {
	return errors.New("clickhouse down")
}

func TestKafkaSignalsHandlerStoreErrorIsRetryable(t *testing.T) {
	h := NewKafkaSignalsHandler("t", &failingStore{}, nil)
	b, _ := json.Marshal(models.PumpSignal{ID: "a1", Coin: "ABCUSDT"})
	err := h.Handle(context.Background(), b)
	if err == nil || errors.Is(err, pkgkafka.ErrPermanent) {
		t.Fatalf("expected retryable store error, got %v", err)
	}
}
