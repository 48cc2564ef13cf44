package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"EarlyPump/internal/domain/models"
	drepo "EarlyPump/internal/domain/repository"
	pkgch "EarlyPump/pkg/clickhouse"
	pkgkafka "EarlyPump/pkg/kafka"
	applogger "EarlyPump/pkg/logger"
)

const SignalsTable = "early_pump_signals"

// Rows sharing an id collapse on merge; reads use FINAL.
const createSignalsTable = `
CREATE TABLE IF NOT EXISTS %s (
    id        String,
    coin      LowCardinality(String),
    price     Float64,
    change    Float64,
    volume    Float64,
    entry     Float64,
    target    Float64,
    stoploss  Float64,
    strength  LowCardinality(String),
    ts        DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree
ORDER BY (coin, ts, id)`

// CHSignalStore keeps the detected signal history in ClickHouse.
type CHSignalStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHSignalStore(ch *pkgch.Client, l *applogger.Logger) *CHSignalStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHSignalStore{db: ch.DB(), table: SignalsTable, l: l}
}

func (s *CHSignalStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(createSignalsTable, s.table)); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

func (s *CHSignalStore) StoreBatch(ctx context.Context, signals []models.PumpSignal) error {
	if len(signals) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (id, coin, price, change, volume, entry, target, stoploss, strength, ts)", s.table))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, p := range signals {
		if p.ID == "" || p.Coin == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.Coin, p.Price, p.Change, p.Volume,
			p.Entry, p.Target, p.Stoploss, p.Strength, p.Time.UTC(),
		); err != nil {
			return fmt.Errorf("append signal %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		s.l.Error("clickhouse store_signals error",
			applogger.String("table", s.table),
			applogger.Int("rows", len(signals)),
			applogger.Error(err),
		)
		return fmt.Errorf("commit batch: %w", err)
	}
	s.l.Debug("clickhouse store_signals ok",
		applogger.String("table", s.table),
		applogger.Int("rows", len(signals)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// Query returns stored signals newest first. An empty coin matches every coin.
func (s *CHSignalStore) Query(ctx context.Context, coin string, since time.Time, limit int) ([]models.PumpSignal, error) {
	q := fmt.Sprintf(`
        SELECT id, coin, price, change, volume, entry, target, stoploss, strength, ts
        FROM %s FINAL
        WHERE (? = '' OR coin = ?) AND ts >= ?
        ORDER BY ts DESC
        LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, coin, coin, since.UTC(), limit)
	if err != nil {
		s.l.Error("clickhouse query_signals error", applogger.String("coin", coin), applogger.Error(err))
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	out := make([]models.PumpSignal, 0, limit)
	for rows.Next() {
		var p models.PumpSignal
		if err := rows.Scan(&p.ID, &p.Coin, &p.Price, &p.Change, &p.Volume,
			&p.Entry, &p.Target, &p.Stoploss, &p.Strength, &p.Time); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type batchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaPublisher publishes signals keyed by coin so one coin stays ordered.
type KafkaPublisher struct {
	producer batchPublisher
	topic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishSignals(ctx context.Context, signals []models.PumpSignal) error {
	if len(signals) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(signals))
	for i, s := range signals {
		msgs[i] = pkgkafka.Message{Key: []byte(s.Coin), Value: s}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var (
	_ drepo.SignalStore     = (*CHSignalStore)(nil)
	_ drepo.SignalPublisher = (*KafkaPublisher)(nil)
)
