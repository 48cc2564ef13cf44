package di

import (
	"context"
	"fmt"
	"time"

	"EarlyPump/internal/domain/repository"
	"EarlyPump/internal/handler/api"
	mid "EarlyPump/internal/middleware"
	internalrepo "EarlyPump/internal/repository"
	"EarlyPump/internal/service/binance"
	"EarlyPump/internal/service/cache"
	"EarlyPump/internal/service/feed"
	"EarlyPump/internal/service/ratelimit"
	"EarlyPump/internal/usecase"
	pkgch "EarlyPump/pkg/clickhouse"
	"EarlyPump/pkg/config"
	xhttp "EarlyPump/pkg/http"
	pkgkafka "EarlyPump/pkg/kafka"
	applogger "EarlyPump/pkg/logger"
	"EarlyPump/pkg/metrics"
	"EarlyPump/pkg/server"
)

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache returns the shared byte cache: Redis when configured, in-process otherwise.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.BytesCache, func(), error) {
	if cfg.Cache.Backend != "redis" {
		return cache.NewTTLCache(), func() {}, nil
	}
	rc, err := cache.NewRedisCache(context.Background(), cache.RedisConfig{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis cache connected", applogger.String("addr", cfg.Cache.Redis.Addr))
	return rc, func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}, nil
}

func ProvideTemplates() (*xhttp.TemplateRenderer, error) {
	return api.NewTemplates()
}

// ProvideRegionHub creates the websocket fan-out for the display region.
func ProvideRegionHub(t *xhttp.TemplateRenderer, l *applogger.Logger, m repository.Metrics) *mid.RegionHub {
	return mid.NewRegionHub(api.FragmentEncoder(t), l, m)
}

// ProvideDisplayRegion stores the region in the cache and broadcasts every write.
func ProvideDisplayRegion(cfg *config.Config, c cache.BytesCache, hub *mid.RegionHub) repository.DisplayRegion {
	store := internalrepo.NewCacheRegion(c, cfg.Renderer.RegionID, cfg.Renderer.RegionRetention)
	return internalrepo.NewBroadcastRegion(store, hub)
}

func ProvideFeedSource(cfg *config.Config) repository.FeedSource {
	return feed.NewClient(cfg.Renderer.FeedURL, cfg.Renderer.Timeout)
}

func ProvideSignalRenderer(cfg *config.Config, src repository.FeedSource, region repository.DisplayRegion, l *applogger.Logger, m repository.Metrics) *usecase.SignalRenderer {
	return usecase.NewSignalRenderer(src, region, cfg.Renderer.RegionID, l, m)
}

func ProvideTickerSource(cfg *config.Config) repository.TickerSource {
	return binance.New(cfg.Binance.BaseURL, cfg.Binance.Timeout)
}

func ProvidePumpDetector(cfg *config.Config, src repository.TickerSource) *usecase.PumpDetector {
	d := cfg.Detector
	return usecase.NewPumpDetector(src, usecase.DetectorConfig{
		QuoteAsset:     d.QuoteAsset,
		MinChange:      d.MinChange,
		MaxChange:      d.MaxChange,
		MinQuoteVolume: d.MinQuoteVolume,
		EntryFactor:    d.EntryFactor,
		TargetFactor:   d.TargetFactor,
		StopFactor:     d.StopFactor,
		Strength:       d.Strength,
	})
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithProducerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSignalPublisher wraps the producer; nil producer means no publishing.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) (repository.SignalPublisher, func()) {
	if producer == nil {
		return nil, func() {}
	}
	pub := internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
	return pub, func() { _ = pub.Close() }
}

// ProvideClickHouseClient connects to ClickHouse and creates the database, or returns nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideSignalStore creates the history table, or returns nil without ClickHouse.
func ProvideSignalStore(ch *pkgch.Client, l *applogger.Logger) (repository.SignalStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHSignalStore(ch, l)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("signal store: %w", err)
	}
	return store, nil
}

// ProvideKafkaConsumer consumes the signals topic into the history store.
// It is nil unless both Kafka and ClickHouse are enabled.
func ProvideKafkaConsumer(cfg *config.Config, store repository.SignalStore, m repository.Metrics, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || store == nil {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewKafkaSignalsHandler(cfg.Kafka.Topic, store, m))
	return consumer, nil
}

// ProvidePumpScanner re-renders the region after every scan when auto refresh is on.
func ProvidePumpScanner(
	cfg *config.Config,
	detector *usecase.PumpDetector,
	c cache.BytesCache,
	pub repository.SignalPublisher,
	renderer *usecase.SignalRenderer,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.PumpScanner {
	if !cfg.Renderer.AutoRefresh {
		renderer = nil
	}
	return usecase.NewPumpScanner(detector, c, pub, renderer, m, l, usecase.ScannerConfig{
		Interval: cfg.Detector.ScanInterval,
		Timeout:  cfg.Detector.ScanTimeout,
		FeedTTL:  cfg.Cache.FeedTTL,
	})
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

// ProvideHTTPHandler groups every route of the service.
func ProvideHTTPHandler(
	renderer *usecase.SignalRenderer,
	region repository.DisplayRegion,
	hub *mid.RegionHub,
	scanner *usecase.PumpScanner,
	store repository.SignalStore,
	rl *ratelimit.Limiter,
	l *applogger.Logger,
) xhttp.Handler {
	return xhttp.Handlers{
		api.NewDashboardHandler(renderer, region, hub, l),
		api.NewFeedHandler(scanner, store, rl, l),
	}
}

// ProvideHTTPServer builds the echo server; /healthz checks the history store and Redis when they are in use.
func ProvideHTTPServer(
	cfg *config.Config,
	h xhttp.Handler,
	t *xhttp.TemplateRenderer,
	store repository.SignalStore,
	c cache.BytesCache,
	l *applogger.Logger,
) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(metricsPath, cfg.Server.SlowThreshold),
		xhttp.WithLogger(l),
		xhttp.WithRenderer(t),
	}
	if store != nil {
		opts = append(opts, xhttp.WithHealthCheck("clickhouse", store.Health))
	}
	if rc, ok := c.(*cache.RedisCache); ok {
		opts = append(opts, xhttp.WithHealthCheck("redis", rc.Health))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp creates the application with every dependency.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	hub *mid.RegionHub,
	scanner *usecase.PumpScanner,
	renderer *usecase.SignalRenderer,
	consumer *pkgkafka.Consumer,
) *server.App {
	return server.New(cfg, l, httpServer, hub, scanner, renderer, consumer)
}
