package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"EarlyPump/internal/domain/models"
	drepo "EarlyPump/internal/domain/repository"
	"EarlyPump/internal/service/cache"
	"EarlyPump/pkg/logger"
)

// FeedCacheKey holds the encoded {"signals":[...]} document of the last scan.
const FeedCacheKey = "feed:early-pump"

// ErrScanInProgress is returned by RunOnce when another scan holds the lock.
var ErrScanInProgress = errors.New("scan already in progress")

type ScannerConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	FeedTTL  time.Duration
}

// PumpScanner runs the detector periodically, caches the feed, publishes the signals
// and optionally re-renders the display region. Scans never overlap.
type PumpScanner struct {
	detector  *PumpDetector
	cache     cache.BytesCache
	publisher drepo.SignalPublisher
	renderer  *SignalRenderer
	metrics   drepo.Metrics
	log       *logger.Logger
	cfg       ScannerConfig

	scanMu  sync.Mutex
	started atomic.Bool
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewPumpScanner builds a scanner; publisher and renderer may be nil.
func NewPumpScanner(detector *PumpDetector, c cache.BytesCache, publisher drepo.SignalPublisher, renderer *SignalRenderer, metrics drepo.Metrics, log *logger.Logger, cfg ScannerConfig) *PumpScanner {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &PumpScanner{
		detector:  detector,
		cache:     c,
		publisher: publisher,
		renderer:  renderer,
		metrics:   metrics,
		log:       log,
		cfg:       cfg,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start scans immediately and then every interval until Stop or ctx is done.
func (s *PumpScanner) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(s.done)
		t := time.NewTicker(s.cfg.Interval)
		defer t.Stop()
		for {
			if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrScanInProgress) {
				s.log.Warn("scan failed", logger.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-t.C:
			}
		}
	}()
	s.log.Info("pump scanner started", logger.Duration("interval_ms", s.cfg.Interval))
}

// Stop ends the loop and waits for the running scan to finish.
func (s *PumpScanner) Stop() {
	s.once.Do(func() { close(s.stop) })
	if s.started.Load() {
		<-s.done
	}
}

// RunOnce performs a full scan cycle, including the region refresh.
func (s *PumpScanner) RunOnce(ctx context.Context) (models.PumpFeed, error) {
	if !s.scanMu.TryLock() {
		return models.PumpFeed{}, ErrScanInProgress
	}
	f, _, err := s.scan(ctx)
	s.scanMu.Unlock()
	if err != nil {
		return models.PumpFeed{}, err
	}

	if s.renderer != nil {
		// the failure is already on the region and in the log
		_, _ = s.renderer.RefreshSignals(ctx)
	}
	return f, nil
}

// Feed returns the cached feed document, scanning when the cache is empty.
func (s *PumpScanner) Feed(ctx context.Context) (b []byte, hit bool, err error) {
	if b, ok := s.cached(ctx); ok {
		return b, true, nil
	}

	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	// a scan may have filled the cache while we waited
	if b, ok := s.cached(ctx); ok {
		return b, true, nil
	}
	_, b, err = s.scan(ctx)
	return b, false, err
}

func (s *PumpScanner) cached(ctx context.Context) ([]byte, bool) {
	b, ok, err := s.cache.GetBytes(ctx, FeedCacheKey)
	if err != nil {
		s.log.Warn("feed cache read failed", logger.Error(err))
		return nil, false
	}
	return b, ok
}

// scan must be called with scanMu held.
func (s *PumpScanner) scan(ctx context.Context) (models.PumpFeed, []byte, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()

	signals, err := s.detector.Detect(ctx)
	if err != nil {
		s.recordError("scan_detect")
		return models.PumpFeed{}, nil, err
	}
	f := models.PumpFeed{Signals: signals, GeneratedAt: s.detector.now().UTC()}
	b, err := json.Marshal(f)
	if err != nil {
		return models.PumpFeed{}, nil, fmt.Errorf("encode feed: %w", err)
	}
	if err := s.cache.SetBytes(ctx, FeedCacheKey, b, s.cfg.FeedTTL); err != nil {
		s.recordError("scan_cache")
		s.log.Warn("feed cache write failed", logger.Error(err))
	}

	if s.publisher != nil && len(signals) > 0 {
		if err := s.publisher.PublishSignals(ctx, signals); err != nil {
			s.recordError("scan_publish")
			s.log.Error("publish signals failed", logger.Int("signals", len(signals)), logger.Error(err))
		} else if s.metrics != nil {
			s.metrics.RecordPublished(len(signals))
		}
	}

	if s.metrics != nil {
		s.metrics.RecordScan(len(signals), time.Since(start).Seconds())
	}
	s.log.Info("scan complete",
		logger.Int("signals", len(signals)),
		logger.Duration("duration_ms", time.Since(start)),
	)
	return f, b, nil
}

func (s *PumpScanner) recordError(kind string) {
	if s.metrics != nil {
		s.metrics.RecordError(kind)
	}
}
