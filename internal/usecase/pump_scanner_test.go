package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"EarlyPump/internal/domain/models"
	"EarlyPump/internal/service/cache"
	"EarlyPump/internal/service/feed"
	"EarlyPump/pkg/logger"
)

type memPublisher struct {
	mu   sync.Mutex
	sent []models.PumpSignal
	err  error
}

func (p *memPublisher) PublishSignals(_ context.Context, s []models.PumpSignal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, s...)
	return nil
}

func (p *memPublisher) Close() error { return nil }

var pumpTickers = []models.Ticker{
	{Symbol: "ABCUSDT", LastPrice: "1.5", PriceChangePercent: "3.2", QuoteVolume: "750000"},
	{Symbol: "DEFUSDT", LastPrice: "1", PriceChangePercent: "9", QuoteVolume: "750000"},
}

func TestRunOnceCachesAndPublishes(t *testing.T) {
	c := cache.NewTTLCache()
	pub := &memPublisher{}
	s := NewPumpScanner(newTestDetector(pumpTickers...), c, pub, nil, nil, logger.Nop(), ScannerConfig{FeedTTL: time.Minute})

	f, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(f.Signals) != 1 || f.Signals[0].Coin != "ABCUSDT" {
		t.Fatalf("unexpected feed %+v", f)
	}
	if len(pub.sent) != 1 {
		t.Fatalf("expected one published signal, got %d", len(pub.sent))
	}

	b, hit, err := s.Feed(context.Background())
	if err != nil || !hit {
		t.Fatalf("expected cache hit, hit=%v err=%v", hit, err)
	}
	var doc struct {
		Signals []map[string]interface{} `json:"signals"`
	}
	if err := json.Unmarshal(b, &doc); err != nil || len(doc.Signals) != 1 || doc.Signals[0]["coin"] != "ABCUSDT" {
		t.Fatalf("unexpected cached document %s (%v)", b, err)
	}
}

func TestFeedScansOnMiss(t *testing.T) {
	s := NewPumpScanner(newTestDetector(pumpTickers...), cache.NewTTLCache(), nil, nil, nil, nil, ScannerConfig{})

	b, hit, err := s.Feed(context.Background())
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if hit {
		t.Fatalf("first read should miss")
	}
	if _, err := feed.Decode(context.Background(), b); err != nil {
		t.Fatalf("served document is not a valid feed: %v", err)
	}
}

func TestRunOnceSkipsWhileScanning(t *testing.T) {
	s := NewPumpScanner(newTestDetector(), cache.NewTTLCache(), nil, nil, nil, nil, ScannerConfig{})
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	if _, err := s.RunOnce(context.Background()); !errors.Is(err, ErrScanInProgress) {
		t.Fatalf("expected ErrScanInProgress, got %v", err)
	}
}

func TestRunOncePublishErrorIsNotFatal(t *testing.T) {
	pub := &memPublisher{err: errors.New("broker down")}
	s := NewPumpScanner(newTestDetector(pumpTickers...), cache.NewTTLCache(), pub, nil, nil, nil, ScannerConfig{})

	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("publish errors must not fail the scan: %v", err)
	}
}

func TestRunOnceRefreshesRegion(t *testing.T) {
	c := cache.NewTTLCache()
	var s *PumpScanner
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _, err := s.Feed(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write(b)
	}))
	defer ts.Close()

	region := &recordingRegion{}
	renderer := newRenderer(ts.URL, region)
	s = NewPumpScanner(newTestDetector(pumpTickers...), c, nil, renderer, nil, nil, ScannerConfig{FeedTTL: time.Minute})

	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	last := region.last(t)
	if last.State != models.RegionSuccess || len(last.Cards) != 1 || last.Cards[0].Coin != "ABCUSDT" {
		t.Fatalf("region not refreshed from own feed: %+v", last)
	}
	if last.Cards[0].VolumeSpike != "750000" || last.Cards[0].Price != "$1.5" {
		t.Fatalf("unexpected card %+v", last.Cards[0])
	}
}

func TestStartStop(t *testing.T) {
	pub := &memPublisher{}
	s := NewPumpScanner(newTestDetector(pumpTickers...), cache.NewTTLCache(), pub, nil, nil, nil, ScannerConfig{Interval: 5 * time.Millisecond})

	s.Start(context.Background())
	deadline := time.Now().Add(time.Second)
	for {
		pub.mu.Lock()
		n := len(pub.sent)
		pub.mu.Unlock()
		if n >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	s.Stop()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.sent) < 2 {
		t.Fatalf("expected repeated scans, got %d signals", len(pub.sent))
	}
}
