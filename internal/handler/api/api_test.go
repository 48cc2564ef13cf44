package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"EarlyPump/internal/domain/models"
	mid "EarlyPump/internal/middleware"
	"EarlyPump/internal/repository"
	"EarlyPump/internal/service/binance"
	"EarlyPump/internal/service/cache"
	"EarlyPump/internal/service/feed"
	"EarlyPump/internal/service/ratelimit"
	"EarlyPump/internal/usecase"
	"EarlyPump/pkg/logger"

	"github.com/labstack/echo/v4"
)

func binanceStub(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Write([]byte(`[
			{"symbol":"ABCUSDT","lastPrice":"0.015","priceChangePercent":"3.5","quoteVolume":"900000"},
			{"symbol":"ZZZUSDT","lastPrice":"2","priceChangePercent":"12","quoteVolume":"900000"}
		]`))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newScanner(url string) *usecase.PumpScanner {
	d := usecase.NewPumpDetector(binance.New(url, time.Second), usecase.DefaultDetectorConfig())
	return usecase.NewPumpScanner(d, cache.NewTTLCache(), nil, nil, nil, logger.Nop(), usecase.ScannerConfig{FeedTTL: time.Minute})
}

func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestFeedServesBareDocumentAndCaches(t *testing.T) {
	var hits int32
	e := echo.New()
	NewFeedHandler(newScanner(binanceStub(t, &hits).URL), nil, nil, nil).RegisterRoutes(e)

	for i := 0; i < 2; i++ {
		rec := serve(e, http.MethodGet, "/api/early-pump")
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
		}
		f, err := feed.Decode(context.Background(), rec.Body.Bytes())
		if err != nil {
			t.Fatalf("not a renderable feed: %v", err)
		}
		if len(f.Signals) != 1 || f.Signals[0].Coin != "ABCUSDT" {
			t.Fatalf("unexpected signals %+v", f.Signals)
		}
	}
	if hits != 1 {
		t.Fatalf("expected one upstream call, got %d", hits)
	}
}

func TestFeedRateLimited(t *testing.T) {
	var hits int32
	e := echo.New()
	NewFeedHandler(newScanner(binanceStub(t, &hits).URL), nil, ratelimit.New(1, 0.001), nil).RegisterRoutes(e)

	if rec := serve(e, http.MethodGet, "/api/early-pump"); rec.Code != http.StatusOK {
		t.Fatalf("first call status %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/api/early-pump"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestFeedUpstreamFailure(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer down.Close()

	e := echo.New()
	NewFeedHandler(newScanner(down.URL), nil, nil, nil).RegisterRoutes(e)
	if rec := serve(e, http.MethodGet, "/api/early-pump"); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

type historyStore struct {
	coin  string
	since time.Time
	limit int
}

func (s *historyStore) Init(context.Context) error                            { return nil }
func (s *historyStore) StoreBatch(context.Context, []models.PumpSignal) error { return nil }
func (s *historyStore) Health(context.Context) error                          { return nil }

func (s *historyStore) Query(_ context.Context, coin string, since time.Time, limit int) ([]models.PumpSignal, error) {
	s.coin, s.since, s.limit = coin, since, limit
	return []models.PumpSignal{{ID: "1", Coin: "ABCUSDT"}}, nil
}

func TestHistory(t *testing.T) {
	store := &historyStore{}
	e := echo.New()
	NewFeedHandler(nil, store, nil, nil).RegisterRoutes(e)

	rec := serve(e, http.MethodGet, "/api/early-pump/history?coin=abcusdt&since=1700000000")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if store.coin != "ABCUSDT" || store.limit != 50 || store.since.Unix() != 1700000000 {
		t.Fatalf("unexpected query coin=%q limit=%d since=%v", store.coin, store.limit, store.since)
	}
	var body struct {
		Data struct {
			Rows  []models.PumpSignal `json:"rows"`
			Total int64               `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Data.Total != 1 {
		t.Fatalf("unexpected body %s (%v)", rec.Body.String(), err)
	}

	for _, q := range []string{"limit=501", "coin=ab-c", "since=yesterday"} {
		if rec := serve(e, http.MethodGet, "/api/early-pump/history?"+q); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestHistoryDisabled(t *testing.T) {
	e := echo.New()
	NewFeedHandler(nil, nil, nil, nil).RegisterRoutes(e)
	if rec := serve(e, http.MethodGet, "/api/early-pump/history"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func newDashboard(t *testing.T, feedURL string) (*echo.Echo, *mid.RegionHub) {
	t.Helper()
	tmpl, err := NewTemplates()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	hub := mid.NewRegionHub(FragmentEncoder(tmpl), nil, nil)
	t.Cleanup(hub.Close)
	region := repository.NewBroadcastRegion(repository.NewCacheRegion(cache.NewTTLCache(), "signal-container", 0), hub)
	renderer := usecase.NewSignalRenderer(feed.NewClient(feedURL, time.Second), region, "signal-container", nil, nil)

	e := echo.New()
	e.Renderer = tmpl
	NewDashboardHandler(renderer, region, hub, nil).RegisterRoutes(e)
	return e, hub
}

func TestDashboardRefreshRendersCards(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"signals":[{"coin":"ABC","price":0.015,"change":12.4,"volume":"3.2x"}]}`))
	}))
	defer ts.Close()
	e, _ := newDashboard(t, ts.URL)

	rec := serve(e, http.MethodPost, "/api/refresh")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data models.RegionContent `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data.Cards) != 1 || body.Data.Cards[0].Price != "$0.015" || body.Data.Cards[0].Change != "12.4%" {
		t.Fatalf("unexpected region %+v", body.Data)
	}

	page := serve(e, http.MethodGet, "/")
	html := page.Body.String()
	if page.Code != http.StatusOK || !strings.Contains(html, `id="signal-container"`) {
		t.Fatalf("page missing container: %d %s", page.Code, html)
	}
	for _, want := range []string{`class="signal-card"`, "ABC", "$0.015", "12.4%", "3.2x"} {
		if !strings.Contains(html, want) {
			t.Fatalf("page missing %q", want)
		}
	}
}

func TestDashboardRefreshFailureMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer ts.Close()
	e, _ := newDashboard(t, ts.URL)

	if rec := serve(e, http.MethodPost, "/api/refresh"); rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	rec := serve(e, http.MethodGet, "/api/region")
	if !strings.Contains(rec.Body.String(), "❌ Failed to load signals") {
		t.Fatalf("expected failure message, got %s", rec.Body.String())
	}
	page := serve(e, http.MethodGet, "/")
	if strings.Contains(page.Body.String(), "signal-card\"") || !strings.Contains(page.Body.String(), "❌ Failed to load signals") {
		t.Fatalf("unexpected page %s", page.Body.String())
	}
}
