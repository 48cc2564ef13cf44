package usecase

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"EarlyPump/internal/domain/models"
	"EarlyPump/internal/service/feed"
	"EarlyPump/pkg/logger"
	"EarlyPump/pkg/metrics"
)

type recordingRegion struct {
	mu      sync.Mutex
	history []models.RegionContent
}

func (r *recordingRegion) Replace(_ context.Context, c models.RegionContent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, c)
	return nil
}

func (r *recordingRegion) Content(_ context.Context) (models.RegionContent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return models.IdleContent("signal-container"), nil
	}
	return r.history[len(r.history)-1], nil
}

func (r *recordingRegion) last(t *testing.T) models.RegionContent {
	t.Helper()
	c, _ := r.Content(context.Background())
	return c
}

func feedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newRenderer(url string, region *recordingRegion) *SignalRenderer {
	r := NewSignalRenderer(feed.NewClient(url, time.Second), region, "signal-container", logger.Nop(), metrics.Nop{})
	r.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return r
}

func TestRefreshSignalsConcreteCard(t *testing.T) {
	ts := feedServer(t, http.StatusOK, `{"signals":[{"coin":"ABC","price":0.015,"change":12.4,"volume":"3.2x"}]}`)
	region := &recordingRegion{}

	got, err := newRenderer(ts.URL, region).RefreshSignals(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(region.history) != 2 || region.history[0].State != models.RegionLoading || region.history[0].Message != models.LoadingMessage {
		t.Fatalf("expected loading then result, got %+v", region.history)
	}
	if got.State != models.RegionSuccess || len(got.Cards) != 1 {
		t.Fatalf("unexpected content %+v", got)
	}
	want := []string{"Coin: ABC", "Price: $0.015", "Change: 12.4%", "Volume Spike: 3.2x"}
	if lines := region.last(t).Cards[0].Lines(); !reflect.DeepEqual(lines, want) {
		t.Fatalf("expected %v, got %v", want, lines)
	}
}

func TestRefreshSignalsNumericVolume(t *testing.T) {
	ts := feedServer(t, http.StatusOK, `{"signals":[
		{"coin":"AAA","price":1,"change":2,"volume":1e6},
		{"coin":"BBB","price":1,"change":2,"volume":3.20}
	]}`)
	region := &recordingRegion{}

	got, err := newRenderer(ts.URL, region).RefreshSignals(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(got.Cards) != 2 {
		t.Fatalf("expected 2 cards, got %+v", got.Cards)
	}
	for i, want := range []string{"Volume Spike: 1000000", "Volume Spike: 3.2"} {
		if line := got.Cards[i].Lines()[3]; line != want {
			t.Fatalf("card %d: expected %q, got %q", i, want, line)
		}
	}
}

func TestRefreshSignalsKeepsOrder(t *testing.T) {
	ts := feedServer(t, http.StatusOK, `{"signals":[
		{"coin":"ZZZ","price":3,"change":1,"volume":1},
		{"coin":"AAA","price":1,"change":9,"volume":2},
		{"coin":"MMM","price":2,"change":-4,"volume":"1.1x"}
	]}`)
	region := &recordingRegion{}

	if _, err := newRenderer(ts.URL, region).RefreshSignals(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	cards := region.last(t).Cards
	var coins []string
	for _, c := range cards {
		coins = append(coins, c.Coin)
	}
	if !reflect.DeepEqual(coins, []string{"ZZZ", "AAA", "MMM"}) {
		t.Fatalf("order not preserved: %v", coins)
	}
	if cards[2].Change != "-4%" || cards[0].VolumeSpike != "1" {
		t.Fatalf("unexpected formatting %+v", cards)
	}
}

func TestRefreshSignalsEmptyList(t *testing.T) {
	ts := feedServer(t, http.StatusOK, `{"signals":[]}`)
	region := &recordingRegion{}

	got, err := newRenderer(ts.URL, region).RefreshSignals(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got.State != models.RegionSuccess || got.Message != "" || got.Cards == nil || len(got.Cards) != 0 {
		t.Fatalf("expected empty success, got %+v", got)
	}
}

func TestRefreshSignalsFailures(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	cases := []struct {
		name string
		url  func(t *testing.T) string
	}{
		{name: "network", url: func(t *testing.T) string { return closedURL }},
		{name: "not json", url: func(t *testing.T) string { return feedServer(t, http.StatusOK, `not json`).URL }},
		{name: "missing signals", url: func(t *testing.T) string { return feedServer(t, http.StatusOK, `{"data":[]}`).URL }},
		{name: "malformed entry", url: func(t *testing.T) string {
			return feedServer(t, http.StatusOK, `{"signals":[{"price":1,"change":1}]}`).URL
		}},
		{name: "non 2xx", url: func(t *testing.T) string {
			return feedServer(t, http.StatusServiceUnavailable, `{"signals":[]}`).URL
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			region := &recordingRegion{}
			got, err := newRenderer(tc.url(t), region).RefreshSignals(context.Background())
			if err == nil {
				t.Fatalf("expected cause to be returned")
			}
			last := region.last(t)
			if last.State != models.RegionFailure || last.Message != models.FailureMessage || len(last.Cards) != 0 {
				t.Fatalf("expected failure message, got %+v", last)
			}
			if got.Message != "❌ Failed to load signals" {
				t.Fatalf("unexpected message %q", got.Message)
			}
		})
	}
}

func TestRefreshSignalsIdempotent(t *testing.T) {
	ts := feedServer(t, http.StatusOK, `{"signals":[{"coin":"ABC","price":1.5,"change":2,"volume":"x"}]}`)
	region := &recordingRegion{}
	r := newRenderer(ts.URL, region)

	first, err := r.RefreshSignals(context.Background())
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := r.RefreshSignals(context.Background())
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !reflect.DeepEqual(first.Cards, second.Cards) || first.State != second.State {
		t.Fatalf("renders differ: %+v vs %+v", first, second)
	}
	if second.Generation != first.Generation+1 {
		t.Fatalf("unexpected generations %d, %d", first.Generation, second.Generation)
	}
}

type scriptedSource struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (s *scriptedSource) FetchFeed(ctx context.Context) (models.SignalFeed, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()

	if n == 1 {
		close(s.started)
		<-s.release
		return models.SignalFeed{Signals: []models.Signal{{Coin: "OLD", Price: 1, Change: 1}}}, nil
	}
	return models.SignalFeed{Signals: []models.Signal{{Coin: "NEW", Price: 2, Change: 2}}}, nil
}

func TestRefreshSignalsDropsSupersededWrite(t *testing.T) {
	src := &scriptedSource{started: make(chan struct{}), release: make(chan struct{})}
	region := &recordingRegion{}
	r := NewSignalRenderer(src, region, "signal-container", logger.Nop(), nil)

	done := make(chan error, 1)
	go func() {
		_, err := r.RefreshSignals(context.Background())
		done <- err
	}()
	<-src.started

	if _, err := r.RefreshSignals(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	close(src.release)

	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	last := region.last(t)
	if len(last.Cards) != 1 || last.Cards[0].Coin != "NEW" || last.Generation != 2 {
		t.Fatalf("stale render overwrote newer one: %+v", last)
	}
	for _, c := range region.history {
		for _, card := range c.Cards {
			if card.Coin == "OLD" {
				t.Fatalf("superseded cards were written: %+v", region.history)
			}
		}
	}
}
