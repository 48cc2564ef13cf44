package feed_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"EarlyPump/internal/service/feed"
	xhttp "EarlyPump/pkg/http"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method %s", r.Method)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestFetchFeed(t *testing.T) {
	ts := serve(t, http.StatusOK, `{"signals":[
		{"coin":"ABC","price":1.5,"change":3.2,"volume":"2.1x"},
		{"coin":"XYZ","price":0.01,"change":-1,"volume":812345}
	]}`)

	got, err := feed.NewClient(ts.URL, time.Second).FetchFeed(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got.Signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(got.Signals))
	}
	if got.Signals[0].Coin != "ABC" || got.Signals[0].Volume != "2.1x" {
		t.Fatalf("unexpected first signal %+v", got.Signals[0])
	}
	if got.Signals[1].Volume != "812345" || got.Signals[1].Change != -1 {
		t.Fatalf("unexpected second signal %+v", got.Signals[1])
	}
}

func TestFetchFeedEmpty(t *testing.T) {
	ts := serve(t, http.StatusOK, `{"signals":[]}`)

	got, err := feed.NewClient(ts.URL, 0).FetchFeed(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Signals == nil || len(got.Signals) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", got.Signals)
	}
}

func TestFetchFeedNon2xx(t *testing.T) {
	ts := serve(t, http.StatusInternalServerError, `{"signals":[]}`)

	_, err := feed.NewClient(ts.URL, time.Second).FetchFeed(context.Background())
	var se *xhttp.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestDecodeShapes(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		shape bool
		field string
	}{
		{name: "not json", body: `<html>oops</html>`},
		{name: "array document", body: `[1,2]`, shape: true, field: "$"},
		{name: "missing signals", body: `{"data":[]}`, shape: true, field: "signals"},
		{name: "null signals", body: `{"signals":null}`, shape: true, field: "signals"},
		{name: "signals object", body: `{"signals":{"coin":"A"}}`, shape: true, field: "signals"},
		{name: "missing coin", body: `{"signals":[{"price":1,"change":2}]}`, shape: true, field: "coin"},
		{name: "empty coin", body: `{"signals":[{"coin":"","price":1,"change":2}]}`, shape: true, field: "coin"},
		{name: "price string", body: `{"signals":[{"coin":"A","price":"1","change":2}]}`, shape: true, field: "price"},
		{name: "missing change", body: `{"signals":[{"coin":"A","price":1}]}`, shape: true, field: "change"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := feed.Decode(context.Background(), []byte(tc.body))
			if err == nil {
				t.Fatalf("expected error")
			}
			var se *feed.ShapeError
			if !tc.shape {
				if !errors.Is(err, feed.ErrNotJSON) {
					t.Fatalf("expected ErrNotJSON, got %v", err)
				}
				return
			}
			if !errors.As(err, &se) {
				t.Fatalf("expected shape error, got %v", err)
			}
			if se.Field != tc.field {
				t.Fatalf("expected field %q, got %q (%v)", tc.field, se.Field, se)
			}
		})
	}
}

func TestDecodeMissingVolume(t *testing.T) {
	got, err := feed.Decode(context.Background(), []byte(`{"signals":[{"coin":"A","price":1,"change":2}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Signals[0].Volume != "" {
		t.Fatalf("expected empty volume, got %q", got.Signals[0].Volume)
	}
}
