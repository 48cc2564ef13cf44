package metrics

import (
	"testing"

	"EarlyPump/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordRefresh(models.RegionSuccess, 0.2)
	r.RecordRefresh(models.RegionFailure, 0.1)
	r.RecordRefresh(models.RegionFailure, 0.1)
	r.RecordScan(4, 1.5)
	r.RecordPublished(4)
	r.RecordError("feed_fetch")

	if got := testutil.ToFloat64(r.refreshTotal.WithLabelValues("failure")); got != 2 {
		t.Fatalf("failure refreshes = %v", got)
	}
	if got := testutil.ToFloat64(r.scanFound); got != 4 {
		t.Fatalf("scan found = %v", got)
	}
	if got := testutil.ToFloat64(r.published); got != 4 {
		t.Fatalf("published = %v", got)
	}
	if got := testutil.ToFloat64(r.errorsTotal.WithLabelValues("feed_fetch")); got != 1 {
		t.Fatalf("errors = %v", got)
	}
}
