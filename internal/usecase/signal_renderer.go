package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"EarlyPump/internal/domain/models"
	drepo "EarlyPump/internal/domain/repository"
	"EarlyPump/internal/service/feed"
	xhttp "EarlyPump/pkg/http"
	"EarlyPump/pkg/logger"
)

var (
	// ErrSuperseded is returned when a newer refresh started before this one could write.
	ErrSuperseded = errors.New("refresh superseded by a newer one")
	// ErrRegionWrite wraps failures of the display region itself.
	ErrRegionWrite = errors.New("region write failed")
)

// SignalRenderer fetches the signals feed and renders it into a display region.
type SignalRenderer struct {
	source   drepo.FeedSource
	region   drepo.DisplayRegion
	regionID string
	log      *logger.Logger
	metrics  drepo.Metrics
	now      func() time.Time

	gen atomic.Uint64
	mu  sync.Mutex // serializes region writes
}

func NewSignalRenderer(source drepo.FeedSource, region drepo.DisplayRegion, regionID string, log *logger.Logger, metrics drepo.Metrics) *SignalRenderer {
	if log == nil {
		log = logger.Nop()
	}
	return &SignalRenderer{
		source:   source,
		region:   region,
		regionID: regionID,
		log:      log.With(logger.String("region", regionID)),
		metrics:  metrics,
		now:      time.Now,
	}
}

func (r *SignalRenderer) RegionID() string { return r.regionID }

// RefreshSignals shows the loading placeholder, fetches the feed once and replaces the
// region with one card per signal, or with the failure message. The returned content is
// what this call rendered; a non-nil error carries the cause of a failure render, or
// ErrSuperseded when a newer call owns the region.
func (r *SignalRenderer) RefreshSignals(ctx context.Context) (models.RegionContent, error) {
	start := r.now()
	gen := r.gen.Add(1)

	loading := models.LoadingContent(r.regionID)
	if err := r.write(ctx, gen, &loading); err != nil {
		return models.RegionContent{}, err
	}

	content, cause := r.render(ctx, gen)
	err := r.write(ctx, gen, &content)
	if errors.Is(err, ErrSuperseded) {
		r.log.Debug("dropping superseded render", logger.Uint64("generation", gen))
	}
	if r.metrics != nil {
		r.metrics.RecordRefresh(content.State, r.now().Sub(start).Seconds())
	}
	if err != nil {
		return content, err
	}
	return content, cause
}

func (r *SignalRenderer) render(ctx context.Context, gen uint64) (models.RegionContent, error) {
	f, err := r.source.FetchFeed(ctx)
	if err != nil {
		kind := failureKind(err)
		r.log.Error("failed to load signals",
			logger.Uint64("generation", gen),
			logger.String("kind", kind),
			logger.Error(err),
		)
		if r.metrics != nil {
			r.metrics.RecordError("feed_" + kind)
		}
		return models.FailureContent(r.regionID), err
	}
	return models.SuccessContent(r.regionID, f), nil
}

func (r *SignalRenderer) write(ctx context.Context, gen uint64, content *models.RegionContent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.gen.Load() != gen {
		return ErrSuperseded
	}
	content.Generation = gen
	content.UpdatedAt = r.now().UTC()
	if err := r.region.Replace(ctx, *content); err != nil {
		if r.metrics != nil {
			r.metrics.RecordError("region_write")
		}
		r.log.Error("region write failed", logger.String("state", string(content.State)), logger.Error(err))
		return fmt.Errorf("%w: %w", ErrRegionWrite, err)
	}
	return nil
}

func failureKind(err error) string {
	var (
		se    *xhttp.StatusError
		shape *feed.ShapeError
	)
	switch {
	case errors.As(err, &se):
		return "status"
	case errors.As(err, &shape):
		return "shape"
	case errors.Is(err, feed.ErrNotJSON):
		return "decode"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "network"
	}
}
