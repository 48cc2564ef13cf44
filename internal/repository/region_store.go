package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"EarlyPump/internal/domain/models"
	drepo "EarlyPump/internal/domain/repository"
	"EarlyPump/internal/service/cache"
)

// CacheRegion stores a display region as JSON in a BytesCache, so replicas sharing
// Redis show the same content.
type CacheRegion struct {
	cache     cache.BytesCache
	id        string
	retention time.Duration
}

// NewCacheRegion creates a region; zero retention keeps the content until replaced.
func NewCacheRegion(c cache.BytesCache, regionID string, retention time.Duration) *CacheRegion {
	return &CacheRegion{cache: c, id: regionID, retention: retention}
}

func (r *CacheRegion) key() string { return "region:" + r.id }

func (r *CacheRegion) Replace(ctx context.Context, content models.RegionContent) error {
	content.Region = r.id
	b, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode region: %w", err)
	}
	if err := r.cache.SetBytes(ctx, r.key(), b, r.retention); err != nil {
		return fmt.Errorf("store region %s: %w", r.id, err)
	}
	return nil
}

// Content returns the last written content, or idle content when nothing was written.
func (r *CacheRegion) Content(ctx context.Context) (models.RegionContent, error) {
	b, ok, err := r.cache.GetBytes(ctx, r.key())
	if err != nil {
		return models.RegionContent{}, fmt.Errorf("load region %s: %w", r.id, err)
	}
	if !ok {
		return models.IdleContent(r.id), nil
	}
	var c models.RegionContent
	if err := json.Unmarshal(b, &c); err != nil {
		return models.RegionContent{}, fmt.Errorf("decode region %s: %w", r.id, err)
	}
	if c.Cards == nil {
		c.Cards = []models.SignalCard{}
	}
	return c, nil
}

// Broadcaster receives every successful replacement.
type Broadcaster interface {
	Publish(content models.RegionContent)
}

// BroadcastRegion forwards writes to an inner region and then to live viewers.
type BroadcastRegion struct {
	drepo.DisplayRegion
	out Broadcaster
}

func NewBroadcastRegion(inner drepo.DisplayRegion, out Broadcaster) *BroadcastRegion {
	return &BroadcastRegion{DisplayRegion: inner, out: out}
}

func (r *BroadcastRegion) Replace(ctx context.Context, content models.RegionContent) error {
	if err := r.DisplayRegion.Replace(ctx, content); err != nil {
		return err
	}
	if r.out != nil {
		r.out.Publish(content)
	}
	return nil
}

var (
	_ drepo.DisplayRegion = (*CacheRegion)(nil)
	_ drepo.DisplayRegion = (*BroadcastRegion)(nil)
)
