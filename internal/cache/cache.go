// Package cache persists resolved stream URLs so repeat playback of a video
// skips renegotiation until the provider-signed URL nears expiry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sonatura/ytms/internal/models"
	"github.com/sonatura/ytms/internal/shared"
	"github.com/sonatura/ytms/internal/store"
	"golang.org/x/sync/singleflight"
)

const (
	keyPrefix  = "stream_"
	defaultTTL = 6 * time.Hour
)

// Resolver is the upstream the cache falls back to on a miss.
type Resolver interface {
	Resolve(ctx context.Context, videoID string) (*models.StreamResponse, error)
}

// entry is the persisted record. Timestamp is unix milliseconds at write
// time; freshness is judged against it, not against the provider's own
// expiry hints.
type entry struct {
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// StreamCache is a read-through cache over a [Resolver].
//
// Storage failures never fail a lookup; a broken store degrades the cache to
// a pass-through. Resolution failures always surface to the caller and never
// overwrite a previously cached entry.
type StreamCache struct {
	store    store.Store
	resolver Resolver
	ttl      time.Duration
	logger   *log.Logger
	now      func() time.Time
	sf       singleflight.Group
}

// StreamCacheOpts contains configuration options for creating a
// [StreamCache].
type StreamCacheOpts struct {
	Store    store.Store
	Resolver Resolver
	// TTL overrides the default of 6 hours.
	TTL    time.Duration
	Logger *log.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewStreamCache creates a StreamCache with the provided configuration.
func NewStreamCache(opts StreamCacheOpts) *StreamCache {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &StreamCache{
		store:    opts.Store,
		resolver: opts.Resolver,
		ttl:      opts.TTL,
		logger:   shared.WithLogger(opts.Logger, "component", "cache"),
		now:      opts.Now,
	}
}

// URL returns a playable stream URL for a video id, resolving and caching on
// a miss. Concurrent misses for the same id share one resolution.
func (c *StreamCache) URL(ctx context.Context, videoID string) (string, error) {
	if url, ok := c.lookup(ctx, videoID); ok {
		c.logger.Debugf("cache hit for %s", videoID)
		return url, nil
	}

	ch := c.sf.DoChan(videoID, func() (any, error) {
		// A waiter that lost the race to a just-finished writer skips
		// the network entirely.
		if url, ok := c.lookup(ctx, videoID); ok {
			return url, nil
		}

		resp, err := c.resolver.Resolve(ctx, videoID)
		if err != nil {
			return "", err
		}

		c.write(ctx, videoID, resp.URL)
		return resp.URL, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			c.sf.Forget(videoID)
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Invalidate drops the cached entry for one video id.
func (c *StreamCache) Invalidate(ctx context.Context, videoID string) error {
	if err := c.store.Remove(ctx, keyPrefix+videoID); err != nil {
		return fmt.Errorf("failed to invalidate cache entry: %w", err)
	}
	return nil
}

// lookup reads and freshness-checks the persisted entry. Any storage or
// decode failure is a miss.
func (c *StreamCache) lookup(ctx context.Context, videoID string) (string, bool) {
	raw, err := c.store.Get(ctx, keyPrefix+videoID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			c.logger.Warnf("cache read failed for %s: %v", videoID, err)
		}
		return "", false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warnf("discarding corrupt cache entry for %s: %v", videoID, err)
		return "", false
	}

	age := c.now().UnixMilli() - e.Timestamp
	if age >= c.ttl.Milliseconds() {
		c.logger.Debugf("cache entry for %s expired", videoID)
		return "", false
	}
	return e.URL, true
}

// write persists a fresh entry, logging and swallowing storage errors.
func (c *StreamCache) write(ctx context.Context, videoID, url string) {
	raw, err := json.Marshal(entry{URL: url, Timestamp: c.now().UnixMilli()})
	if err != nil {
		c.logger.Warnf("failed to encode cache entry for %s: %v", videoID, err)
		return
	}
	if err := c.store.Set(ctx, keyPrefix+videoID, raw); err != nil {
		c.logger.Warnf("failed to persist cache entry for %s: %v", videoID, err)
	}
}
