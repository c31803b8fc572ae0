package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sonatura/ytms/internal/models"
	"github.com/sonatura/ytms/internal/shared"
	"github.com/sonatura/ytms/internal/store"
)

// fakeResolver returns a scripted response and counts invocations.
type fakeResolver struct {
	calls   atomic.Int64
	mu      sync.Mutex
	url     string
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeResolver) Resolve(ctx context.Context, videoID string) (*models.StreamResponse, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &models.StreamResponse{
		URL:    f.url,
		Format: models.StreamFormat{Itag: 251, AudioQuality: "AUDIO_QUALITY_HIGH"},
	}, nil
}

func (f *fakeResolver) set(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
	f.err = err
}

func newTestCache(t *testing.T, r Resolver, now *time.Time) (*StreamCache, *store.MemoryStore) {
	t.Helper()

	mem := store.NewMemoryStore()
	c := NewStreamCache(StreamCacheOpts{
		Store:    mem,
		Resolver: r,
		Now:      func() time.Time { return *now },
	})
	return c, mem
}

func TestURL(t *testing.T) {
	t.Run("miss resolves and caches", func(t *testing.T) {
		now := time.Unix(1700000000, 0)
		resolver := &fakeResolver{url: "https://cdn.example/a"}
		c, mem := newTestCache(t, resolver, &now)

		url, err := c.URL(context.Background(), "vid123")
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}

		if url != "https://cdn.example/a" {
			t.Errorf("unexpected url %s", url)
		}

		raw, err := mem.Get(context.Background(), "stream_vid123")
		if err != nil {
			t.Fatalf("expected persisted entry, got %v", err)
		}

		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			t.Fatalf("failed to decode entry: %v", err)
		}

		if e.Timestamp != now.UnixMilli() {
			t.Errorf("expected timestamp %d, got %d", now.UnixMilli(), e.Timestamp)
		}
	})

	t.Run("fresh hit skips resolution", func(t *testing.T) {
		now := time.Unix(1700000000, 0)
		resolver := &fakeResolver{url: "https://cdn.example/a"}
		c, _ := newTestCache(t, resolver, &now)

		if _, err := c.URL(context.Background(), "vid123"); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		now = now.Add(time.Hour)
		resolver.set("https://cdn.example/changed", nil)

		url, err := c.URL(context.Background(), "vid123")
		if err != nil {
			t.Fatalf("expected hit, got %v", err)
		}

		if url != "https://cdn.example/a" {
			t.Errorf("expected cached url, got %s", url)
		}

		if n := resolver.calls.Load(); n != 1 {
			t.Errorf("expected 1 resolution, got %d", n)
		}
	})

	t.Run("expired entry re-resolves", func(t *testing.T) {
		now := time.Unix(1700000000, 0)
		resolver := &fakeResolver{url: "https://cdn.example/a"}
		c, _ := newTestCache(t, resolver, &now)

		if _, err := c.URL(context.Background(), "vid123"); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		now = now.Add(7 * time.Hour)
		resolver.set("https://cdn.example/b", nil)

		url, err := c.URL(context.Background(), "vid123")
		if err != nil {
			t.Fatalf("expected re-resolution, got %v", err)
		}

		if url != "https://cdn.example/b" {
			t.Errorf("expected fresh url, got %s", url)
		}

		if n := resolver.calls.Load(); n != 2 {
			t.Errorf("expected 2 resolutions, got %d", n)
		}
	})

	t.Run("resolution failure surfaces and keeps stale entry", func(t *testing.T) {
		now := time.Unix(1700000000, 0)
		resolver := &fakeResolver{url: "https://cdn.example/a"}
		c, mem := newTestCache(t, resolver, &now)

		if _, err := c.URL(context.Background(), "vid123"); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		now = now.Add(7 * time.Hour)
		resolver.set("", shared.ErrPlaybackBlocked)

		_, err := c.URL(context.Background(), "vid123")
		if !errors.Is(err, shared.ErrPlaybackBlocked) {
			t.Fatalf("expected ErrPlaybackBlocked, got %v", err)
		}

		raw, err := mem.Get(context.Background(), "stream_vid123")
		if err != nil {
			t.Fatalf("stale entry must survive a failed refresh: %v", err)
		}

		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			t.Fatalf("failed to decode entry: %v", err)
		}

		if e.URL != "https://cdn.example/a" {
			t.Errorf("stale entry overwritten, got %s", e.URL)
		}
	})

	t.Run("corrupt entry treated as miss", func(t *testing.T) {
		now := time.Unix(1700000000, 0)
		resolver := &fakeResolver{url: "https://cdn.example/a"}
		c, mem := newTestCache(t, resolver, &now)

		if err := mem.Set(context.Background(), "stream_vid123", []byte("{not json")); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		url, err := c.URL(context.Background(), "vid123")
		if err != nil {
			t.Fatalf("expected resolution, got %v", err)
		}

		if url != "https://cdn.example/a" {
			t.Errorf("unexpected url %s", url)
		}
	})

	t.Run("concurrent misses share one resolution", func(t *testing.T) {
		now := time.Unix(1700000000, 0)
		resolver := &fakeResolver{
			url:     "https://cdn.example/a",
			started: make(chan struct{}, 1),
			release: make(chan struct{}),
		}
		c, _ := newTestCache(t, resolver, &now)

		results := make(chan string, 2)
		for range 2 {
			go func() {
				url, err := c.URL(context.Background(), "vid123")
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				results <- url
			}()
		}

		<-resolver.started
		close(resolver.release)

		for range 2 {
			if url := <-results; url != "https://cdn.example/a" {
				t.Errorf("unexpected url %s", url)
			}
		}

		if n := resolver.calls.Load(); n != 1 {
			t.Errorf("expected a single shared resolution, got %d", n)
		}
	})

	t.Run("store reads and writes carry the caller's context", func(t *testing.T) {
		now := time.Unix(1700000000, 0)
		resolver := &fakeResolver{url: "https://cdn.example/a"}
		rec := &recordingStore{MemoryStore: store.NewMemoryStore()}
		c := NewStreamCache(StreamCacheOpts{
			Store:    rec,
			Resolver: resolver,
			Now:      func() time.Time { return now },
		})

		ctx := context.WithValue(context.Background(), ctxMarker{}, "caller")
		if _, err := c.URL(ctx, "vid123"); err != nil {
			t.Fatalf("expected success, got %v", err)
		}

		rec.mu.Lock()
		defer rec.mu.Unlock()
		if len(rec.seen) == 0 {
			t.Fatal("expected storage calls")
		}
		for i, v := range rec.seen {
			if v != "caller" {
				t.Errorf("storage call %d lost the caller's context, got %v", i, v)
			}
		}
	})
}

type ctxMarker struct{}

// recordingStore remembers the context value handed to each storage call.
type recordingStore struct {
	*store.MemoryStore
	mu   sync.Mutex
	seen []any
}

func (s *recordingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.record(ctx)
	return s.MemoryStore.Get(ctx, key)
}

func (s *recordingStore) Set(ctx context.Context, key string, value []byte) error {
	s.record(ctx)
	return s.MemoryStore.Set(ctx, key, value)
}

func (s *recordingStore) record(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, ctx.Value(ctxMarker{}))
}

func TestInvalidate(t *testing.T) {
	now := time.Unix(1700000000, 0)
	resolver := &fakeResolver{url: "https://cdn.example/a"}
	c, _ := newTestCache(t, resolver, &now)

	if _, err := c.URL(context.Background(), "vid123"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := c.Invalidate(context.Background(), "vid123"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	resolver.set("https://cdn.example/b", nil)

	url, err := c.URL(context.Background(), "vid123")
	if err != nil {
		t.Fatalf("expected re-resolution, got %v", err)
	}

	if url != "https://cdn.example/b" {
		t.Errorf("expected fresh url, got %s", url)
	}
}
