// Package session owns the process-wide catalog client session.
//
// Construction is expensive (the catalog client bootstraps its player
// context over the network), so the manager memoizes one handle for the
// process lifetime and collapses concurrent construction attempts into a
// single flight.
package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	youtube "github.com/kkdai/youtube/v2"
	"github.com/sonatura/ytms/internal/models"
	"github.com/sonatura/ytms/internal/shared"
	"github.com/sonatura/ytms/internal/store"
	"golang.org/x/sync/singleflight"
)

const (
	// sessionKey holds the locally generated visitor id in the durable
	// store.
	sessionKey = "innertube_session"

	defaultTimeout = 60 * time.Second

	flightKey = "session"
)

// Builder constructs a session handle. Injected so tests can substitute
// doubles; the default builder boots a real catalog client.
type Builder func(ctx context.Context) (*Handle, error)

// Manager lazily constructs and memoizes a single [Handle].
type Manager struct {
	build   Builder
	timeout time.Duration
	logger  *log.Logger

	mu     sync.Mutex
	handle *Handle
	sf     singleflight.Group
}

// ManagerOpts contains configuration options for creating a [Manager].
type ManagerOpts struct {
	Store      store.Store
	HTTPClient *http.Client
	Logger     *log.Logger
	// Builder overrides session construction (tests); defaults to the
	// real catalog client bootstrap.
	Builder Builder
	// Timeout bounds one construction attempt; defaults to 60s.
	Timeout time.Duration
}

// NewManager creates a Manager with the provided configuration.
func NewManager(opts ManagerOpts) *Manager {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	logger := shared.WithLogger(opts.Logger, "component", "session")
	if opts.Builder == nil {
		opts.Builder = catalogBuilder(opts.HTTPClient, opts.Store, logger)
	}

	return &Manager{
		build:   opts.Builder,
		timeout: opts.Timeout,
		logger:  logger,
	}
}

// Session returns the memoized handle, or joins/starts a construction
// attempt.
//
// Concurrent callers share one underlying construction. A construction that
// outlives the timeout fails with [shared.ErrTimeout] and is truly
// abandoned: its context is cancelled and a late completion is discarded
// rather than silently memoized. Any failure clears the in-flight marker so
// the next call restarts from scratch; success is permanent for the process
// lifetime.
func (m *Manager) Session(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	if m.handle != nil {
		defer m.mu.Unlock()
		return m.handle, nil
	}
	m.mu.Unlock()

	ch := m.sf.DoChan(flightKey, func() (any, error) {
		m.logger.Info("initializing catalog session")

		buildCtx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		type outcome struct {
			handle *Handle
			err    error
		}
		done := make(chan outcome, 1)
		go func() {
			h, err := m.build(buildCtx)
			done <- outcome{h, err}
		}()

		select {
		case o := <-done:
			if o.err != nil {
				return nil, o.err
			}
			m.mu.Lock()
			m.handle = o.handle
			m.mu.Unlock()
			m.logger.Info("catalog session ready")
			return o.handle, nil
		case <-buildCtx.Done():
			return nil, fmt.Errorf("%w: session construction exceeded %s", shared.ErrTimeout, m.timeout)
		}
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			m.sf.Forget(flightKey)
			m.logger.Errorf("session construction failed: %v", res.Err)
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reset discards the memoized handle and its persisted artifacts. The next
// Session call rebuilds from scratch with a fresh visitor id.
func (m *Manager) Reset(ctx context.Context) {
	m.mu.Lock()
	handle := m.handle
	m.handle = nil
	m.mu.Unlock()
	m.sf.Forget(flightKey)

	if handle != nil {
		handle.reset(ctx)
	}
}

// artifactCache is the durable read/write/delete adapter handed to the
// session so the catalog client's own artifacts (visitor id, player
// version) survive restarts. All failures are best-effort.
type artifactCache struct {
	store  store.Store
	logger *log.Logger
}

func (c *artifactCache) get(ctx context.Context, key string) string {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if err != shared.ErrNotFound {
			c.logger.Warnf("cache get %s: %v", key, err)
		}
		return ""
	}
	return string(data)
}

func (c *artifactCache) set(ctx context.Context, key, value string) {
	if err := c.store.Set(ctx, key, []byte(value)); err != nil {
		c.logger.Warnf("cache set %s: %v", key, err)
	}
}

func (c *artifactCache) remove(ctx context.Context, key string) {
	if err := c.store.Remove(ctx, key); err != nil {
		c.logger.Warnf("cache remove %s: %v", key, err)
	}
}

// catalogBuilder boots the real catalog client: restores (or generates and
// persists) the local visitor id and wires the shared HTTP client in.
func catalogBuilder(httpClient *http.Client, st store.Store, logger *log.Logger) Builder {
	return func(ctx context.Context) (*Handle, error) {
		cache := &artifactCache{store: st, logger: logger}

		visitorID := cache.get(ctx, sessionKey)
		if visitorID == "" {
			visitorID = shared.GenerateID()
			cache.set(ctx, sessionKey, visitorID)
			logger.Debugf("generated local session id %s", visitorID)
		}

		return &Handle{
			yt:        &youtube.Client{HTTPClient: httpClient},
			cache:     cache,
			visitorID: visitorID,
			logger:    logger,
		}, nil
	}
}

// Handle is the opaque connection to the catalog backend. It lives for the
// process lifetime once constructed.
type Handle struct {
	yt        *youtube.Client
	cache     *artifactCache
	visitorID string
	logger    *log.Logger
}

// VisitorID returns the locally generated session id.
func (h *Handle) VisitorID() string {
	return h.visitorID
}

// reset drops the persisted visitor id. Handles built by test doubles carry
// no cache.
func (h *Handle) reset(ctx context.Context) {
	if h.cache == nil {
		return
	}
	h.cache.remove(ctx, sessionKey)
}

// Info fetches a video's metadata through the catalog client.
func (h *Handle) Info(ctx context.Context, videoID string) (*models.VideoInfo, error) {
	video, err := h.yt.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrVideoUnavailable, err)
	}

	thumbnails := make([]models.Thumbnail, 0, len(video.Thumbnails))
	for _, t := range video.Thumbnails {
		thumbnails = append(thumbnails, models.Thumbnail{
			URL:    t.URL,
			Width:  int(t.Width),
			Height: int(t.Height),
		})
	}

	return &models.VideoInfo{
		ID:          videoID,
		Title:       video.Title,
		Author:      video.Author,
		Duration:    int(video.Duration.Seconds()),
		Thumbnails:  thumbnails,
		Description: video.Description,
	}, nil
}

// StreamURL is the direct fetch-and-decipher path: it pulls the format list
// through the catalog client, picks the best audio-only rendition and
// deciphers its URL against the session's active player context.
func (h *Handle) StreamURL(ctx context.Context, videoID string) (*models.StreamResponse, error) {
	video, err := h.yt.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrVideoUnavailable, err)
	}

	best := bestAudioFormat(video.Formats)
	if best == nil {
		return nil, shared.ErrNoAudioFormat
	}

	url, err := h.yt.GetStreamURLContext(ctx, video, best)
	if err != nil || url == "" {
		return nil, fmt.Errorf("%w: decipher failed: %v", shared.ErrNoStreamURL, err)
	}

	quality := best.AudioQuality
	if quality == "" {
		quality = "AUDIO_QUALITY_MEDIUM"
	}

	return &models.StreamResponse{
		URL: url,
		Format: models.StreamFormat{
			Itag:         best.ItagNo,
			MimeType:     best.MimeType,
			Bitrate:      formatBitrate(best),
			AudioQuality: quality,
		},
	}, nil
}

func formatBitrate(f *youtube.Format) int {
	if f.Bitrate > 0 {
		return f.Bitrate
	}
	return f.AverageBitrate
}

// bestAudioFormat picks the highest-bitrate audio-only rendition, falling
// back to any rendition with an audio track.
func bestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 || f.QualityLabel != "" {
			continue
		}
		if best == nil || formatBitrate(f) > formatBitrate(best) {
			best = f
		}
	}
	if best != nil {
		return best
	}

	for i := range formats {
		if formats[i].AudioQuality != "" {
			return &formats[i]
		}
	}
	return nil
}
