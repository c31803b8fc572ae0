// Package resolver turns a video id into a playable audio stream URL.
//
// Resolution negotiates with the provider through an ordered chain of client
// personalities: an authenticated ANDROID_MUSIC request first, then an
// anonymous ANDROID retry. An anonymous iOS personality exists as an
// explicit escape hatch and is never chained automatically. The resolver
// performs network calls only; persistence belongs to the cache layered on
// top.
package resolver

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/sonatura/ytms/internal/innertube"
	"github.com/sonatura/ytms/internal/models"
	"github.com/sonatura/ytms/internal/session"
	"github.com/sonatura/ytms/internal/shared"
)

// HeaderProvider supplies auth headers for the primary strategy. An empty
// map means "proceed anonymously".
type HeaderProvider interface {
	AuthHeaders(ctx context.Context) (map[string]string, error)
}

// SessionProvider supplies the catalog session used to decipher formats that
// arrive without a direct URL.
type SessionProvider interface {
	Session(ctx context.Context) (*session.Handle, error)
}

// Resolver resolves stream URLs against the innertube player endpoint.
type Resolver struct {
	client   *innertube.Client
	auth     HeaderProvider
	sessions SessionProvider
	logger   *log.Logger
}

// ResolverOpts contains configuration options for creating a [Resolver].
type ResolverOpts struct {
	Client *innertube.Client
	// Auth is optional; without it every strategy runs anonymously.
	Auth HeaderProvider
	// Sessions is optional; without it a cipher-protected format is a
	// terminal failure.
	Sessions SessionProvider
	Logger   *log.Logger
}

// NewResolver creates a Resolver with the provided configuration.
func NewResolver(opts ResolverOpts) *Resolver {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Resolver{
		client:   opts.Client,
		auth:     opts.Auth,
		sessions: opts.Sessions,
		logger:   shared.WithLogger(opts.Logger, "component", "resolver"),
	}
}

// Resolve obtains a playable audio URL for a video id.
//
// Strategy order: authenticated ANDROID_MUSIC, then anonymous ANDROID. A
// permanent block (UNPLAYABLE, LOGIN_REQUIRED) from the primary strategy
// fails immediately without trying the fallback; an error body or missing
// streaming data falls through to it.
func (r *Resolver) Resolve(ctx context.Context, videoID string) (*models.StreamResponse, error) {
	r.logger.Debugf("resolving stream for %s", videoID)

	headers := map[string]string{}
	if r.auth != nil {
		h, err := r.auth.AuthHeaders(ctx)
		if err != nil {
			// A failed refresh degrades to anonymous rather than
			// blocking playback of public videos.
			r.logger.Warnf("auth headers unavailable, resolving anonymously: %v", err)
		} else {
			headers = h
		}
	}

	resp, err := r.client.Player(ctx, innertube.AndroidMusic, videoID, headers)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.Error != nil:
		r.logger.Warnf("primary strategy returned error %d, retrying anonymously", resp.Error.Code)
		return r.resolveAnonymous(ctx, videoID, innertube.Android)

	case resp.PlayabilityStatus.Status == innertube.StatusUnplayable:
		reason := resp.PlayabilityStatus.Reason
		if reason == "" {
			reason = "video unplayable"
		}
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaybackBlocked, reason)

	case resp.PlayabilityStatus.Status == innertube.StatusLoginRequired:
		return nil, shared.ErrLoginRequired

	case !resp.HasStreamingData():
		r.logger.Debug("no streaming data from primary strategy, retrying anonymously")
		return r.resolveAnonymous(ctx, videoID, innertube.Android)
	}

	return r.selectStream(ctx, videoID, resp)
}

// ResolveIOS retries with the anonymous iOS personality. It is not part of
// the automatic fallback chain; callers invoke it explicitly when the
// canonical strategies come up empty.
func (r *Resolver) ResolveIOS(ctx context.Context, videoID string) (*models.StreamResponse, error) {
	r.logger.Debugf("resolving stream for %s via iOS personality", videoID)
	return r.resolveAnonymous(ctx, videoID, innertube.IOS)
}

func (r *Resolver) resolveAnonymous(ctx context.Context, videoID string, profile innertube.Profile) (*models.StreamResponse, error) {
	resp, err := r.client.Player(ctx, profile, videoID, nil)
	if err != nil {
		return nil, err
	}
	if !resp.HasStreamingData() {
		return nil, fmt.Errorf("%w: %s returned none for %s", shared.ErrNoStreamingData, profile.Name, videoID)
	}
	return r.selectStream(ctx, videoID, resp)
}

// selectStream applies format selection to a response with streaming data
// and turns the winner into a StreamResponse, deciphering when the format
// carries no direct URL.
func (r *Resolver) selectStream(ctx context.Context, videoID string, resp *innertube.PlayerResponse) (*models.StreamResponse, error) {
	best, err := SelectAudioFormat(resp.StreamingData.Merged())
	if err != nil {
		return nil, err
	}

	if best.URL == "" {
		return r.decipher(ctx, videoID, *best)
	}

	r.logger.Debugf("selected itag %d at %d bps", best.Itag, best.EffectiveBitrate())
	return &models.StreamResponse{URL: best.URL, Format: best.StreamFormat()}, nil
}

// decipher delegates cipher-protected formats to the catalog session's
// player context.
func (r *Resolver) decipher(ctx context.Context, videoID string, format innertube.Format) (*models.StreamResponse, error) {
	if r.sessions == nil {
		return nil, fmt.Errorf("%w: itag %d is cipher-protected", shared.ErrNoStreamURL, format.Itag)
	}

	handle, err := r.sessions.Session(ctx)
	if err != nil {
		return nil, err
	}

	r.logger.Debugf("deciphering itag %d via catalog session", format.Itag)
	return handle.StreamURL(ctx, videoID)
}

// SelectAudioFormat picks the best audio-only rendition from a merged
// format list.
//
// Audio-capable means an audio mime type or an audioQuality field; anything
// with a qualityLabel is video and excluded. The winner is the maximum by
// effective bitrate. When nothing passes the filter, the first entry
// anywhere with an audioQuality field wins; failing that the list has no
// usable audio.
func SelectAudioFormat(formats []innertube.Format) (*innertube.Format, error) {
	var best *innertube.Format
	for i := range formats {
		f := &formats[i]
		if !f.HasAudio() || f.HasVideo() {
			continue
		}
		if best == nil || f.EffectiveBitrate() > best.EffectiveBitrate() {
			best = f
		}
	}
	if best != nil {
		return best, nil
	}

	for i := range formats {
		if formats[i].AudioQuality != "" {
			return &formats[i], nil
		}
	}

	return nil, shared.ErrNoAudioFormat
}
