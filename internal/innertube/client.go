// Package innertube talks to YouTube's private "innertube" API surface by
// simulating a handful of client personalities.
//
// Each personality is a platform/app-version combination the provider
// recognizes; the same video id can yield different response shapes and
// permission levels depending on which one a request impersonates.
package innertube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sonatura/ytms/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultPlayerBaseURL  = "https://www.youtube.com"
	defaultMusicBaseURL   = "https://music.youtube.com"
	defaultSuggestBaseURL = "https://suggestqueries.google.com"

	androidUserAgent = "com.google.android.youtube/19.09.37 (Linux; U; Android 11) gzip"
	iosUserAgent     = "com.google.ios.youtube/19.09.3 (iPhone14,3; U; CPU iOS 15_6 like Mac OS X)"
	webUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Profile is one simulated client personality.
type Profile struct {
	// Name is the context clientName ("ANDROID_MUSIC", "IOS", ...).
	Name string
	// Version is the app version the personality reports.
	Version string
	// HeaderID is the numeric X-YouTube-Client-Name header value; empty
	// omits the header.
	HeaderID string
	// UserAgent impersonates the platform's HTTP client.
	UserAgent string
	// AndroidSDK is sent as androidSdkVersion when non-zero.
	AndroidSDK int
	// DeviceModel is sent for personalities that report hardware.
	DeviceModel string
}

// The personalities the resolver negotiates with, in the order the canonical
// fallback chain uses them. WebRemix and Web serve search and related-video
// lookups.
var (
	AndroidMusic = Profile{Name: "ANDROID_MUSIC", Version: "6.42.52", HeaderID: "21", UserAgent: androidUserAgent, AndroidSDK: 30}
	Android      = Profile{Name: "ANDROID", Version: "19.09.37", HeaderID: "3", UserAgent: androidUserAgent, AndroidSDK: 30}
	IOS          = Profile{Name: "IOS", Version: "19.09.3", HeaderID: "5", UserAgent: iosUserAgent, DeviceModel: "iPhone14,3"}
	WebRemix     = Profile{Name: "WEB_REMIX", Version: "1.20231219.01.00", HeaderID: "67", UserAgent: webUserAgent}
	Web          = Profile{Name: "WEB", Version: "2.20220411.01.00", UserAgent: webUserAgent}
)

// clientContext is the context.client block attached to every request body.
type clientContext struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	HL                string `json:"hl"`
	GL                string `json:"gl"`
	AndroidSDKVersion int    `json:"androidSdkVersion,omitempty"`
	DeviceModel       string `json:"deviceModel,omitempty"`
	UserAgent         string `json:"userAgent,omitempty"`
}

func (p Profile) context() map[string]any {
	cc := clientContext{
		ClientName:        p.Name,
		ClientVersion:     p.Version,
		HL:                "en",
		GL:                "US",
		AndroidSDKVersion: p.AndroidSDK,
		DeviceModel:       p.DeviceModel,
	}
	if p.Name == "WEB_REMIX" {
		cc.UserAgent = p.UserAgent
	}
	return map[string]any{"client": cc}
}

// Client issues innertube requests with a shared rate limit across all
// operations, so bursts of resolution and search calls cannot hammer the
// provider.
type Client struct {
	http           *http.Client
	limiter        *rate.Limiter
	logger         *log.Logger
	playerBaseURL  string
	musicBaseURL   string
	suggestBaseURL string
}

// ClientOpts contains configuration options for creating a [Client].
type ClientOpts struct {
	HTTPClient *http.Client
	Logger     *log.Logger
	Provider   shared.ProviderConfig
	// Limiter overrides the default of 4 requests burst, one every 250ms.
	Limiter *rate.Limiter
}

// NewClient creates a Client with the provided configuration.
func NewClient(opts ClientOpts) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Every(250*time.Millisecond), 4)
	}

	c := &Client{
		http:           opts.HTTPClient,
		limiter:        opts.Limiter,
		logger:         shared.WithLogger(opts.Logger, "component", "innertube"),
		playerBaseURL:  defaultPlayerBaseURL,
		musicBaseURL:   defaultMusicBaseURL,
		suggestBaseURL: defaultSuggestBaseURL,
	}
	if opts.Provider.PlayerBaseURL != "" {
		c.playerBaseURL = opts.Provider.PlayerBaseURL
	}
	if opts.Provider.MusicBaseURL != "" {
		c.musicBaseURL = opts.Provider.MusicBaseURL
	}
	if opts.Provider.SuggestBaseURL != "" {
		c.suggestBaseURL = opts.Provider.SuggestBaseURL
	}
	return c
}

// HTTP returns the client's underlying HTTP client, shared with the catalog
// session so both paths ride the same transport.
func (c *Client) HTTP() *http.Client {
	return c.http
}

// post sends an innertube POST and decodes the JSON response body.
//
// Innertube reports failures inside a 200 body as often as through HTTP
// status codes, so the body is decoded first and the status only matters
// when no JSON came back.
func (c *Client) post(ctx context.Context, url string, profile Profile, extraHeaders map[string]string, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", profile.UserAgent)
	if profile.HeaderID != "" {
		req.Header.Set("X-YouTube-Client-Name", profile.HeaderID)
		req.Header.Set("X-YouTube-Client-Version", profile.Version)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("innertube error: status %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Player requests the streaming/player payload for a video id as one
// personality, optionally with auth headers.
func (c *Client) Player(ctx context.Context, profile Profile, videoID string, extraHeaders map[string]string) (*PlayerResponse, error) {
	body := map[string]any{
		"context":        profile.context(),
		"videoId":        videoID,
		"contentCheckOk": true,
		"racyCheckOk":    true,
	}

	var resp PlayerResponse
	url := c.playerBaseURL + "/youtubei/v1/player?prettyPrint=false"
	if err := c.post(ctx, url, profile, extraHeaders, body, &resp); err != nil {
		return nil, err
	}

	c.logger.Debugf("player response for %s via %s: status=%s streaming=%t",
		videoID, profile.Name, resp.PlayabilityStatus.Status, resp.StreamingData != nil)
	return &resp, nil
}
