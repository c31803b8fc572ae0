// Package auth owns the device-flow OAuth login, token refresh and the
// persisted credential lifecycle.
//
// Credentials live in memory and as a single record in the durable store.
// Storage failures degrade to "not authenticated" instead of crashing; only
// the resolution path ever sees typed auth errors.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sonatura/ytms/internal/shared"
	"github.com/sonatura/ytms/internal/store"
	"golang.org/x/oauth2"
)

const (
	// credentialsKey is the fixed durable-store key holding the one
	// credential record.
	credentialsKey = "youtube_credentials"

	deviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

	// pollCeiling bounds the background polling loop so an abandoned
	// login cannot keep firing network requests indefinitely.
	pollCeiling = 5 * time.Minute

	defaultPollInterval = 5 * time.Second
)

// Credentials is the persisted token record.
//
// ExpiresAt is epoch-millis of access token expiry; a read that finds it in
// the past triggers a refresh before any authenticated operation proceeds.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Expired reports whether the access token has passed its expiry.
func (c *Credentials) Expired(now time.Time) bool {
	return c.ExpiresAt < now.UnixMilli()
}

// DeviceLogin is the immediately returned half of a device-flow login: the
// human-readable code and URL to display, plus a handle on the background
// polling task.
type DeviceLogin struct {
	Code            string
	VerificationURL string

	cancel context.CancelFunc
	done   chan error
}

// Cancel stops the background polling task deterministically.
func (d *DeviceLogin) Cancel() {
	d.cancel()
}

// Done receives the polling outcome: nil on successful token exchange, an
// error on terminal failure or cancellation. The channel is closed after one
// send.
func (d *DeviceLogin) Done() <-chan error {
	return d.done
}

// Manager owns the credential lifecycle for one provider account.
type Manager struct {
	cfg    *oauth2.Config
	store  store.Store
	http   *http.Client
	logger *log.Logger
	now    func() time.Time

	mu            sync.Mutex
	creds         *Credentials
	authenticated bool
}

// ManagerOpts contains configuration options for creating a [Manager].
type ManagerOpts struct {
	Config     shared.OAuthConfig
	Store      store.Store
	HTTPClient *http.Client
	Logger     *log.Logger
	Now        func() time.Time
}

// NewManager creates a Manager. Store is required; everything else defaults.
func NewManager(opts ManagerOpts) *Manager {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cfg := &oauth2.Config{
		ClientID:     opts.Config.ClientID,
		ClientSecret: opts.Config.ClientSecret,
		Scopes:       []string{opts.Config.Scope},
		Endpoint: oauth2.Endpoint{
			TokenURL:      opts.Config.TokenURL,
			DeviceAuthURL: opts.Config.DeviceAuthURL,
		},
	}

	return &Manager{
		cfg:    cfg,
		store:  opts.Store,
		http:   opts.HTTPClient,
		logger: shared.WithLogger(opts.Logger, "component", "auth"),
		now:    opts.Now,
	}
}

// Load reads the persisted credential record, called once at process start.
//
// An expired record triggers an eager best-effort refresh; refresh failure is
// logged and the stale record kept, it is not fatal to startup.
func (m *Manager) Load(ctx context.Context) {
	data, err := m.store.Get(ctx, credentialsKey)
	if err != nil {
		if err != shared.ErrNotFound {
			m.logger.Warnf("failed to load credentials: %v", err)
		}
		return
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		m.logger.Warnf("failed to parse stored credentials: %v", err)
		return
	}

	m.mu.Lock()
	m.creds = &creds
	m.authenticated = true
	m.mu.Unlock()
	m.logger.Info("loaded saved credentials")

	if creds.Expired(m.now()) {
		if err := m.Refresh(ctx); err != nil {
			m.logger.Warnf("eager token refresh failed: %v", err)
		}
	}
}

// deviceCodeResponse covers both the standard and Google field names for the
// verification endpoint.
type deviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	VerificationURI string `json:"verification_uri"`
	Interval        int    `json:"interval"`
	Error           string `json:"error"`
}

// Login initiates a device-authorization grant.
//
// The user code and verification URL return immediately for display while a
// background task polls the token endpoint. Login fails only if the initial
// device-code request fails; every polling outcome is reported through the
// returned [DeviceLogin] and the in-memory authenticated flag.
func (m *Manager) Login(ctx context.Context) (*DeviceLogin, error) {
	m.logger.Info("starting OAuth device flow")

	form := url.Values{
		"client_id": {m.cfg.ClientID},
		"scope":     {strings.Join(m.cfg.Scopes, " ")},
	}

	var resp deviceCodeResponse
	if err := m.postForm(ctx, m.cfg.Endpoint.DeviceAuthURL, form, &resp); err != nil {
		return nil, fmt.Errorf("%w: device code request: %v", shared.ErrAuthFailed, err)
	}
	if resp.Error != "" || resp.DeviceCode == "" {
		return nil, fmt.Errorf("%w: device code request: %s", shared.ErrAuthFailed, resp.Error)
	}

	verificationURL := resp.VerificationURL
	if verificationURL == "" {
		verificationURL = resp.VerificationURI
	}

	interval := defaultPollInterval
	if resp.Interval > 0 {
		interval = time.Duration(resp.Interval) * time.Second
	}

	m.logger.Infof("device code received, verification at %s", verificationURL)

	// The polling task owns its own lifetime: it survives the caller's
	// context but never outlives the ceiling.
	pollCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pollCeiling)
	login := &DeviceLogin{
		Code:            resp.UserCode,
		VerificationURL: verificationURL,
		cancel:          cancel,
		done:            make(chan error, 1),
	}

	go func() {
		defer cancel()
		err := m.poll(pollCtx, resp.DeviceCode, interval)
		login.done <- err
		close(login.done)
	}()

	return login, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Error        string `json:"error"`
}

// poll repeatedly exchanges the device code for tokens until success, a
// terminal error code, or context cancellation.
func (m *Manager) poll(ctx context.Context, deviceCode string, interval time.Duration) error {
	form := url.Values{
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
		"device_code":   {deviceCode},
		"grant_type":    {deviceGrantType},
	}

	for {
		var resp tokenResponse
		err := m.postForm(ctx, m.cfg.Endpoint.TokenURL, form, &resp)

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return fmt.Errorf("%w: login polling cancelled", shared.ErrAuthFailed)
			}
			// Transient transport failure: retry at the same interval.
			m.logger.Warnf("token poll failed: %v", err)

		case resp.AccessToken != "":
			m.logger.Info("login successful")
			m.setCredentials(ctx, &Credentials{
				AccessToken:  resp.AccessToken,
				RefreshToken: resp.RefreshToken,
				ExpiresAt:    m.now().Add(time.Duration(resp.ExpiresIn) * time.Second).UnixMilli(),
			})
			return nil

		case resp.Error == "authorization_pending":
			// User hasn't authorized yet.

		case resp.Error == "slow_down":
			interval += 5 * time.Second

		default:
			m.logger.Errorf("token exchange failed: %s", resp.Error)
			return fmt.Errorf("%w: token exchange: %s", shared.ErrAuthFailed, resp.Error)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: login polling cancelled", shared.ErrAuthFailed)
		case <-time.After(interval):
		}
	}
}

// Refresh exchanges the refresh token for a new access token.
//
// The refresh token is preserved unless the provider rotates it. On failure
// the stale credentials stay in place so a later retry is possible.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	creds := m.creds
	m.mu.Unlock()

	if creds == nil || creds.RefreshToken == "" {
		return shared.ErrNoRefreshToken
	}

	m.logger.Info("refreshing access token")

	// TokenSource performs the refresh_token grant and carries the old
	// refresh token forward when the server omits a new one.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.http)
	ts := m.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})

	tok, err := ts.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = creds.RefreshToken
	}

	m.setCredentials(ctx, &Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    tok.Expiry.UnixMilli(),
	})
	m.logger.Info("token refreshed")
	return nil
}

// Logout removes persisted credentials and clears in-memory state.
//
// Always succeeds from the caller's perspective: the (idempotent) store
// removal is best-effort.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.store.Remove(ctx, credentialsKey); err != nil {
		m.logger.Warnf("failed to remove stored credentials: %v", err)
	}

	m.mu.Lock()
	m.creds = nil
	m.authenticated = false
	m.mu.Unlock()
	m.logger.Info("logged out")
}

// IsLoggedIn reports the in-memory authenticated flag without any I/O.
func (m *Manager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}

// AuthHeaders returns the headers to attach to authenticated provider calls.
//
// Returns an empty map when no credentials are held. An expired token is
// refreshed before the headers are built; refresh failure propagates.
func (m *Manager) AuthHeaders(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	creds := m.creds
	m.mu.Unlock()

	if creds == nil {
		return map[string]string{}, nil
	}

	if creds.Expired(m.now()) {
		if err := m.Refresh(ctx); err != nil {
			return nil, err
		}
		m.mu.Lock()
		creds = m.creds
		m.mu.Unlock()
		// A logout can land between the refresh and this re-read.
		if creds == nil {
			return map[string]string{}, nil
		}
	}

	return map[string]string{
		"Authorization":   "Bearer " + creds.AccessToken,
		"X-Goog-AuthUser": "0",
	}, nil
}

// setCredentials updates in-memory state and persists best-effort.
func (m *Manager) setCredentials(ctx context.Context, creds *Credentials) {
	m.mu.Lock()
	m.creds = creds
	m.authenticated = true
	m.mu.Unlock()

	data, err := json.Marshal(creds)
	if err != nil {
		m.logger.Errorf("failed to encode credentials: %v", err)
		return
	}
	if err := m.store.Set(ctx, credentialsKey, data); err != nil {
		m.logger.Warnf("failed to persist credentials: %v", err)
		return
	}
	m.logger.Debug("credentials saved")
}

// postForm issues a form-encoded POST and decodes the JSON response.
func (m *Manager) postForm(ctx context.Context, endpoint string, form url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
