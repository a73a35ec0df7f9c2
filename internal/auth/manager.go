package auth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ringlink/ringlink/internal/config"
	"github.com/ringlink/ringlink/internal/errors"
	"github.com/ringlink/ringlink/internal/logging"
	"github.com/ringlink/ringlink/internal/models"
	"github.com/ringlink/ringlink/internal/notify"
	"golang.org/x/sync/singleflight"
)

var errInvalidToken = stderrors.New("token response missing required fields")

const (
	// expirySkew refreshes tokens that expire within the next minute.
	expirySkew = 60 * time.Second
	// settleDelay is how long to wait before using a freshly issued token.
	// The Ring authorization server does not guarantee immediate
	// consistency for new tokens.
	settleDelay = 2 * time.Second
	// promptDelay defers the authorization notice so a burst of failing
	// calls at startup produces one notice, not several racing ones.
	promptDelay = 3 * time.Second
)

// Manager owns the OAuth credential lifecycle: authorization-code exchange,
// refresh, revoke, and the user-facing authorization prompt.
type Manager struct {
	cfg     config.OAuthConfig
	creds   *CredentialStore
	notices notify.Notifier
	client  *http.Client
	logger  *logging.Logger

	// refreshGroup collapses concurrent refresh attempts into a single
	// exchange per expiry window.
	refreshGroup singleflight.Group

	mu           sync.Mutex
	codeExpected bool
	promptTimer  *time.Timer

	// test seams
	settleDelay time.Duration
	promptDelay time.Duration
	now         func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithDelays overrides the settle and prompt delays.
func WithDelays(settle, prompt time.Duration) Option {
	return func(m *Manager) {
		m.settleDelay = settle
		m.promptDelay = prompt
	}
}

// NewManager creates a token manager around the injected credential store.
func NewManager(cfg config.OAuthConfig, creds *CredentialStore, notices notify.Notifier, opts ...Option) *Manager {
	m := &Manager{
		cfg:         cfg,
		creds:       creds,
		notices:     notices,
		client:      &http.Client{Timeout: 20 * time.Second},
		logger:      logging.NewLogger(),
		settleDelay: settleDelay,
		promptDelay: promptDelay,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AccessToken returns a usable access token, refreshing first when the
// stored token expires within the skew window or forceRefresh is set.
// Returns ErrAuthorizationRequired when no usable token exists; that is a
// "user action needed" condition, not a transient failure.
func (m *Manager) AccessToken(ctx context.Context, forceRefresh bool) (string, error) {
	token := m.creds.Token()

	if token == nil || token.AccessToken == "" {
		m.logger.Info("no oauth tokens - authorization notice required")
		m.SendAuthNoticeDelayed()
		return "", errors.ErrAuthorizationRequired
	}

	expiry := token.Expiry()
	if forceRefresh || (!expiry.IsZero() && m.now().Add(expirySkew).After(expiry)) {
		if forceRefresh {
			m.logger.Info("refreshing tokens [FORCED]")
		} else {
			m.logger.Info("refreshing tokens")
		}

		refreshed, err := m.refreshShared(ctx, token.RefreshToken)
		if err != nil {
			var rejected *errors.ErrTokenRefreshRejected
			if stderrors.As(err, &rejected) {
				// The refresh token itself is invalid. Start over.
				m.creds.Clear()
				m.SendAuthNoticeDelayed()
			}
			return "", err
		}
		return refreshed.AccessToken, nil
	}

	m.logger.Debug("reusing existing tokens")
	return token.AccessToken, nil
}

// refreshShared funnels concurrent callers through one in-flight refresh
// exchange. Every caller observes the same post-settle result.
func (m *Manager) refreshShared(ctx context.Context, refreshToken string) (*models.OAuthToken, error) {
	result, err, _ := m.refreshGroup.Do("refresh", func() (interface{}, error) {
		token, err := m.refreshExchange(ctx, refreshToken)
		if err != nil {
			return nil, err
		}
		token.SetCreatedAt(m.now())
		if err := m.creds.Save(token); err != nil {
			return nil, err
		}

		// Wait before using the new tokens.
		select {
		case <-time.After(m.settleDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return token, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.OAuthToken), nil
}

func (m *Manager) refreshExchange(ctx context.Context, refreshToken string) (*models.OAuthToken, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", m.cfg.ClientID)
	form.Set("client_secret", m.cfg.ClientSecret)
	form.Set("refresh_token", refreshToken)

	return m.tokenRequest(ctx, form)
}

// ExchangeAuthCode completes the authorization-code flow after the user has
// authorized. The state must match our worker identity, and a code is only
// accepted while a prompt is outstanding; both guards protect the callback
// endpoint against replayed or cross-site requests.
func (m *Manager) ExchangeAuthCode(ctx context.Context, code, state string) error {
	if state != m.cfg.Worker {
		m.logger.Error("received invalid authorization",
			"received_state", state, "worker", m.cfg.Worker)
		return fmt.Errorf("authorization state mismatch")
	}

	m.mu.Lock()
	expected := m.codeExpected
	m.mu.Unlock()
	if !expected {
		m.logger.Error("received unexpected authorization code")
		m.ClearAuthNotice() // in case the notice is still there
		return fmt.Errorf("unexpected authorization code")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", m.cfg.ClientID)
	form.Set("client_secret", m.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("scope", m.cfg.Scope)

	token, err := m.tokenRequest(ctx, form)
	if err != nil {
		return err
	}
	token.SetCreatedAt(m.now())
	if err := m.creds.Save(token); err != nil {
		return err
	}

	m.ClearAuthNotice()
	m.logger.Info("authorization completed")
	return nil
}

// tokenRequest posts a form to the token endpoint and validates the
// response shape. A 401 means the grant itself was rejected.
func (m *Manager) tokenRequest(ctx context.Context, form url.Values) (*models.OAuthToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &errors.ErrTokenRefreshRejected{Status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var token models.OAuthToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, err
	}
	if !token.IsValid() {
		m.logger.Error("oauth response is invalid")
		return nil, errInvalidToken
	}
	return &token, nil
}

// Revoke revokes the current access token. Best effort: failures are
// logged, never returned.
func (m *Manager) Revoke(ctx context.Context) {
	token := m.creds.Token()
	if token == nil || token.AccessToken == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.RevokeURL, nil)
	if err != nil {
		m.logger.Error("access revoke failed", "error", err.Error())
		return
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Error("access revoke failed", "error", err.Error())
		return
	}
	resp.Body.Close()
	m.logger.Info("revoke result", "status", resp.StatusCode)
}

// AuthorizeURL builds the link the user follows to authorize access.
func (m *Manager) AuthorizeURL() string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", m.cfg.ClientID)
	q.Set("redirect_uri", m.cfg.RedirectURL)
	q.Set("state", m.cfg.Worker)
	q.Set("scope", m.cfg.Scope)
	return m.cfg.AuthorizeURL + "?" + q.Encode()
}

// SendAuthNoticeDelayed arms the authorization prompt. The notice appears
// after a short delay and only one may be visible at a time; arming while a
// timer or notice is already pending is a no-op.
func (m *Manager) SendAuthNoticeDelayed() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.promptTimer != nil || m.notices.Active(notify.KeyAuthorization) {
		return
	}
	m.promptTimer = time.AfterFunc(m.promptDelay, m.sendAuthNotice)
}

func (m *Manager) sendAuthNotice() {
	m.mu.Lock()
	m.promptTimer = nil
	m.codeExpected = true
	m.mu.Unlock()

	message := fmt.Sprintf("Please open %s to authorize access to your Ring account", m.AuthorizeURL())
	m.notices.Push(notify.KeyAuthorization, message)
	m.logger.Info("sent authorization notice")
}

// ClearAuthNotice removes the prompt and stops expecting a code. Called
// after a successful authorization, and by the API client when a call
// succeeds (proof the credentials are valid).
func (m *Manager) ClearAuthNotice() {
	m.mu.Lock()
	if m.promptTimer != nil {
		m.promptTimer.Stop()
		m.promptTimer = nil
	}
	m.codeExpected = false
	m.mu.Unlock()

	m.notices.Clear(notify.KeyAuthorization)
}

// CodeExpected reports whether an authorization code would currently be
// accepted.
func (m *Manager) CodeExpected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codeExpected
}
