package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringlink/ringlink/internal/config"
	"github.com/ringlink/ringlink/internal/errors"
	"github.com/ringlink/ringlink/internal/models"
	"github.com/ringlink/ringlink/internal/notify"
	"github.com/ringlink/ringlink/internal/store"
)

func testOAuthConfig(tokenURL string) config.OAuthConfig {
	return config.OAuthConfig{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		AuthorizeURL: "https://oauth.example.com/authorize",
		TokenURL:     tokenURL,
		RevokeURL:    "https://oauth.example.com/revoke",
		RedirectURL:  "https://bridge.example.com/oauth/callback",
		Scope:        "read",
		Worker:       "worker-abc",
	}
}

func newTestManager(t *testing.T, tokenURL string) (*Manager, *CredentialStore, *notify.Board) {
	t.Helper()
	creds := NewCredentialStore(store.NewMemorySettingsStore())
	board := notify.NewBoard(nil)
	m := NewManager(testOAuthConfig(tokenURL), creds, board)
	m.settleDelay = time.Millisecond
	m.promptDelay = time.Millisecond
	return m, creds, board
}

func validToken(expiresIn int64, createdAt int64) *models.OAuthToken {
	return &models.OAuthToken{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
		CreatedAt:    createdAt,
	}
}

func TestAccessTokenNoTokens(t *testing.T) {
	m, _, board := newTestManager(t, "http://unused.invalid")

	_, err := m.AccessToken(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errors.IsAuthorizationRequired(err))

	// The notice arrives after the prompt delay.
	assert.Eventually(t, func() bool {
		return board.Active(notify.KeyAuthorization)
	}, time.Second, 5*time.Millisecond)
	assert.True(t, m.CodeExpected())
}

func TestAccessTokenFreshTokenNoNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m, creds, _ := newTestManager(t, srv.URL)
	require.NoError(t, creds.Save(validToken(3600, time.Now().Unix())))

	access, err := m.AccessToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "access-1", access)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestAccessTokenRefreshesExpiring(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "client-1", r.Form.Get("client_id"))
		assert.Equal(t, "refresh-1", r.Form.Get("refresh_token"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	m, creds, _ := newTestManager(t, srv.URL)
	// Expires in 30s, inside the skew window.
	require.NoError(t, creds.Save(validToken(30, time.Now().Unix())))

	access, err := m.AccessToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "access-2", access)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// The new token is persisted with a synthesized created_at.
	stored := creds.Token()
	require.NotNil(t, stored)
	assert.Equal(t, "refresh-2", stored.RefreshToken)
	assert.NotZero(t, stored.CreatedAt)
}

func TestAccessTokenForceRefresh(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	m, creds, _ := newTestManager(t, srv.URL)
	require.NoError(t, creds.Save(validToken(3600, time.Now().Unix())))

	access, err := m.AccessToken(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "access-2", access)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAccessTokenConcurrentSingleRefresh(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	m, creds, _ := newTestManager(t, srv.URL)
	require.NoError(t, creds.Save(validToken(30, time.Now().Unix())))

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			access, err := m.AccessToken(context.Background(), false)
			require.NoError(t, err)
			results[i] = access
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, access := range results {
		assert.Equal(t, "access-2", access)
	}
}

func TestAccessTokenRefreshRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m, creds, board := newTestManager(t, srv.URL)
	require.NoError(t, creds.Save(validToken(30, time.Now().Unix())))

	_, err := m.AccessToken(context.Background(), false)
	require.Error(t, err)

	var rejected *errors.ErrTokenRefreshRejected
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusUnauthorized, rejected.Status)

	// Tokens are gone and the user is re-prompted.
	assert.Nil(t, creds.Token())
	assert.Eventually(t, func() bool {
		return board.Active(notify.KeyAuthorization)
	}, time.Second, 5*time.Millisecond)
}

func TestExchangeAuthCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		assert.Equal(t, "code-xyz", r.Form.Get("code"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	m, creds, board := newTestManager(t, srv.URL)

	// Arm the prompt so a code is expected.
	m.SendAuthNoticeDelayed()
	require.Eventually(t, func() bool { return m.CodeExpected() }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.ExchangeAuthCode(context.Background(), "code-xyz", "worker-abc"))

	stored := creds.Token()
	require.NotNil(t, stored)
	assert.Equal(t, "access-1", stored.AccessToken)
	assert.False(t, board.Active(notify.KeyAuthorization))
	assert.False(t, m.CodeExpected())
}

func TestExchangeAuthCodeStateMismatch(t *testing.T) {
	m, creds, _ := newTestManager(t, "http://unused.invalid")

	m.SendAuthNoticeDelayed()
	require.Eventually(t, func() bool { return m.CodeExpected() }, time.Second, 5*time.Millisecond)

	err := m.ExchangeAuthCode(context.Background(), "code-xyz", "other-worker")
	require.Error(t, err)
	assert.Nil(t, creds.Token())
}

func TestExchangeAuthCodeUnexpected(t *testing.T) {
	m, creds, _ := newTestManager(t, "http://unused.invalid")

	err := m.ExchangeAuthCode(context.Background(), "code-xyz", "worker-abc")
	require.Error(t, err)
	assert.Nil(t, creds.Token())
}

func TestAuthNoticeIdempotent(t *testing.T) {
	var sent int32
	board := notify.NewBoard(func(key, message string) {
		atomic.AddInt32(&sent, 1)
	})
	creds := NewCredentialStore(store.NewMemorySettingsStore())
	m := NewManager(testOAuthConfig("http://unused.invalid"), creds, board)
	m.promptDelay = time.Millisecond

	m.SendAuthNoticeDelayed()
	m.SendAuthNoticeDelayed()
	m.SendAuthNoticeDelayed()

	require.Eventually(t, func() bool {
		return board.Active(notify.KeyAuthorization)
	}, time.Second, 5*time.Millisecond)

	// Arming again while the notice is visible does nothing.
	m.SendAuthNoticeDelayed()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&sent))
}

func TestAuthorizeURL(t *testing.T) {
	m, _, _ := newTestManager(t, "http://unused.invalid")

	u := m.AuthorizeURL()
	assert.Contains(t, u, "https://oauth.example.com/authorize?")
	assert.Contains(t, u, "response_type=code")
	assert.Contains(t, u, "client_id=client-1")
	assert.Contains(t, u, "state=worker-abc")
	assert.Contains(t, u, "scope=read")
}
