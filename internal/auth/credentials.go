package auth

import (
	"encoding/json"
	"sync"

	"github.com/ringlink/ringlink/internal/errors"
	"github.com/ringlink/ringlink/internal/logging"
	"github.com/ringlink/ringlink/internal/models"
	"github.com/ringlink/ringlink/internal/store"
)

// CredentialStore owns the process's single OAuth token set. It is mutated
// only by the Manager and persists through the settings store so credentials
// survive restarts. Never exposed as ambient global state; everything that
// needs credentials is handed this store at construction.
type CredentialStore struct {
	mu       sync.RWMutex
	settings store.SettingsStore
	token    *models.OAuthToken
	logger   *logging.Logger
}

// NewCredentialStore creates a credential store backed by the settings
// key-value store and loads any previously persisted token.
func NewCredentialStore(settings store.SettingsStore) *CredentialStore {
	cs := &CredentialStore{
		settings: settings,
		logger:   logging.NewLogger(),
	}
	cs.load()
	return cs
}

func (cs *CredentialStore) load() {
	raw, ok := cs.settings.Get(store.SettingOAuthToken)
	if !ok {
		return
	}
	var token models.OAuthToken
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		cs.logger.Error("stored oauth token is unreadable, discarding", "error", err.Error())
		return
	}
	cs.token = &token
}

// Token returns a copy of the current token, or nil when absent.
func (cs *CredentialStore) Token() *models.OAuthToken {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cs.token == nil {
		return nil
	}
	copy := *cs.token
	return &copy
}

// Save overwrites the stored token in place. Tokens missing required fields
// are refused so a partial server response can never clobber a usable
// credential.
func (cs *CredentialStore) Save(token *models.OAuthToken) error {
	if !token.IsValid() {
		cs.logger.Error("refusing to save oauth token with missing fields")
		return &errors.ErrDatabaseQuery{Operation: "save token", Err: errInvalidToken}
	}

	raw, err := json.Marshal(token)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "save token", Err: err}
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if err := cs.settings.Set(store.SettingOAuthToken, string(raw)); err != nil {
		return err
	}
	copy := *token
	cs.token = &copy
	cs.logger.Info("saved new oauth tokens")
	return nil
}

// Clear removes the stored token entirely. Used when the refresh token
// itself has been rejected.
func (cs *CredentialStore) Clear() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if err := cs.settings.Delete(store.SettingOAuthToken); err != nil {
		cs.logger.Error("failed to delete stored oauth token", "error", err.Error())
	}
	cs.token = nil
	cs.logger.Warn("cleared oauth tokens")
}
