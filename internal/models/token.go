package models

import "time"

// OAuthToken is the credential set issued by the Ring authorization server.
// It is persisted as JSON in the settings store and overwritten in place on
// every refresh.
type OAuthToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	CreatedAt    int64  `json:"created_at,omitempty"`
}

// IsValid reports whether the token carries all fields required to use and
// refresh it. A token missing any of them is treated as absent.
func (t *OAuthToken) IsValid() bool {
	if t == nil {
		return false
	}
	return t.AccessToken != "" && t.RefreshToken != "" && t.TokenType != "" && t.ExpiresIn > 0
}

// Expiry returns the absolute expiry time computed from created_at and
// expires_in. Zero time if either is missing.
func (t *OAuthToken) Expiry() time.Time {
	if t == nil || t.CreatedAt == 0 || t.ExpiresIn == 0 {
		return time.Time{}
	}
	return time.Unix(t.CreatedAt+t.ExpiresIn, 0)
}

// SetCreatedAt synthesizes created_at when the authorization server omits it.
// The value is backdated 10 seconds so a clock skew between us and the server
// never extends the token's life.
func (t *OAuthToken) SetCreatedAt(now time.Time) {
	if t.CreatedAt == 0 {
		t.CreatedAt = now.Unix() - 10
	}
}
