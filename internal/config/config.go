package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Version string       `yaml:"version"`
	Server  ServerConfig `yaml:"server"`
	OAuth   OAuthConfig  `yaml:"oauth"`
	Ring    RingConfig   `yaml:"ring"`
	Ingress IngressConfig `yaml:"ingress"`
	Poll    PollConfig   `yaml:"poll"`
	Motion  MotionConfig `yaml:"motion"`
	Notify  NotifyConfig `yaml:"notify"`
	Store   StoreConfig  `yaml:"store"`
}

// ServerConfig contains server-related configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	TLS             TLSConfig     `yaml:"tls"`
}

// TLSConfig contains TLS configuration.
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	MinVersion string `yaml:"min_version"` // "1.2" or "1.3"
}

// OAuthConfig contains the Ring OAuth client configuration. Worker is the
// per-installation identity echoed back as the OAuth state parameter.
type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AuthorizeURL string `yaml:"authorize_url"`
	TokenURL     string `yaml:"token_url"`
	RevokeURL    string `yaml:"revoke_url"`
	RedirectURL  string `yaml:"redirect_url"`
	Scope        string `yaml:"scope"`
	Worker       string `yaml:"worker"`

	// TokenFile is an optional drop-in path: a JSON token set written there
	// (e.g. exported from another installation) is imported automatically.
	TokenFile string `yaml:"token_file"`
}

// RingConfig contains the Ring integrations API configuration.
type RingConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// IngressConfig describes how the Ring push service reaches us.
type IngressConfig struct {
	// BaseURL is the externally reachable address for webhook postbacks.
	BaseURL   string `yaml:"base_url"`
	EventPath string `yaml:"event_path"`
}

// PollConfig contains short/long poll configuration.
type PollConfig struct {
	ShortInterval time.Duration `yaml:"short_interval"`
	LongInterval  time.Duration `yaml:"long_interval"`
	LockTimeout   time.Duration `yaml:"lock_timeout"`
}

// MotionConfig contains the motion debounce configuration.
type MotionConfig struct {
	DebounceWindow time.Duration `yaml:"debounce_window"`
}

// NotifyConfig configures the user-facing notice channel.
type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig contains Telegram notifier configuration.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// StoreConfig contains persistence configuration.
type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Defaults matching the original Ring service behavior.
const (
	DefaultHTTPPort        = 3000
	DefaultShortInterval   = 60 * time.Second
	DefaultLongInterval    = 10 * time.Minute
	DefaultLockTimeout     = 500 * time.Millisecond
	DefaultDebounceWindow  = 8 * time.Second
	DefaultRingTimeout     = 20 * time.Second
	DefaultEventPath       = "/event"
	DefaultAuthorizeURL    = "https://oauth.ring.com/oauth/authorize"
	DefaultTokenURL        = "https://oauth.ring.com/oauth/token"
	DefaultRevokeURL       = "https://oauth.ring.com/oauth/revoke"
	DefaultRingBaseURL     = "https://api.ring.com/integrations_api"
	DefaultScope           = "read"
	DefaultRetentionDays   = 30
	DefaultShutdownTimeout = 30 * time.Second
)

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = DefaultHTTPPort
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = "json"
	}
	if c.OAuth.AuthorizeURL == "" {
		c.OAuth.AuthorizeURL = DefaultAuthorizeURL
	}
	if c.OAuth.TokenURL == "" {
		c.OAuth.TokenURL = DefaultTokenURL
	}
	if c.OAuth.RevokeURL == "" {
		c.OAuth.RevokeURL = DefaultRevokeURL
	}
	if c.OAuth.Scope == "" {
		c.OAuth.Scope = DefaultScope
	}
	if c.Ring.BaseURL == "" {
		c.Ring.BaseURL = DefaultRingBaseURL
	}
	if c.Ring.Timeout == 0 {
		c.Ring.Timeout = DefaultRingTimeout
	}
	if c.Ingress.EventPath == "" {
		c.Ingress.EventPath = DefaultEventPath
	}
	if c.Poll.ShortInterval == 0 {
		c.Poll.ShortInterval = DefaultShortInterval
	}
	if c.Poll.LongInterval == 0 {
		c.Poll.LongInterval = DefaultLongInterval
	}
	if c.Poll.LockTimeout == 0 {
		c.Poll.LockTimeout = DefaultLockTimeout
	}
	if c.Motion.DebounceWindow == 0 {
		c.Motion.DebounceWindow = DefaultDebounceWindow
	}
	if c.Store.Path == "" {
		c.Store.Path = "./data/ringlink.db"
	}
	if c.Store.RetentionDays == 0 {
		c.Store.RetentionDays = DefaultRetentionDays
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.HTTPPort < 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port out of range: %d", c.Server.HTTPPort)
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls requires cert_file and key_file")
		}
	}
	if c.OAuth.ClientID == "" {
		return fmt.Errorf("oauth.client_id is required")
	}
	if c.OAuth.ClientSecret == "" {
		return fmt.Errorf("oauth.client_secret is required")
	}
	if c.OAuth.Worker == "" {
		return fmt.Errorf("oauth.worker is required")
	}
	for name, raw := range map[string]string{
		"oauth.authorize_url": c.OAuth.AuthorizeURL,
		"oauth.token_url":     c.OAuth.TokenURL,
		"oauth.revoke_url":    c.OAuth.RevokeURL,
		"ring.base_url":       c.Ring.BaseURL,
	} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("%s is not a valid URL: %q", name, raw)
		}
	}
	if c.Ingress.BaseURL != "" {
		u, err := url.Parse(c.Ingress.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("ingress.base_url is not a valid URL: %q", c.Ingress.BaseURL)
		}
	}
	if !strings.HasPrefix(c.Ingress.EventPath, "/") && c.Ingress.EventPath != "" {
		return fmt.Errorf("ingress.event_path must start with /: %q", c.Ingress.EventPath)
	}
	if c.Poll.LockTimeout < 0 {
		return fmt.Errorf("poll.lock_timeout must not be negative")
	}
	if c.Notify.Telegram.Enabled && c.Notify.Telegram.BotToken == "" {
		return fmt.Errorf("notify.telegram.bot_token is required when telegram is enabled")
	}
	return nil
}

// PostbackURL joins the ingress base with the event path.
func (c *Config) PostbackURL() string {
	return strings.TrimRight(c.Ingress.BaseURL, "/") + c.Ingress.EventPath
}
