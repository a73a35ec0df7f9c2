package subscription

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/ringlink/ringlink/internal/logging"
	"github.com/ringlink/ringlink/internal/models"
	"github.com/ringlink/ringlink/internal/ring"
)

// Manager owns the webhook registration with the Ring push service. Each
// successful Subscribe replaces the registration wholesale and rotates the
// correlation token, so deliveries from a stale registration are
// distinguishable from current ones.
type Manager struct {
	client      *ring.Client
	postbackURL string
	logger      *logging.Logger

	mu     sync.Mutex
	active *models.Subscription

	now func() time.Time
}

// NewManager creates a subscription manager posting back to postbackURL.
func NewManager(client *ring.Client, postbackURL string) *Manager {
	return &Manager{
		client:      client,
		postbackURL: postbackURL,
		logger:      logging.NewLogger(),
		now:         time.Now,
	}
}

// Subscribe registers the webhook. deviceNodes is the number of device
// nodes currently known; with none there is nobody to deliver events to,
// so registration is skipped until discovery has produced at least one.
// The new correlation token only becomes active once the API accepts the
// registration.
func (m *Manager) Subscribe(ctx context.Context, deviceNodes int) error {
	if deviceNodes < 1 {
		m.logger.Info("no device nodes yet, deferring webhook subscription")
		return nil
	}

	sub := models.Subscription{
		PostbackURL:      m.postbackURL,
		CorrelationToken: strconv.FormatInt(m.now().UnixMilli(), 10),
	}

	if err := m.client.CreateSubscription(ctx, sub); err != nil {
		m.logger.Error("webhook subscription failed", "error", err.Error())
		return err
	}

	m.mu.Lock()
	m.active = &sub
	m.mu.Unlock()

	m.logger.Info("webhook subscription active",
		"postback_url", sub.PostbackURL, "correlation_token", sub.CorrelationToken)
	return nil
}

// Unsubscribe removes the registration. Best effort: failures are logged
// and the local state is cleared regardless, since this runs on shutdown.
func (m *Manager) Unsubscribe(ctx context.Context) {
	m.mu.Lock()
	had := m.active != nil
	m.active = nil
	m.mu.Unlock()

	if !had {
		return
	}
	if err := m.client.DeleteSubscription(ctx); err != nil {
		m.logger.Error("webhook unsubscribe failed", "error", err.Error())
		return
	}
	m.logger.Info("webhook subscription removed")
}

// Active returns the current registration, if any.
func (m *Manager) Active() (models.Subscription, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return models.Subscription{}, false
	}
	return *m.active, true
}

// Matches reports whether a delivery's correlation token belongs to the
// current registration.
func (m *Manager) Matches(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil && token == m.active.CorrelationToken
}
