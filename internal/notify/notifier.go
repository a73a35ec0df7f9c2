package notify

import (
	"sync"

	"github.com/ringlink/ringlink/internal/logging"
)

// Notifier is the user-facing notice channel. Notices are keyed: pushing a
// key that is already active is a no-op, so at most one notice per key is
// visible at a time. Clear removes the notice and re-arms the key.
type Notifier interface {
	Push(key, message string)
	Clear(key string)
	Active(key string) bool
}

// Notice keys.
const (
	KeyAuthorization = "auth"
)

// Board tracks which notice keys are currently visible. It wraps a delivery
// function so the same dedup logic serves every backend.
type Board struct {
	mu     sync.Mutex
	active map[string]string
	send   func(key, message string)
	logger *logging.Logger
}

// NewBoard creates a notice board delivering through send. A nil send
// function makes the board log-only.
func NewBoard(send func(key, message string)) *Board {
	return &Board{
		active: make(map[string]string),
		send:   send,
		logger: logging.NewLogger(),
	}
}

// Push makes the notice visible if the key is not already active.
func (b *Board) Push(key, message string) {
	b.mu.Lock()
	if _, exists := b.active[key]; exists {
		b.mu.Unlock()
		b.logger.Debug("notice already active", "key", key)
		return
	}
	b.active[key] = message
	send := b.send
	b.mu.Unlock()

	b.logger.Info("notice pushed", "key", key)
	if send != nil {
		send(key, message)
	}
}

// Clear removes the notice and allows the key to fire again.
func (b *Board) Clear(key string) {
	b.mu.Lock()
	_, existed := b.active[key]
	delete(b.active, key)
	b.mu.Unlock()

	if existed {
		b.logger.Info("notice cleared", "key", key)
	}
}

// Active reports whether a notice with the key is currently visible.
func (b *Board) Active(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.active[key]
	return ok
}

var _ Notifier = (*Board)(nil)
