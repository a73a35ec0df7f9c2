package poll

import (
	"context"
	"time"

	"github.com/ringlink/ringlink/internal/errors"
	"github.com/ringlink/ringlink/internal/logging"
	"github.com/ringlink/ringlink/internal/metrics"
	"github.com/ringlink/ringlink/internal/nodes"
)

// Poll kinds for the reentry guard and metrics.
const (
	KindShort = "short"
	KindLong  = "long"
)

// DefaultLockWait bounds how long a tick waits for the previous tick of
// the same kind to finish before abandoning.
const DefaultLockWait = 500 * time.Millisecond

// Poller drives the periodic work: the short poll refreshes node status
// from one device listing, the long poll rotates the webhook subscription.
// Each kind holds a named lock so a slow tick cannot stack up behind
// itself; a tick that cannot take the lock within the wait is abandoned.
type Poller struct {
	registry    *nodes.Registry
	source      nodes.DeviceSource
	resubscribe func(ctx context.Context) error
	metrics     *metrics.Metrics
	logger      *logging.Logger

	shortEvery time.Duration
	longEvery  time.Duration
	lockWait   time.Duration

	locks map[string]chan struct{}
}

// Option configures a Poller.
type Option func(*Poller)

// WithLockWait bounds how long a tick waits on the reentry lock.
func WithLockWait(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.lockWait = d
		}
	}
}

// NewPoller creates a poller. resubscribe runs on every long tick.
func NewPoller(registry *nodes.Registry, source nodes.DeviceSource,
	resubscribe func(ctx context.Context) error,
	shortEvery, longEvery time.Duration, m *metrics.Metrics, opts ...Option) *Poller {
	p := &Poller{
		registry:    registry,
		source:      source,
		resubscribe: resubscribe,
		metrics:     m,
		logger:      logging.NewLogger(),
		shortEvery:  shortEvery,
		longEvery:   longEvery,
		lockWait:    DefaultLockWait,
		locks: map[string]chan struct{}{
			KindShort: make(chan struct{}, 1),
			KindLong:  make(chan struct{}, 1),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs both tickers until the context is cancelled.
func (p *Poller) Start(ctx context.Context) {
	go p.loop(ctx, KindShort, p.shortEvery, p.ShortPoll)
	go p.loop(ctx, KindLong, p.longEvery, p.LongPoll)
}

func (p *Poller) loop(ctx context.Context, kind string, every time.Duration, tick func(context.Context) error) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := tick(ctx); err != nil {
				p.logger.Error("poll tick failed", "kind", kind, "error", err.Error())
				p.record(kind, "error")
			} else {
				p.record(kind, "ok")
			}
		}
	}
}

// ShortPoll fetches the device listing once and refreshes every node that
// can consume it.
func (p *Poller) ShortPoll(ctx context.Context) error {
	release, err := p.acquire(KindShort)
	if err != nil {
		return err
	}
	defer release()

	listing, err := p.source.Devices(ctx)
	if err != nil {
		return err
	}

	refreshed := 0
	p.registry.Each(func(n nodes.Node) {
		if r, ok := n.(nodes.Refresher); ok {
			r.Refresh(listing)
			refreshed++
		}
	})
	p.logger.Debug("short poll complete", "nodes_refreshed", refreshed)
	return nil
}

// LongPoll rotates the webhook subscription so the registration never goes
// stale on the provider side.
func (p *Poller) LongPoll(ctx context.Context) error {
	release, err := p.acquire(KindLong)
	if err != nil {
		return err
	}
	defer release()

	return p.resubscribe(ctx)
}

// acquire takes the named lock for kind, waiting at most lockWait.
func (p *Poller) acquire(kind string) (func(), error) {
	lock := p.locks[kind]
	timer := time.NewTimer(p.lockWait)
	defer timer.Stop()
	select {
	case lock <- struct{}{}:
		return func() { <-lock }, nil
	case <-timer.C:
		p.logger.Info("poll tick abandoned, previous tick still running", "kind", kind)
		if p.metrics != nil {
			p.metrics.RecordPollTick(kind, "busy")
		}
		return nil, &errors.ErrPollBusy{Kind: kind}
	}
}

func (p *Poller) record(kind, result string) {
	if p.metrics != nil {
		p.metrics.RecordPollTick(kind, result)
	}
}
