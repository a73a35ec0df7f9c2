package events

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ringlink/ringlink/internal/logging"
	"github.com/ringlink/ringlink/internal/metrics"
	"github.com/ringlink/ringlink/internal/models"
	"github.com/ringlink/ringlink/internal/nodes"
	"github.com/ringlink/ringlink/internal/store"
)

// TokenVerifier decides whether a delivery's correlation token belongs to
// the current webhook registration.
type TokenVerifier interface {
	Matches(token string) bool
}

// Dispatcher routes inbound webhook deliveries to nodes. Deliveries from a
// stale or foreign registration are answered 404 so the push service drops
// the registration; everything else is answered 200 even when nothing
// matched, since a retry would not change the outcome.
type Dispatcher struct {
	registry *nodes.Registry
	verifier TokenVerifier
	store    store.Store
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

func NewDispatcher(registry *nodes.Registry, verifier TokenVerifier, st store.Store, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		verifier: verifier,
		store:    st,
		metrics:  m,
		logger:   logging.NewLogger(),
	}
}

// Handle is the gin handler for POST /event.
func (d *Dispatcher) Handle(c *gin.Context) {
	token := c.GetHeader("Pragma")
	if !d.verifier.Matches(token) {
		d.logger.Info("webhook delivery with stale correlation token", "token", token)
		d.record("stale_token")
		c.Status(http.StatusNotFound)
		return
	}

	// A malformed body is still acknowledged so the push service does not
	// retry a delivery that can never parse.
	var evt models.WebhookEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		d.logger.Error("webhook body unreadable", "error", err.Error())
		d.record("bad_body")
		c.Status(http.StatusOK)
		return
	}
	evt.CorrelationToken = token

	if !evt.Event.Recognized() {
		d.logger.Info("ignoring unrecognized event kind", "kind", string(evt.Event))
		d.record("unrecognized")
		c.Status(http.StatusOK)
		return
	}

	deviceID := evt.Data.Doorbell.ID
	address := strconv.FormatInt(deviceID, 10)
	if evt.Event == models.EventMotion {
		address = nodes.MotionAddress(address)
	}

	node, ok := d.registry.Get(address)
	if !ok {
		d.logger.Info("event for unknown node",
			"address", address, "kind", string(evt.Event))
		d.record("unknown_node")
		c.Status(http.StatusOK)
		return
	}

	d.logger.Info("dispatching event",
		"kind", string(evt.Event), "address", address,
		"description", evt.Data.Doorbell.Description)

	// Acknowledge before the node acts so a slow handler cannot make the
	// push service consider the delivery failed.
	go d.deliver(node, evt, deviceID, token)

	d.record("dispatched")
	c.Status(http.StatusOK)
}

func (d *Dispatcher) deliver(node nodes.Node, evt models.WebhookEvent, deviceID int64, token string) {
	switch n := node.(type) {
	case *nodes.DoorbellNode:
		n.Ding()
	case *nodes.MotionNode:
		n.Motion()
		if d.metrics != nil {
			d.metrics.RecordMotionWindow("started")
		}
	default:
		d.logger.Error("event matched a node that handles no events",
			"address", node.Address(), "kind", string(evt.Event))
		return
	}

	if d.store != nil {
		if err := d.store.AppendEvent(string(evt.Event), deviceID, token); err != nil {
			d.logger.Error("event log write failed", "error", err.Error())
		}
	}
}

func (d *Dispatcher) record(outcome string) {
	if d.metrics != nil {
		d.metrics.RecordWebhookDelivery(outcome)
	}
}
