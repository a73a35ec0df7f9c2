package models

// EventKind is the type of an inbound webhook event.
type EventKind string

const (
	EventDing   EventKind = "new-ding"
	EventMotion EventKind = "new-motion"
)

// Recognized reports whether the kind is one we dispatch on.
func (k EventKind) Recognized() bool {
	return k == EventDing || k == EventMotion
}

// WebhookEvent is one inbound delivery from the Ring push service. It is
// consumed synchronously by the dispatcher and never stored.
type WebhookEvent struct {
	Event EventKind `json:"event"`
	ID    string    `json:"id"`
	Data  struct {
		Doorbell struct {
			ID          int64  `json:"id"`
			Description string `json:"description"`
		} `json:"doorbell"`
	} `json:"data"`

	// CorrelationToken is lifted from the transport Pragma header, not the
	// JSON body.
	CorrelationToken string `json:"-"`
}

// Subscription is the active webhook registration. Replaced wholesale on
// every (re)subscribe; the correlation token identifies deliveries belonging
// to this registration.
type Subscription struct {
	PostbackURL      string `json:"postback_url"`
	CorrelationToken string `json:"correlation_token"`
}
