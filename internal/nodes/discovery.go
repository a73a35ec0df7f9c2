package nodes

import (
	"context"
	"time"

	"github.com/ringlink/ringlink/internal/logging"
	"github.com/ringlink/ringlink/internal/models"
	"github.com/ringlink/ringlink/internal/store"
)

// API is the slice of the Ring client discovery needs.
type API interface {
	DeviceSource
	LightControl
}

// Discovery turns the device listing into nodes. Safe to run repeatedly:
// already-known nodes are left alone.
type Discovery struct {
	client       API
	registry     *Registry
	reporter     Reporter
	store        store.Store
	motionWindow time.Duration
	subscribe    func(ctx context.Context, deviceNodes int) error
	logger       *logging.Logger
}

// NewDiscovery creates a discovery runner. subscribe is called after each
// run with the device node count; pass nil to skip subscription handling.
func NewDiscovery(client API, registry *Registry, reporter Reporter, st store.Store,
	motionWindow time.Duration, subscribe func(ctx context.Context, deviceNodes int) error) *Discovery {
	return &Discovery{
		client:       client,
		registry:     registry,
		reporter:     reporter,
		store:        st,
		motionWindow: motionWindow,
		subscribe:    subscribe,
		logger:       logging.NewLogger(),
	}
}

// Run lists devices, creates any missing nodes, refreshes status from the
// listing, and (re)subscribes the webhook.
func (d *Discovery) Run(ctx context.Context) error {
	listing, err := d.client.Devices(ctx)
	if err != nil {
		d.logger.Error("device listing failed", "error", err.Error())
		return err
	}

	added := 0
	for _, dev := range append(append([]models.Device{}, listing.Doorbells...), listing.AuthorizedDoorbells...) {
		added += d.addDeviceNodes(dev, models.KindDoorbell)
	}
	for _, dev := range listing.StickupCams {
		added += d.addDeviceNodes(dev, models.KindCamera)
	}

	d.registry.Each(func(n Node) {
		if r, ok := n.(Refresher); ok {
			r.Refresh(listing)
		}
	})

	d.logger.Info("discovery complete",
		"nodes_added", added, "device_nodes", d.registry.DeviceNodeCount())

	if d.subscribe != nil {
		return d.subscribe(ctx, d.registry.DeviceNodeCount())
	}
	return nil
}

// addDeviceNodes creates the node set for one device: the main node, its
// motion companion, and a floodlight node when the hardware kind carries
// controllable lighting.
func (d *Discovery) addDeviceNodes(dev models.Device, kind models.DeviceKind) int {
	added := 0

	var main Node
	if kind == models.KindDoorbell {
		main = NewDoorbellNode(dev, d.reporter, d.client)
	} else {
		main = NewCameraNode(dev, d.reporter, d.client)
	}
	if d.registry.Add(main) {
		d.announce(main)
		added++
	}

	motionNode := NewMotionNode(dev, d.reporter, d.motionWindow)
	if d.registry.Add(motionNode) {
		d.announce(motionNode)
		added++
	}

	if models.HasLighting(dev.Kind) {
		light := NewFloodlightNode(dev, d.reporter, d.client)
		if d.registry.Add(light) {
			d.announce(light)
			added++
		}
	}

	if d.store != nil {
		cached := dev
		cached.UpdatedAt = time.Now()
		if cached.Unit == "" {
			cached.Unit = models.BatteryPercent
		}
		if err := d.store.SetDevice(&cached); err != nil {
			d.logger.Error("device cache write failed", "device_id", dev.ID, "error", err.Error())
		}
	}
	return added
}

func (d *Discovery) announce(n Node) {
	if err := d.reporter.AddNode(n.Address(), n.Name(), n.Kind()); err != nil {
		d.logger.Error("node announce failed", "address", n.Address(), "error", err.Error())
		return
	}
	d.logger.Info("node added", "address", n.Address(), "name", n.Name(), "kind", n.Kind())
}
