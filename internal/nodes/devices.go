package nodes

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/ringlink/ringlink/internal/logging"
	"github.com/ringlink/ringlink/internal/models"
	"github.com/ringlink/ringlink/internal/motion"
)

// Refresher is implemented by device nodes that can update their status
// from an already-fetched listing. The short poll uses it so one listing
// serves every node.
type Refresher interface {
	Refresh(listing *models.DeviceListing)
}

// DoorbellNode is the main node for a doorbell: ding annunciation plus
// battery status.
type DoorbellNode struct {
	id       int64
	address  string
	name     string
	reporter Reporter
	source   DeviceSource
	battery  batteryStatus
	logger   *logging.Logger
}

func NewDoorbellNode(dev models.Device, reporter Reporter, source DeviceSource) *DoorbellNode {
	return &DoorbellNode{
		id:       dev.ID,
		address:  strconv.FormatInt(dev.ID, 10),
		name:     dev.Description,
		reporter: reporter,
		source:   source,
		battery:  newBatteryStatus(dev.Unit),
		logger:   logging.NewLogger(),
	}
}

func (n *DoorbellNode) Address() string { return n.address }
func (n *DoorbellNode) Name() string    { return n.name }
func (n *DoorbellNode) Kind() string    { return KindDoorbell }

func (n *DoorbellNode) Handlers() map[Command]HandlerFunc {
	return map[Command]HandlerFunc{
		CmdQuery: n.query,
	}
}

// Ding annunciates a doorbell press. Momentary: the command is the signal,
// no driver state is left behind.
func (n *DoorbellNode) Ding() {
	n.logger.Info("doorbell ding", "address", n.address, "name", n.name)
	n.reporter.SendCommand(n.address, CmdOn)
}

func (n *DoorbellNode) query(ctx context.Context) error {
	listing, err := n.source.Devices(ctx)
	if err != nil {
		n.reporter.SetDriver(n.address, DriverError, 1)
		return err
	}
	n.Refresh(listing)
	return nil
}

func (n *DoorbellNode) Refresh(listing *models.DeviceListing) {
	dev, ok := findDevice(listing, n.id)
	if !ok {
		n.logger.Error("device missing from listing", "address", n.address)
		n.reporter.SetDriver(n.address, DriverError, 1)
		return
	}
	n.reporter.SetDriver(n.address, DriverError, 0)
	n.battery.report(n.reporter, n.address, dev)
}

// CameraNode is the main node for a stickup or floodlight cam: battery and
// health. Motion for the camera is carried by its companion motion node.
type CameraNode struct {
	id       int64
	address  string
	name     string
	reporter Reporter
	source   DeviceSource
	battery  batteryStatus
	logger   *logging.Logger
}

func NewCameraNode(dev models.Device, reporter Reporter, source DeviceSource) *CameraNode {
	return &CameraNode{
		id:       dev.ID,
		address:  strconv.FormatInt(dev.ID, 10),
		name:     dev.Description,
		reporter: reporter,
		source:   source,
		battery:  newBatteryStatus(dev.Unit),
		logger:   logging.NewLogger(),
	}
}

func (n *CameraNode) Address() string { return n.address }
func (n *CameraNode) Name() string    { return n.name }
func (n *CameraNode) Kind() string    { return KindCamera }

func (n *CameraNode) Handlers() map[Command]HandlerFunc {
	return map[Command]HandlerFunc{
		CmdQuery: n.query,
	}
}

func (n *CameraNode) query(ctx context.Context) error {
	listing, err := n.source.Devices(ctx)
	if err != nil {
		n.reporter.SetDriver(n.address, DriverError, 1)
		return err
	}
	n.Refresh(listing)
	return nil
}

func (n *CameraNode) Refresh(listing *models.DeviceListing) {
	dev, ok := findDevice(listing, n.id)
	if !ok {
		n.logger.Error("device missing from listing", "address", n.address)
		n.reporter.SetDriver(n.address, DriverError, 1)
		return
	}
	n.reporter.SetDriver(n.address, DriverError, 0)
	n.battery.report(n.reporter, n.address, dev)
}

// MotionNode carries debounced motion for a device. Each trigger opens or
// extends a motion window; the window closing is synthesized locally since
// the provider never sends a motion-ended event.
type MotionNode struct {
	address  string
	name     string
	reporter Reporter
	debounce *motion.Debouncer
	logger   *logging.Logger
}

func NewMotionNode(dev models.Device, reporter Reporter, window time.Duration) *MotionNode {
	n := &MotionNode{
		address:  MotionAddress(strconv.FormatInt(dev.ID, 10)),
		name:     dev.Description + " Motion",
		reporter: reporter,
		logger:   logging.NewLogger(),
	}
	n.debounce = motion.NewDebouncer(window, n.windowStarted, n.windowEnded)
	return n
}

func (n *MotionNode) Address() string { return n.address }
func (n *MotionNode) Name() string    { return n.name }
func (n *MotionNode) Kind() string    { return KindMotion }

func (n *MotionNode) Handlers() map[Command]HandlerFunc {
	return map[Command]HandlerFunc{
		CmdQuery: n.query,
	}
}

// Motion records one motion trigger from the webhook dispatcher.
func (n *MotionNode) Motion() {
	n.debounce.Trigger()
}

// Stop cancels any open motion window. Used on shutdown.
func (n *MotionNode) Stop() {
	n.debounce.Stop()
}

func (n *MotionNode) windowStarted() {
	n.logger.Info("motion started", "address", n.address)
	n.reporter.SetDriver(n.address, DriverStatus, 1)
	n.reporter.SendCommand(n.address, CmdOn)
}

func (n *MotionNode) windowEnded() {
	n.logger.Info("motion ended", "address", n.address)
	n.reporter.SetDriver(n.address, DriverStatus, 0)
	n.reporter.SendCommand(n.address, CmdOff)
}

func (n *MotionNode) query(context.Context) error {
	value := float64(0)
	if n.debounce.CurrentState() == motion.Active {
		value = 1
	}
	n.reporter.SetDriver(n.address, DriverStatus, value)
	return nil
}

// FloodlightNode switches the light on cameras that carry one.
type FloodlightNode struct {
	id       int64
	address  string
	name     string
	reporter Reporter
	lights   LightControl
	logger   *logging.Logger

	mu sync.Mutex
	on bool
}

func NewFloodlightNode(dev models.Device, reporter Reporter, lights LightControl) *FloodlightNode {
	return &FloodlightNode{
		id:       dev.ID,
		address:  LightAddress(strconv.FormatInt(dev.ID, 10)),
		name:     dev.Description + " Light",
		reporter: reporter,
		lights:   lights,
		logger:   logging.NewLogger(),
	}
}

func (n *FloodlightNode) Address() string { return n.address }
func (n *FloodlightNode) Name() string    { return n.name }
func (n *FloodlightNode) Kind() string    { return KindFloodlight }

func (n *FloodlightNode) Handlers() map[Command]HandlerFunc {
	return map[Command]HandlerFunc{
		CmdOn:    func(ctx context.Context) error { return n.set(ctx, true) },
		CmdOff:   func(ctx context.Context) error { return n.set(ctx, false) },
		CmdQuery: n.query,
	}
}

func (n *FloodlightNode) set(ctx context.Context, on bool) error {
	if err := n.lights.SetFloodlight(ctx, n.id, on); err != nil {
		n.logger.Error("floodlight switch failed", "address", n.address, "error", err.Error())
		n.reporter.SetDriver(n.address, DriverError, 1)
		return err
	}
	n.mu.Lock()
	n.on = on
	n.mu.Unlock()

	value := float64(0)
	if on {
		value = 1
	}
	n.reporter.SetDriver(n.address, DriverError, 0)
	n.reporter.SetDriver(n.address, DriverStatus, value)
	return nil
}

func (n *FloodlightNode) query(context.Context) error {
	n.mu.Lock()
	on := n.on
	n.mu.Unlock()
	value := float64(0)
	if on {
		value = 1
	}
	n.reporter.SetDriver(n.address, DriverStatus, value)
	return nil
}

func findDevice(listing *models.DeviceListing, id int64) (*models.Device, bool) {
	for _, group := range [][]models.Device{listing.Doorbells, listing.AuthorizedDoorbells, listing.StickupCams} {
		for i := range group {
			if group[i].ID == id {
				return &group[i], true
			}
		}
	}
	return nil, false
}
