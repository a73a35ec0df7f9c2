package nodes

import (
	"context"

	"github.com/ringlink/ringlink/internal/models"
)

// Command is a node command from the controller framework.
type Command string

const (
	CmdOn       Command = "DON"
	CmdOff      Command = "DOF"
	CmdQuery    Command = "QUERY"
	CmdDiscover Command = "DISCOVER"
)

// Driver identifies a status value a node reports upward.
type Driver string

const (
	DriverStatus  Driver = "ST"
	DriverError   Driver = "ERR"
	DriverBattery Driver = "BATLVL"
)

// Node kinds as reported to the controller framework.
const (
	KindController = "controller"
	KindDoorbell   = "doorbell"
	KindCamera     = "camera"
	KindMotion     = "motion"
	KindFloodlight = "floodlight"
)

// HandlerFunc handles one command for one node.
type HandlerFunc func(ctx context.Context) error

// Node is one addressable unit in the controller framework. Handlers
// returns the node's dispatch table; commands absent from the table are
// rejected by the registry.
type Node interface {
	Address() string
	Name() string
	Kind() string
	Handlers() map[Command]HandlerFunc
}

// Reporter is the upward-facing side of the controller framework: node
// creation, driver values, and momentary commands (a ding, a motion
// start/end). Implementations must be safe for concurrent use.
type Reporter interface {
	AddNode(address, name, kind string) error
	SetDriver(address string, driver Driver, value float64)
	SendCommand(address string, cmd Command)
}

// DeviceSource provides the current device listing. Satisfied by the Ring
// API client.
type DeviceSource interface {
	Devices(ctx context.Context) (*models.DeviceListing, error)
}

// LightControl switches a device's floodlight. Satisfied by the Ring API
// client.
type LightControl interface {
	SetFloodlight(ctx context.Context, deviceID int64, on bool) error
}

// MotionAddress is the node address carrying motion for a device.
func MotionAddress(deviceID string) string { return deviceID + "m" }

// LightAddress is the node address carrying the floodlight for a device.
func LightAddress(deviceID string) string { return deviceID + "l" }
