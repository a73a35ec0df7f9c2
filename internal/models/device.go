package models

import (
	"regexp"
	"time"
)

// DeviceKind classifies a Ring device by its capability, not by the raw
// hardware kind string the API reports.
type DeviceKind string

const (
	KindDoorbell   DeviceKind = "doorbell"
	KindCamera     DeviceKind = "camera"
	KindFloodlight DeviceKind = "floodlight"
)

// BatteryUnit is the unit of the battery_life field for a device. The
// provider switched everything to percent in 2020, but the unit is kept as a
// device metadata fact so another provider change does not require a code
// change.
type BatteryUnit string

const (
	BatteryPercent   BatteryUnit = "percent"
	BatteryMillivolt BatteryUnit = "millivolt"
)

// Device is one entry of the Ring device listing.
type Device struct {
	ID          int64       `json:"id"`
	Description string      `json:"description"`
	Kind        string      `json:"kind"`
	BatteryLife *float64    `json:"battery_life,omitempty"`
	Unit        BatteryUnit `json:"-"`
	UpdatedAt   time.Time   `json:"-"`
}

// DeviceListing is the partitioned result of GET /devices.
type DeviceListing struct {
	Doorbells           []Device `json:"doorbells"`
	AuthorizedDoorbells []Device `json:"authorized_doorbells"`
	StickupCams         []Device `json:"stickup_cams"`
}

// hardware kinds with controllable lighting
var lightingKinds = []string{"hp_cam_v1", "hp_cam_v2"}
var lightingPattern = regexp.MustCompile(`floodlight`)

// HasLighting reports whether the device kind carries a controllable
// floodlight.
func HasLighting(kind string) bool {
	if lightingPattern.MatchString(kind) {
		return true
	}
	for _, k := range lightingKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// BatteryPct normalizes battery_life for reporting. The integrations API may
// omit the field for wired or offline devices (assume fully charged) and has
// been seen returning values above 100 (clamp).
func (d *Device) BatteryPct() float64 {
	if d.BatteryLife == nil {
		return 100
	}
	if d.Unit != BatteryMillivolt && *d.BatteryLife > 100 {
		return 100
	}
	return *d.BatteryLife
}
