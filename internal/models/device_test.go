package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasLighting(t *testing.T) {
	assert.True(t, HasLighting("floodlight_v2"))
	assert.True(t, HasLighting("cocoa_floodlight"))
	assert.True(t, HasLighting("hp_cam_v1"))
	assert.True(t, HasLighting("hp_cam_v2"))
	assert.False(t, HasLighting("lpd_v1"))
	assert.False(t, HasLighting("stickup_cam_elite"))
}

func TestBatteryPct(t *testing.T) {
	// Missing battery_life defaults to fully charged
	dev := &Device{Unit: BatteryPercent}
	assert.Equal(t, 100.0, dev.BatteryPct())

	// Values above 100 percent are clamped
	high := 4003.0
	dev = &Device{BatteryLife: &high, Unit: BatteryPercent}
	assert.Equal(t, 100.0, dev.BatteryPct())

	// Millivolt devices are reported raw
	dev = &Device{BatteryLife: &high, Unit: BatteryMillivolt}
	assert.Equal(t, 4003.0, dev.BatteryPct())

	normal := 87.0
	dev = &Device{BatteryLife: &normal, Unit: BatteryPercent}
	assert.Equal(t, 87.0, dev.BatteryPct())

	// Listing entries carry no unit; they clamp like percent
	dev = &Device{BatteryLife: &high}
	assert.Equal(t, 100.0, dev.BatteryPct())
}

func TestEventKindRecognized(t *testing.T) {
	assert.True(t, EventDing.Recognized())
	assert.True(t, EventMotion.Recognized())
	assert.False(t, EventKind("new-unknown").Recognized())
	assert.False(t, EventKind("").Recognized())
}
