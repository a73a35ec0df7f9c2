package nodes

import (
	"github.com/ringlink/ringlink/internal/models"
)

// batteryStatus reports a device's battery level. One component serves
// every battery-carrying node; the unit is a metadata fact on the device,
// not a property of the node type.
type batteryStatus struct {
	unit models.BatteryUnit
}

func newBatteryStatus(unit models.BatteryUnit) batteryStatus {
	if unit == "" {
		unit = models.BatteryPercent
	}
	return batteryStatus{unit: unit}
}

// report pushes the battery driver for dev to the given address. Percent
// readings are normalized (missing means fully charged, above 100 clamps);
// millivolt readings pass through raw.
func (b batteryStatus) report(r Reporter, address string, dev *models.Device) {
	if b.unit == models.BatteryMillivolt {
		if dev.BatteryLife == nil {
			return
		}
		r.SetDriver(address, DriverBattery, *dev.BatteryLife)
		return
	}
	r.SetDriver(address, DriverBattery, dev.BatteryPct())
}
