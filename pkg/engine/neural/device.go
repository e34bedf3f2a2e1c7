package neural

import (
	"fmt"
	"strings"
)

// Device selects where inference runs.
type Device string

const (
	DeviceAuto Device = "auto" // GPU when the runtime offers one, else CPU
	DeviceCPU  Device = "cpu"
	DeviceGPU  Device = "gpu"
)

// ParseDevice validates a device name. The empty string means DeviceAuto.
func ParseDevice(s string) (Device, error) {
	switch d := Device(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DeviceAuto, nil
	case DeviceAuto, DeviceCPU, DeviceGPU:
		return d, nil
	}
	return "", fmt.Errorf("unknown device %q (want auto, cpu or gpu)", s)
}
