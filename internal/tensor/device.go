package tensor

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Device represents the compute device type for tensor placement.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	CUDA
	Vulkan
	Metal
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case Vulkan:
		return "Vulkan"
	case Metal:
		return "Metal"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// ParseDevice converts a device name (case-insensitive) to a Device.
func ParseDevice(name string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cpu":
		return CPU, nil
	case "cuda", "gpu":
		return CUDA, nil
	case "vulkan":
		return Vulkan, nil
	case "metal":
		return Metal, nil
	case "webgpu":
		return WebGPU, nil
	default:
		return CPU, errors.Errorf("unknown device %q", name)
	}
}

// DeviceOption pins a tensor or operator to a concrete device.
// The zero value is the default placement, CPU:0.
type DeviceOption struct {
	Device   Device `json:"device" yaml:"device"`
	DeviceID int    `json:"deviceId,omitempty" yaml:"device_id,omitempty"`
}

func (o DeviceOption) String() string {
	return fmt.Sprintf("%s:%d", o.Device, o.DeviceID)
}

// MarshalText implements encoding.TextMarshaler.
func (d Device) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Device) UnmarshalText(text []byte) error {
	parsed, err := ParseDevice(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
