package discovery

import (
	"fmt"
	"time"
)

// Kind is the device classification decided once by Classify. Nothing
// downstream re-inspects model strings; consumers switch on Kind.
type Kind string

const (
	KindCamera   Kind = "camera"
	KindRecorder Kind = "recorder"
)

// NetworkMode is the device's address assignment mode as reported in
// the network-mode tag.
type NetworkMode string

const (
	ModeDHCP         NetworkMode = "DHCP"
	ModeStatic       NetworkMode = "Static"
	ModeAutoIP       NetworkMode = "Auto (AutoIP)"
	ModeAutoAdvanced NetworkMode = "Auto Advanced"
	ModeUnknown      NetworkMode = "Unknown"
)

// Device is the normalized, scan-scoped view of one responder. It is a
// transient value: the registry copies what it needs during
// reconciliation and never holds on to a Device.
type Device struct {
	// MAC is the colon-hex hardware address, the only identity that
	// survives IP changes.
	MAC string

	Kind         Kind
	SerialNumber string
	ModelName    string
	DeviceName   string
	Firmware     string

	IP         string
	SubnetMask string
	Gateway    string
	HTTPPort   int
	Mode       NetworkMode

	// TypeCode is the raw device type code from tag 0xa6, kept for
	// diagnostics. It is 0x92 on every i-PRO model and is not what
	// the classifier keys on.
	TypeCode byte

	// Recorder holds recorder-only extras; nil for cameras.
	Recorder *RecorderInfo

	DiscoveredAt time.Time
}

// RecorderInfo carries the fields only recorders report.
type RecorderInfo struct {
	Channels int
	Capacity int
}

// String returns a human-readable one-line representation.
func (d *Device) String() string {
	label := "Camera"
	if d.Kind == KindRecorder {
		label = "Recorder"
	}
	return fmt.Sprintf("%s %s (%s) at %s:%d", label, d.DeviceName, d.MAC, d.IP, d.HTTPPort)
}

// BaseURL returns the device's HTTP endpoint.
func (d *Device) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", d.IP, d.HTTPPort)
}
