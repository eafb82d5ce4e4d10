package discovery

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rickardjd/Easy-IP/internal/protocol"
)

// ErrIncompleteAttributes reports a response missing a mandatory field
// (hardware address or IP). Such responses are dropped by the session,
// never surfaced as devices.
var ErrIncompleteAttributes = errors.New("discovery: incomplete attributes")

// recorderModelPrefixes are the i-PRO recorder model families. The
// fallback exists because older recorder firmware omits the channel
// count tag entirely.
var recorderModelPrefixes = []string{"NX", "WJ"}

// Defaults applied when a tag is absent, matching what the official
// tool displays.
const (
	defaultSubnetMask = "255.255.255.0"
	defaultGateway    = "0.0.0.0"
	defaultHTTPPort   = 80
	defaultName       = "Device"
	unknownField      = "Unknown"
)

// Classify turns a decoded attribute set into a Device descriptor.
//
// The recorder decision is layered: a present, non-zero channel count
// tag wins outright; otherwise the model name prefix decides; anything
// else is a camera. Recorder extras are only parsed once the kind is
// settled.
func Classify(attrs *protocol.AttributeSet, now time.Time) (*Device, error) {
	if len(attrs.HardwareAddr) != 6 {
		return nil, fmt.Errorf("%w: no hardware address", ErrIncompleteAttributes)
	}
	ip := attrs.IPv4(protocol.TagIPAddress)
	if ip == nil {
		return nil, fmt.Errorf("%w: no IP address", ErrIncompleteAttributes)
	}

	d := &Device{
		MAC:          attrs.HardwareAddr.String(),
		IP:           ip.String(),
		SubnetMask:   defaultSubnetMask,
		Gateway:      defaultGateway,
		HTTPPort:     defaultHTTPPort,
		Mode:         ModeUnknown,
		DiscoveredAt: now,
	}

	if mask := attrs.IPv4(protocol.TagSubnetMask); mask != nil {
		d.SubnetMask = mask.String()
	}
	if gw := attrs.IPv4(protocol.TagGateway); gw != nil {
		d.Gateway = gw.String()
	}
	if port, ok := attrs.Uint16(protocol.TagHTTPPort); ok {
		d.HTTPPort = int(port)
	}

	d.ModelName = stringOr(attrs, protocol.TagModelName, unknownField)
	d.DeviceName = stringOr(attrs, protocol.TagDeviceName, defaultName)
	d.Firmware = stringOr(attrs, protocol.TagFirmware, unknownField)
	d.SerialNumber = stringOr(attrs, protocol.TagSerialNumber, unknownField)

	if v := attrs.Bytes(protocol.TagNetworkMode); len(v) >= 1 {
		d.Mode = networkMode(v[0])
	}
	if v := attrs.Bytes(protocol.TagDeviceTypeCode); len(v) >= 1 {
		d.TypeCode = v[0]
	}

	channels, hasChannels := attrs.Uint16(protocol.TagChannelCount)
	switch {
	case hasChannels && channels > 0:
		d.Kind = KindRecorder
	case hasRecorderPrefix(d.ModelName):
		d.Kind = KindRecorder
	default:
		d.Kind = KindCamera
	}

	if d.Kind == KindRecorder {
		d.Recorder = &RecorderInfo{Channels: int(channels)}
		if capacity, ok := attrs.Uint16(protocol.TagCapacity); ok {
			d.Recorder.Capacity = int(capacity)
		}
	}

	return d, nil
}

func stringOr(attrs *protocol.AttributeSet, tag uint16, fallback string) string {
	if s := attrs.String(tag); s != "" {
		return s
	}
	return fallback
}

func hasRecorderPrefix(model string) bool {
	for _, prefix := range recorderModelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func networkMode(v byte) NetworkMode {
	switch v {
	case 0:
		return ModeDHCP
	case 2:
		return ModeStatic
	case 4:
		return ModeAutoIP
	case 5:
		return ModeAutoAdvanced
	default:
		return NetworkMode(fmt.Sprintf("Unknown (%d)", v))
	}
}
