package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

// UDP ports used by the Easy IP Setup protocol (from packet capture:
// the official tool sends from 10669 and devices answer to it).
const (
	SourcePort    = 10669
	BroadcastPort = 10670
)

// ProtocolID is the 2-byte identifier that opens every Easy IP frame.
const ProtocolID = 0x0001

// Message types carried in the frame header at offset 2.
const (
	MsgTypeSearchRequest  = 0x002a
	MsgTypeSearchResponse = 0x0012
)

// RequestSize is the exact size of a search request frame.
const RequestSize = 94

// Sentinel errors returned by the codec.
var (
	// ErrInvalidAddress reports an encoder input of the wrong shape
	// (non 6-byte hardware address or non IPv4 source address).
	ErrInvalidAddress = errors.New("protocol: invalid address")

	// ErrMalformedFrame reports a response frame that cannot be decoded.
	ErrMalformedFrame = errors.New("protocol: malformed frame")
)

// commandBlock is the 8-byte discovery command constant at offset 4.
var commandBlock = [8]byte{0x00, 0x0d, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

// flagSegment is the 11-byte protocol constant at offset 22.
var flagSegment = [11]byte{0x00, 0x00, 0x20, 0x11, 0x1e, 0x11, 0x23, 0x1f, 0x1e, 0x19, 0x13}

// criticalSegment sits at offset 33. Its third byte (DeviceClassAll) is
// the device-class filter: recorders only answer when it is 0x02.
var criticalSegment = [4]byte{0x00, 0x00, DeviceClassAll, 0x01}

// DeviceClassAll enables responses from every device class. Earlier
// captures with 0x00 here received answers from cameras only.
const DeviceClassAll = 0x02

// categoryFilter requests all device categories.
var categoryFilter = [2]byte{0xff, 0xf0}

// trailer closes the request frame. Recorders ignore frames without it.
var trailer = [2]byte{0x11, 0x70}

// requestedTags is the ordered list of twenty tag codes the request
// asks each device to include in its response.
var requestedTags = [20]uint16{
	0x0026, TagIPAddress, TagSubnetMask, TagGateway, 0x0023,
	TagHTTPPort, 0x0028, 0x0040, 0x0041, 0x0042,
	0x0044, 0x00a5, TagDeviceTypeCode, TagDeviceName, TagModelName,
	0x00ad, 0x00b3, 0x00b4, 0x00b7, 0x00b8,
}

// BuildSearchRequest encodes the 94-byte discovery broadcast frame.
// mac and ip identify the sending interface; devices unicast their
// responses back to that address. The encoder fails only on a hardware
// address that is not 6 bytes or an IP that is not IPv4.
func BuildSearchRequest(mac net.HardwareAddr, ip net.IP) ([]byte, error) {
	if len(mac) != 6 {
		return nil, fmt.Errorf("%w: hardware address must be 6 bytes, got %d", ErrInvalidAddress, len(mac))
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("%w: source IP %v is not IPv4", ErrInvalidAddress, ip)
	}

	frame := make([]byte, 0, RequestSize)

	var header [4]byte
	binary.BigEndian.PutUint16(header[0:2], ProtocolID)
	binary.BigEndian.PutUint16(header[2:4], MsgTypeSearchRequest)
	frame = append(frame, header[:]...)

	frame = append(frame, commandBlock[:]...)
	frame = append(frame, mac...)
	frame = append(frame, ip4...)
	frame = append(frame, flagSegment[:]...)
	frame = append(frame, criticalSegment[:]...)
	frame = append(frame, make([]byte, 11)...) // zero pad
	frame = append(frame, categoryFilter[:]...)

	var code [2]byte
	for _, tag := range requestedTags {
		binary.BigEndian.PutUint16(code[:], tag)
		frame = append(frame, code[:]...)
	}
	binary.BigEndian.PutUint16(code[:], TagTerminator)
	frame = append(frame, code[:]...)

	frame = append(frame, trailer[:]...)

	return frame, nil
}
