package protocol

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"
)

// TLV tag codes observed in search responses. Unlisted tags still
// parse; they are carried through the attribute set as opaque bytes so
// newer firmware fields survive a round trip.
const (
	TagNetworkMode    = 0x0000 // 1 byte: 0=DHCP, 2=Static, 4=AutoIP, 5=Auto Advanced
	TagIPAddress      = 0x0020 // 4 bytes
	TagSubnetMask     = 0x0021 // 4 bytes
	TagGateway        = 0x0022 // 4 bytes
	TagHTTPPort       = 0x0025 // 2 bytes, big-endian
	TagDeviceTypeCode = 0x00a6 // 1 byte; 0x92 on every i-PRO model, not a reliable kind indicator
	TagDeviceName     = 0x00a7 // string, null padded
	TagModelName      = 0x00a8 // string, null padded
	TagFirmware       = 0x00a9 // string, null padded
	TagChannelCount   = 0x00c0 // 2 bytes, recorders only
	TagCapacity       = 0x00c1 // 2 bytes, recorders only
	TagSerialNumber   = 0x00d1 // string, null padded
	TagTerminator     = 0xffff
)

// Response frame offsets. TLV records begin after a fixed preamble.
const (
	respMACOffset = 6
	respTLVOffset = 0x30

	// MinResponseSize is the shortest decodable response: the full
	// preamble with an empty TLV section.
	MinResponseSize = respTLVOffset
)

// AttributeSet is the decoded form of one search response: the preamble
// fields plus every TLV record keyed by tag code. Values are raw bytes;
// interpretation belongs to the discovery classifier.
type AttributeSet struct {
	MessageType  uint16
	HardwareAddr net.HardwareAddr
	Tags         map[uint16][]byte
}

// Has reports whether the response carried the given tag.
func (a *AttributeSet) Has(tag uint16) bool {
	_, ok := a.Tags[tag]
	return ok
}

// Bytes returns the raw value for tag, or nil when absent.
func (a *AttributeSet) Bytes(tag uint16) []byte {
	return a.Tags[tag]
}

// IPv4 interprets the tag value as a dotted-quad address. Returns nil
// when the tag is absent or not 4 bytes.
func (a *AttributeSet) IPv4(tag uint16) net.IP {
	v := a.Tags[tag]
	if len(v) != 4 {
		return nil
	}
	return net.IPv4(v[0], v[1], v[2], v[3])
}

// Uint16 interprets the tag value as a big-endian uint16.
func (a *AttributeSet) Uint16(tag uint16) (uint16, bool) {
	v := a.Tags[tag]
	if len(v) != 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(v), true
}

// String interprets the tag value as a null-padded string, trimmed of
// trailing zero bytes and surrounding whitespace.
func (a *AttributeSet) String(tag uint16) string {
	s := strings.TrimRight(string(a.Tags[tag]), "\x00")
	return strings.TrimSpace(s)
}

// ParseSearchResponse decodes a raw response datagram into an attribute
// set. It is a pure function: on error nothing is partially decoded.
//
// The frame fails with ErrMalformedFrame when it is shorter than the
// preamble, when the protocol id does not match, or when a TLV record
// declares a length that would read past the end of the frame.
func ParseSearchResponse(data []byte) (*AttributeSet, error) {
	if len(data) < MinResponseSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedFrame, len(data), MinResponseSize)
	}

	if id := binary.BigEndian.Uint16(data[0:2]); id != ProtocolID {
		return nil, fmt.Errorf("%w: protocol id 0x%04x, expected 0x%04x", ErrMalformedFrame, id, ProtocolID)
	}

	attrs := &AttributeSet{
		MessageType:  binary.BigEndian.Uint16(data[2:4]),
		HardwareAddr: net.HardwareAddr(append([]byte(nil), data[respMACOffset:respMACOffset+6]...)),
		Tags:         make(map[uint16][]byte),
	}

	offset := respTLVOffset
	for offset+4 <= len(data) {
		tag := binary.BigEndian.Uint16(data[offset : offset+2])
		if tag == TagTerminator {
			break
		}
		length := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		if offset+4+length > len(data) {
			return nil, fmt.Errorf("%w: tag 0x%04x declares %d bytes past frame end", ErrMalformedFrame, tag, length)
		}
		attrs.Tags[tag] = append([]byte(nil), data[offset+4:offset+4+length]...)
		offset += 4 + length
	}

	return attrs, nil
}
