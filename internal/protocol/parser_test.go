package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"testing"
)

// buildResponse assembles a synthetic search response frame: preamble
// with the given MAC, then the supplied TLV records in order, closed
// with the 0xffff terminator.
func buildResponse(mac net.HardwareAddr, tlvs ...[2]interface{}) []byte {
	frame := make([]byte, MinResponseSize)
	binary.BigEndian.PutUint16(frame[0:2], ProtocolID)
	binary.BigEndian.PutUint16(frame[2:4], MsgTypeSearchResponse)
	copy(frame[respMACOffset:], mac)

	for _, tlv := range tlvs {
		tag := tlv[0].(uint16)
		value := tlv[1].([]byte)
		var hdr [4]byte
		binary.BigEndian.PutUint16(hdr[0:2], tag)
		binary.BigEndian.PutUint16(hdr[2:4], uint16(len(value)))
		frame = append(frame, hdr[:]...)
		frame = append(frame, value...)
	}

	frame = append(frame, 0xff, 0xff)
	return frame
}

func tlv(tag uint16, value []byte) [2]interface{} {
	return [2]interface{}{tag, value}
}

func TestParseSearchResponse(t *testing.T) {
	mac := net.HardwareAddr{0xd4, 0x2d, 0xc5, 0x14, 0xc5, 0x70}
	frame := buildResponse(mac,
		tlv(TagNetworkMode, []byte{0x02}),
		tlv(TagIPAddress, []byte{192, 168, 1, 101}),
		tlv(TagHTTPPort, []byte{0x1f, 0x90}),
		tlv(TagModelName, []byte("WV-S1536L\x00\x00")),
	)

	attrs, err := ParseSearchResponse(frame)
	if err != nil {
		t.Fatalf("ParseSearchResponse() error = %v", err)
	}

	if attrs.MessageType != MsgTypeSearchResponse {
		t.Errorf("message type = 0x%04x, want 0x%04x", attrs.MessageType, MsgTypeSearchResponse)
	}
	if !bytes.Equal(attrs.HardwareAddr, mac) {
		t.Errorf("hardware addr = %v, want %v", attrs.HardwareAddr, mac)
	}
	if got := attrs.IPv4(TagIPAddress); got == nil || got.String() != "192.168.1.101" {
		t.Errorf("IP = %v, want 192.168.1.101", got)
	}
	if port, ok := attrs.Uint16(TagHTTPPort); !ok || port != 8080 {
		t.Errorf("HTTP port = %d (ok=%v), want 8080", port, ok)
	}
	if got := attrs.String(TagModelName); got != "WV-S1536L" {
		t.Errorf("model = %q, want %q (null padding trimmed)", got, "WV-S1536L")
	}
	if attrs.Has(TagSerialNumber) {
		t.Error("serial tag reported present on frame without one")
	}
}

func TestParseSearchResponse_UnknownTagsKept(t *testing.T) {
	// Tags we have never seen must survive decoding untouched so a
	// newer firmware's fields are not silently dropped.
	mac := net.HardwareAddr{1, 2, 3, 4, 5, 6}
	frame := buildResponse(mac,
		tlv(TagIPAddress, []byte{10, 0, 0, 9}),
		tlv(0x00e7, []byte{0xde, 0xad, 0xbe, 0xef}),
	)

	attrs, err := ParseSearchResponse(frame)
	if err != nil {
		t.Fatalf("ParseSearchResponse() error = %v", err)
	}
	if !bytes.Equal(attrs.Bytes(0x00e7), []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Errorf("unknown tag value = % x, want de ad be ef", attrs.Bytes(0x00e7))
	}
}

func TestParseSearchResponse_TerminatorStopsParsing(t *testing.T) {
	mac := net.HardwareAddr{1, 2, 3, 4, 5, 6}
	frame := buildResponse(mac, tlv(TagIPAddress, []byte{10, 0, 0, 9}))
	// Garbage after the terminator must be ignored, not decoded.
	frame = append(frame, 0x00, 0x20, 0xff, 0xff)

	attrs, err := ParseSearchResponse(frame)
	if err != nil {
		t.Fatalf("ParseSearchResponse() error = %v", err)
	}
	if len(attrs.Tags) != 1 {
		t.Errorf("parsed %d tags, want 1", len(attrs.Tags))
	}
}

func TestParseSearchResponse_Malformed(t *testing.T) {
	mac := net.HardwareAddr{1, 2, 3, 4, 5, 6}

	badID := buildResponse(mac)
	badID[0] = 0x7e

	overrun := buildResponse(mac)
	// TLV claiming 200 bytes of value with only the terminator behind it.
	overrun = overrun[:MinResponseSize]
	overrun = append(overrun, 0x00, 0x20, 0x00, 0xc8, 0x01, 0x02)

	tests := []struct {
		name  string
		frame []byte
	}{
		{name: "empty", frame: nil},
		{name: "shorter than preamble", frame: make([]byte, MinResponseSize-1)},
		{name: "wrong protocol id", frame: badID},
		{name: "TLV length past frame end", frame: overrun},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSearchResponse(tt.frame)
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("ParseSearchResponse() error = %v, want ErrMalformedFrame", err)
			}
		})
	}
}

// TestRequestResponseRoundTrip checks the codec against itself: a
// responder echoes the MAC it was addressed with and reports its own
// IP; both must come back out of the parser exactly as they went into
// the builder.
func TestRequestResponseRoundTrip(t *testing.T) {
	mac := net.HardwareAddr{0xd4, 0x2d, 0xc5, 0x14, 0xc5, 0x70}
	ip := net.IPv4(192, 168, 1, 101)

	request, err := BuildSearchRequest(mac, ip)
	if err != nil {
		t.Fatalf("BuildSearchRequest() error = %v", err)
	}

	// The device copies the MAC into its response preamble and the IP
	// into tag 0x20.
	response := buildResponse(request[12:18], tlv(TagIPAddress, request[18:22]))

	attrs, err := ParseSearchResponse(response)
	if err != nil {
		t.Fatalf("ParseSearchResponse() error = %v", err)
	}
	if !bytes.Equal(attrs.HardwareAddr, mac) {
		t.Errorf("round-tripped MAC = %v, want %v", attrs.HardwareAddr, mac)
	}
	if got := attrs.IPv4(TagIPAddress); !got.Equal(ip) {
		t.Errorf("round-tripped IP = %v, want %v", got, ip)
	}
}
