package discovery

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/Rickardjd/Easy-IP/internal/protocol"
)

// responseFrame builds a minimal valid search response: preamble with
// the given MAC, then an IP tag and a model tag.
func responseFrame(mac net.HardwareAddr, ip net.IP) []byte {
	frame := make([]byte, protocol.MinResponseSize)
	binary.BigEndian.PutUint16(frame[0:2], protocol.ProtocolID)
	binary.BigEndian.PutUint16(frame[2:4], 0x012b)
	copy(frame[6:12], mac)

	appendTLV := func(tag uint16, val []byte) {
		var hdr [4]byte
		binary.BigEndian.PutUint16(hdr[0:2], tag)
		binary.BigEndian.PutUint16(hdr[2:4], uint16(len(val)))
		frame = append(frame, hdr[:]...)
		frame = append(frame, val...)
	}
	appendTLV(protocol.TagIPAddress, ip.To4())
	appendTLV(protocol.TagModelName, []byte("WV-S1234"))
	frame = append(frame, 0xff, 0xff)
	return frame
}

// startResponder listens on loopback and answers the first datagram it
// receives with each payload in order, addressed back to the sender.
func startResponder(t *testing.T, payloads ...[]byte) *net.UDPAddr {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 256)
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, addr, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		for _, p := range payloads {
			_, _ = conn.WriteTo(p, addr)
		}
	}()
	return conn.LocalAddr().(*net.UDPAddr)
}

func TestRunSkipsMalformedAndDuplicateDatagrams(t *testing.T) {
	macA, _ := net.ParseMAC("00:80:45:00:00:01")
	macB, _ := net.ParseMAC("00:80:45:00:00:02")

	// A frame that parses but classifies incomplete: no IP tag.
	noIP := make([]byte, protocol.MinResponseSize)
	binary.BigEndian.PutUint16(noIP[0:2], protocol.ProtocolID)
	copy(noIP[6:12], macB)
	noIP = append(noIP, 0xff, 0xff)

	s := NewSession()
	s.Timeout = 500 * time.Millisecond
	s.dest = startResponder(t,
		[]byte("not an easy ip frame"),
		responseFrame(macA, net.IPv4(192, 168, 0, 10)),
		responseFrame(macA, net.IPv4(192, 168, 0, 99)), // duplicate MAC
		noIP,
		responseFrame(macB, net.IPv4(192, 168, 0, 11)),
	)

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Devices) != 2 {
		t.Fatalf("got %d devices, want 2: %+v", len(result.Devices), result.Devices)
	}
	if result.Devices[0].MAC != "00:80:45:00:00:01" || result.Devices[1].MAC != "00:80:45:00:00:02" {
		t.Errorf("devices = %s, %s", result.Devices[0].MAC, result.Devices[1].MAC)
	}
	// First response for a MAC wins; the duplicate with .99 is dropped.
	if result.Devices[0].IP != "192.168.0.10" {
		t.Errorf("IP = %s, want first response kept", result.Devices[0].IP)
	}
	if result.Errors != 2 {
		t.Errorf("Errors = %d, want 2 (garbage + incomplete)", result.Errors)
	}
}

func TestRunCancelReturnsPartialResults(t *testing.T) {
	mac, _ := net.ParseMAC("00:80:45:00:00:01")

	s := NewSession()
	s.Timeout = 10 * time.Second
	s.dest = startResponder(t, responseFrame(mac, net.IPv4(192, 168, 0, 10)))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(300 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	result, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil on cancellation", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Run() took %s, cancellation did not cut the window", elapsed)
	}
	if len(result.Devices) != 1 {
		t.Errorf("got %d devices, want the one collected before cancel", len(result.Devices))
	}
}

func TestRunAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSession()
	result, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil for a cancelled run", err)
	}
	if len(result.Devices) != 0 {
		t.Errorf("got %d devices, want none", len(result.Devices))
	}
}
