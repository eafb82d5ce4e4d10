package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/Rickardjd/Easy-IP/internal/logging"
	"github.com/Rickardjd/Easy-IP/internal/protocol"
)

const (
	// DefaultTimeout is the default response-collection window.
	DefaultTimeout = 3 * time.Second

	// WildcardInterface broadcasts on all interfaces.
	WildcardInterface = "0.0.0.0"

	broadcastAddr = "255.255.255.255"
	readBufSize   = 4096
)

// ErrSocket reports a bind or send failure. These are fatal to the
// scan; no partial scan is attempted.
var ErrSocket = errors.New("discovery: socket error")

// Session owns one discovery run over the Easy IP broadcast protocol.
type Session struct {
	// Interface is the local IP to bind, or WildcardInterface.
	Interface string

	// Timeout caps the response-collection window. It is an absolute
	// ceiling: the run never blocks past it regardless of datagram
	// arrival rate.
	Timeout time.Duration

	// dest overrides the broadcast destination, for tests that stand
	// in a loopback responder. Nil means 255.255.255.255:10670.
	dest *net.UDPAddr
}

// NewSession creates a session with default settings.
func NewSession() *Session {
	return &Session{
		Interface: WildcardInterface,
		Timeout:   DefaultTimeout,
	}
}

// Result is the outcome of one discovery run.
type Result struct {
	// Devices holds at most one descriptor per hardware address,
	// first successfully classified response wins.
	Devices []*Device

	// Errors counts datagrams that failed to decode or classify.
	// They never abort the run.
	Errors int

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

// Run broadcasts one search request and collects responses until the
// timeout elapses. Cancelling ctx closes the socket and returns the
// descriptors collected so far with a nil error: partial results from
// a cancelled scan are still worth reconciling.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if ctx.Err() != nil {
		return &Result{}, nil
	}

	conn, err := bindBroadcastSocket(ctx, s.Interface)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// Cancellation path: closing the socket unblocks ReadFrom.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	mac, ip := localSource(s.Interface)
	request, err := protocol.BuildSearchRequest(mac, ip)
	if err != nil {
		return nil, err
	}

	dest := s.dest
	if dest == nil {
		dest = &net.UDPAddr{IP: net.ParseIP(broadcastAddr), Port: protocol.BroadcastPort}
	}
	if _, err := conn.WriteTo(request, dest); err != nil {
		if ctx.Err() != nil {
			// Cancelled before the request went out: an empty run,
			// not a socket failure.
			return &Result{Elapsed: time.Since(start)}, nil
		}
		return nil, fmt.Errorf("%w: broadcast send failed: %w", ErrSocket, err)
	}

	logging.Info("Search request broadcast",
		zap.String("dest", dest.String()),
		zap.String("source_mac", mac.String()),
		zap.Stringer("source_ip", ip),
		zap.Duration("timeout", timeout),
	)

	result := &Result{}
	seen := make(map[string]bool)
	deadline := start.Add(timeout)
	_ = conn.SetReadDeadline(deadline)

	buf := make([]byte, readBufSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				break // window elapsed
			}
			if errors.Is(err, net.ErrClosed) {
				break // cancelled; keep what we have
			}
			result.Errors++
			continue
		}

		datagram := append([]byte(nil), buf[:n]...)
		logging.LogDatagram(addr.String(), datagram)

		attrs, err := protocol.ParseSearchResponse(datagram)
		if err != nil {
			result.Errors++
			logging.Debug("Dropping undecodable datagram",
				zap.String("remote_addr", addr.String()),
				zap.Error(err),
			)
			continue
		}

		device, err := Classify(attrs, time.Now())
		if err != nil {
			result.Errors++
			logging.Debug("Dropping unclassifiable response",
				zap.String("remote_addr", addr.String()),
				zap.Error(err),
			)
			continue
		}

		if seen[device.MAC] {
			logging.Debug("Duplicate response", zap.String("mac", device.MAC))
			continue
		}
		seen[device.MAC] = true
		result.Devices = append(result.Devices, device)

		logging.Info("Device discovered",
			zap.String("mac", device.MAC),
			zap.String("model", device.ModelName),
			zap.String("ip", device.IP),
			zap.String("kind", string(device.Kind)),
		)
	}

	result.Elapsed = time.Since(start)
	logging.Info("Discovery complete",
		zap.Int("devices", len(result.Devices)),
		zap.Int("errors", result.Errors),
		zap.Duration("elapsed", result.Elapsed),
	)

	return result, nil
}

// bindBroadcastSocket binds a UDP socket with SO_BROADCAST set, on the
// protocol source port when free, otherwise on an ephemeral port (some
// hosts run the official tool side by side).
func bindBroadcastSocket(ctx context.Context, iface string) (net.PacketConn, error) {
	if iface == "" {
		iface = WildcardInterface
	}

	lc := net.ListenConfig{Control: controlBroadcast}

	conn, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf("%s:%d", iface, protocol.SourcePort))
	if err == nil {
		return conn, nil
	}
	if !isAddrInUse(err) {
		return nil, fmt.Errorf("%w: bind %s:%d: %w", ErrSocket, iface, protocol.SourcePort, err)
	}

	logging.Warn("Source port in use, binding to ephemeral port",
		zap.Int("port", protocol.SourcePort),
	)
	conn, err = lc.ListenPacket(ctx, "udp4", fmt.Sprintf("%s:0", iface))
	if err != nil {
		return nil, fmt.Errorf("%w: bind %s: %w", ErrSocket, iface, err)
	}
	return conn, nil
}

// localSource picks the MAC and IPv4 of the sending interface for the
// request frame. Devices unicast their responses to this address.
// Falls back to placeholder values when no suitable interface exists
// (responses still arrive via the broadcast-bound socket).
func localSource(bind string) (net.HardwareAddr, net.IP) {
	fallbackMAC := net.HardwareAddr{0xa0, 0x29, 0x19, 0x3e, 0xab, 0x91}
	fallbackIP := net.IPv4(192, 168, 1, 100)

	want := net.ParseIP(bind)
	wildcard := bind == "" || bind == WildcardInterface

	ifaces, err := net.Interfaces()
	if err != nil {
		return fallbackMAC, fallbackIP
	}

	var candMAC net.HardwareAddr
	var candIP net.IP
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 || len(ifc.HardwareAddr) != 6 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil {
				continue
			}
			if !wildcard && want != nil && ip4.Equal(want) {
				return ifc.HardwareAddr, ip4
			}
			if candIP == nil {
				candMAC = ifc.HardwareAddr
				candIP = ip4
			}
		}
	}

	if candIP != nil {
		return candMAC, candIP
	}
	return fallbackMAC, fallbackIP
}
