package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// SweepServiceType is the mDNS service type browsed during a
	// diagnostic sweep. Many cameras advertise their web UI here.
	SweepServiceType = "_http._tcp"

	// SweepServiceDomain is the mDNS domain (typically "local.")
	SweepServiceDomain = "local."

	// DefaultSweepTimeout is the default timeout for a sweep
	DefaultSweepTimeout = 10 * time.Second
)

// SweepEntry is one HTTP service found during an mDNS sweep. Sweep
// results carry no hardware address, so they are diagnostic only and
// never enter the device registry.
type SweepEntry struct {
	Instance     string
	Hostname     string
	IP           string
	Port         int
	Metadata     map[string]string
	DiscoveredAt time.Time
}

// Sweeper browses mDNS for HTTP services on the local network. It is
// a fallback diagnostic for segments where the broadcast protocol is
// filtered.
type Sweeper struct {
	// Timeout is the maximum time to wait for service entries
	Timeout time.Duration
}

// NewSweeper creates a sweeper with default settings
func NewSweeper() *Sweeper {
	return &Sweeper{
		Timeout: DefaultSweepTimeout,
	}
}

// Sweep browses for HTTP services until the timeout elapses
func (s *Sweeper) Sweep(ctx context.Context) ([]*SweepEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make([]*SweepEntry, 0)
	done := make(chan struct{})

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		defer close(done)
		for entry := range entries {
			se := parseSweepEntry(entry)
			if se != nil {
				found = append(found, se)
			}
		}
	}()

	if err := resolver.Browse(ctx, SweepServiceType, SweepServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	<-done

	sort.Slice(found, func(i, j int) bool { return found[i].Instance < found[j].Instance })
	return found, nil
}

// parseSweepEntry converts a zeroconf service entry to a SweepEntry
// Returns nil for entries with no resolvable address
func parseSweepEntry(entry *zeroconf.ServiceEntry) *SweepEntry {
	// Prefer IPv4
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = defaultHTTPPort
	}

	// TXT records are in "key=value" format
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	return &SweepEntry{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
