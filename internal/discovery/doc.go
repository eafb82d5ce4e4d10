// Package discovery finds i-PRO cameras and recorders on the local
// network.
//
// The primary path is the vendor UDP broadcast protocol implemented in
// the protocol package: a Session sends one search request and collects
// unicast responses for a bounded window, classifying each responder
// into a Device descriptor and de-duplicating by hardware address.
//
// # Discovery Process
//
//  1. Bind a UDP socket on the chosen interface (source port 10669,
//     falling back to an ephemeral port when taken)
//  2. Broadcast the 94-byte search request to 255.255.255.255:10670
//  3. Decode and classify every datagram that arrives before the
//     timeout; malformed datagrams are counted and skipped
//  4. Return at most one descriptor per hardware address
//
// Cancelling the session's context closes the socket and returns the
// descriptors collected so far.
//
// A secondary, diagnostic-only path sweeps for mDNS "_http._tcp"
// advertisements (newer firmware announces itself there too). mDNS
// results carry no hardware address and are never fed into the
// registry.
//
// # Network Requirements
//
// - Devices must be broadcast-reachable (same L2 segment)
// - UDP ports 10669-10670 must not be filtered
// - Some corporate networks drop directed broadcasts entirely
package discovery
