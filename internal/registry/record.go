package registry

import (
	"time"

	"github.com/Rickardjd/Easy-IP/internal/discovery"
)

// Status is the derived presence state of a record. It is computed
// from last-seen timestamps and the latest scan outcome, never stored.
type Status string

const (
	// StatusActive: seen in the latest scan at its known IP.
	StatusActive Status = "active"

	// StatusIPChanged: seen in the latest scan at a different IP than
	// the previous record.
	StatusIPChanged Status = "ip_changed"

	// StatusOffline: absent from the latest scan but last seen within
	// the missing threshold.
	StatusOffline Status = "offline"

	// StatusMissing: absent for strictly longer than the threshold.
	StatusMissing Status = "missing"
)

// IPHistoryEntry is one append-only entry in a record's address
// history. PreviousIP is nil on the first entry.
type IPHistoryEntry struct {
	IP         string    `json:"ip"`
	Timestamp  time.Time `json:"timestamp"`
	PreviousIP *string   `json:"previous_ip"`
}

// DeviceRecord is the persistent state for one hardware address.
type DeviceRecord struct {
	MAC          string                `json:"mac"`
	Kind         discovery.Kind        `json:"kind"`
	SerialNumber string                `json:"serial_number"`
	ModelName    string                `json:"model_name"`
	DeviceName   string                `json:"device_name"`
	Firmware     string                `json:"firmware"`
	IP           string                `json:"ip"`
	SubnetMask   string                `json:"subnet_mask"`
	Gateway      string                `json:"gateway"`
	HTTPPort     int                   `json:"http_port"`
	Mode         discovery.NetworkMode `json:"network_mode"`

	// Recorder extras; zero for cameras.
	Channels int `json:"channels,omitempty"`
	Capacity int `json:"capacity,omitempty"`

	// FirstSeen is set once and never rewritten.
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`

	TotalDiscoveries int              `json:"total_discoveries"`
	IPHistory        []IPHistoryEntry `json:"ip_history"`
}

// Clone returns a deep copy. Reconciliation mutates clones and swaps
// them in only after persistence succeeds.
func (r *DeviceRecord) Clone() *DeviceRecord {
	cp := *r
	cp.IPHistory = make([]IPHistoryEntry, len(r.IPHistory))
	copy(cp.IPHistory, r.IPHistory)
	return &cp
}

// newRecord builds the initial record for a device never seen before.
func newRecord(d *discovery.Device, now time.Time) *DeviceRecord {
	rec := &DeviceRecord{
		MAC:              d.MAC,
		FirstSeen:        now,
		LastSeen:         now,
		TotalDiscoveries: 1,
		IPHistory: []IPHistoryEntry{
			{IP: d.IP, Timestamp: now, PreviousIP: nil},
		},
	}
	rec.applyObservation(d)
	return rec
}

// applyObservation overwrites the mutable descriptor fields from a
// fresh observation. Identity and history fields are untouched.
func (r *DeviceRecord) applyObservation(d *discovery.Device) {
	r.Kind = d.Kind
	r.SerialNumber = d.SerialNumber
	r.ModelName = d.ModelName
	r.DeviceName = d.DeviceName
	r.Firmware = d.Firmware
	r.IP = d.IP
	r.SubnetMask = d.SubnetMask
	r.Gateway = d.Gateway
	r.HTTPPort = d.HTTPPort
	r.Mode = d.Mode
	if d.Recorder != nil {
		r.Channels = d.Recorder.Channels
		r.Capacity = d.Recorder.Capacity
	} else {
		r.Channels = 0
		r.Capacity = 0
	}
}
