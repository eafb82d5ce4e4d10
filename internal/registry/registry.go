package registry

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rickardjd/Easy-IP/internal/discovery"
	"github.com/Rickardjd/Easy-IP/internal/logging"
)

// DefaultMissingThreshold separates offline from missing. A record is
// missing only when unseen for strictly longer than this.
const DefaultMissingThreshold = 24 * time.Hour

// ErrNotFound reports a lookup for a hardware address the registry has
// never recorded.
var ErrNotFound = errors.New("registry: device not found")

// ErrPersistence reports a failed snapshot save. The registry state is
// rolled back; retrying the scan is safe.
var ErrPersistence = errors.New("registry: persistence failure")

// Store persists registry snapshots. Implementations live in the store
// package; the registry only needs whole-snapshot load and save.
type Store interface {
	// Load returns the persisted records, or an empty map when no
	// snapshot exists yet.
	Load() (map[string]*DeviceRecord, error)

	// Save atomically replaces the persisted snapshot.
	Save(records map[string]*DeviceRecord) error
}

// ChangeKind labels how a scan touched one record.
type ChangeKind string

const (
	ChangeNew       ChangeKind = "new"
	ChangeUpdated   ChangeKind = "updated"
	ChangeIPChanged ChangeKind = "ip_changed"
)

// ChangeSummary reports the outcome of one reconciliation.
type ChangeSummary struct {
	ScanID    string     `json:"scan_id"`
	Timestamp time.Time  `json:"timestamp"`
	New       []string   `json:"new"`
	Updated   []string   `json:"updated"`
	IPChanged []IPChange `json:"ip_changed"`
	Total     int        `json:"total"`
}

// IPChange records one address move observed during a scan.
type IPChange struct {
	MAC        string `json:"mac"`
	PreviousIP string `json:"previous_ip"`
	CurrentIP  string `json:"current_ip"`
}

// SortKey orders List output.
type SortKey string

const (
	SortByLastSeen  SortKey = "last_seen"
	SortByFirstSeen SortKey = "first_seen"
	SortByIP        SortKey = "ip"
	SortByMAC       SortKey = "mac"
	SortByName      SortKey = "name"
)

// Stats is an aggregate view over all records.
type Stats struct {
	Total     int            `json:"total"`
	Cameras   int            `json:"cameras"`
	Recorders int            `json:"recorders"`
	ByStatus  map[Status]int `json:"by_status"`

	TotalDiscoveries     int     `json:"total_discoveries"`
	AvgDiscoveries       float64 `json:"avg_discoveries"`
	DevicesWithIPChanges int     `json:"devices_with_ip_changes"`

	// IPConflicts maps each IP currently claimed by more than one
	// record to the claiming hardware addresses.
	IPConflicts map[string][]string `json:"ip_conflicts,omitempty"`

	LastScanID   string    `json:"last_scan_id,omitempty"`
	LastScanTime time.Time `json:"last_scan_time,omitempty"`
}

// Registry is the reconciling device inventory. All methods are safe
// for concurrent use.
type Registry struct {
	mu               sync.RWMutex
	store            Store
	records          map[string]*DeviceRecord
	missingThreshold time.Duration

	// lastScan maps hardware addresses touched by the most recent
	// reconciliation to how it touched them. It is rebuilt per scan
	// and deliberately not persisted: after a restart every record
	// derives its status from timestamps alone.
	lastScan     map[string]ChangeKind
	lastScanID   string
	lastScanTime time.Time
}

// Open loads the persisted snapshot from st and returns a ready
// registry. A missing snapshot yields an empty registry.
func Open(st Store, missingThreshold time.Duration) (*Registry, error) {
	if missingThreshold <= 0 {
		missingThreshold = DefaultMissingThreshold
	}

	records, err := st.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load device records: %w", err)
	}
	if records == nil {
		records = make(map[string]*DeviceRecord)
	}

	logging.Info("Registry opened",
		zap.Int("records", len(records)),
		zap.Duration("missing_threshold", missingThreshold),
	)

	return &Registry{
		store:            st,
		records:          records,
		missingThreshold: missingThreshold,
		lastScan:         make(map[string]ChangeKind),
	}, nil
}

// Reconcile folds one scan batch into the inventory. The whole batch
// is applied atomically: mutations happen on clones, the snapshot is
// persisted, and only then is the in-memory state swapped. On a
// persistence failure the registry is left exactly as before.
func (r *Registry) Reconcile(devices []*discovery.Device, now time.Time) (*ChangeSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	summary := &ChangeSummary{
		ScanID:    uuid.NewString(),
		Timestamp: now,
	}

	next := make(map[string]*DeviceRecord, len(r.records))
	for mac, rec := range r.records {
		next[mac] = rec
	}
	scan := make(map[string]ChangeKind, len(devices))

	for _, d := range devices {
		prev, exists := next[d.MAC]
		if !exists {
			next[d.MAC] = newRecord(d, now)
			scan[d.MAC] = ChangeNew
			summary.New = append(summary.New, d.MAC)
			continue
		}

		rec := prev.Clone()
		previousIP := rec.IP
		rec.applyObservation(d)
		rec.LastSeen = now
		rec.TotalDiscoveries++

		if previousIP != d.IP {
			rec.IPHistory = append(rec.IPHistory, IPHistoryEntry{
				IP:         d.IP,
				Timestamp:  now,
				PreviousIP: &previousIP,
			})
			scan[d.MAC] = ChangeIPChanged
			summary.IPChanged = append(summary.IPChanged, IPChange{
				MAC:        d.MAC,
				PreviousIP: previousIP,
				CurrentIP:  d.IP,
			})
		} else {
			scan[d.MAC] = ChangeUpdated
			summary.Updated = append(summary.Updated, d.MAC)
		}
		next[d.MAC] = rec
	}

	if err := r.store.Save(next); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	r.records = next
	r.lastScan = scan
	r.lastScanID = summary.ScanID
	r.lastScanTime = now
	summary.Total = len(r.records)

	logging.Info("Reconciliation complete",
		zap.String("scan_id", summary.ScanID),
		zap.Int("new", len(summary.New)),
		zap.Int("updated", len(summary.Updated)),
		zap.Int("ip_changed", len(summary.IPChanged)),
		zap.Int("total", summary.Total),
	)

	return summary, nil
}

// Get returns a copy of the record for mac, normalized to lower case.
func (r *Registry) Get(mac string) (*DeviceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[strings.ToLower(mac)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, mac)
	}
	return rec.Clone(), nil
}

// List returns copies of all records ordered by key. Unrecognized keys
// fall back to last-seen, newest first.
func (r *Registry) List(key SortKey) []*DeviceRecord {
	r.mu.RLock()
	out := make([]*DeviceRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Clone())
	}
	r.mu.RUnlock()

	switch key {
	case SortByFirstSeen:
		sort.Slice(out, func(i, j int) bool { return out[i].FirstSeen.Before(out[j].FirstSeen) })
	case SortByIP:
		sort.Slice(out, func(i, j int) bool { return compareIPs(out[i].IP, out[j].IP) })
	case SortByMAC:
		sort.Slice(out, func(i, j int) bool { return out[i].MAC < out[j].MAC })
	case SortByName:
		sort.Slice(out, func(i, j int) bool { return out[i].DeviceName < out[j].DeviceName })
	default:
		sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	}
	return out
}

// StatusOf derives the presence status of one record at time now.
func (r *Registry) StatusOf(rec *DeviceRecord, now time.Time) Status {
	r.mu.RLock()
	kind, inLastScan := r.lastScan[rec.MAC]
	r.mu.RUnlock()

	if inLastScan {
		if kind == ChangeIPChanged {
			return StatusIPChanged
		}
		return StatusActive
	}
	if now.Sub(rec.LastSeen) > r.missingThreshold {
		return StatusMissing
	}
	return StatusOffline
}

// Stats aggregates counts, statuses, and IP conflicts at time now.
func (r *Registry) Stats(now time.Time) *Stats {
	r.mu.RLock()
	records := make([]*DeviceRecord, 0, len(r.records))
	for _, rec := range r.records {
		records = append(records, rec)
	}
	scanID, scanTime := r.lastScanID, r.lastScanTime
	r.mu.RUnlock()

	st := &Stats{
		Total:        len(records),
		ByStatus:     make(map[Status]int),
		LastScanID:   scanID,
		LastScanTime: scanTime,
	}

	byIP := make(map[string][]string)
	for _, rec := range records {
		if rec.Kind == discovery.KindRecorder {
			st.Recorders++
		} else {
			st.Cameras++
		}
		st.ByStatus[r.StatusOf(rec, now)]++
		st.TotalDiscoveries += rec.TotalDiscoveries
		if len(rec.IPHistory) > 1 {
			st.DevicesWithIPChanges++
		}
		byIP[rec.IP] = append(byIP[rec.IP], rec.MAC)
	}
	if st.Total > 0 {
		st.AvgDiscoveries = float64(st.TotalDiscoveries) / float64(st.Total)
	}

	for ip, macs := range byIP {
		if len(macs) > 1 {
			if st.IPConflicts == nil {
				st.IPConflicts = make(map[string][]string)
			}
			sort.Strings(macs)
			st.IPConflicts[ip] = macs
		}
	}
	return st
}

// Snapshot returns a deep copy of every record, for export.
func (r *Registry) Snapshot() map[string]*DeviceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*DeviceRecord, len(r.records))
	for mac, rec := range r.records {
		out[mac] = rec.Clone()
	}
	return out
}

// compareIPs orders dotted-quad addresses numerically, falling back to
// string order for anything unparseable.
func compareIPs(a, b string) bool {
	pa := net.ParseIP(a).To4()
	pb := net.ParseIP(b).To4()
	if pa != nil && pb != nil {
		return bytes.Compare(pa, pb) < 0
	}
	return a < b
}
